package cfb

import "fmt"

// sectorReader turns (sector size, byte source) into fixed-size regular
// sector reads. It is the single place that knows "sector i lives at byte
// offset 512 + i*sectorSize"; every layer above addresses
// sectors purely by ID.
type sectorReader struct {
	src        ByteSource
	sectorSize int64
	numSectors uint32
}

func newSectorReader(src ByteSource, sectorSize int64) *sectorReader {
	n := (src.Len() - headerLen) / sectorSize
	if n < 0 {
		n = 0
	}
	return &sectorReader{src: src, sectorSize: sectorSize, numSectors: uint32(n)}
}

func (s *sectorReader) offsetOf(sectorID uint32) int64 {
	return headerLen + int64(sectorID)*s.sectorSize
}

// readSector reads the full contents of sectorID into a freshly allocated
// slice.
func (s *sectorReader) readSector(sectorID uint32) ([]byte, error) {
	buf := make([]byte, s.sectorSize)
	return buf, s.readSectorInto(sectorID, buf)
}

func (s *sectorReader) readSectorInto(sectorID uint32, buf []byte) error {
	if sectorID >= s.numSectors {
		return errOutOfRange(sectorID, s.numSectors)
	}
	_, err := s.src.ReadAt(buf, s.offsetOf(sectorID))
	return err
}

// readAt reads len(p) bytes from sectorID starting withinOffset bytes into
// that sector. Callers must ensure withinOffset+len(p) <= sectorSize; chunks
// that straddle a sector boundary are split by fatChainReader.
func (s *sectorReader) readAt(sectorID uint32, withinOffset int64, p []byte) error {
	if sectorID >= s.numSectors {
		return errOutOfRange(sectorID, s.numSectors)
	}
	_, err := s.src.ReadAt(p, s.offsetOf(sectorID)+withinOffset)
	return err
}

func errOutOfRange(id, n uint32) error {
	return Diagnostic{
		Category: OutOfRange,
		Offset:   -1,
		Message:  fmt.Sprintf("sector %d out of range (have %d sectors)", id, n),
	}
}
