package cfb

import (
	"bytes"
	"encoding/binary"

	"github.com/google/uuid"
)

// Header holds the parsed 512-byte CFB header, plus the 109 DIFAT entries
// that are embedded directly in it.
type Header struct {
	Version            Version
	CLSID              uuid.UUID
	SectorShift        uint16
	MiniSectorShift    uint16
	NumDirSectors      uint32
	NumFatSectors      uint32
	FirstDirSector     uint32
	MiniStreamCutoff   uint32
	FirstMinifatSector uint32
	NumMinifatSectors  uint32
	FirstDifatSector   uint32
	NumDifatSectors    uint32

	InitialDifatEntries [numDifatEntriesInHeader]uint32

	SectorSize     int64
	MiniSectorSize int64
}

// readHeader parses the first 512 bytes of src ([MS-CFB] 2.2). Every
// anomaly short of a magic mismatch or an unsupported version/byte-order is
// a warning, not a fatal error: the header is still usable.
func readHeader(src ByteSource, d *diagnostics) (*Header, error) {
	buf := make([]byte, headerLen)
	if src.Len() < headerLen {
		return nil, d.fatal(NotCFB, 0, "file is smaller than the 512-byte CFB header")
	}
	if _, err := src.ReadAt(buf, 0); err != nil {
		return nil, wrap(err, "reading header")
	}

	if !bytes.Equal(buf[0:8], magicNumber[:]) {
		return nil, d.fatal(NotCFB, 0, "bad magic number")
	}

	h := &Header{}

	clsidBytes := buf[8:24]
	if !allZero(clsidBytes) {
		if err := d.warn(HeaderCorrupt, 8, "CLSID of compound file is non-zero"); err != nil {
			return nil, err
		}
	}
	copy(h.CLSID[:], clsidBytes)

	// The minor version at offMinorVersion carries no meaning for readers.
	majorVersion := binary.LittleEndian.Uint16(buf[offMajorVersion:])
	version, err := parseVersion(majorVersion)
	if err != nil {
		return nil, d.fatal(InvalidVersion, offMajorVersion, err.Error())
	}
	h.Version = version

	bom := binary.LittleEndian.Uint16(buf[offByteOrder:])
	if bom != byteOrderMark {
		return nil, d.fatal(InvalidByteOrder, offByteOrder,
			"unsupported byte order mark 0x%04x", bom)
	}

	h.SectorShift = binary.LittleEndian.Uint16(buf[offSectorShift:])
	if h.SectorShift != version.expectedSectorShift() {
		if err := d.warn(SectorSizeWarning, offSectorShift,
			"unexpected sector shift %d for %s (expected %d)",
			h.SectorShift, version, version.expectedSectorShift()); err != nil {
			return nil, err
		}
	}
	h.SectorSize = 1 << h.SectorShift
	if h.SectorSize < 128 || h.SectorSize > (1<<20) {
		if err := d.warn(SectorSizeWarning, offSectorShift,
			"sector size %d is implausible, assuming 512", h.SectorSize); err != nil {
			return nil, err
		}
		h.SectorShift = 9
		h.SectorSize = 512
	}

	h.MiniSectorShift = binary.LittleEndian.Uint16(buf[offMiniSectorShift:])
	if h.MiniSectorShift != defaultMiniSectorShift {
		if err := d.warn(MiniSectorSizeWarning, offMiniSectorShift,
			"unexpected mini sector shift %d (expected %d)",
			h.MiniSectorShift, defaultMiniSectorShift); err != nil {
			return nil, err
		}
	}
	h.MiniSectorSize = 1 << h.MiniSectorShift
	if h.MiniSectorSize < 8 || h.MiniSectorSize >= h.SectorSize {
		if err := d.warn(MiniSectorSizeWarning, offMiniSectorShift,
			"mini sector size %d is implausible, assuming 64", h.MiniSectorSize); err != nil {
			return nil, err
		}
		h.MiniSectorShift = defaultMiniSectorShift
		h.MiniSectorSize = 1 << defaultMiniSectorShift
	}

	h.NumDirSectors = binary.LittleEndian.Uint32(buf[offNumDirSectors:])
	if version == V3 && h.NumDirSectors != 0 {
		if err := d.warn(HeaderCorrupt, offNumDirSectors,
			"directory sector count is non-zero (%d) in a v3 file", h.NumDirSectors); err != nil {
			return nil, err
		}
	}

	h.NumFatSectors = binary.LittleEndian.Uint32(buf[offNumFatSectors:])
	h.FirstDirSector = binary.LittleEndian.Uint32(buf[offFirstDirSector:])

	txnSig := binary.LittleEndian.Uint32(buf[offTransactionSig:])
	if txnSig != 0 {
		if err := d.warn(HeaderCorrupt, offTransactionSig,
			"transaction signature is non-zero (%d)", txnSig); err != nil {
			return nil, err
		}
	}

	h.MiniStreamCutoff = binary.LittleEndian.Uint32(buf[offMiniStreamCutoff:])
	if h.MiniStreamCutoff != defaultMiniStreamCutoff {
		if err := d.warn(CutoffWarning, offMiniStreamCutoff,
			"unusual mini stream cutoff %d (expected %d); honoring header value",
			h.MiniStreamCutoff, defaultMiniStreamCutoff); err != nil {
			return nil, err
		}
	}

	h.FirstMinifatSector = binary.LittleEndian.Uint32(buf[offFirstMinifatSector:])
	h.NumMinifatSectors = binary.LittleEndian.Uint32(buf[offNumMinifatSectors:])
	h.FirstDifatSector = binary.LittleEndian.Uint32(buf[offFirstDifatSector:])
	h.NumDifatSectors = binary.LittleEndian.Uint32(buf[offNumDifatSectors:])

	// Some writers set the DIFAT extension pointer to FREE_SECTOR rather
	// than END_OF_CHAIN to mean "no extension"; normalize it.
	if h.NumDifatSectors == 0 && h.FirstDifatSector == freeSector {
		if err := d.warn(DIFATWarning, offFirstDifatSector,
			"DIFAT extension pointer is FREE_SECTOR, assuming no extension"); err != nil {
			return nil, err
		}
		h.FirstDifatSector = endOfChain
	} else if h.NumDifatSectors == 0 && h.FirstDifatSector != endOfChain {
		if err := d.warn(DIFATWarning, offFirstDifatSector,
			"DIFAT extension pointer set with a zero DIFAT sector count"); err != nil {
			return nil, err
		}
	}

	for i := 0; i < numDifatEntriesInHeader; i++ {
		h.InitialDifatEntries[i] = binary.LittleEndian.Uint32(buf[offDifatEntries+i*4:])
	}

	return h, nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
