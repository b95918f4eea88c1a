package cfb

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"
)

// memSource is a ByteSource over an in-memory image, used only by tests to
// exercise the reader without touching a real file.
type memSource struct {
	r *bytes.Reader
}

func newMemSource(b []byte) *memSource { return &memSource{r: bytes.NewReader(b)} }

func (m *memSource) Len() int64 { return m.r.Size() }

func (m *memSource) ReadAt(p []byte, off int64) (int, error) { return m.r.ReadAt(p, off) }

func (m *memSource) Close() error { return nil }

// diagRecorder is a Sink that records every diagnostic it receives, for
// tests that need to assert on warnings raised during a successful Open
// rather than just on whether Open returned an error.
type diagRecorder struct {
	diags []Diagnostic
}

func (r *diagRecorder) sink(d Diagnostic) { r.diags = append(r.diags, d) }

func (r *diagRecorder) has(cat Category) bool {
	for _, d := range r.diags {
		if d.Category == cat {
			return true
		}
	}
	return false
}

// fixtureEntry describes one directory entry for buildFixture's caller; it
// maps directly onto the on-disk 128-byte layout.
type fixtureEntry struct {
	name                    string
	objType                 uint8
	color                   uint8
	left, right, child      uint32
	startSector             uint32
	size                    uint64
}

func encodeDirEntry(e fixtureEntry) []byte {
	buf := make([]byte, dirEntryLen)

	units := utf16.Encode([]rune(e.name))
	nameLen := uint16((len(units) + 1) * 2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[i*2:], u)
	}

	binary.LittleEndian.PutUint16(buf[0x40:], nameLen)
	buf[0x42] = e.objType
	buf[0x43] = e.color
	binary.LittleEndian.PutUint32(buf[0x44:], e.left)
	binary.LittleEndian.PutUint32(buf[0x48:], e.right)
	binary.LittleEndian.PutUint32(buf[0x4c:], e.child)
	binary.LittleEndian.PutUint32(buf[0x74:], e.startSector)
	binary.LittleEndian.PutUint32(buf[0x78:], uint32(e.size))
	binary.LittleEndian.PutUint32(buf[0x7c:], uint32(e.size>>32))
	return buf
}

// buildMiniFATFixture assembles a minimal, valid v3 container whose two
// streams both live in the mini-stream: "Big" (10 bytes) and "Small" (5
// bytes), siblings under the Root Entry.
func buildMiniFATFixture() []byte {
	const numSectors = 4 // 0: FAT, 1: directory, 2: mini-stream host, 3: mini-FAT
	img := make([]byte, headerLen+numSectors*512)
	sector := func(i int) []byte { return img[headerLen+i*512 : headerLen+(i+1)*512] }

	h := img[:headerLen]
	copy(h[0:8], magicNumber[:])
	binary.LittleEndian.PutUint16(h[offMinorVersion:], 0x003e)
	binary.LittleEndian.PutUint16(h[offMajorVersion:], 3)
	binary.LittleEndian.PutUint16(h[offByteOrder:], byteOrderMark)
	binary.LittleEndian.PutUint16(h[offSectorShift:], 9)
	binary.LittleEndian.PutUint16(h[offMiniSectorShift:], 6)
	binary.LittleEndian.PutUint32(h[offNumFatSectors:], 1)
	binary.LittleEndian.PutUint32(h[offFirstDirSector:], 1)
	binary.LittleEndian.PutUint32(h[offMiniStreamCutoff:], defaultMiniStreamCutoff)
	binary.LittleEndian.PutUint32(h[offFirstMinifatSector:], 3)
	binary.LittleEndian.PutUint32(h[offNumMinifatSectors:], 1)
	binary.LittleEndian.PutUint32(h[offFirstDifatSector:], endOfChain)
	for i := 0; i < numDifatEntriesInHeader; i++ {
		v := freeSector
		if i == 0 {
			v = 0
		}
		binary.LittleEndian.PutUint32(h[offDifatEntries+i*4:], v)
	}

	fat := sector(0)
	binary.LittleEndian.PutUint32(fat[0:], fatSectorTag)
	binary.LittleEndian.PutUint32(fat[4:], endOfChain)
	binary.LittleEndian.PutUint32(fat[8:], endOfChain)
	binary.LittleEndian.PutUint32(fat[12:], endOfChain)
	for i := 4; i < 128; i++ {
		binary.LittleEndian.PutUint32(fat[i*4:], freeSector)
	}

	dir := sector(1)
	copy(dir[0*dirEntryLen:], encodeDirEntry(fixtureEntry{
		name: rootEntryName, objType: dirTypeRoot, color: colorBlack,
		left: noStream, right: noStream, child: 2, startSector: 2, size: 128,
	}))
	copy(dir[1*dirEntryLen:], encodeDirEntry(fixtureEntry{
		name: "Big", objType: dirTypeStream, color: colorBlack,
		left: noStream, right: noStream, child: noStream, startSector: 0, size: 10,
	}))
	copy(dir[2*dirEntryLen:], encodeDirEntry(fixtureEntry{
		name: "Small", objType: dirTypeStream, color: colorBlack,
		left: 1, right: noStream, child: noStream, startSector: 1, size: 5,
	}))

	miniStream := sector(2)
	copy(miniStream[0:], "BIGSTREAM!")
	copy(miniStream[64:], "SMALL")

	miniFAT := sector(3)
	binary.LittleEndian.PutUint32(miniFAT[0:], endOfChain)
	binary.LittleEndian.PutUint32(miniFAT[4:], endOfChain)
	for i := 2; i < 128; i++ {
		binary.LittleEndian.PutUint32(miniFAT[i*4:], freeSector)
	}

	return img
}

// buildNestedFixture assembles a v3 container with a storage "A" holding a
// single stream "B" of ten bytes 00..09, read through the mini-FAT.
func buildNestedFixture() []byte {
	const numSectors = 4 // 0: FAT, 1: directory, 2: mini-stream host, 3: mini-FAT
	img := make([]byte, headerLen+numSectors*512)
	sector := func(i int) []byte { return img[headerLen+i*512 : headerLen+(i+1)*512] }

	h := img[:headerLen]
	copy(h[0:8], magicNumber[:])
	binary.LittleEndian.PutUint16(h[offMinorVersion:], 0x003e)
	binary.LittleEndian.PutUint16(h[offMajorVersion:], 3)
	binary.LittleEndian.PutUint16(h[offByteOrder:], byteOrderMark)
	binary.LittleEndian.PutUint16(h[offSectorShift:], 9)
	binary.LittleEndian.PutUint16(h[offMiniSectorShift:], 6)
	binary.LittleEndian.PutUint32(h[offNumFatSectors:], 1)
	binary.LittleEndian.PutUint32(h[offFirstDirSector:], 1)
	binary.LittleEndian.PutUint32(h[offMiniStreamCutoff:], defaultMiniStreamCutoff)
	binary.LittleEndian.PutUint32(h[offFirstMinifatSector:], 3)
	binary.LittleEndian.PutUint32(h[offNumMinifatSectors:], 1)
	binary.LittleEndian.PutUint32(h[offFirstDifatSector:], endOfChain)
	for i := 0; i < numDifatEntriesInHeader; i++ {
		v := freeSector
		if i == 0 {
			v = 0
		}
		binary.LittleEndian.PutUint32(h[offDifatEntries+i*4:], v)
	}

	fat := sector(0)
	binary.LittleEndian.PutUint32(fat[0:], fatSectorTag)
	binary.LittleEndian.PutUint32(fat[4:], endOfChain)
	binary.LittleEndian.PutUint32(fat[8:], endOfChain)
	binary.LittleEndian.PutUint32(fat[12:], endOfChain)
	for i := 4; i < 128; i++ {
		binary.LittleEndian.PutUint32(fat[i*4:], freeSector)
	}

	dir := sector(1)
	copy(dir[0*dirEntryLen:], encodeDirEntry(fixtureEntry{
		name: rootEntryName, objType: dirTypeRoot, color: colorBlack,
		left: noStream, right: noStream, child: 1, startSector: 2, size: 64,
	}))
	copy(dir[1*dirEntryLen:], encodeDirEntry(fixtureEntry{
		name: "A", objType: dirTypeStorage, color: colorBlack,
		left: noStream, right: noStream, child: 2,
	}))
	copy(dir[2*dirEntryLen:], encodeDirEntry(fixtureEntry{
		name: "B", objType: dirTypeStream, color: colorBlack,
		left: noStream, right: noStream, child: noStream, startSector: 0, size: 10,
	}))

	miniStream := sector(2)
	for i := 0; i < 10; i++ {
		miniStream[i] = byte(i)
	}

	miniFAT := sector(3)
	binary.LittleEndian.PutUint32(miniFAT[0:], endOfChain)
	for i := 1; i < 128; i++ {
		binary.LittleEndian.PutUint32(miniFAT[i*4:], freeSector)
	}

	return img
}

// buildUnusualSectorFixture is a v3 container with a nonstandard sector
// shift of 10 (1024-byte sectors) holding one FAT-mode stream "Big".
func buildUnusualSectorFixture() []byte {
	const sectorSize = 1024
	const numSectors = 3 // 0: FAT, 1: directory, 2: "Big" stream data
	img := make([]byte, headerLen+numSectors*sectorSize)
	sector := func(i int) []byte {
		return img[headerLen+i*sectorSize : headerLen+(i+1)*sectorSize]
	}

	h := img[:headerLen]
	copy(h[0:8], magicNumber[:])
	binary.LittleEndian.PutUint16(h[offMinorVersion:], 0x003e)
	binary.LittleEndian.PutUint16(h[offMajorVersion:], 3)
	binary.LittleEndian.PutUint16(h[offByteOrder:], byteOrderMark)
	binary.LittleEndian.PutUint16(h[offSectorShift:], 10)
	binary.LittleEndian.PutUint16(h[offMiniSectorShift:], 6)
	binary.LittleEndian.PutUint32(h[offNumFatSectors:], 1)
	binary.LittleEndian.PutUint32(h[offFirstDirSector:], 1)
	binary.LittleEndian.PutUint32(h[offMiniStreamCutoff:], 0)
	binary.LittleEndian.PutUint32(h[offFirstMinifatSector:], endOfChain)
	binary.LittleEndian.PutUint32(h[offFirstDifatSector:], endOfChain)
	for i := 0; i < numDifatEntriesInHeader; i++ {
		v := freeSector
		if i == 0 {
			v = 0
		}
		binary.LittleEndian.PutUint32(h[offDifatEntries+i*4:], v)
	}

	fat := sector(0)
	binary.LittleEndian.PutUint32(fat[0:], fatSectorTag)
	binary.LittleEndian.PutUint32(fat[4:], endOfChain)
	binary.LittleEndian.PutUint32(fat[8:], endOfChain)
	for i := 3; i < sectorSize/4; i++ {
		binary.LittleEndian.PutUint32(fat[i*4:], freeSector)
	}

	dir := sector(1)
	copy(dir[0*dirEntryLen:], encodeDirEntry(fixtureEntry{
		name: rootEntryName, objType: dirTypeRoot, color: colorBlack,
		left: noStream, right: noStream, child: 1, startSector: endOfChain, size: 0,
	}))
	copy(dir[1*dirEntryLen:], encodeDirEntry(fixtureEntry{
		name: "Big", objType: dirTypeStream, color: colorBlack,
		left: noStream, right: noStream, child: noStream, startSector: 2, size: 10,
	}))

	copy(sector(2)[0:], "BIGSTREAM!")

	return img
}

// buildMixedFixture assembles a v3 container holding both allocation modes
// at the default cutoff: "big" is 4096 bytes of 'y' spanning eight FAT
// sectors, "small" is 64 bytes of 'x' in the mini-stream.
func buildMixedFixture() []byte {
	const numSectors = 12 // 0: FAT, 1: dir, 2-9: "big", 10: mini host, 11: mini-FAT
	img := make([]byte, headerLen+numSectors*512)
	sector := func(i int) []byte { return img[headerLen+i*512 : headerLen+(i+1)*512] }

	h := img[:headerLen]
	copy(h[0:8], magicNumber[:])
	binary.LittleEndian.PutUint16(h[offMinorVersion:], 0x003e)
	binary.LittleEndian.PutUint16(h[offMajorVersion:], 3)
	binary.LittleEndian.PutUint16(h[offByteOrder:], byteOrderMark)
	binary.LittleEndian.PutUint16(h[offSectorShift:], 9)
	binary.LittleEndian.PutUint16(h[offMiniSectorShift:], 6)
	binary.LittleEndian.PutUint32(h[offNumFatSectors:], 1)
	binary.LittleEndian.PutUint32(h[offFirstDirSector:], 1)
	binary.LittleEndian.PutUint32(h[offMiniStreamCutoff:], defaultMiniStreamCutoff)
	binary.LittleEndian.PutUint32(h[offFirstMinifatSector:], 11)
	binary.LittleEndian.PutUint32(h[offNumMinifatSectors:], 1)
	binary.LittleEndian.PutUint32(h[offFirstDifatSector:], endOfChain)
	for i := 0; i < numDifatEntriesInHeader; i++ {
		v := freeSector
		if i == 0 {
			v = 0
		}
		binary.LittleEndian.PutUint32(h[offDifatEntries+i*4:], v)
	}

	fat := sector(0)
	binary.LittleEndian.PutUint32(fat[0:], fatSectorTag)
	binary.LittleEndian.PutUint32(fat[4:], endOfChain) // directory
	for i := 2; i < 9; i++ {
		binary.LittleEndian.PutUint32(fat[i*4:], uint32(i+1)) // big: 2 -> 3 -> ... -> 9
	}
	binary.LittleEndian.PutUint32(fat[9*4:], endOfChain)
	binary.LittleEndian.PutUint32(fat[10*4:], endOfChain) // mini-stream host
	binary.LittleEndian.PutUint32(fat[11*4:], endOfChain) // mini-FAT
	for i := 12; i < 128; i++ {
		binary.LittleEndian.PutUint32(fat[i*4:], freeSector)
	}

	dir := sector(1)
	copy(dir[0*dirEntryLen:], encodeDirEntry(fixtureEntry{
		name: rootEntryName, objType: dirTypeRoot, color: colorBlack,
		left: noStream, right: noStream, child: 2, startSector: 10, size: 64,
	}))
	copy(dir[1*dirEntryLen:], encodeDirEntry(fixtureEntry{
		name: "big", objType: dirTypeStream, color: colorBlack,
		left: noStream, right: noStream, child: noStream, startSector: 2, size: 4096,
	}))
	copy(dir[2*dirEntryLen:], encodeDirEntry(fixtureEntry{
		name: "small", objType: dirTypeStream, color: colorBlack,
		left: 1, right: noStream, child: noStream, startSector: 0, size: 64,
	}))

	for i := 2; i < 10; i++ {
		data := sector(i)
		for j := range data {
			data[j] = 'y'
		}
	}
	miniHost := sector(10)
	for j := 0; j < 64; j++ {
		miniHost[j] = 'x'
	}

	miniFAT := sector(11)
	binary.LittleEndian.PutUint32(miniFAT[0:], endOfChain)
	for i := 1; i < 128; i++ {
		binary.LittleEndian.PutUint32(miniFAT[i*4:], freeSector)
	}

	return img
}

// fatEntryOffset returns the byte offset of FAT entry id within a fixture
// whose single FAT sector is sector 0 (true of every builder above).
func fatEntryOffset(id int) int {
	return headerLen + id*4
}

// dirFieldOffset returns the byte offset of field offset field within
// directory entry idx, for fixtures whose directory is sector 1.
func dirFieldOffset(sectorSize, idx, field int) int {
	return headerLen + sectorSize + idx*dirEntryLen + field
}

// buildFATModeFixture is a v3 container with a single 10-byte stream "Big"
// and the mini stream cutoff forced to zero, so the stream is read directly
// through the regular FAT instead of the mini-FAT.
func buildFATModeFixture() []byte {
	const numSectors = 3 // 0: FAT, 1: directory, 2: "Big" stream data
	img := make([]byte, headerLen+numSectors*512)
	sector := func(i int) []byte { return img[headerLen+i*512 : headerLen+(i+1)*512] }

	h := img[:headerLen]
	copy(h[0:8], magicNumber[:])
	binary.LittleEndian.PutUint16(h[offMinorVersion:], 0x003e)
	binary.LittleEndian.PutUint16(h[offMajorVersion:], 3)
	binary.LittleEndian.PutUint16(h[offByteOrder:], byteOrderMark)
	binary.LittleEndian.PutUint16(h[offSectorShift:], 9)
	binary.LittleEndian.PutUint16(h[offMiniSectorShift:], 6)
	binary.LittleEndian.PutUint32(h[offNumFatSectors:], 1)
	binary.LittleEndian.PutUint32(h[offFirstDirSector:], 1)
	binary.LittleEndian.PutUint32(h[offMiniStreamCutoff:], 0)
	binary.LittleEndian.PutUint32(h[offFirstMinifatSector:], endOfChain)
	binary.LittleEndian.PutUint32(h[offFirstDifatSector:], endOfChain)
	for i := 0; i < numDifatEntriesInHeader; i++ {
		v := freeSector
		if i == 0 {
			v = 0
		}
		binary.LittleEndian.PutUint32(h[offDifatEntries+i*4:], v)
	}

	fat := sector(0)
	binary.LittleEndian.PutUint32(fat[0:], fatSectorTag)
	binary.LittleEndian.PutUint32(fat[4:], endOfChain)
	binary.LittleEndian.PutUint32(fat[8:], endOfChain)
	for i := 3; i < 128; i++ {
		binary.LittleEndian.PutUint32(fat[i*4:], freeSector)
	}

	dir := sector(1)
	copy(dir[0*dirEntryLen:], encodeDirEntry(fixtureEntry{
		name: rootEntryName, objType: dirTypeRoot, color: colorBlack,
		left: noStream, right: noStream, child: 1, startSector: endOfChain, size: 0,
	}))
	copy(dir[1*dirEntryLen:], encodeDirEntry(fixtureEntry{
		name: "Big", objType: dirTypeStream, color: colorBlack,
		left: noStream, right: noStream, child: noStream, startSector: 2, size: 10,
	}))

	copy(sector(2)[0:], "BIGSTREAM!")

	return img
}
