package cfb

import (
	"encoding/binary"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
)

// DirEntry is one parsed 128-byte directory record ([MS-CFB] 2.6), still in
// "raw tree" form: left/right/child are dir-entry indices, not yet resolved
// into an Entity hierarchy.
type DirEntry struct {
	Index        uint32
	Name         string
	ObjType      ObjectType
	Color        color
	LeftSibling  uint32
	RightSibling uint32
	Child        uint32
	CLSID        uuid.UUID
	StateBits    uint32
	CreationTime uint64
	ModifiedTime uint64
	StartSector  uint32
	StreamSize   uint64
}

var utf16leDecoder = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()

// parseDirEntry decodes one 128-byte record at the given index; buf must
// hold the whole record. Every anomaly is a warning (DirectoryWarning, or
// StreamSizeMismatch for the size field) that normalizes the offending
// field and continues; an error is returned only when such a warning's
// category has been promoted.
func parseDirEntry(buf []byte, index uint32, version Version, sectorSize int64, d *diagnostics) (*DirEntry, error) {
	e := &DirEntry{Index: index}

	nameLen := binary.LittleEndian.Uint16(buf[0x40:])
	rawType := buf[0x42]
	e.Color = colorFromByte(buf[0x43])
	e.LeftSibling = binary.LittleEndian.Uint32(buf[0x44:])
	e.RightSibling = binary.LittleEndian.Uint32(buf[0x48:])
	e.Child = binary.LittleEndian.Uint32(buf[0x4c:])
	copy(e.CLSID[:], buf[0x50:0x60])
	e.StateBits = binary.LittleEndian.Uint32(buf[0x60:])
	e.CreationTime = binary.LittleEndian.Uint64(buf[0x64:])
	e.ModifiedTime = binary.LittleEndian.Uint64(buf[0x6c:])
	e.StartSector = binary.LittleEndian.Uint32(buf[0x74:])
	sizeLow := binary.LittleEndian.Uint32(buf[0x78:])
	sizeHigh := binary.LittleEndian.Uint32(buf[0x7c:])

	objType, ok := objectTypeFromByte(rawType)
	if index == 0 {
		if rawType != dirTypeRoot {
			if err := d.warn(DirectoryWarning, -1,
				"entry 0 has type %d, expected Root Entry; coercing", rawType); err != nil {
				return nil, err
			}
		}
		objType = ObjRoot
	} else if !ok {
		if err := d.warn(DirectoryWarning, -1,
			"entry %d has unrecognized type %d; treating as empty", index, rawType); err != nil {
			return nil, err
		}
		objType = ObjEmpty
	}
	e.ObjType = objType

	if nameLen%2 != 0 || nameLen > 64 {
		if err := d.warn(DirectoryWarning, -1,
			"entry %d has invalid name length %d", index, nameLen); err != nil {
			return nil, err
		}
		nameLen = 0
	}

	var name string
	if nameLen > 0 {
		decoded, err := utf16leDecoder.Bytes(buf[0:nameLen])
		if err != nil {
			if werr := d.warn(DirectoryWarning, -1,
				"entry %d has malformed UTF-16 name: %v", index, err); werr != nil {
				return nil, werr
			}
		} else {
			name = string(decoded)
			if i := strings.IndexByte(name, 0); i >= 0 {
				name = name[:i]
			}
		}
	}
	e.Name = name

	e.StreamSize = uint64(sizeHigh)<<32 | uint64(sizeLow)
	if version == V3 {
		if sizeHigh != 0 {
			if err := d.warn(StreamSizeMismatch, -1,
				"entry %d has non-zero high size bits in a v3 file; masking", index); err != nil {
				return nil, err
			}
		}
		e.StreamSize = uint64(sizeLow)
	}
	if sectorSize == 512 && e.StreamSize >= (1<<31) {
		if err := d.warn(StreamSizeMismatch, -1,
			"entry %d size %d is too large for a 512-byte-sector file", index, e.StreamSize); err != nil {
			return nil, err
		}
	}

	if err := checkEntryInvariants(e, index, version, sectorSize, d); err != nil {
		return nil, err
	}

	return e, nil
}

// checkEntryInvariants applies the per-type field rules of [MS-CFB] 2.6.1:
// fields that don't apply to an entry's type must be zero (or NOSTREAM).
// Every violation is a DirectoryWarning that normalizes the field rather
// than a fatal error.
func checkEntryInvariants(e *DirEntry, index uint32, version Version, sectorSize int64, d *diagnostics) error {
	warn := func(format string, args ...interface{}) error {
		return d.warn(DirectoryWarning, -1, format, args...)
	}

	if e.ObjType == ObjEmpty {
		if e.Name != "" {
			if err := warn("entry %d is empty but has a non-empty name", index); err != nil {
				return err
			}
			e.Name = ""
		}
		if e.StateBits != 0 {
			if err := warn("entry %d is empty but has non-zero state bits", index); err != nil {
				return err
			}
			e.StateBits = 0
		}
	}

	if e.ObjType == ObjEmpty || e.ObjType == ObjRoot {
		if e.LeftSibling != noStream || e.RightSibling != noStream {
			if err := warn("entry %d has sibling links but shouldn't", index); err != nil {
				return err
			}
			e.LeftSibling, e.RightSibling = noStream, noStream
		}
	}

	if e.ObjType == ObjEmpty || e.ObjType == ObjStream {
		zeroCLSID := e.CLSID == uuid.Nil
		if e.Child != noStream || !zeroCLSID || e.CreationTime != 0 || e.ModifiedTime != 0 {
			if err := warn("entry %d (a %s) has storage-only fields set", index, e.ObjType); err != nil {
				return err
			}
			e.Child = noStream
			e.CLSID = uuid.Nil
			e.CreationTime, e.ModifiedTime = 0, 0
		}
	}

	if e.ObjType == ObjEmpty || e.ObjType == ObjStorage {
		if e.StartSector != 0 || e.StreamSize != 0 {
			if err := warn("entry %d (a %s) has stream-only fields set", index, e.ObjType); err != nil {
				return err
			}
			e.StartSector = 0
			e.StreamSize = 0
		}
	}

	return nil
}
