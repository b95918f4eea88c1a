package cfb

import (
	"time"
	"unicode/utf16"

	"github.com/google/uuid"
)

// filetimeToUnixTicks is the number of 100ns FILETIME ticks between the
// FILETIME epoch (1601-01-01 UTC) and the Unix epoch (1970-01-01 UTC).
const filetimeToUnixTicks = 116444736000000000

// filetimeToTime converts a raw FILETIME (100ns units since 1601-01-01 UTC)
// to a time.Time. A zero FILETIME (used by streams, which don't carry
// timestamps) converts to the zero time.Time.
//
// Going through a time.Duration relative to the 1601 epoch overflows int64
// nanoseconds for any real-world FILETIME (ft*100 wraps for dates past
// ~1893), so this instead rebases onto the Unix epoch first and hands
// separate second/nanosecond components to time.Unix, which never forms an
// intermediate value anywhere near the 1601-01-01 origin.
func filetimeToTime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	ticks := int64(ft) - filetimeToUnixTicks
	sec := ticks / 1e7
	nsec := (ticks % 1e7) * 100
	if nsec < 0 {
		nsec += 1e9
		sec--
	}
	return time.Unix(sec, nsec).UTC()
}

// Entity represents one storage or stream in the hierarchy rooted at the
// container's Root Entry. Entities are immutable views
// constructed once when the Container is opened; they are conceptually
// owned by the Container and must not outlive it.
type Entity struct {
	name     string
	path     string
	kind     ObjectType
	clsid    uuid.UUID
	created  time.Time
	modified time.Time
	size     uint64

	dirEntry *DirEntry // nil only for a synthetic root if ever needed

	// children preserves CFB in-order traversal order; it is nil for
	// streams.
	children     []*Entity
	childByName  map[string]*Entity
}

// Name returns the entity's name ("Root Entry" for the root).
func (e *Entity) Name() string { return e.name }

// Path returns the "/"-separated path from the root to this entity.
func (e *Entity) Path() string { return e.path }

// IsDir reports whether this entity is a storage (or the root).
func (e *Entity) IsDir() bool { return e.kind == ObjStorage || e.kind == ObjRoot }

// IsFile reports whether this entity is a stream.
func (e *Entity) IsFile() bool { return e.kind == ObjStream }

// Kind returns the entity's ObjectType.
func (e *Entity) Kind() ObjectType { return e.kind }

// CLSID returns the entity's class identifier. Zero (uuid.Nil) for streams
// and for storages that never had one set.
func (e *Entity) CLSID() uuid.UUID { return e.clsid }

// Created returns the storage's creation time, or the zero time.Time for
// streams (which carry none) or storages that never set it.
func (e *Entity) Created() time.Time { return e.created }

// Modified returns the storage's last-modified time, or the zero time.Time
// for streams.
func (e *Entity) Modified() time.Time { return e.modified }

// Size returns the stream's declared byte length, or 0 for storages. For
// the root it is the Root Entry's declared size, the length of the
// mini-stream.
func (e *Entity) Size() uint64 { return e.size }

// Children returns this storage's direct children in CFB order (the
// red-black tree's in-order traversal). Returns nil for streams.
func (e *Entity) Children() []*Entity { return e.children }

// Child looks up a direct child by name, using CFB's case-insensitive name
// comparator. Returns nil if not found or if e is not a storage.
func (e *Entity) Child(name string) *Entity {
	if e.childByName == nil {
		return nil
	}
	return e.childByName[foldKey(name)]
}

// foldKey normalizes a name for the childByName index, deriving the key
// from the same per-code-unit fold CompareNames orders by, so lookup
// equality and tree equality can never disagree.
func foldKey(name string) string {
	folded := foldName(utf16.Encode([]rune(name)))
	b := make([]byte, 0, len(folded)*2)
	for _, u := range folded {
		b = append(b, byte(u), byte(u>>8))
	}
	return string(b)
}
