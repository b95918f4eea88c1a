package cfb

import (
	"encoding/binary"
	"fmt"
)

// ErrNotAStream is returned by OpenEntity when the entity is a storage (or
// the root) rather than a stream.
var ErrNotAStream = Diagnostic{Category: OutOfRange, Offset: -1, Message: "entity is not a stream"}

// Container is an opened, read-only view over one compound file.
// It owns the byte source and every structure derived from it; all
// StreamViews it hands out borrow from these structures but never mutate
// them, so a Container supports any number of concurrently open streams.
type Container struct {
	src ByteSource
	own bool

	header  *Header
	sr      *sectorReader
	fat     *allocTable
	miniFAT *allocTable

	miniStream *fatChainReader // the Root Entry's payload, host of the mini-stream
	entries    []*DirEntry
	root       *Entity

	d *diagnostics
}

// Open opens the file at path and parses it as a compound file, backed by a
// memory mapping unless WithWindowedSource was given.
func Open(path string, opts ...Option) (*Container, error) {
	o := NewOptions(opts...)

	var src ByteSource
	var err error
	if o.useWindow {
		src, err = OpenWindowedSource(path, o.windowSize)
	} else {
		src, err = OpenMmapSource(path)
	}
	if err != nil {
		return nil, err
	}

	c, err := openSource(src, o)
	if err != nil {
		src.Close()
		return nil, err
	}
	c.own = true
	return c, nil
}

// OpenSource parses a compound file already available as a ByteSource. The
// caller retains ownership of src; Close on the returned Container does not
// close it.
func OpenSource(src ByteSource, opts ...Option) (*Container, error) {
	return openSource(src, NewOptions(opts...))
}

func openSource(src ByteSource, o *Options) (*Container, error) {
	d := newDiagnostics(o)

	header, err := readHeader(src, d)
	if err != nil {
		return nil, err
	}

	sr := newSectorReader(src, header.SectorSize)

	difatRes, err := walkDifat(header, sr, d)
	if err != nil {
		return nil, err
	}
	fatEntries, err := materializeFAT(difatRes.fatSectorIDs, sr, d)
	if err != nil {
		return nil, err
	}
	fat := &allocTable{entries: fatEntries, kind: "FAT"}

	entries, err := readDirectory(header, sr, fat, d)
	if err != nil {
		return nil, err
	}

	miniFAT, err := readMiniFAT(header, sr, fat, d)
	if err != nil {
		return nil, err
	}

	var miniStream *fatChainReader
	if len(entries) > 0 {
		miniStream, err = newFATChainReader(sr, fat, entries[0].StartSector, d)
		if err != nil {
			return nil, err
		}
	}

	root, err := buildEntityTree(entries, d)
	if err != nil {
		return nil, err
	}

	return &Container{
		src:        src,
		header:     header,
		sr:         sr,
		fat:        fat,
		miniFAT:    miniFAT,
		miniStream: miniStream,
		entries:    entries,
		root:       root,
		d:          d,
	}, nil
}

// readDirectory materializes the directory stream (always FAT-allocated)
// and decodes it into the flat DirEntry array.
func readDirectory(h *Header, sr *sectorReader, fat *allocTable, d *diagnostics) ([]*DirEntry, error) {
	r, err := newFATChainReader(sr, fat, h.FirstDirSector, d)
	if err != nil {
		return nil, err
	}
	if r.Capacity() < dirEntryLen {
		return nil, d.fatal(StructureCorrupt, -1, "directory stream has no entries")
	}

	buf := make([]byte, r.Capacity())
	if _, err := r.ReadAt(buf, 0); err != nil {
		return nil, wrap(err, "reading directory stream")
	}

	n := uint32(len(buf) / dirEntryLen)
	entries := make([]*DirEntry, n)
	for i := uint32(0); i < n; i++ {
		e, err := parseDirEntry(buf[i*dirEntryLen:(i+1)*dirEntryLen], i, h.Version, h.SectorSize, d)
		if err != nil {
			return nil, err
		}
		entries[i] = e
	}
	return entries, nil
}

// readMiniFAT materializes the mini-FAT (itself an ordinary FAT-allocated
// stream) into an allocTable indexed by mini-sector ID.
func readMiniFAT(h *Header, sr *sectorReader, fat *allocTable, d *diagnostics) (*allocTable, error) {
	r, err := newFATChainReader(sr, fat, h.FirstMinifatSector, d)
	if err != nil {
		return nil, err
	}
	if h.NumMinifatSectors != 0 && r.Capacity() != int64(h.NumMinifatSectors)*sr.sectorSize {
		if err := d.warn(DIFATWarning, -1,
			"mini-FAT chain length disagrees with header count %d", h.NumMinifatSectors); err != nil {
			return nil, err
		}
	}

	buf := make([]byte, r.Capacity())
	if r.Capacity() > 0 {
		if _, err := r.ReadAt(buf, 0); err != nil {
			return nil, wrap(err, "reading mini-FAT")
		}
	}

	entries := make([]uint32, len(buf)/4)
	for i := range entries {
		entries[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return &allocTable{entries: entries, kind: "mini-FAT"}, nil
}

// Header returns the parsed container header.
func (c *Container) Header() *Header { return c.header }

// Root returns the Entity tree's root: the Root Entry, presented as a
// storage named "Root Entry".
func (c *Container) Root() *Entity { return c.root }

// Lookup resolves a "/"-separated path, starting at the root storage, to
// the entity it addresses. Lookup of each component is case-insensitive per
// the CFB name rule.
func (c *Container) Lookup(path string) (*Entity, error) {
	names, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	e := c.root
	for _, name := range names {
		if !e.IsDir() {
			return nil, Diagnostic{Category: OutOfRange, Offset: -1,
				Message: fmt.Sprintf("%s is not a storage", e.Path())}
		}
		child := e.Child(name)
		if child == nil {
			return nil, Diagnostic{Category: OutOfRange, Offset: -1,
				Message: fmt.Sprintf("%s has no entry %q", e.Path(), name)}
		}
		e = child
	}
	return e, nil
}

// Open resolves a "/"-separated path to its stream entity and returns an
// independent StreamView over it. Each call returns a distinct view with its
// own position.
func (c *Container) Open(path string) (*StreamView, error) {
	e, err := c.Lookup(path)
	if err != nil {
		return nil, err
	}
	return c.OpenEntity(e)
}

// OpenEntity returns an independent StreamView over e, which must be a
// stream. Streams shorter than the container's mini-stream
// cutoff are read through the mini-FAT and the mini-stream; everything else
// is read directly through the regular FAT.
func (c *Container) OpenEntity(e *Entity) (*StreamView, error) {
	if !e.IsFile() {
		return nil, ErrNotAStream
	}
	de := e.dirEntry

	var reader chainedReader
	var err error
	if de.StreamSize < uint64(c.header.MiniStreamCutoff) {
		reader, err = newMiniChainReader(c.miniStream, c.miniFAT, c.header.MiniSectorSize, de.StartSector, c.d)
	} else {
		reader, err = newFATChainReader(c.sr, c.fat, de.StartSector, c.d)
	}
	if err != nil {
		return nil, err
	}
	return newStreamView(reader, de.StreamSize, c.d)
}

// Close releases the underlying byte source if the Container opened it
// itself (via Open); a Container built with OpenSource never closes the
// source it was given.
func (c *Container) Close() error {
	if c.own {
		return c.src.Close()
	}
	return nil
}
