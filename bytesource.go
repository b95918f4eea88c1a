package cfb

import (
	"io"
	"os"
	"sync"

	"golang.org/x/exp/mmap"
)

// ByteSource is the seekable, random-access view over a container that the
// reader engine is built on. It never sees whether the underlying bytes
// come from a memory mapping or a sliding window; both of the adapters
// below, and any caller-supplied implementation, satisfy it identically.
type ByteSource interface {
	// Len returns the total size of the source in bytes.
	Len() int64
	// ReadAt fills p from the source starting at off, with the same
	// short-read-at-EOF contract as io.ReaderAt: it returns io.EOF only
	// when it read fewer bytes than len(p) because the source ended.
	ReadAt(p []byte, off int64) (int, error)
	// Close releases any resources (file descriptors, mappings) held by
	// the source. Idempotent.
	Close() error
}

// defaultWindowSize is the window used by WindowedSource when Open doesn't
// ask for a different size.
const defaultWindowSize = 4 << 20 // 4 MiB

// MmapSource is a ByteSource backed by a single shared memory mapping of an
// open file, via golang.org/x/exp/mmap. It is the default backend used by
// Open for the path it is given, and is safe for concurrent use:
// golang.org/x/exp/mmap.ReaderAt.ReadAt is itself safe for concurrent calls,
// the same guarantee pread gives a regular file descriptor.
type MmapSource struct {
	r *mmap.ReaderAt
}

// OpenMmapSource opens path and maps it read-only.
func OpenMmapSource(path string) (*MmapSource, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	return &MmapSource{r: r}, nil
}

// NewMmapSourceFromFile maps an already-open file read-only. The caller
// retains ownership of f; closing the returned MmapSource does not close f.
func NewMmapSourceFromFile(f *os.File) (*MmapSource, error) {
	r, err := mmap.Open(f.Name())
	if err != nil {
		return nil, err
	}
	return &MmapSource{r: r}, nil
}

func (m *MmapSource) Len() int64 { return int64(m.r.Len()) }

func (m *MmapSource) ReadAt(p []byte, off int64) (int, error) {
	return m.r.ReadAt(p, off)
}

func (m *MmapSource) Close() error { return m.r.Close() }

// WindowedSource emulates a memory mapping over any io.ReaderAt using a
// small rolling set of fixed-size windows, for hosts or files where mapping
// the whole container is infeasible (very large files on 32-bit hosts, or
// simply a caller preference to avoid mmap). It satisfies the same
// ByteSource contract as MmapSource bit-for-bit.
//
// The window-reuse policy is a simple bounded LRU: windowedLRUDepth resident
// windows at a time, evicting the least recently touched one on a miss.
// This is an implementation detail callers should not depend on.
type WindowedSource struct {
	mu     sync.Mutex
	r      io.ReaderAt
	closer io.Closer
	size   int64
	window int64 // power-of-two window size
	cache  map[int64]*windowEntry
	lru    []int64 // most-recently-used last
	max    int
}

type windowEntry struct {
	data []byte // may be shorter than window at EOF
}

const windowedLRUDepth = 8

// NewWindowedSource wraps r (total length size) with a sliding window of the
// requested size (rounded up to a power of two, minimum 4096). If r also
// implements io.Closer, Close on the returned source closes it too.
func NewWindowedSource(r io.ReaderAt, size int64, window int64) *WindowedSource {
	window = nextPow2(window)
	if window < 4096 {
		window = 4096
	}
	ws := &WindowedSource{
		r:      r,
		size:   size,
		window: window,
		cache:  make(map[int64]*windowEntry),
		max:    windowedLRUDepth,
	}
	if c, ok := r.(io.Closer); ok {
		ws.closer = c
	}
	return ws
}

// OpenWindowedSource opens path for reading and wraps it in a WindowedSource
// without mapping it into memory.
func OpenWindowedSource(path string, window int64) (*WindowedSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return NewWindowedSource(f, info.Size(), window), nil
}

func nextPow2(n int64) int64 {
	if n <= 1 {
		return 1
	}
	p := int64(1)
	for p < n {
		p <<= 1
	}
	return p
}

func (w *WindowedSource) Len() int64 { return w.size }

func (w *WindowedSource) Close() error {
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

func (w *WindowedSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, io.EOF
	}
	total := 0
	for total < len(p) {
		curOff := off + int64(total)
		if curOff >= w.size {
			break
		}
		winStart := (curOff / w.window) * w.window
		entry, err := w.windowFor(winStart)
		if err != nil {
			return total, err
		}
		withinWindow := curOff - winStart
		if withinWindow >= int64(len(entry.data)) {
			break // window is short (near EOF) and we've exhausted its data
		}
		n := copy(p[total:], entry.data[withinWindow:])
		total += n
	}
	if total < len(p) {
		return total, io.EOF
	}
	return total, nil
}

func (w *WindowedSource) windowFor(start int64) (*windowEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if e, ok := w.cache[start]; ok {
		w.touch(start)
		return e, nil
	}

	length := w.window
	if start+length > w.size {
		length = w.size - start
	}
	buf := make([]byte, length)
	n, err := w.r.ReadAt(buf, start)
	if err != nil && err != io.EOF {
		return nil, err
	}
	e := &windowEntry{data: buf[:n]}
	w.cache[start] = e
	w.touch(start)
	if len(w.lru) > w.max {
		evict := w.lru[0]
		w.lru = w.lru[1:]
		delete(w.cache, evict)
	}
	return e, nil
}

func (w *WindowedSource) touch(start int64) {
	for i, v := range w.lru {
		if v == start {
			w.lru = append(w.lru[:i], w.lru[i+1:]...)
			break
		}
	}
	w.lru = append(w.lru, start)
}
