package cfb

// fatChainReader addresses bytes of a FAT-allocated stream: logical offset L
// maps to sector sectorIDs[L/sectorSize] at
// byte L%sectorSize within it. Used for the directory stream, the mini-FAT
// host stream, the mini-stream itself (Root Entry's payload), and any
// regular user stream at or above the mini-stream cutoff.
type fatChainReader struct {
	sr        *sectorReader
	sectorIDs []uint32
	capacity  int64 // len(sectorIDs) * sectorSize
}

func newFATChainReader(sr *sectorReader, fat *allocTable, start uint32, d *diagnostics) (*fatChainReader, error) {
	ids, err := fat.chain(start, d)
	if err != nil {
		return nil, err
	}
	return &fatChainReader{
		sr:        sr,
		sectorIDs: ids,
		capacity:  int64(len(ids)) * sr.sectorSize,
	}, nil
}

func (r *fatChainReader) Capacity() int64 { return r.capacity }

// ReadAt fills p from logical offset off, clamped to the chain's capacity.
// It never returns more than was actually available; the caller (StreamView)
// is responsible for further clamping to the directory entry's declared
// size and for raising StreamSizeMismatch when the two disagree.
func (r *fatChainReader) ReadAt(p []byte, off int64) (int, error) {
	total := 0
	for total < len(p) {
		cur := off + int64(total)
		if cur >= r.capacity {
			break
		}
		secIdx := cur / r.sr.sectorSize
		within := cur % r.sr.sectorSize
		n := r.sr.sectorSize - within
		remaining := int64(len(p) - total)
		if n > remaining {
			n = remaining
		}
		if err := r.sr.readAt(r.sectorIDs[secIdx], within, p[total:total+int(n)]); err != nil {
			return total, err
		}
		total += int(n)
	}
	return total, nil
}

// miniChainReader addresses bytes of a mini-FAT-allocated stream:
// mini-sector m is at logical offset m*miniSize
// within the mini-stream, itself read through a fatChainReader rooted at
// the Root Entry.
type miniChainReader struct {
	miniStream     *fatChainReader
	miniSectorSize int64
	sectorIDs      []uint32
	capacity       int64
}

func newMiniChainReader(miniStream *fatChainReader, miniFAT *allocTable, miniSectorSize int64, start uint32, d *diagnostics) (*miniChainReader, error) {
	ids, err := miniFAT.chain(start, d)
	if err != nil {
		return nil, err
	}
	return &miniChainReader{
		miniStream:     miniStream,
		miniSectorSize: miniSectorSize,
		sectorIDs:      ids,
		capacity:       int64(len(ids)) * miniSectorSize,
	}, nil
}

func (r *miniChainReader) Capacity() int64 { return r.capacity }

func (r *miniChainReader) ReadAt(p []byte, off int64) (int, error) {
	total := 0
	for total < len(p) {
		cur := off + int64(total)
		if cur >= r.capacity {
			break
		}
		secIdx := cur / r.miniSectorSize
		within := cur % r.miniSectorSize
		n := r.miniSectorSize - within
		remaining := int64(len(p) - total)
		if n > remaining {
			n = remaining
		}
		miniOffset := int64(r.sectorIDs[secIdx])*r.miniSectorSize + within
		got, err := r.miniStream.ReadAt(p[total:total+int(n)], miniOffset)
		total += got
		if err != nil {
			return total, err
		}
		if int64(got) < n {
			break
		}
	}
	return total, nil
}
