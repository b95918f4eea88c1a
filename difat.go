package cfb

import "encoding/binary"

// difatResult is the output of walking the DIFAT: the ordered list of FAT
// sector IDs, and (for validation purposes) which sector IDs belong to the
// DIFAT extension chain itself.
type difatResult struct {
	fatSectorIDs   []uint32
	difatSectorIDs []uint32
}

// walkDifat collects the FAT sector list ([MS-CFB] 2.5): the first 109
// entries come from the header; if more are needed, a singly-linked chain of
// DIFAT sectors supplies (sectorSize/4 - 1) more FAT sector IDs per sector,
// terminated by a trailing next-pointer of END_OF_CHAIN (or FREE_SECTOR,
// which some writers use instead and is tolerated with a warning).
func walkDifat(h *Header, sr *sectorReader, d *diagnostics) (*difatResult, error) {
	fatIDs := make([]uint32, 0, numDifatEntriesInHeader)
	for _, e := range h.InitialDifatEntries {
		if e == freeSector {
			break
		}
		if e == endOfChain {
			break
		}
		fatIDs = append(fatIDs, e)
	}

	var difatSectorIDs []uint32
	seen := make(map[uint32]bool)
	cur := h.FirstDifatSector
	entriesPerSector := int(sr.sectorSize/4) - 1

	for cur != endOfChain {
		if cur == freeSector {
			if err := d.warn(DIFATWarning, -1, "DIFAT chain terminated by FREE_SECTOR"); err != nil {
				return nil, err
			}
			break
		}
		if len(difatSectorIDs) >= int(h.NumDifatSectors)+1 {
			// Header undercounted; cap to avoid an unbounded walk on a
			// hostile file. One extra sector of slack tolerates an
			// off-by-one header count before we call it truncation.
			if err := d.warn(DIFATWarning, -1,
				"DIFAT chain ran past declared sector count (%d); truncating", h.NumDifatSectors); err != nil {
				return nil, err
			}
			break
		}
		if cur > maxRegSector {
			return nil, d.fatal(MalformedFAT, -1, "DIFAT chain hit reserved sentinel 0x%08x", cur)
		}
		if cur >= sr.numSectors {
			return nil, d.fatal(MalformedFAT, -1, "DIFAT references out-of-range sector %d", cur)
		}
		if seen[cur] {
			return nil, d.fatal(CycleDetected, -1, "DIFAT chain revisits sector %d", cur)
		}
		seen[cur] = true
		difatSectorIDs = append(difatSectorIDs, cur)

		buf, err := sr.readSector(cur)
		if err != nil {
			return nil, wrap(err, "reading DIFAT sector %d", cur)
		}

		terminated := false
		for i := 0; i < entriesPerSector; i++ {
			v := binary.LittleEndian.Uint32(buf[i*4:])
			if v == freeSector {
				if err := d.warn(DIFATWarning, -1, "DIFAT truncated by FREE_SECTOR"); err != nil {
					return nil, err
				}
				terminated = true
				break
			}
			if v == endOfChain {
				terminated = true
				break
			}
			fatIDs = append(fatIDs, v)
		}
		if terminated {
			cur = endOfChain
			break
		}

		cur = binary.LittleEndian.Uint32(buf[entriesPerSector*4:])
	}

	if uint32(len(difatSectorIDs)) != h.NumDifatSectors {
		if err := d.warn(DIFATWarning, -1,
			"DIFAT chain length %d does not match header count %d",
			len(difatSectorIDs), h.NumDifatSectors); err != nil {
			return nil, err
		}
	}

	if uint32(len(fatIDs)) != h.NumFatSectors {
		if err := d.warn(DIFATWarning, -1,
			"FAT sector count %d from DIFAT does not match header count %d",
			len(fatIDs), h.NumFatSectors); err != nil {
			return nil, err
		}
	}

	// Bounds-check and dedupe every collected FAT sector ID; a FAT that
	// names a sector twice or points outside the file cannot be trusted.
	dup := make(map[uint32]bool, len(fatIDs))
	for _, id := range fatIDs {
		if id >= sr.numSectors {
			return nil, d.fatal(MalformedFAT, -1, "FAT sector id %d is out of range", id)
		}
		if dup[id] {
			return nil, d.fatal(MalformedFAT, -1, "FAT sector id %d listed more than once", id)
		}
		dup[id] = true
	}

	return &difatResult{fatSectorIDs: fatIDs, difatSectorIDs: difatSectorIDs}, nil
}

// materializeFAT reads every sector in fatSectorIDs and concatenates them
// into the flat FAT array, indexed by sector number.
func materializeFAT(fatSectorIDs []uint32, sr *sectorReader, d *diagnostics) ([]uint32, error) {
	perSector := int(sr.sectorSize / 4)
	fat := make([]uint32, 0, len(fatSectorIDs)*perSector)
	for _, id := range fatSectorIDs {
		buf, err := sr.readSector(id)
		if err != nil {
			return nil, wrap(err, "reading FAT sector %d", id)
		}
		for i := 0; i < perSector; i++ {
			fat = append(fat, binary.LittleEndian.Uint32(buf[i*4:]))
		}
	}
	return fat, nil
}
