package cfb

// allocTable is a flat allocation table — either the regular FAT or the
// mini-FAT — indexed by sector (or mini-sector) ID, each entry naming the
// next sector in that entry's chain. Chain traversal is identical for both
// tables, so one type serves both.
type allocTable struct {
	entries []uint32
	kind    string // "FAT" or "mini-FAT", used only in diagnostic messages
}

// chain follows the allocation table starting at start and returns the
// ordered list of sector IDs in that chain (not including the terminator).
// Detects cycles, invalid sentinels mid-chain, out-of-range indices, and
// chains longer than the table itself, all fatal.
func (t *allocTable) chain(start uint32, d *diagnostics) ([]uint32, error) {
	if start == endOfChain {
		return nil, nil
	}

	visited := make(map[uint32]bool, 16)
	var ids []uint32
	cur := start
	limit := len(t.entries) + 1

	for {
		if cur == endOfChain {
			break
		}
		if cur > maxRegSector {
			return nil, d.fatal(MalformedChain, -1,
				"%s chain hit reserved sentinel 0x%08x mid-chain", t.kind, cur)
		}
		if int(cur) >= len(t.entries) {
			return nil, d.fatal(MalformedChain, -1,
				"%s chain references out-of-range sector %d (table has %d entries)",
				t.kind, cur, len(t.entries))
		}
		if visited[cur] {
			return nil, d.fatal(CycleDetected, -1,
				"%s chain revisits sector %d", t.kind, cur)
		}
		visited[cur] = true
		ids = append(ids, cur)

		if len(ids) > limit {
			return nil, d.fatal(CycleDetected, -1,
				"%s chain exceeds table length (%d entries)", t.kind, len(t.entries))
		}

		cur = t.entries[cur]
	}

	return ids, nil
}
