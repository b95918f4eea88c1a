package cfb

// treeBuilder walks the flat directory-entry array and turns it into the
// Entity hierarchy rooted at the Root Entry: for each storage (including the
// root), an in-order traversal of its private red-black tree (rooted at that
// storage's Child field) yields its children in CFB order.
type treeBuilder struct {
	entries   []*DirEntry
	d         *diagnostics
	reachable []bool
}

func buildEntityTree(entries []*DirEntry, d *diagnostics) (*Entity, error) {
	if len(entries) == 0 {
		return nil, d.fatal(StructureCorrupt, -1, "directory has no entries")
	}
	if entries[0].ObjType != ObjRoot {
		return nil, d.fatal(StructureCorrupt, -1, "directory entry 0 is not the Root Entry")
	}

	b := &treeBuilder{entries: entries, d: d, reachable: make([]bool, len(entries))}
	b.reachable[0] = true

	root, err := b.buildEntity(0, "/")
	if err != nil {
		return nil, err
	}

	for i, e := range entries {
		if i == 0 {
			continue
		}
		if e.ObjType == ObjEmpty {
			continue
		}
		if !b.reachable[i] {
			if err := d.warn(DirectoryWarning, -1,
				"entry %d (%q) is never reached from the Root Entry's tree", i, e.Name); err != nil {
				return nil, err
			}
		}
	}

	return root, nil
}

func (b *treeBuilder) buildEntity(idx uint32, path string) (*Entity, error) {
	de := b.entries[idx]
	e := &Entity{
		name:     de.Name,
		path:     path,
		kind:     de.ObjType,
		clsid:    de.CLSID,
		created:  filetimeToTime(de.CreationTime),
		modified: filetimeToTime(de.ModifiedTime),
		size:     de.StreamSize,
		dirEntry: de,
	}
	if e.IsDir() {
		children, childByName, err := b.buildChildren(de.Child, path)
		if err != nil {
			return nil, err
		}
		e.children = children
		e.childByName = childByName
	}
	return e, nil
}

// buildChildren performs the in-order walk of one storage's private
// red-black tree, validating name ordering and red-black invariants as it
// goes (both warn-only), and detecting cycles (fatal DirectoryCycle).
func (b *treeBuilder) buildChildren(rootChildIdx uint32, parentPath string) ([]*Entity, map[string]*Entity, error) {
	if rootChildIdx == noStream {
		return nil, nil, nil
	}
	if rootChildIdx >= uint32(len(b.entries)) {
		if err := b.d.warn(DirectoryWarning, -1, "child index %d out of range", rootChildIdx); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}

	visited := make(map[uint32]bool)
	var children []*Entity
	childByName := make(map[string]*Entity)
	havePrev := false
	var prevName string

	var walk func(idx uint32) error
	walk = func(idx uint32) error {
		if idx == noStream {
			return nil
		}
		if idx >= uint32(len(b.entries)) {
			return b.d.warn(DirectoryWarning, -1, "sibling index %d out of range", idx)
		}
		// reachable spans the whole hierarchy, so a link back into any
		// storage already on the walk (or the root) is caught too.
		if visited[idx] || b.reachable[idx] {
			return b.d.fatal(DirectoryCycle, -1, "directory tree revisits entry %d", idx)
		}
		visited[idx] = true
		b.reachable[idx] = true
		de := b.entries[idx]

		if de.LeftSibling != noStream {
			if err := walk(de.LeftSibling); err != nil {
				return err
			}
		}

		if havePrev && CompareNames(prevName, de.Name) != OrderLess {
			if err := b.d.warn(DirectoryWarning, -1,
				"directory entries are not in CFB sort order: %q then %q", prevName, de.Name); err != nil {
				return err
			}
		}
		prevName, havePrev = de.Name, true

		childPath := parentPath + "/" + de.Name
		if parentPath == "/" {
			childPath = "/" + de.Name
		}
		childEntity, err := b.buildEntity(idx, childPath)
		if err != nil {
			return err
		}
		children = append(children, childEntity)
		childByName[foldKey(de.Name)] = childEntity

		if de.RightSibling != noStream {
			if err := walk(de.RightSibling); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(rootChildIdx); err != nil {
		return nil, nil, err
	}

	if _, err := b.checkRedBlack(rootChildIdx); err != nil {
		return nil, nil, err
	}

	return children, childByName, nil
}

// checkRedBlack verifies the two red-black invariants CFB directory trees
// are supposed to hold (no two consecutive red nodes, equal black height on
// every path) and warns on violation without altering the tree structure
// that buildChildren already trusts. It assumes the tree is acyclic, which
// buildChildren's walk has already established.
func (b *treeBuilder) checkRedBlack(idx uint32) (int, error) {
	if idx == noStream || idx >= uint32(len(b.entries)) {
		return 1, nil // a nil child counts as a black leaf of height 1
	}
	de := b.entries[idx]

	lh, err := b.checkRedBlack(de.LeftSibling)
	if err != nil {
		return 0, err
	}
	rh, err := b.checkRedBlack(de.RightSibling)
	if err != nil {
		return 0, err
	}

	if de.Color == red {
		if b.isRed(de.LeftSibling) || b.isRed(de.RightSibling) {
			if err := b.d.warn(DirectoryWarning, -1,
				"red-black violation: entry %d is red with a red child", idx); err != nil {
				return 0, err
			}
		}
	}
	if lh != rh {
		if err := b.d.warn(DirectoryWarning, -1,
			"red-black violation: unequal black height at entry %d (%d vs %d)", idx, lh, rh); err != nil {
			return 0, err
		}
	}

	h := lh
	if de.Color == black {
		h++
	}
	return h, nil
}

func (b *treeBuilder) isRed(idx uint32) bool {
	return idx != noStream && idx < uint32(len(b.entries)) && b.entries[idx].Color == red
}
