package bplus

import (
	lockmanager "IndexDB/storage_engine/lock_manager"
	"IndexDB/types"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Dump writes a level-by-level listing of the tree to w:
// each internal node with its separators and children, each leaf with its
// key -> (heap page, slot) entries and sibling links.
func (f *IndexedFile) Dump(tid uint64, w io.Writer) error {
	p := func(format string, args ...interface{}) { fmt.Fprintf(w, format, args...) }

	p("Index file: %s (column %d, %s keys, capacity %d, %s)\n",
		f.path, f.column, f.keyType, f.capacity, f.State())
	if f.State() == NotBuilt {
		p("  (not built)\n")
		return nil
	}

	rpp := f.table.RowsPerPage()
	level := 0
	queue := []int{RootPageNumber}
	for len(queue) > 0 {
		p("  Level %d:\n", level)
		var next []int
		for _, pageNo := range queue {
			_, node, err := f.fetchNode(tid, pageNo, lockmanager.ReadOnly)
			if err != nil {
				p("    [page %d] read error: %v\n", pageNo, err)
				continue
			}
			if !node.isLeaf {
				p("    [page %d] INTERNAL parent=%d keys=%v children=%v\n",
					pageNo, node.parentID, node.keys, node.pointers)
				next = append(next, node.pointers...)
				continue
			}
			p("    [page %d] LEAF parent=%d prev=%d next=%d numKeys=%d\n",
				pageNo, node.parentID, node.prevID, node.nextID, len(node.keys))
			for i, key := range node.keys {
				heapPage, slot, _ := DecodeTupleRef(node.pointers[i], rpp)
				p("      %s -> (page=%d slot=%d)\n", key, heapPage, slot)
			}
		}
		queue = next
		level++
	}
	return nil
}

// Verify walks the whole tree and checks its structure: key order and
// separator bounds, capacity, parent links, equal leaf depth and a leaf chain
// that visits the leaves left to right. It returns the number of entries.
func (f *IndexedFile) Verify(tid uint64) (int, error) {
	if f.State() != Built {
		return 0, errors.WithStack(types.ErrIndexNotBuilt)
	}
	v := &verifier{f: f, tid: tid, leafDepth: -1}
	if err := v.visit(RootPageNumber, NoPage, nil, nil, 0); err != nil {
		return 0, err
	}

	// the chain must list the same leaves in the same order
	prev := NoPage
	for i, leafNo := range v.leaves {
		_, leaf, err := f.fetchNode(tid, leafNo, lockmanager.ReadOnly)
		if err != nil {
			return 0, err
		}
		if leaf.isRoot {
			break
		}
		if leaf.prevID != prev {
			return 0, errors.Errorf("leaf %d: prev=%d, want %d", leafNo, leaf.prevID, prev)
		}
		want := NoPage
		if i+1 < len(v.leaves) {
			want = v.leaves[i+1]
		}
		if leaf.nextID != want {
			return 0, errors.Errorf("leaf %d: next=%d, want %d", leafNo, leaf.nextID, want)
		}
		prev = leafNo
	}
	return v.entries, nil
}

type verifier struct {
	f         *IndexedFile
	tid       uint64
	leafDepth int
	leaves    []int
	entries   int
}

// visit checks the subtree at pageNo, whose keys must lie in (lo, hi].
// A nil bound is open.
func (v *verifier) visit(pageNo, parent int, lo, hi types.Field, depth int) error {
	if depth > maxDepth {
		return errors.Wrapf(types.ErrCorruptPage, "tree deeper than %d levels", maxDepth)
	}
	_, node, err := v.f.fetchNode(v.tid, pageNo, lockmanager.ReadOnly)
	if err != nil {
		return err
	}

	if node.isRoot != (pageNo == RootPageNumber) {
		return errors.Errorf("page %d: isRoot=%v", pageNo, node.isRoot)
	}
	if !node.isRoot && node.parentID != parent {
		return errors.Errorf("page %d: parent=%d, want %d", pageNo, node.parentID, parent)
	}
	if len(node.keys) > node.capacity {
		return errors.Errorf("page %d: %d keys over capacity %d", pageNo, len(node.keys), node.capacity)
	}
	for i, key := range node.keys {
		if i > 0 && node.keys[i-1].Compare(key) > 0 {
			return errors.Errorf("page %d: keys out of order at %d", pageNo, i)
		}
		if lo != nil && key.Compare(lo) < 0 {
			return errors.Errorf("page %d: key %s below separator %s", pageNo, key, lo)
		}
		if hi != nil && key.Compare(hi) > 0 {
			return errors.Errorf("page %d: key %s above separator %s", pageNo, key, hi)
		}
	}

	if node.isLeaf {
		if v.leafDepth < 0 {
			v.leafDepth = depth
		} else if v.leafDepth != depth {
			return errors.Errorf("leaf %d at depth %d, others at %d", pageNo, depth, v.leafDepth)
		}
		v.leaves = append(v.leaves, pageNo)
		v.entries += len(node.keys)
		return nil
	}

	if node.prevID != NoPage || node.nextID != NoPage {
		return errors.Errorf("internal page %d has sibling links", pageNo)
	}
	for i, child := range node.pointers {
		childLo, childHi := lo, hi
		if i > 0 {
			childLo = node.keys[i-1]
		}
		if i < len(node.keys) {
			childHi = node.keys[i]
		}
		if err := v.visit(child, pageNo, childLo, childHi, depth+1); err != nil {
			return err
		}
	}
	return nil
}
