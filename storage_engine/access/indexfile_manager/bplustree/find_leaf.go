package bplus

import (
	lockmanager "IndexDB/storage_engine/lock_manager"
	"IndexDB/storage_engine/page"
	"IndexDB/types"

	"github.com/pkg/errors"
)

// maxDepth bounds a descent; a deeper walk means a page points back up the tree.
const maxDepth = 64

// descend walks from the root to a leaf, choosing the child with next.
// Every page on the way is fetched read-only.
func (f *IndexedFile) descend(tid uint64, next func(n *IndexedPage) int) (page.PageID, error) {
	pageNo := RootPageNumber
	for depth := 0; depth < maxDepth; depth++ {
		_, node, err := f.fetchNode(tid, pageNo, lockmanager.ReadOnly)
		if err != nil {
			return page.PageID{}, err
		}
		if node.isLeaf {
			return node.id, nil
		}
		if len(node.pointers) == 0 {
			return page.PageID{}, errors.Wrapf(types.ErrCorruptPage, "internal page %s has no children", node.id)
		}
		pageNo = next(node)
	}
	return page.PageID{}, errors.Wrapf(types.ErrCorruptPage, "descent deeper than %d levels", maxDepth)
}

func (f *IndexedFile) search(tid uint64, key types.Field) (page.PageID, error) {
	if key == nil || key.Type() != f.keyType {
		return page.PageID{}, errors.Wrapf(types.ErrTypeMismatch, "index on %s cannot search for %v", f.keyType, key)
	}
	return f.descend(tid, func(n *IndexedPage) int { return n.FindChild(key) })
}

// Search returns the leaf that holds key, or would hold it.
func (f *IndexedFile) Search(tid uint64, key types.Field) (page.PageID, error) {
	if f.State() == NotBuilt {
		return page.PageID{}, errors.WithStack(types.ErrIndexNotBuilt)
	}
	return f.search(tid, key)
}

// FindFirstLeaf returns the leftmost leaf.
func (f *IndexedFile) FindFirstLeaf(tid uint64) (page.PageID, error) {
	if f.State() == NotBuilt {
		return page.PageID{}, errors.WithStack(types.ErrIndexNotBuilt)
	}
	return f.descend(tid, (*IndexedPage).FindLeftmostChild)
}
