package bplus

import (
	lockmanager "IndexDB/storage_engine/lock_manager"
	"IndexDB/storage_engine/page"
)

// split divides an overflowing node. A non-root node keeps its second half;
// a new page takes the first half and becomes its left neighbour. The median
// then goes up to the parent, which may split in turn.
// Every page touched here is written before the parent is visited.
func (f *IndexedFile) split(tid uint64, pg *page.Page, node *IndexedPage, ws *workingSet) error {
	first, second, median := node.SplitHalves()
	if node.isRoot {
		return f.splitRoot(tid, pg, node, first, second, median, ws)
	}

	newNo, err := f.allocatePage(false)
	if err != nil {
		return err
	}
	newPg, left, err := f.fetchNode(tid, newNo, lockmanager.ReadWrite)
	if err != nil {
		return err
	}

	left.isLeaf = node.isLeaf
	left.parentID = node.parentID
	left.setContents(first)
	node.setContents(second)

	if node.isLeaf {
		if err := f.linkBefore(tid, left, node, ws); err != nil {
			return err
		}
	} else if err := f.reparent(tid, first.pointers, newNo, ws); err != nil {
		return err
	}

	if err := f.writeNode(tid, newPg, left, ws); err != nil {
		return err
	}
	if err := f.writeNode(tid, pg, node, ws); err != nil {
		return err
	}

	return f.insertIntoParent(tid, node.parentID, median, newNo, node.id.PageNumber, ws)
}

// linkBefore splices leaf left into the sibling chain just before right.
func (f *IndexedFile) linkBefore(tid uint64, left, right *IndexedPage, ws *workingSet) error {
	leftNo := left.id.PageNumber
	left.prevID = right.prevID
	left.nextID = right.id.PageNumber
	right.prevID = leftNo

	if left.prevID == NoPage {
		return nil
	}
	return f.updateNode(tid, left.prevID, ws, func(prev *IndexedPage) {
		prev.nextID = leftNo
	})
}
