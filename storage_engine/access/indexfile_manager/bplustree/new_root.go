package bplus

import (
	lockmanager "IndexDB/storage_engine/lock_manager"
	"IndexDB/storage_engine/page"
	"IndexDB/types"
)

// splitRoot moves both halves of the root into two new pages and rewrites the
// root in place as an internal node with one key. The root stays at page 0.
func (f *IndexedFile) splitRoot(tid uint64, pg *page.Page, root *IndexedPage, first, second half, median types.Field, ws *workingSet) error {
	leftNo, err := f.allocatePage(false)
	if err != nil {
		return err
	}
	rightNo, err := f.allocatePage(false)
	if err != nil {
		return err
	}

	leftPg, left, err := f.fetchNode(tid, leftNo, lockmanager.ReadWrite)
	if err != nil {
		return err
	}
	rightPg, right, err := f.fetchNode(tid, rightNo, lockmanager.ReadWrite)
	if err != nil {
		return err
	}

	rootNo := root.id.PageNumber
	for _, n := range []*IndexedPage{left, right} {
		n.isLeaf = root.isLeaf
		n.parentID = rootNo
	}
	left.setContents(first)
	right.setContents(second)

	if root.isLeaf {
		left.nextID = rightNo
		right.prevID = leftNo
	} else {
		if err := f.reparent(tid, first.pointers, leftNo, ws); err != nil {
			return err
		}
		if err := f.reparent(tid, second.pointers, rightNo, ws); err != nil {
			return err
		}
	}

	if err := f.writeNode(tid, leftPg, left, ws); err != nil {
		return err
	}
	if err := f.writeNode(tid, rightPg, right, ws); err != nil {
		return err
	}

	root.isLeaf = false
	root.prevID, root.nextID = NoPage, NoPage
	root.keys = []types.Field{median}
	root.pointers = []int{leftNo, rightNo}
	return f.writeNode(tid, pg, root, ws)
}
