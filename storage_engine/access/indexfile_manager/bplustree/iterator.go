package bplus

import (
	lockmanager "IndexDB/storage_engine/lock_manager"
	"IndexDB/types"

	"github.com/pkg/errors"
)

type iterState int

const (
	iterClosed iterState = iota
	iterOpen
	iterExhausted
)

// Iterator returns rows of the base table in index key order.
// It holds a decoded leaf, never a page handle; page locks stay with the
// transaction until it ends.
type Iterator struct {
	file  *IndexedFile
	tid   uint64
	state iterState
	leaf  *IndexedPage
	slot  int
}

// Iterator returns an unopened iterator for transaction tid.
func (f *IndexedFile) Iterator(tid uint64) *Iterator {
	return &Iterator{file: f, tid: tid}
}

// Open builds the index if needed and positions at the first entry.
func (it *Iterator) Open() error {
	if _, err := it.file.EnsureBuilt(it.tid); err != nil {
		return err
	}
	leafID, err := it.file.FindFirstLeaf(it.tid)
	if err != nil {
		return err
	}
	return it.position(leafID.PageNumber, 0)
}

// Seek positions the iterator at the first entry with key >= key. The cursor
// may land past the last entry of a leaf and continues in the next one.
func (it *Iterator) Seek(key types.Field) error {
	if it.state == iterClosed {
		if err := it.Open(); err != nil {
			return err
		}
	}
	leafID, err := it.file.Search(it.tid, key)
	if err != nil {
		return err
	}
	if err := it.position(leafID.PageNumber, 0); err != nil {
		return err
	}
	it.slot = it.leaf.SlotFor(key)
	return nil
}

func (it *Iterator) position(pageNo, slot int) error {
	_, leaf, err := it.file.fetchNode(it.tid, pageNo, lockmanager.ReadOnly)
	if err != nil {
		return err
	}
	it.leaf = leaf
	it.slot = slot
	it.state = iterOpen
	return nil
}

// HasNext reports whether Next has a row to return, following the leaf chain
// past drained leaves.
func (it *Iterator) HasNext() (bool, error) {
	switch it.state {
	case iterClosed, iterExhausted:
		return false, nil
	}
	if it.slot < it.leaf.NumKeys() {
		return true, nil
	}
	if it.leaf.isRoot {
		it.state = iterExhausted
		return false, nil
	}
	for it.leaf.nextID != NoPage {
		if err := it.position(it.leaf.nextID, 0); err != nil {
			return false, err
		}
		if it.leaf.NumKeys() > 0 {
			return true, nil
		}
	}
	it.state = iterExhausted
	return false, nil
}

// Next returns the row of the current entry and advances.
func (it *Iterator) Next() (*types.Row, error) {
	ok, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.WithStack(types.ErrNoSuchElement)
	}

	ptr := it.leaf.pointers[it.slot]
	it.slot++

	table := it.file.table
	pageNo, slot, err := DecodeTupleRef(ptr, table.RowsPerPage())
	if err != nil {
		return nil, err
	}
	row, err := table.Locate(it.tid, pageNo, slot)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load row at page %d slot %d", pageNo, slot)
	}
	return row, nil
}

// Rewind is Close followed by Open.
func (it *Iterator) Rewind() error {
	it.Close()
	return it.Open()
}

func (it *Iterator) Close() {
	it.leaf = nil
	it.slot = 0
	it.state = iterClosed
}

var _ types.RowIterator = (*Iterator)(nil)
