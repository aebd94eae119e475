package heapfile

import (
	lockmanager "IndexDB/storage_engine/lock_manager"
	page "IndexDB/storage_engine/page"
	"IndexDB/types"

	"github.com/pkg/errors"
)

// RowIterator walks every stored row of a heap file in (page, slot) order.
type RowIterator struct {
	hf      *HeapFile
	tid     uint64
	open    bool
	pageNo  int
	slot    int
	current *page.Page
	next    *types.Row
}

// Scan returns an unopened iterator over hf for transaction tid.
func (hf *HeapFile) Scan(tid uint64) types.RowIterator {
	return &RowIterator{hf: hf, tid: tid}
}

func (it *RowIterator) Open() error {
	it.open = true
	return it.Rewind()
}

// Rewind restarts the scan at page 0, slot 0.
func (it *RowIterator) Rewind() error {
	it.pageNo = 0
	it.slot = 0
	it.current = nil
	it.next = nil
	return nil
}

// HasNext reports whether another row is available.
func (it *RowIterator) HasNext() (bool, error) {
	if !it.open {
		return false, nil
	}
	if it.next != nil {
		return true, nil
	}
	row, err := it.advance()
	if err != nil {
		return false, err
	}
	it.next = row
	return row != nil, nil
}

// Next returns the next row, or types.ErrNoSuchElement.
func (it *RowIterator) Next() (*types.Row, error) {
	ok, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.WithStack(types.ErrNoSuchElement)
	}
	row := it.next
	it.next = nil
	return row, nil
}

func (it *RowIterator) Close() {
	it.open = false
	it.current = nil
	it.next = nil
}

func (it *RowIterator) advance() (*types.Row, error) {
	numPages, err := it.hf.NumPages()
	if err != nil {
		return nil, err
	}
	for it.pageNo < numPages {
		if it.current == nil {
			pg, err := it.hf.bufferPool.FetchPage(it.tid, it.hf.pageID(it.pageNo), lockmanager.ReadOnly)
			if err != nil {
				return nil, err
			}
			it.current = pg
		}
		for it.slot < it.hf.rowsPerPage {
			slot := it.slot
			it.slot++
			if IsSlotUsed(it.current, slot) {
				return it.hf.decodeSlot(it.current, slot)
			}
		}
		it.pageNo++
		it.slot = 0
		it.current = nil
	}
	return nil, nil
}

var _ types.RowIterator = (*RowIterator)(nil)
