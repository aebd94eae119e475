package heapfile

import (
	lockmanager "IndexDB/storage_engine/lock_manager"
	page "IndexDB/storage_engine/page"
	"IndexDB/types"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

/*
This file holds the row operations of a heap file.

InsertRow tries the last page of the file and appends a fresh page when that one
is full. All page access goes through the bufferpool under the caller's
transaction, so the write is only durable once the transaction commits.
*/

func (hf *HeapFile) FileID() uint32 { return hf.fileID }
func (hf *HeapFile) TableName() string { return hf.tableName }
func (hf *HeapFile) Schema() *types.TableSchema { return hf.schema }
func (hf *HeapFile) RowsPerPage() int { return hf.rowsPerPage }
func (hf *HeapFile) NumPages() (int, error) { return hf.diskManager.NumPages(hf.fileID) }
func (hf *HeapFile) pageID(pageNo int) page.PageID { return page.NewPageID(hf.fileID, pageNo) }

// InsertRow stores row and sets row.Pointer to where it landed.
// Page locks are never waited for while hf.mu is held: a transaction blocked on
// the last page must not stop its holder from appending.
func (hf *HeapFile) InsertRow(tid uint64, row *types.Row) (*types.RowPointer, error) {
	data, err := EncodeRow(hf.schema, row)
	if err != nil {
		return nil, err
	}

	for {
		numPages, err := hf.NumPages()
		if err != nil {
			return nil, err
		}

		if numPages > 0 {
			pg, err := hf.bufferPool.FetchPage(tid, hf.pageID(numPages-1), lockmanager.ReadWrite)
			if err != nil {
				return nil, err
			}
			if slot := FirstFreeSlot(pg, hf.rowsPerPage); slot >= 0 {
				return hf.writeAt(tid, pg, slot, data, row)
			}
		}

		pg, appended, err := hf.appendPage(tid, numPages)
		if err != nil {
			return nil, err
		}
		if appended {
			return hf.writeAt(tid, pg, 0, data, row)
		}
		// another transaction appended first; try its page
	}
}

// appendPage adds page pageNo unless the file has grown past it meanwhile.
// The new page is locked before it is written, so nobody else can take it
// between the disk write and the fetch. The blank page goes straight to disk
// so the file length, and with it the next page number, is visible to everyone.
func (hf *HeapFile) appendPage(tid uint64, pageNo int) (*page.Page, bool, error) {
	hf.mu.Lock()
	defer hf.mu.Unlock()

	numPages, err := hf.NumPages()
	if err != nil {
		return nil, false, err
	}
	if numPages != pageNo {
		return nil, false, nil
	}

	pid := hf.pageID(pageNo)
	// an unwritten page has no other holder, so this never waits
	if err := hf.bufferPool.Locks().Acquire(tid, pid, lockmanager.ReadWrite); err != nil {
		return nil, false, err
	}
	blank := page.NewPage(pid, types.PageTypeHeapData)
	InitHeapPage(blank)
	if err := hf.diskManager.WritePage(blank); err != nil {
		return nil, false, errors.Wrapf(err, "failed to append heap page %d", pageNo)
	}
	hf.log.Debug("heap page appended", zap.Int("page", pageNo))

	pg, err := hf.bufferPool.FetchPage(tid, pid, lockmanager.ReadWrite)
	if err != nil {
		return nil, false, err
	}
	return pg, true, nil
}

func (hf *HeapFile) writeAt(tid uint64, pg *page.Page, slot int, data []byte, row *types.Row) (*types.RowPointer, error) {
	if err := WriteRecord(pg, hf.rowsPerPage, slot, data); err != nil {
		return nil, err
	}
	if err := hf.bufferPool.MarkDirty(tid, pg); err != nil {
		return nil, err
	}
	ptr := &types.RowPointer{
		FileID:     hf.fileID,
		PageNumber: pg.ID.PageNumber,
		SlotIndex:  slot,
	}
	row.Pointer = ptr
	return ptr, nil
}

// Locate reads the row stored at (pageNo, slot).
func (hf *HeapFile) Locate(tid uint64, pageNo, slot int) (*types.Row, error) {
	if slot < 0 || slot >= hf.rowsPerPage {
		return nil, errors.Errorf("slot %d out of range (rows per page=%d)", slot, hf.rowsPerPage)
	}
	pg, err := hf.bufferPool.FetchPage(tid, hf.pageID(pageNo), lockmanager.ReadOnly)
	if err != nil {
		return nil, err
	}
	return hf.decodeSlot(pg, slot)
}

func (hf *HeapFile) decodeSlot(pg *page.Page, slot int) (*types.Row, error) {
	data, err := GetRecord(pg, hf.rowsPerPage, hf.schema.RowSize(), slot)
	if err != nil {
		return nil, err
	}
	row, err := DecodeRow(hf.schema, data)
	if err != nil {
		return nil, err
	}
	row.Pointer = &types.RowPointer{
		FileID:     hf.fileID,
		PageNumber: pg.ID.PageNumber,
		SlotIndex:  slot,
	}
	return row, nil
}
