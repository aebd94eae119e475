package txn

import (
	"IndexDB/storage_engine/page"
	"IndexDB/types"
)

/*
Before the transaction completes it is not known whether it will commit or abort.
These lists record what it changed so that commit/abort can report it; the page
contents themselves are rolled back by the buffer pool dropping the frames.
*/

// RecordInsert adds a row to the transaction's InsertedRows list.
// Called by StorageEngine.InsertRow after the row is written to the heap file.
func (txn *Transaction) RecordInsert(table string, rowPtr types.RowPointer) {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.InsertedRows = append(txn.InsertedRows, InsertedRow{
		Table:  table,
		RowPtr: rowPtr,
	})
}

// RecordIndexPages remembers the index pages an insert dirtied.
func (txn *Transaction) RecordIndexPages(pids []page.PageID) {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.IndexPages = append(txn.IndexPages, pids...)
}
