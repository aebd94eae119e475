package txn

import (
	"IndexDB/storage_engine/bufferpool"
	"IndexDB/storage_engine/page"
	"IndexDB/types"
	"sync"

	"go.uber.org/zap"
)

type TxnState uint8

const (
	TxnActive TxnState = iota
	TxnCommitted
	TxnAborted
)

func (s TxnState) String() string {
	switch s {
	case TxnActive:
		return "active"
	case TxnCommitted:
		return "committed"
	case TxnAborted:
		return "aborted"
	}
	return "unknown"
}

type Transaction struct {
	ID    uint64
	State TxnState

	// bookkeeping of what the transaction touched; undo itself is the buffer
	// pool dropping the transaction's frames
	InsertedRows []InsertedRow
	IndexPages   []page.PageID

	mu sync.Mutex
}

type InsertedRow struct {
	Table  string
	RowPtr types.RowPointer
}

type TxnManager struct {
	nextID     uint64
	activeTxns map[uint64]*Transaction // all currently active transactions
	bufferPool *bufferpool.BufferPool
	log        *zap.Logger
	mu         sync.RWMutex
}
