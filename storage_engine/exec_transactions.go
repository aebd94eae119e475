package storageengine

import (
	txn "IndexDB/storage_engine/transaction_manager"

	"github.com/pkg/errors"
)

// ── Transaction state management wrappers ─────────────────────────────────────
// These keep the index build state in step with the buffer pool.

// BeginTransaction starts a new transaction and returns it.
func (se *StorageEngine) BeginTransaction() *txn.Transaction {
	return se.TxnManager.Begin()
}

// CommitTransaction writes the transaction's pages and makes any index build
// it performed permanent.
func (se *StorageEngine) CommitTransaction(t *txn.Transaction) error {
	if t == nil {
		return errors.New("transaction is required")
	}
	if err := se.TxnManager.Commit(t.ID); err != nil {
		return err
	}
	se.IndexManager.TransactionCommitted(t.ID)
	return nil
}

// AbortTransaction drops the transaction's pages. Indexes it built are reset
// first, while its page locks still keep other builders waiting.
func (se *StorageEngine) AbortTransaction(t *txn.Transaction) error {
	if t == nil {
		return errors.New("transaction is required")
	}
	se.IndexManager.TransactionAborted(t.ID)
	return se.TxnManager.Abort(t.ID)
}
