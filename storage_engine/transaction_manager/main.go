package txn

import (
	"IndexDB/storage_engine/bufferpool"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

/*
Transaction manager manages the BEGIN, COMMIT, ABORT state of work that has to happen atomically
(either all page changes become durable or none).

Ending a transaction is delegated to the buffer pool: commit writes the
transaction's dirty pages, abort drops them, and both release its page locks.
*/

var (
	ErrTxnNotActive = errors.New("transaction is not active")
)

func NewTxnManager(bp *bufferpool.BufferPool, log *zap.Logger) *TxnManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &TxnManager{
		nextID:     1,
		activeTxns: make(map[uint64]*Transaction),
		bufferPool: bp,
		log:        log.Named("txn"),
	}
}

// Begin starts a new transaction and registers it as active.
func (tm *TxnManager) Begin() *Transaction {
	// Use atomic increment to safely issue txn IDs from multiple goroutines.
	txnID := atomic.AddUint64(&tm.nextID, 1) - 1

	txn := &Transaction{
		ID:           txnID,
		State:        TxnActive,
		InsertedRows: make([]InsertedRow, 0),
	}

	tm.mu.Lock()
	tm.activeTxns[txnID] = txn
	tm.mu.Unlock()

	tm.log.Debug("begin", zap.Uint64("txn", txnID))
	return txn
}

// Commit makes the transaction's page changes durable and removes it from the active set.
func (tm *TxnManager) Commit(txnID uint64) error {
	txn, err := tm.finish(txnID, TxnCommitted)
	if err != nil || txn == nil {
		return err
	}
	if err := tm.bufferPool.TransactionComplete(txnID, true); err != nil {
		return errors.Wrapf(err, "commit txn %d", txnID)
	}
	tm.log.Info("commit complete",
		zap.Uint64("txn", txnID),
		zap.Int("rows_inserted", len(txn.InsertedRows)),
		zap.Int("index_pages", len(txn.IndexPages)))
	return nil
}

// Abort discards the transaction's page changes and removes it from the active set.
func (tm *TxnManager) Abort(txnID uint64) error {
	txn, err := tm.finish(txnID, TxnAborted)
	if err != nil || txn == nil {
		return err
	}
	if err := tm.bufferPool.TransactionComplete(txnID, false); err != nil {
		return errors.Wrapf(err, "abort txn %d", txnID)
	}
	tm.log.Info("abort complete", zap.Uint64("txn", txnID), zap.Int("rows_discarded", len(txn.InsertedRows)))
	return nil
}

// finish moves an active transaction to its final state. A transaction that is
// already gone returns (nil, nil) so that Commit/Abort are idempotent.
func (tm *TxnManager) finish(txnID uint64, state TxnState) (*Transaction, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	txn, exists := tm.activeTxns[txnID]
	if !exists {
		return nil, nil
	}

	txn.mu.Lock()
	defer txn.mu.Unlock()
	if txn.State != TxnActive {
		return nil, errors.Wrapf(ErrTxnNotActive, "transaction %d is %s", txnID, txn.State)
	}
	txn.State = state
	delete(tm.activeTxns, txnID)
	return txn, nil
}

// GetTransaction returns the transaction with the given ID, or nil if not found.
func (tm *TxnManager) GetTransaction(txnID uint64) *Transaction {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.activeTxns[txnID]
}

// IsActive returns true if the given txnID is currently active.
func (tm *TxnManager) IsActive(txnID uint64) bool {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	_, exists := tm.activeTxns[txnID]
	return exists
}

// ActiveTransactions returns a snapshot of all currently active transactions.
func (tm *TxnManager) ActiveTransactions() []*Transaction {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	txns := make([]*Transaction, 0, len(tm.activeTxns))
	for _, txn := range tm.activeTxns {
		txns = append(txns, txn)
	}
	return txns
}
