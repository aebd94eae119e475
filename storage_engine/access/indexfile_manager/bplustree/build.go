package bplus

import (
	"IndexDB/storage_engine/page"
	"IndexDB/types"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

/*
The index is built lazily: the first iterator open or AddRow scans the base
table and inserts every row. The build runs under buildMu, so a second caller
waits and then finds the index built.

A failed build leaves nothing behind: the state goes back to NotBuilt and the
allocator forgets its pages, so the next attempt starts again at page 0.
*/

func (f *IndexedFile) State() BuildState {
	return BuildState(f.state.Load())
}

// EnsureBuilt builds the index if it has not been built yet and returns the
// pages the build dirtied. An already built index returns no pages.
func (f *IndexedFile) EnsureBuilt(tid uint64) ([]page.PageID, error) {
	pages, _, err := f.ensureBuilt(tid)
	return pages, err
}

// ensureBuilt also reports whether this call did the build.
func (f *IndexedFile) ensureBuilt(tid uint64) ([]page.PageID, bool, error) {
	if f.State() == Built {
		return nil, false, nil
	}

	f.buildMu.Lock()
	defer f.buildMu.Unlock()

	if f.State() == Built {
		return nil, false, nil
	}
	f.state.Store(int32(Building))

	start := time.Now()
	ws := newWorkingSet()
	rows, err := f.build(tid, ws)
	if err != nil {
		f.state.Store(int32(NotBuilt))
		f.resetAllocator()
		f.log.Warn("index build failed", zap.Uint64("txn", tid), zap.Error(err))
		return nil, false, errors.Wrap(err, "index build failed")
	}

	f.builtBy.Store(tid)
	f.state.Store(int32(Built))
	f.log.Info("index built",
		zap.Uint64("txn", tid),
		zap.Int("rows", rows),
		zap.Int("pages", f.NumPages()),
		zap.Duration("took", time.Since(start)))
	return ws.pages(), true, nil
}

func (f *IndexedFile) build(tid uint64, ws *workingSet) (int, error) {
	rootNo, err := f.allocatePage(true)
	if err != nil {
		return 0, err
	}
	if rootNo != RootPageNumber {
		return 0, errors.Wrapf(types.ErrCorruptPage, "root allocated at page %d", rootNo)
	}

	// taking the root read-write keeps other transactions out until this one ends
	err = f.updateNode(tid, rootNo, ws, func(root *IndexedPage) {
		root.isRoot = true
		root.isLeaf = true
	})
	if err != nil {
		return 0, err
	}

	it := f.table.Scan(tid)
	if err := it.Open(); err != nil {
		return 0, errors.Wrap(err, "failed to open base table scan")
	}
	defer it.Close()

	rows := 0
	for {
		ok, err := it.HasNext()
		if err != nil {
			return rows, err
		}
		if !ok {
			return rows, nil
		}
		row, err := it.Next()
		if err != nil {
			return rows, err
		}
		key, ptr, err := f.entryFor(row)
		if err != nil {
			return rows, err
		}
		if err := f.insert(tid, key, ptr, ws); err != nil {
			return rows, err
		}
		rows++
	}
}

// entryFor extracts the key and tuple reference of a stored row.
func (f *IndexedFile) entryFor(row *types.Row) (types.Field, int, error) {
	if row == nil || row.Pointer == nil {
		return nil, 0, errors.WithStack(types.ErrRowNotStored)
	}
	if row.Pointer.FileID != f.table.FileID() {
		return nil, 0, errors.Wrapf(types.ErrRowNotStored, "row belongs to file %d, index is over file %d",
			row.Pointer.FileID, f.table.FileID())
	}
	key := row.Field(f.column)
	if key == nil || key.Type() != f.keyType {
		return nil, 0, errors.Wrapf(types.ErrTypeMismatch, "column %d of row %s", f.column, row)
	}
	ptr, err := EncodeTupleRef(row.Pointer.PageNumber, row.Pointer.SlotIndex, f.table.RowsPerPage())
	if err != nil {
		return nil, 0, err
	}
	return key, ptr, nil
}

// TransactionAborted forgets a build done by tid: its pages were discarded
// with the transaction, so the next user must build again.
func (f *IndexedFile) TransactionAborted(tid uint64) {
	// a build in progress may be waiting on tid's locks while holding buildMu
	if f.builtBy.Load() != tid {
		return
	}
	f.buildMu.Lock()
	defer f.buildMu.Unlock()
	if f.State() != Built || f.builtBy.Load() != tid {
		return
	}
	f.state.Store(int32(NotBuilt))
	f.builtBy.Store(0)
	f.resetAllocator()
	f.log.Info("build discarded with aborted transaction", zap.Uint64("txn", tid))
}

// TransactionCommitted makes a build done by tid permanent.
func (f *IndexedFile) TransactionCommitted(tid uint64) {
	f.builtBy.CompareAndSwap(tid, 0)
}
