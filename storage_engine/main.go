package storageengine

import (
	"IndexDB/config"
	heapfile "IndexDB/storage_engine/access/heapfile_manager"
	indexfile "IndexDB/storage_engine/access/indexfile_manager"
	bplus "IndexDB/storage_engine/access/indexfile_manager/bplustree"
	"IndexDB/storage_engine/bufferpool"
	"IndexDB/storage_engine/catalog"
	diskmanager "IndexDB/storage_engine/disk_manager"
	lockmanager "IndexDB/storage_engine/lock_manager"
	txn "IndexDB/storage_engine/transaction_manager"
	"IndexDB/types"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

/*
The main file of the storage engine. It builds every layer from the config and
is the only place that ties heap tables to their indexes.

	DataDir/
	    tables/   <table>.heap, <table>_schema.json
	    indexes/  <table>_<column>.idx
	    metadata/ catalog.json (declared indexes)

A row goes to the heap first, then to every open index of its table. Indexes
are derived data: they are truncated on open and rebuilt on first use.
*/

func NewStorageEngine(cfg *config.Config, log *zap.Logger) (*StorageEngine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create data dir")
	}

	dm := diskmanager.NewDiskManager(log)
	lm := lockmanager.NewLockManager(time.Duration(cfg.LockTimeout), log)
	bp, err := bufferpool.NewBufferPool(cfg.BufferPoolPages, dm, lm, log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init buffer pool")
	}

	hm, err := heapfile.NewHeapFileManager(filepath.Join(cfg.DataDir, "tables"), dm, bp, log)
	if err != nil {
		bp.Close()
		return nil, err
	}
	im, err := indexfile.NewIndexFileManager(filepath.Join(cfg.DataDir, "indexes"), cfg.Index.MaxKeysPerPage, dm, bp, log)
	if err != nil {
		bp.Close()
		return nil, err
	}

	cm, err := catalog.NewCatalogManager(filepath.Join(cfg.DataDir, "metadata"), log)
	if err != nil {
		bp.Close()
		return nil, err
	}

	se := &StorageEngine{
		BufferPool:   bp,
		DiskManager:  dm,
		LockManager:  lm,
		IndexManager: im,
		HeapManager:  hm,
		TxnManager:   txn.NewTxnManager(bp, log),
		Catalog:      cm,
		config:       cfg,
		log:          log,
	}
	if err := se.reopenIndexes(); err != nil {
		se.Close()
		return nil, err
	}

	log.Info("storage engine ready",
		zap.String("data_dir", cfg.DataDir),
		zap.Int("buffer_pool_pages", cfg.BufferPoolPages),
		zap.Duration("lock_timeout", time.Duration(cfg.LockTimeout)),
		zap.Int("indexes", len(cm.Indexes())))
	return se, nil
}

// reopenIndexes opens every index in the catalog. They start unbuilt.
func (se *StorageEngine) reopenIndexes() error {
	for _, e := range se.Catalog.Indexes() {
		hf, err := se.Table(e.Table)
		if err != nil {
			return errors.Wrapf(err, "index %s.%s", e.Table, e.Column)
		}
		if _, err := se.IndexManager.GetOrCreateIndex(hf, e.Column); err != nil {
			return err
		}
	}
	return nil
}

// CreateTable creates an empty heap table.
func (se *StorageEngine) CreateTable(schema *types.TableSchema) (*heapfile.HeapFile, error) {
	hf, err := se.HeapManager.CreateHeapfile(schema)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create table")
	}
	se.log.Info("table created", zap.String("table", schema.TableName), zap.Int("columns", schema.NumFields()))
	return hf, nil
}

// Table returns an open table, loading it from disk on first use.
func (se *StorageEngine) Table(tableName string) (*heapfile.HeapFile, error) {
	if hf, err := se.HeapManager.GetHeapFileByTable(tableName); err == nil {
		return hf, nil
	}
	return se.HeapManager.LoadHeapFile(tableName)
}

// CreateIndex opens a secondary index on tableName.column. The index is not
// built until the first scan or insert through it.
func (se *StorageEngine) CreateIndex(tableName, column string) (*bplus.IndexedFile, error) {
	hf, err := se.Table(tableName)
	if err != nil {
		return nil, err
	}
	idx, err := se.IndexManager.GetOrCreateIndex(hf, column)
	if err != nil {
		return nil, err
	}
	added, err := se.Catalog.RegisterIndex(tableName, column)
	if err != nil {
		return nil, err
	}
	if added {
		se.log.Info("index created", zap.String("table", tableName), zap.String("column", column))
	}
	return idx, nil
}

// DropIndex closes the index on tableName.column and deletes its file.
func (se *StorageEngine) DropIndex(tableName, column string) error {
	hf, err := se.Table(tableName)
	if err != nil {
		return err
	}
	colIdx, err := hf.Schema().ColumnIndex(column)
	if err != nil {
		return err
	}
	var path string
	for _, idx := range se.IndexManager.IndexesOn(tableName) {
		if idx.Column() == colIdx {
			path = idx.Path()
		}
	}

	if err := se.IndexManager.CloseIndex(tableName, column); err != nil {
		return err
	}
	if err := se.Catalog.UnregisterIndex(tableName, column); err != nil {
		return err
	}
	if path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "failed to remove index file")
		}
	}
	se.log.Info("index dropped", zap.String("table", tableName), zap.String("column", column))
	return nil
}

// InsertRow stores row in the heap of tableName and adds it to every index
// of that table. An error leaves the transaction to be aborted by the caller.
func (se *StorageEngine) InsertRow(t *txn.Transaction, tableName string, row *types.Row) (*types.RowPointer, error) {
	if t == nil {
		return nil, errors.New("transaction is required")
	}
	hf, err := se.Table(tableName)
	if err != nil {
		return nil, err
	}
	if err := hf.Schema().Validate(row); err != nil {
		return nil, err
	}

	ptr, err := hf.InsertRow(t.ID, row)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to insert into '%s'", tableName)
	}
	t.RecordInsert(tableName, *ptr)

	for _, idx := range se.IndexManager.IndexesOn(tableName) {
		pages, err := idx.AddRow(t.ID, row)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to index row %s", ptr)
		}
		t.RecordIndexPages(pages)
	}
	return ptr, nil
}

// Scan iterates every row of tableName in heap order.
func (se *StorageEngine) Scan(t *txn.Transaction, tableName string) (types.RowIterator, error) {
	if t == nil {
		return nil, errors.New("transaction is required")
	}
	hf, err := se.Table(tableName)
	if err != nil {
		return nil, err
	}
	return hf.Scan(t.ID), nil
}

// Index returns the declared index on tableName.column.
func (se *StorageEngine) Index(tableName, column string) (*bplus.IndexedFile, error) {
	idx, ok := se.IndexManager.GetIndex(tableName, column)
	if !ok {
		return nil, errors.Wrapf(types.ErrIndexNotFound, "no index on %s.%s", tableName, column)
	}
	return idx, nil
}

// IndexScan iterates the rows of tableName in column order over an index made
// with CreateIndex. The iterator is returned unopened; Open builds the index
// when needed.
func (se *StorageEngine) IndexScan(t *txn.Transaction, tableName, column string) (*bplus.Iterator, error) {
	if t == nil {
		return nil, errors.New("transaction is required")
	}
	idx, err := se.Index(tableName, column)
	if err != nil {
		return nil, err
	}
	return idx.Iterator(t.ID), nil
}

// Close closes every file and logs the final buffer pool statistics.
func (se *StorageEngine) Close() error {
	se.closeOnce.Do(func() {
		se.BufferPool.LogStats()
		if err := se.IndexManager.CloseAll(); err != nil {
			se.closeErr = err
		}
		if err := se.HeapManager.CloseAll(); err != nil && se.closeErr == nil {
			se.closeErr = err
		}
		if err := se.DiskManager.CloseAll(); err != nil && se.closeErr == nil {
			se.closeErr = err
		}
		se.BufferPool.Close()
		_ = se.log.Sync()
	})
	return se.closeErr
}
