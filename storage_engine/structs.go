package storageengine

import (
	"IndexDB/config"
	heapfile "IndexDB/storage_engine/access/heapfile_manager"
	indexfile "IndexDB/storage_engine/access/indexfile_manager"
	"IndexDB/storage_engine/bufferpool"
	"IndexDB/storage_engine/catalog"
	diskmanager "IndexDB/storage_engine/disk_manager"
	lockmanager "IndexDB/storage_engine/lock_manager"
	txn "IndexDB/storage_engine/transaction_manager"
	"sync"

	"go.uber.org/zap"
)

type StorageEngine struct {
	BufferPool *bufferpool.BufferPool

	DiskManager  *diskmanager.DiskManager
	LockManager  *lockmanager.LockManager
	IndexManager *indexfile.IndexFileManager
	HeapManager  *heapfile.HeapFileManager
	TxnManager   *txn.TxnManager
	Catalog      *catalog.CatalogManager

	config *config.Config
	log    *zap.Logger

	closeOnce sync.Once
	closeErr  error
}
