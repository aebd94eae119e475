package indexfile

import (
	bplus "IndexDB/storage_engine/access/indexfile_manager/bplustree"
	"IndexDB/storage_engine/bufferpool"
	diskmanager "IndexDB/storage_engine/disk_manager"
	"sync"

	"go.uber.org/zap"
)

type indexKey struct {
	table  string
	column string
}

type IndexFileManager struct {
	baseDir        string                          // e.g., /data/mydb/indexes
	indexes        map[indexKey]*bplus.IndexedFile // (table, column) → cached index
	maxKeysPerPage int                             // 0 = derived from page size
	bufferPool     *bufferpool.BufferPool          // ← shared with heap files
	diskManager    *diskmanager.DiskManager        // ← shared with heap files
	log            *zap.Logger
	mu             sync.RWMutex
}
