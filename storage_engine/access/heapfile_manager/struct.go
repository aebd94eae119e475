package heapfile

import (
	"IndexDB/storage_engine/bufferpool"
	diskmanager "IndexDB/storage_engine/disk_manager"
	"IndexDB/types"
	"sync"

	"go.uber.org/zap"
)

// HeapFile represents a single heap file on disk: an unordered collection of
// fixed-width rows addressed by (page number, slot).
type HeapFile struct {
	fileID      uint32 // which file it is
	tableName   string // table this heap file belongs to
	schema      *types.TableSchema
	rowsPerPage int
	diskManager *diskmanager.DiskManager
	bufferPool  *bufferpool.BufferPool
	filePath    string
	log         *zap.Logger
	mu          sync.Mutex // serialises page appends
}

// HeapFileManager manages all heap files
type HeapFileManager struct {
	baseDir     string
	files       map[uint32]*HeapFile
	tableIndex  map[string]uint32 // tableName -> fileID (name-based lookup)
	bufferPool  *bufferpool.BufferPool
	diskManager *diskmanager.DiskManager
	log         *zap.Logger
	mu          sync.RWMutex
}
