package indexfile

import (
	heapfile "IndexDB/storage_engine/access/heapfile_manager"
	bplus "IndexDB/storage_engine/access/indexfile_manager/bplustree"
	"IndexDB/storage_engine/bufferpool"
	diskmanager "IndexDB/storage_engine/disk_manager"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

/*
This file is the main file for Index File Manager that deals with the Index pages
Similar to HeapFileManager this also have access to disk manager and buffer pool

Each index is a B+ tree over one column of one heap table, stored in
baseDir/<table>_<column>.idx. Index files are derived data: they are truncated
when opened and built from the heap file the first time they are used.
*/

func NewIndexFileManager(baseDir string, maxKeysPerPage int, diskManager *diskmanager.DiskManager, bufferPool *bufferpool.BufferPool, log *zap.Logger) (*IndexFileManager, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create indexes directory")
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &IndexFileManager{
		baseDir:        baseDir,
		indexes:        make(map[indexKey]*bplus.IndexedFile),
		maxKeysPerPage: maxKeysPerPage,
		bufferPool:     bufferPool,
		diskManager:    diskManager,
		log:            log,
	}, nil
}

// GetOrCreateIndex returns the secondary index on column of the heap file's table.
// Indexes are cached per (table, column); a new one starts unbuilt.
func (ifm *IndexFileManager) GetOrCreateIndex(hf *heapfile.HeapFile, column string) (*bplus.IndexedFile, error) {
	schema := hf.Schema()
	colIdx, err := schema.ColumnIndex(column)
	if err != nil {
		return nil, err
	}
	key := indexKey{table: schema.TableName, column: strings.ToLower(schema.Columns[colIdx].Name)}

	ifm.mu.RLock()
	idx, exists := ifm.indexes[key]
	ifm.mu.RUnlock()

	if exists && idx != nil {
		return idx, nil
	}

	// Slow path: open the index file.
	ifm.mu.Lock()
	defer ifm.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine may have
	// opened it while we were waiting for the lock).
	if idx, exists := ifm.indexes[key]; exists && idx != nil {
		return idx, nil
	}

	idx, err = bplus.OpenIndexedFile(bplus.IndexConfig{
		Path:           ifm.indexPath(key),
		Table:          hf,
		Column:         colIdx,
		KeyType:        schema.Columns[colIdx].Type,
		MaxKeysPerPage: ifm.maxKeysPerPage,
	}, ifm.bufferPool, ifm.diskManager, ifm.log)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open index on %s.%s", key.table, key.column)
	}

	ifm.indexes[key] = idx
	return idx, nil
}

// GetIndex returns the open index on tableName.column, if there is one.
func (ifm *IndexFileManager) GetIndex(tableName, column string) (*bplus.IndexedFile, bool) {
	ifm.mu.RLock()
	defer ifm.mu.RUnlock()
	idx, ok := ifm.indexes[indexKey{table: tableName, column: strings.ToLower(column)}]
	return idx, ok && idx != nil
}

func (ifm *IndexFileManager) indexPath(key indexKey) string {
	return filepath.Join(ifm.baseDir, key.table+"_"+key.column+".idx")
}

// IndexesOn returns every open index of tableName, ordered by column.
func (ifm *IndexFileManager) IndexesOn(tableName string) []*bplus.IndexedFile {
	ifm.mu.RLock()
	defer ifm.mu.RUnlock()

	var keys []indexKey
	for k := range ifm.indexes {
		if k.table == tableName {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].column < keys[j].column })

	out := make([]*bplus.IndexedFile, len(keys))
	for i, k := range keys {
		out[i] = ifm.indexes[k]
	}
	return out
}

// TransactionAborted tells every index that tid is gone.
func (ifm *IndexFileManager) TransactionAborted(tid uint64) {
	ifm.mu.RLock()
	defer ifm.mu.RUnlock()
	for _, idx := range ifm.indexes {
		idx.TransactionAborted(tid)
	}
}

// TransactionCommitted tells every index that tid's pages are durable.
func (ifm *IndexFileManager) TransactionCommitted(tid uint64) {
	ifm.mu.RLock()
	defer ifm.mu.RUnlock()
	for _, idx := range ifm.indexes {
		idx.TransactionCommitted(tid)
	}
}

// CloseIndex closes the index on tableName.column and removes it from cache.
func (ifm *IndexFileManager) CloseIndex(tableName, column string) error {
	ifm.mu.Lock()
	defer ifm.mu.Unlock()

	key := indexKey{table: tableName, column: strings.ToLower(column)}
	idx, exists := ifm.indexes[key]
	if !exists {
		return nil // not open, nothing to do
	}

	if err := idx.Close(); err != nil {
		return errors.Wrapf(err, "failed to close index on %s.%s", tableName, column)
	}

	delete(ifm.indexes, key)
	return nil
}

// CloseAll closes all cached indexes and clears the cache.
// Called when shutting down the storage engine.
func (ifm *IndexFileManager) CloseAll() error {
	ifm.mu.Lock()
	defer ifm.mu.Unlock()

	var lastErr error
	for key, idx := range ifm.indexes {
		if err := idx.Close(); err != nil {
			lastErr = errors.Wrapf(err, "failed to close index on %s.%s", key.table, key.column)
		}
		delete(ifm.indexes, key)
	}

	return lastErr
}
