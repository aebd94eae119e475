package bplus

import (
	"IndexDB/storage_engine/bufferpool"
	diskmanager "IndexDB/storage_engine/disk_manager"
	"IndexDB/types"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// OpenIndexedFile opens the index described by cfg. The backing file is
// truncated: the index is derived data and is rebuilt from the base table on
// first use.
func OpenIndexedFile(cfg IndexConfig, bufferPool *bufferpool.BufferPool, diskManager *diskmanager.DiskManager, log *zap.Logger) (*IndexedFile, error) {
	if cfg.Table == nil {
		return nil, errors.New("OpenIndexedFile: no base table")
	}
	if cfg.Column < 0 {
		return nil, errors.Errorf("OpenIndexedFile: invalid column %d", cfg.Column)
	}
	capacity, err := resolveCapacity(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	fileID, err := diskManager.OpenFile(cfg.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "OpenIndexedFile: failed to open index file %s", cfg.Path)
	}

	f := &IndexedFile{
		fileID:      fileID,
		path:        cfg.Path,
		table:       cfg.Table,
		column:      cfg.Column,
		keyType:     cfg.KeyType,
		capacity:    capacity,
		bufferPool:  bufferPool,
		diskManager: diskManager,
		log: log.Named("index").With(
			zap.String("path", cfg.Path),
			zap.Int("column", cfg.Column)),
	}

	// pages left from an earlier run may still sit in the cache
	stale, err := diskManager.NumPages(fileID)
	if err != nil {
		return nil, err
	}
	for i := 0; i < stale; i++ {
		bufferPool.DiscardPage(f.pageID(i))
	}
	if err := diskManager.Truncate(fileID); err != nil {
		return nil, errors.Wrap(err, "OpenIndexedFile: failed to truncate")
	}

	f.log.Debug("index opened", zap.Uint32("file", fileID), zap.Int("capacity", capacity), zap.Stringer("key_type", cfg.KeyType))
	return f, nil
}

func resolveCapacity(cfg IndexConfig) (int, error) {
	if cfg.KeyType.Len() == 0 {
		return 0, errors.Wrapf(types.ErrTypeMismatch, "cannot index keys of type %s", cfg.KeyType)
	}
	limit := MaxCapacity(cfg.KeyType)
	if cfg.MaxKeysPerPage == 0 {
		return limit, nil
	}
	if cfg.MaxKeysPerPage < MinCapacity || cfg.MaxKeysPerPage > limit {
		return 0, errors.Errorf("max keys per page %d outside [%d, %d] for %s keys",
			cfg.MaxKeysPerPage, MinCapacity, limit, cfg.KeyType)
	}
	return cfg.MaxKeysPerPage, nil
}

func (f *IndexedFile) FileID() uint32 { return f.fileID }
func (f *IndexedFile) Path() string { return f.path }
func (f *IndexedFile) Column() int { return f.column }
func (f *IndexedFile) Capacity() int { return f.capacity }
func (f *IndexedFile) KeyType() types.Type { return f.keyType }
func (f *IndexedFile) Table() BaseTable { return f.table }

// Close drops the index's cached pages and closes its file.
func (f *IndexedFile) Close() error {
	f.resetAllocator()
	if err := f.diskManager.CloseFile(f.fileID); err != nil {
		return errors.Wrap(err, "Close: failed to close index file")
	}
	return nil
}
