package diskmanager

import (
	"IndexDB/storage_engine/page"
	"IndexDB/types"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

/*
This is main file for disk manager
It owns:
File descriptors (os.File)
Reading/writing raw bytes at page offsets (ReadAt, WriteAt)
The page count of every open file

A page lives at offset PageNumber * PageSize inside the file of its table.
Every failure is returned wrapped in types.ErrIO; nothing here terminates the process,
the caller decides whether the transaction can continue.

Bufferpool on page hits returns cached pages, on a miss it is the disk manager which reads the page
*/

func NewDiskManager(log *zap.Logger) *DiskManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &DiskManager{
		files: make(map[uint32]*FileDescriptor),
		log:   log.Named("disk"),
	}
}

// OpenFile opens or creates the file at filePath and registers it under the
// table id derived from its path.
func (dm *DiskManager) OpenFile(filePath string) (uint32, error) {
	return dm.OpenFileWithID(filePath, page.TableIDFromPath(filePath))
}

// OpenFileWithID opens or creates a file under an explicit id.
// Opening an already open path returns the existing id.
func (dm *DiskManager) OpenFileWithID(filePath string, fileID uint32) (uint32, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	for id, fd := range dm.files {
		if fd.FilePath == filePath {
			return id, nil
		}
	}
	if _, exists := dm.files[fileID]; exists {
		return 0, errors.Errorf("file id %d already registered for another path", fileID)
	}

	file, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return 0, errors.Wrapf(types.ErrIO, "open file %s: %v", filePath, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return 0, errors.Wrapf(types.ErrIO, "stat file %s: %v", filePath, err)
	}

	dm.files[fileID] = &FileDescriptor{
		FileID:   fileID,
		FilePath: filePath,
		File:     file,
		NumPages: int(stat.Size() / int64(page.PageSize)),
	}
	dm.log.Debug("file opened", zap.String("path", filePath), zap.Uint32("file", fileID))
	return fileID, nil
}

// ReadPage reads a page from disk
func (dm *DiskManager) ReadPage(pid page.PageID) (*page.Page, error) {
	fd, err := dm.GetFileDescriptor(pid.TableID)
	if err != nil {
		return nil, err
	}

	fd.mu.RLock()
	defer fd.mu.RUnlock()

	if fd.File == nil {
		return nil, errors.Wrapf(types.ErrIO, "file %d is closed", pid.TableID)
	}
	if pid.PageNumber < 0 || pid.PageNumber >= fd.NumPages {
		return nil, errors.Wrapf(types.ErrIO, "page %s beyond end of file (%d pages)", pid, fd.NumPages)
	}

	pg := page.NewPage(pid, types.PageTypeUnknown)
	offset := int64(pid.PageNumber) * int64(page.PageSize)
	n, err := fd.File.ReadAt(pg.Data, offset)
	if err != nil && !(errors.Is(err, io.EOF) && n > 0) {
		return nil, errors.Wrapf(types.ErrIO, "read page %s: %v", pid, err)
	}
	// a short read at the tail leaves zeroes, which is what NewPage allocated

	pg.PageType = types.PageType(pg.Data[page.PageTypeOffset])
	return pg, nil
}

// WritePage writes a page to disk, extending the file when needed
func (dm *DiskManager) WritePage(pg *page.Page) error {
	fd, err := dm.GetFileDescriptor(pg.ID.TableID)
	if err != nil {
		return err
	}

	fd.mu.Lock()
	defer fd.mu.Unlock()

	if fd.File == nil {
		return errors.Wrapf(types.ErrIO, "file %d is closed", pg.ID.TableID)
	}
	if len(pg.Data) != page.PageSize {
		return errors.Errorf("page data size %d does not match page size %d", len(pg.Data), page.PageSize)
	}
	if pg.ID.PageNumber < 0 {
		return errors.Errorf("invalid page number %d", pg.ID.PageNumber)
	}

	pg.Data[page.PageTypeOffset] = byte(pg.PageType)

	offset := int64(pg.ID.PageNumber) * int64(page.PageSize)
	if _, err := fd.File.WriteAt(pg.Data, offset); err != nil {
		return errors.Wrapf(types.ErrIO, "write page %s: %v", pg.ID, err)
	}

	if pg.ID.PageNumber >= fd.NumPages {
		fd.NumPages = pg.ID.PageNumber + 1
	}
	return nil
}

// NumPages returns the number of pages currently in the file.
func (dm *DiskManager) NumPages(fileID uint32) (int, error) {
	fd, err := dm.GetFileDescriptor(fileID)
	if err != nil {
		return 0, err
	}
	fd.mu.RLock()
	defer fd.mu.RUnlock()
	return fd.NumPages, nil
}

// Truncate drops every page of the file.
func (dm *DiskManager) Truncate(fileID uint32) error {
	fd, err := dm.GetFileDescriptor(fileID)
	if err != nil {
		return err
	}
	fd.mu.Lock()
	defer fd.mu.Unlock()

	if fd.File == nil {
		return errors.Wrapf(types.ErrIO, "file %d is closed", fileID)
	}
	if err := fd.File.Truncate(0); err != nil {
		return errors.Wrapf(types.ErrIO, "truncate file %d: %v", fileID, err)
	}
	fd.NumPages = 0
	return nil
}

// Sync flushes all file buffers to disk
func (dm *DiskManager) Sync() error {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	for _, fd := range dm.files {
		fd.mu.Lock()
		if fd.File != nil {
			if err := fd.File.Sync(); err != nil {
				fd.mu.Unlock()
				return errors.Wrapf(types.ErrIO, "sync file %d: %v", fd.FileID, err)
			}
		}
		fd.mu.Unlock()
	}

	return nil
}

// CloseFile closes a specific file
func (dm *DiskManager) CloseFile(fileID uint32) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	fd, exists := dm.files[fileID]
	if !exists {
		return errors.Errorf("file %d not found", fileID)
	}

	fd.mu.Lock()
	defer fd.mu.Unlock()

	delete(dm.files, fileID)
	if fd.File == nil {
		return nil // Already closed
	}

	if err := fd.File.Sync(); err != nil {
		return errors.Wrapf(types.ErrIO, "sync before close: %v", err)
	}
	if err := fd.File.Close(); err != nil {
		return errors.Wrapf(types.ErrIO, "close file: %v", err)
	}
	fd.File = nil
	return nil
}

// CloseAll closes all open files
func (dm *DiskManager) CloseAll() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	var lastErr error
	for fileID, fd := range dm.files {
		fd.mu.Lock()
		if fd.File != nil {
			if err := fd.File.Sync(); err != nil {
				lastErr = errors.Wrapf(types.ErrIO, "sync file %d: %v", fileID, err)
			}
			if err := fd.File.Close(); err != nil {
				lastErr = errors.Wrapf(types.ErrIO, "close file %d: %v", fileID, err)
			}
			fd.File = nil
		}
		fd.mu.Unlock()
		delete(dm.files, fileID)
	}

	return lastErr
}

// GetFileDescriptor returns the file descriptor for a given file ID
func (dm *DiskManager) GetFileDescriptor(fileID uint32) (*FileDescriptor, error) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()

	fd, exists := dm.files[fileID]
	if !exists {
		return nil, errors.Wrapf(types.ErrIO, "file %d not open", fileID)
	}

	return fd, nil
}
