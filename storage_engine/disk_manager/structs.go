package diskmanager

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

// ############################################# FILE DESCRIPTOR ###########################################

// FileDescriptor represents an open file managed by the disk manager
type FileDescriptor struct {
	FileID   uint32
	FilePath string
	File     *os.File
	NumPages int // pages currently present in the file
	mu       sync.RWMutex
}

// ############################################# DISK MANAGER #############################################

// DiskManager manages all disk I/O operations and file handles.
// Files are keyed by their table id (see page.TableIDFromPath).
type DiskManager struct {
	files map[uint32]*FileDescriptor // fileID -> file descriptor
	log   *zap.Logger
	mu    sync.RWMutex
}
