package lockmanager

import (
	"IndexDB/storage_engine/page"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Permission is the access mode a transaction requests for a page.
type Permission uint8

const (
	ReadOnly Permission = iota
	ReadWrite
	// NoLock latches nothing. Reserved for bootstrapping freshly allocated pages
	// that no other transaction can reference yet.
	NoLock
)

func (p Permission) String() string {
	switch p {
	case ReadOnly:
		return "read-only"
	case ReadWrite:
		return "read-write"
	case NoLock:
		return "no-lock"
	}
	return "unknown"
}

type lockState struct {
	shared    map[uint64]struct{}
	exclusive uint64 // 0 = not held; transaction ids start at 1
}

// LockManager hands out page-level shared/exclusive locks to transactions.
// A request that cannot be granted blocks until the holder releases or the
// wait timeout elapses, at which point the requester is told to abort.
type LockManager struct {
	locks   map[page.PageID]*lockState
	held    map[uint64]map[page.PageID]struct{} // txn -> pages it holds
	timeout time.Duration
	log     *zap.Logger
	mu      sync.Mutex
	cond    *sync.Cond
}
