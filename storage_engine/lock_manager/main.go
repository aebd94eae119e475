package lockmanager

import (
	"IndexDB/storage_engine/page"
	"IndexDB/types"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

/*
Lock manager for the page cache.

Locks are strict two-phase: they are only released when the owning transaction
completes (ReleaseAll). A shared lock held only by the requester can be upgraded
to exclusive. Deadlocks are not detected explicitly; a wait longer than the
configured timeout fails with types.ErrTransactionAborted and the caller aborts.
*/

const DefaultTimeout = 2 * time.Second

func NewLockManager(timeout time.Duration, log *zap.Logger) *LockManager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	lm := &LockManager{
		locks:   make(map[page.PageID]*lockState),
		held:    make(map[uint64]map[page.PageID]struct{}),
		timeout: timeout,
		log:     log.Named("lock"),
	}
	lm.cond = sync.NewCond(&lm.mu)
	return lm
}

// Acquire blocks until tid holds pid with at least perm.
func (lm *LockManager) Acquire(tid uint64, pid page.PageID, perm Permission) error {
	if perm == NoLock {
		return nil
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	deadline := time.Now().Add(lm.timeout)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		if lm.tryGrant(tid, pid, perm) {
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			lm.log.Warn("lock wait timed out",
				zap.Uint64("txn", tid), zap.Stringer("page", pid), zap.Stringer("perm", perm))
			return errors.Wrapf(types.ErrTransactionAborted, "txn %d waiting for %s lock on page %s", tid, perm, pid)
		}
		if timer == nil {
			// wake every waiter once the deadline passes so this one can give up
			timer = time.AfterFunc(remaining, func() {
				lm.mu.Lock()
				lm.cond.Broadcast()
				lm.mu.Unlock()
			})
		}
		lm.cond.Wait()
	}
}

// tryGrant assumes lm.mu is held.
func (lm *LockManager) tryGrant(tid uint64, pid page.PageID, perm Permission) bool {
	st, ok := lm.locks[pid]
	if !ok {
		st = &lockState{shared: make(map[uint64]struct{})}
		lm.locks[pid] = st
	}

	switch perm {
	case ReadOnly:
		if st.exclusive != 0 && st.exclusive != tid {
			return false
		}
		if st.exclusive != tid {
			st.shared[tid] = struct{}{}
		}
	case ReadWrite:
		if st.exclusive != 0 && st.exclusive != tid {
			return false
		}
		for holder := range st.shared {
			if holder != tid {
				return false
			}
		}
		delete(st.shared, tid)
		st.exclusive = tid
	}

	if lm.held[tid] == nil {
		lm.held[tid] = make(map[page.PageID]struct{})
	}
	lm.held[tid][pid] = struct{}{}
	return true
}

// Release drops whatever lock tid holds on pid.
func (lm *LockManager) Release(tid uint64, pid page.PageID) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.release(tid, pid)
	lm.cond.Broadcast()
}

// ReleaseAll drops every lock held by tid. Called at transaction end.
func (lm *LockManager) ReleaseAll(tid uint64) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for pid := range lm.held[tid] {
		lm.release(tid, pid)
	}
	delete(lm.held, tid)
	lm.cond.Broadcast()
}

func (lm *LockManager) release(tid uint64, pid page.PageID) {
	st, ok := lm.locks[pid]
	if ok {
		delete(st.shared, tid)
		if st.exclusive == tid {
			st.exclusive = 0
		}
		if st.exclusive == 0 && len(st.shared) == 0 {
			delete(lm.locks, pid)
		}
	}
	if pages, ok := lm.held[tid]; ok {
		delete(pages, pid)
	}
}

// HoldsLock reports whether tid holds any lock on pid.
func (lm *LockManager) HoldsLock(tid uint64, pid page.PageID) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	_, ok := lm.held[tid][pid]
	return ok
}

// HoldsExclusive reports whether tid holds the write lock on pid.
func (lm *LockManager) HoldsExclusive(tid uint64, pid page.PageID) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	st, ok := lm.locks[pid]
	return ok && st.exclusive == tid
}
