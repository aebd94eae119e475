package bufferpool

import (
	diskmanager "IndexDB/storage_engine/disk_manager"
	lockmanager "IndexDB/storage_engine/lock_manager"
	"IndexDB/storage_engine/page"
	"strconv"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

/*
This file is the main file of the bufferpool.

Every page access names a transaction and a permission. The lock manager is
consulted first, so the pool is the single place where page-level isolation
is enforced.

Committed pages are cached in ristretto (TinyLFU admission, cost 1 per page,
MaxCost = capacity). A read-write fetch installs a private clone of the page as
a frame owned by the transaction; later fetches by the same transaction see
that frame (read-your-writes). Frames are never evicted: on commit they are
written to disk and published to the clean cache, on abort they are dropped,
which is the whole rollback story for the pages above this layer.

Disk reads on a miss are coalesced per page with singleflight.
*/

// NewBufferPool creates a new buffer pool with the given capacity in pages
func NewBufferPool(capacity int, diskManager *diskmanager.DiskManager, locks *lockmanager.LockManager, log *zap.Logger) (*BufferPool, error) {
	if capacity <= 0 {
		return nil, errors.Errorf("buffer pool capacity must be positive, got %d", capacity)
	}
	if log == nil {
		log = zap.NewNop()
	}
	if locks == nil {
		locks = lockmanager.NewLockManager(0, log)
	}

	clean, err := ristretto.NewCache(&ristretto.Config[uint64, *page.Page]{
		NumCounters:        int64(capacity) * 10,
		MaxCost:            int64(capacity),
		BufferItems:        64,
		IgnoreInternalCost: true,
		Metrics:            true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create page cache")
	}

	return &BufferPool{
		clean:       clean,
		frames:      make(map[page.PageID]*frame),
		txnFrames:   make(map[uint64]map[page.PageID]struct{}),
		versions:    make(map[page.PageID]uint64),
		capacity:    capacity,
		diskManager: diskManager,
		locks:       locks,
		log:         log.Named("bufferpool"),
	}, nil
}

// FetchPage returns the page pid for transaction tid after acquiring the lock
// perm implies. Pages fetched ReadOnly are shared and must not be modified.
// Pages fetched ReadWrite are private to tid until it completes.
func (bp *BufferPool) FetchPage(tid uint64, pid page.PageID, perm lockmanager.Permission) (*page.Page, error) {
	if err := bp.locks.Acquire(tid, pid, perm); err != nil {
		return nil, err
	}

	bp.mu.Lock()
	if f, ok := bp.frames[pid]; ok {
		bp.mu.Unlock()
		bp.hits.Add(1)
		return f.page, nil
	}
	bp.mu.Unlock()

	pg, err := bp.loadCommitted(pid)
	if err != nil {
		return nil, err
	}
	if perm != lockmanager.ReadWrite {
		return pg, nil
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()
	if f, ok := bp.frames[pid]; ok {
		return f.page, nil
	}
	f := &frame{page: pg.Clone(), owner: tid}
	bp.installFrame(tid, pid, f)
	return f.page, nil
}

// loadCommitted returns the committed version of pid from cache or disk.
func (bp *BufferPool) loadCommitted(pid page.PageID) (*page.Page, error) {
	if pg, ok := bp.clean.Get(pid.Key()); ok {
		bp.hits.Add(1)
		return pg, nil
	}

	v, err, _ := bp.loads.Do(strconv.FormatUint(pid.Key(), 10), func() (interface{}, error) {
		bp.misses.Add(1)
		bp.log.Debug("miss, loading from disk", zap.Stringer("page", pid))

		bp.mu.Lock()
		version := bp.versions[pid]
		bp.mu.Unlock()

		if bp.diskManager == nil {
			return nil, errors.New("disk manager not set")
		}
		pg, err := bp.diskManager.ReadPage(pid)
		if err != nil {
			return nil, err
		}

		// a commit that raced with the read has already published a newer copy
		bp.mu.Lock()
		if bp.versions[pid] == version {
			bp.clean.Set(pid.Key(), pg, 1)
		}
		bp.mu.Unlock()
		return pg, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read page %s", pid)
	}
	return v.(*page.Page), nil
}

// installFrame assumes bp.mu is held.
func (bp *BufferPool) installFrame(tid uint64, pid page.PageID, f *frame) {
	bp.frames[pid] = f
	if bp.txnFrames[tid] == nil {
		bp.txnFrames[tid] = make(map[page.PageID]struct{})
	}
	bp.txnFrames[tid][pid] = struct{}{}
	if len(bp.frames) > bp.capacity {
		bp.log.Debug("private frames exceed cache capacity",
			zap.Int("frames", len(bp.frames)), zap.Int("capacity", bp.capacity))
	}
}

// MarkDirty records pg as modified by tid. The page is written back when tid commits.
// A page that was never fetched read-write (a freshly allocated page fetched with
// NoLock, for example) becomes a frame of tid here.
func (bp *BufferPool) MarkDirty(tid uint64, pg *page.Page) error {
	if pg == nil {
		return errors.New("MarkDirty: nil page")
	}
	bp.mu.Lock()
	defer bp.mu.Unlock()

	f, ok := bp.frames[pg.ID]
	if !ok {
		f = &frame{page: pg, owner: tid}
		bp.installFrame(tid, pg.ID, f)
	}
	if f.owner != tid {
		return errors.Errorf("MarkDirty: page %s is owned by txn %d, not %d", pg.ID, f.owner, tid)
	}
	f.page = pg
	f.dirty = true
	return nil
}

// TransactionComplete ends tid. On commit every dirty frame is written to disk
// and becomes the committed version; on abort the frames are dropped. All locks
// held by tid are released in both cases.
func (bp *BufferPool) TransactionComplete(tid uint64, commit bool) error {
	defer bp.locks.ReleaseAll(tid)

	bp.mu.Lock()
	defer bp.mu.Unlock()

	var firstErr error
	written := 0
	for pid := range bp.txnFrames[tid] {
		f := bp.frames[pid]
		delete(bp.frames, pid)
		if f == nil || !commit || !f.dirty {
			continue
		}
		if err := bp.diskManager.WritePage(f.page); err != nil {
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "failed to flush page %s", pid)
			}
			bp.clean.Del(pid.Key())
			continue
		}
		bp.versions[pid]++
		bp.clean.Del(pid.Key())
		bp.clean.Set(pid.Key(), f.page, 1)
		written++
	}
	delete(bp.txnFrames, tid)

	if commit {
		bp.log.Debug("txn committed", zap.Uint64("txn", tid), zap.Int("pages_written", written))
	} else {
		bp.log.Debug("txn aborted", zap.Uint64("txn", tid))
	}
	return firstErr
}

// DiscardPage drops any cached copy of pid, committed or not.
func (bp *BufferPool) DiscardPage(pid page.PageID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if f, ok := bp.frames[pid]; ok {
		delete(bp.txnFrames[f.owner], pid)
		delete(bp.frames, pid)
	}
	bp.versions[pid]++
	bp.clean.Del(pid.Key())
}

// Locks exposes the lock manager shared with this pool.
func (bp *BufferPool) Locks() *lockmanager.LockManager {
	return bp.locks
}

// Close releases the clean cache.
func (bp *BufferPool) Close() {
	bp.clean.Close()
}
