package bufferpool

import (
	diskmanager "IndexDB/storage_engine/disk_manager"
	lockmanager "IndexDB/storage_engine/lock_manager"
	"IndexDB/storage_engine/page"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ############################################# BUFFER POOL #############################################

// frame is a page private to the transaction that fetched it read-write.
type frame struct {
	page  *page.Page
	owner uint64
	dirty bool
}

// BufferPool hands out permission-checked pages per transaction.
// Committed pages live in a shared ristretto cache; pages a transaction is
// modifying live in private frames until it commits or aborts (NO-STEAL).
type BufferPool struct {
	clean       *ristretto.Cache[uint64, *page.Page] // committed pages, read-only
	frames      map[page.PageID]*frame               // uncommitted, one owner each
	txnFrames   map[uint64]map[page.PageID]struct{}  // txn -> frames it owns
	versions    map[page.PageID]uint64               // bumped on every commit of a page
	capacity    int
	diskManager *diskmanager.DiskManager
	locks       *lockmanager.LockManager
	loads       singleflight.Group
	hits        atomic.Uint64
	misses      atomic.Uint64
	log         *zap.Logger
	mu          sync.Mutex
}

// BufferPoolStats is a point-in-time view of the pool.
type BufferPoolStats struct {
	CachedPages int64 // committed pages admitted to the clean cache
	FramePages  int   // private frames held by running transactions
	DirtyPages  int
	Capacity    int
	Hits        uint64
	Misses      uint64
	HitRate     float64
}
