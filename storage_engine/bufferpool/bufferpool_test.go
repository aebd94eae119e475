package bufferpool

import (
	diskmanager "IndexDB/storage_engine/disk_manager"
	lockmanager "IndexDB/storage_engine/lock_manager"
	"IndexDB/storage_engine/page"
	"IndexDB/types"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestPool(t *testing.T, pages int) (*BufferPool, *diskmanager.DiskManager, uint32) {
	t.Helper()
	dm := diskmanager.NewDiskManager(nil)
	t.Cleanup(func() { dm.CloseAll() })

	fileID, err := dm.OpenFile(filepath.Join(t.TempDir(), "pool.dat"))
	require.NoError(t, err)
	for i := 0; i < pages; i++ {
		pg := page.NewPage(page.NewPageID(fileID, i), types.PageTypeHeapData)
		pg.Data[1] = byte(i)
		require.NoError(t, dm.WritePage(pg))
	}

	bp, err := NewBufferPool(8, dm, lockmanager.NewLockManager(50*time.Millisecond, nil), nil)
	require.NoError(t, err)
	t.Cleanup(bp.Close)
	return bp, dm, fileID
}

func TestFetchPageReadsFromDisk(t *testing.T) {
	bp, _, fileID := newTestPool(t, 3)

	pg, err := bp.FetchPage(1, page.NewPageID(fileID, 2), lockmanager.ReadOnly)
	require.NoError(t, err)
	assert.Equal(t, byte(2), pg.Data[1])
	assert.Equal(t, types.PageTypeHeapData, pg.PageType)
}

func TestCommitWritesBack(t *testing.T) {
	bp, dm, fileID := newTestPool(t, 2)
	pid := page.NewPageID(fileID, 1)

	pg, err := bp.FetchPage(1, pid, lockmanager.ReadWrite)
	require.NoError(t, err)
	pg.Data[50] = 0x7F
	require.NoError(t, bp.MarkDirty(1, pg))
	assert.Equal(t, []page.PageID{pid}, bp.DirtyPages(1))

	// not on disk before commit
	onDisk, err := dm.ReadPage(pid)
	require.NoError(t, err)
	assert.Equal(t, byte(0), onDisk.Data[50])

	require.NoError(t, bp.TransactionComplete(1, true))

	onDisk, err = dm.ReadPage(pid)
	require.NoError(t, err)
	assert.Equal(t, byte(0x7F), onDisk.Data[50])

	again, err := bp.FetchPage(2, pid, lockmanager.ReadOnly)
	require.NoError(t, err)
	assert.Equal(t, byte(0x7F), again.Data[50])
	assert.Empty(t, bp.DirtyPages(1))
}

func TestAbortDiscardsChanges(t *testing.T) {
	bp, dm, fileID := newTestPool(t, 1)
	pid := page.NewPageID(fileID, 0)

	// warm the clean cache first so abort has a committed copy to fall back to
	_, err := bp.FetchPage(1, pid, lockmanager.ReadOnly)
	require.NoError(t, err)

	pg, err := bp.FetchPage(1, pid, lockmanager.ReadWrite)
	require.NoError(t, err)
	pg.Data[9] = 0xEE
	require.NoError(t, bp.MarkDirty(1, pg))
	require.NoError(t, bp.TransactionComplete(1, false))

	after, err := bp.FetchPage(2, pid, lockmanager.ReadOnly)
	require.NoError(t, err)
	assert.Equal(t, byte(0), after.Data[9])

	onDisk, err := dm.ReadPage(pid)
	require.NoError(t, err)
	assert.Equal(t, byte(0), onDisk.Data[9])
}

func TestReadYourWrites(t *testing.T) {
	bp, _, fileID := newTestPool(t, 1)
	pid := page.NewPageID(fileID, 0)

	pg, err := bp.FetchPage(1, pid, lockmanager.ReadWrite)
	require.NoError(t, err)
	pg.Data[20] = 1
	require.NoError(t, bp.MarkDirty(1, pg))

	same, err := bp.FetchPage(1, pid, lockmanager.ReadOnly)
	require.NoError(t, err)
	assert.Equal(t, byte(1), same.Data[20])
}

func TestConflictingWriterAborts(t *testing.T) {
	bp, _, fileID := newTestPool(t, 1)
	pid := page.NewPageID(fileID, 0)

	_, err := bp.FetchPage(1, pid, lockmanager.ReadWrite)
	require.NoError(t, err)

	_, err = bp.FetchPage(2, pid, lockmanager.ReadOnly)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrTransactionAborted))

	require.NoError(t, bp.TransactionComplete(1, true))
	_, err = bp.FetchPage(2, pid, lockmanager.ReadOnly)
	require.NoError(t, err)
}

func TestMissingPageIsRecoverableError(t *testing.T) {
	bp, _, fileID := newTestPool(t, 1)

	_, err := bp.FetchPage(1, page.NewPageID(fileID, 10), lockmanager.ReadOnly)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrIO))

	// the pool keeps working
	_, err = bp.FetchPage(1, page.NewPageID(fileID, 0), lockmanager.ReadOnly)
	require.NoError(t, err)
}

func TestConcurrentReaders(t *testing.T) {
	bp, _, fileID := newTestPool(t, 4)

	var g errgroup.Group
	for tid := uint64(1); tid <= 8; tid++ {
		tid := tid
		g.Go(func() error {
			for i := 0; i < 4; i++ {
				pg, err := bp.FetchPage(tid, page.NewPageID(fileID, i), lockmanager.ReadOnly)
				if err != nil {
					return err
				}
				if pg.Data[1] != byte(i) {
					return errors.Errorf("page %d has marker %d", i, pg.Data[1])
				}
			}
			return bp.TransactionComplete(tid, true)
		})
	}
	require.NoError(t, g.Wait())

	stats := bp.GetStats()
	assert.Equal(t, 0, stats.FramePages)
	assert.NotZero(t, stats.Misses)
	assert.LessOrEqual(t, stats.Hits+stats.Misses, uint64(32))
}

func TestMarkDirtyRejectsForeignFrame(t *testing.T) {
	bp, _, fileID := newTestPool(t, 1)
	pid := page.NewPageID(fileID, 0)

	pg, err := bp.FetchPage(1, pid, lockmanager.ReadWrite)
	require.NoError(t, err)
	assert.Error(t, bp.MarkDirty(2, pg))
}
