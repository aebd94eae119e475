package bplus

import (
	heapfile "IndexDB/storage_engine/access/heapfile_manager"
	"IndexDB/storage_engine/bufferpool"
	diskmanager "IndexDB/storage_engine/disk_manager"
	lockmanager "IndexDB/storage_engine/lock_manager"
	"IndexDB/types"
	"math/rand"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type fixture struct {
	t    *testing.T
	dir  string
	dm   *diskmanager.DiskManager
	bp   *bufferpool.BufferPool
	heap *heapfile.HeapFile
	tids atomic.Uint64
}

// newFixture stores one (key, seq) row per key in a committed heap table.
func newFixture(t *testing.T, keys []int) *fixture {
	t.Helper()
	fx := &fixture{t: t, dir: t.TempDir()}
	fx.dm = diskmanager.NewDiskManager(nil)
	t.Cleanup(func() { fx.dm.CloseAll() })

	bp, err := bufferpool.NewBufferPool(256, fx.dm, lockmanager.NewLockManager(200*time.Millisecond, nil), nil)
	require.NoError(t, err)
	t.Cleanup(bp.Close)
	fx.bp = bp

	hfm, err := heapfile.NewHeapFileManager(fx.dir, fx.dm, bp, nil)
	require.NoError(t, err)
	fx.heap, err = hfm.CreateHeapfile(types.NewTableSchema("numbers",
		types.ColumnDef{Name: "key", Type: types.IntType},
		types.ColumnDef{Name: "seq", Type: types.IntType},
	))
	require.NoError(t, err)

	tid := fx.begin()
	for i, k := range keys {
		_, err := fx.heap.InsertRow(tid, types.NewRow(types.IntField(k), types.IntField(i)))
		require.NoError(t, err)
	}
	fx.commit(tid)
	return fx
}

func (fx *fixture) begin() uint64 {
	return fx.tids.Add(1)
}

func (fx *fixture) commit(tid uint64) {
	require.NoError(fx.t, fx.bp.TransactionComplete(tid, true))
}

func (fx *fixture) open(capacity int) *IndexedFile {
	return fx.openOver(fx.heap, capacity)
}

func (fx *fixture) openOver(table BaseTable, capacity int) *IndexedFile {
	fx.t.Helper()
	f, err := OpenIndexedFile(IndexConfig{
		Path:           filepath.Join(fx.dir, "numbers_key.idx"),
		Table:          table,
		Column:         0,
		KeyType:        types.IntType,
		MaxKeysPerPage: capacity,
	}, fx.bp, fx.dm, nil)
	require.NoError(fx.t, err)
	return f
}

// drain returns the key column of every remaining row.
func drain(t *testing.T, it *Iterator) []int {
	t.Helper()
	var out []int
	for {
		ok, err := it.HasNext()
		require.NoError(t, err)
		if !ok {
			return out
		}
		row, err := it.Next()
		require.NoError(t, err)
		out = append(out, int(row.Field(0).(types.IntField)))
	}
}

func sortedCopy(keys []int) []int {
	out := append([]int(nil), keys...)
	sort.Ints(out)
	return out
}

func atLeast(sorted []int, k int) []int {
	i := sort.SearchInts(sorted, k)
	return sorted[i:]
}

func TestThreeRowScenario(t *testing.T) {
	fx := newFixture(t, []int{5, 1, 3})
	f := fx.open(0)
	tid := fx.begin()

	pages, err := f.EnsureBuilt(tid)
	require.NoError(t, err)
	assert.NotEmpty(t, pages)

	it := f.Iterator(tid)
	require.NoError(t, it.Open())
	assert.Equal(t, []int{1, 3, 5}, drain(t, it))

	require.NoError(t, it.Seek(types.IntField(3)))
	assert.Equal(t, []int{3, 5}, drain(t, it))
	it.Close()
}

func TestFullScanTenThousandRows(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	keys := make([]int, 10000)
	for i := range keys {
		keys[i] = rng.Intn(1 << 20)
	}
	fx := newFixture(t, keys)
	f := fx.open(0)
	tid := fx.begin()

	it := f.Iterator(tid)
	require.NoError(t, it.Open())

	seen := make(map[int]struct{}, len(keys))
	var got []int
	for {
		ok, err := it.HasNext()
		require.NoError(t, err)
		if !ok {
			break
		}
		row, err := it.Next()
		require.NoError(t, err)
		seq := int(row.Field(1).(types.IntField))
		_, dup := seen[seq]
		require.False(t, dup, "row %d returned twice", seq)
		seen[seq] = struct{}{}
		got = append(got, int(row.Field(0).(types.IntField)))
	}
	assert.Len(t, got, len(keys))
	assert.Equal(t, sortedCopy(keys), got)

	n, err := f.Verify(tid)
	require.NoError(t, err)
	assert.Equal(t, len(keys), n)
	assert.Greater(t, f.NumPages(), 1, "10000 keys must split the root")
}

func TestSmallCapacityKeepsInvariants(t *testing.T) {
	for _, capacity := range []int{3, 4, 5} {
		rng := rand.New(rand.NewSource(int64(capacity)))
		keys := make([]int, 1500)
		for i := range keys {
			keys[i] = rng.Intn(300) // plenty of duplicates
		}
		fx := newFixture(t, keys)
		f := fx.open(capacity)
		tid := fx.begin()

		_, err := f.EnsureBuilt(tid)
		require.NoError(t, err)

		n, err := f.Verify(tid)
		require.NoError(t, err, "capacity %d", capacity)
		assert.Equal(t, len(keys), n)

		it := f.Iterator(tid)
		require.NoError(t, it.Open())
		assert.Equal(t, sortedCopy(keys), drain(t, it))

		// committed pages give the same answer to another transaction
		fx.commit(tid)
		f.TransactionCommitted(tid)
		reader := fx.begin()
		n, err = f.Verify(reader)
		require.NoError(t, err)
		assert.Equal(t, len(keys), n)
		fx.commit(reader)
	}
}

func TestRootStaysAtPageZero(t *testing.T) {
	keys := make([]int, 200)
	for i := range keys {
		keys[i] = len(keys) - i
	}
	fx := newFixture(t, keys)
	f := fx.open(3)
	tid := fx.begin()
	_, err := f.EnsureBuilt(tid)
	require.NoError(t, err)

	_, root, err := f.fetchNode(tid, RootPageNumber, lockmanager.ReadOnly)
	require.NoError(t, err)
	assert.True(t, root.IsRoot())
	assert.False(t, root.IsLeaf())
	assert.Equal(t, NoPage, root.PrevID())
	assert.Equal(t, NoPage, root.NextID())

	leafID, err := f.FindFirstLeaf(tid)
	require.NoError(t, err)
	_, first, err := f.fetchNode(tid, leafID.PageNumber, lockmanager.ReadOnly)
	require.NoError(t, err)
	assert.Equal(t, NoPage, first.PrevID())
	assert.Equal(t, types.IntField(1), first.Key(0))
}

func TestSeekMatchesSortedSuffix(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	keys := make([]int, 600)
	for i := range keys {
		keys[i] = rng.Intn(50)
	}
	sorted := sortedCopy(keys)

	fx := newFixture(t, keys)
	f := fx.open(4)
	tid := fx.begin()
	it := f.Iterator(tid)
	require.NoError(t, it.Open())

	for _, k := range []int{-1, 0, 1, 17, 25, 49, 50, 1000} {
		require.NoError(t, it.Seek(types.IntField(k)))
		want := atLeast(sorted, k)
		got := drain(t, it)
		if len(want) == 0 {
			assert.Empty(t, got, "seek(%d)", k)
			continue
		}
		assert.Equal(t, want, got, "seek(%d)", k)
	}
}

func TestSeekWithAllKeysEqual(t *testing.T) {
	keys := make([]int, 40)
	for i := range keys {
		keys[i] = 9
	}
	fx := newFixture(t, keys)
	f := fx.open(3)
	tid := fx.begin()
	it := f.Iterator(tid)
	require.NoError(t, it.Open())

	require.NoError(t, it.Seek(types.IntField(9)))
	assert.Len(t, drain(t, it), len(keys))

	require.NoError(t, it.Seek(types.IntField(8)))
	assert.Len(t, drain(t, it), len(keys))

	require.NoError(t, it.Seek(types.IntField(10)))
	assert.Empty(t, drain(t, it))
}

func TestEnsureBuiltIsIdempotent(t *testing.T) {
	fx := newFixture(t, []int{4, 2, 8, 6})
	f := fx.open(3)
	tid := fx.begin()

	assert.Equal(t, NotBuilt, f.State())
	pages, err := f.EnsureBuilt(tid)
	require.NoError(t, err)
	assert.NotEmpty(t, pages)
	assert.Equal(t, Built, f.State())
	allocated := f.NumPages()

	pages, err = f.EnsureBuilt(tid)
	require.NoError(t, err)
	assert.Empty(t, pages)
	assert.Equal(t, allocated, f.NumPages())

	n, err := f.Verify(tid)
	require.NoError(t, err)
	assert.Equal(t, 4, n, "rows must be indexed once")
}

func TestConcurrentEnsureBuiltBuildsOnce(t *testing.T) {
	fx := newFixture(t, []int{3, 1, 2})
	f := fx.open(0)

	var builds atomic.Int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		tid := fx.begin()
		g.Go(func() error {
			pages, err := f.EnsureBuilt(tid)
			if len(pages) > 0 {
				builds.Add(1)
			}
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), builds.Load())
	assert.Equal(t, 1, f.NumPages())
}

func TestConcurrentReadersAfterCommit(t *testing.T) {
	keys := make([]int, 2000)
	for i := range keys {
		keys[i] = (i * 7919) % 2000
	}
	fx := newFixture(t, keys)
	f := fx.open(8)
	tid := fx.begin()
	_, err := f.EnsureBuilt(tid)
	require.NoError(t, err)
	fx.commit(tid)
	f.TransactionCommitted(tid)

	var g errgroup.Group
	for i := 0; i < 6; i++ {
		reader := fx.begin()
		g.Go(func() error {
			defer fx.bp.TransactionComplete(reader, true)
			it := f.Iterator(reader)
			if err := it.Open(); err != nil {
				return err
			}
			prev, count := -1, 0
			for {
				ok, err := it.HasNext()
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				row, err := it.Next()
				if err != nil {
					return err
				}
				k := int(row.Field(0).(types.IntField))
				if k < prev {
					return errors.Errorf("key %d after %d", k, prev)
				}
				prev = k
				count++
			}
			if count != len(keys) {
				return errors.Errorf("scanned %d rows, want %d", count, len(keys))
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestAddRow(t *testing.T) {
	fx := newFixture(t, []int{10, 20, 30})
	f := fx.open(3)
	tid := fx.begin()

	_, err := f.EnsureBuilt(tid)
	require.NoError(t, err)

	for _, k := range []int{25, 5, 20, 35, 15} {
		row := types.NewRow(types.IntField(k), types.IntField(-1))
		_, err := fx.heap.InsertRow(tid, row)
		require.NoError(t, err)
		pages, err := f.AddRow(tid, row)
		require.NoError(t, err)
		assert.NotEmpty(t, pages)
	}

	it := f.Iterator(tid)
	require.NoError(t, it.Open())
	assert.Equal(t, []int{5, 10, 15, 20, 20, 25, 30, 35}, drain(t, it))

	n, err := f.Verify(tid)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestAddRowBuildsOnFirstUse(t *testing.T) {
	fx := newFixture(t, []int{2, 4})
	f := fx.open(3)
	tid := fx.begin()

	row := types.NewRow(types.IntField(3), types.IntField(-1))
	_, err := fx.heap.InsertRow(tid, row)
	require.NoError(t, err)

	pages, err := f.AddRow(tid, row)
	require.NoError(t, err)
	assert.NotEmpty(t, pages)
	assert.Equal(t, Built, f.State())

	// the build's scan saw the new row, AddRow must not add it again
	n, err := f.Verify(tid)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestAddRowRejectsUnstoredRows(t *testing.T) {
	fx := newFixture(t, []int{1})
	f := fx.open(0)
	tid := fx.begin()

	_, err := f.AddRow(tid, types.NewRow(types.IntField(1), types.IntField(1)))
	assert.True(t, errors.Is(err, types.ErrRowNotStored))

	foreign := types.NewRow(types.IntField(1), types.IntField(1))
	foreign.Pointer = &types.RowPointer{FileID: fx.heap.FileID() + 1}
	_, err = f.AddRow(tid, foreign)
	assert.True(t, errors.Is(err, types.ErrRowNotStored))

	assert.Equal(t, NotBuilt, f.State(), "rejected rows must not trigger a build")
}

func TestDeleteRowIsUnsupported(t *testing.T) {
	fx := newFixture(t, []int{1, 2, 3})
	f := fx.open(0)
	tid := fx.begin()
	_, err := f.EnsureBuilt(tid)
	require.NoError(t, err)
	before := fx.bp.DirtyPages(tid)

	it := f.Iterator(tid)
	require.NoError(t, it.Open())
	row, err := it.Next()
	require.NoError(t, err)

	pages, err := f.DeleteRow(tid, row)
	assert.True(t, errors.Is(err, types.ErrUnsupportedOperation))
	assert.Empty(t, pages)
	assert.Equal(t, before, fx.bp.DirtyPages(tid))

	require.NoError(t, it.Rewind())
	assert.Equal(t, []int{1, 2, 3}, drain(t, it))
}

func TestIteratorLifecycle(t *testing.T) {
	fx := newFixture(t, []int{2, 1})
	f := fx.open(0)
	tid := fx.begin()
	it := f.Iterator(tid)

	ok, err := it.HasNext()
	require.NoError(t, err)
	assert.False(t, ok, "closed iterator has nothing")
	_, err = it.Next()
	assert.True(t, errors.Is(err, types.ErrNoSuchElement))

	require.NoError(t, it.Open())
	assert.Equal(t, []int{1, 2}, drain(t, it))
	_, err = it.Next()
	assert.True(t, errors.Is(err, types.ErrNoSuchElement))

	require.NoError(t, it.Rewind())
	assert.Equal(t, []int{1, 2}, drain(t, it))

	it.Close()
	ok, err = it.HasNext()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmptyTable(t *testing.T) {
	fx := newFixture(t, nil)
	f := fx.open(0)
	tid := fx.begin()

	it := f.Iterator(tid)
	require.NoError(t, it.Open())
	assert.Empty(t, drain(t, it))
	assert.Equal(t, 1, f.NumPages())
}

func TestSearchBeforeBuild(t *testing.T) {
	fx := newFixture(t, []int{1})
	f := fx.open(0)
	tid := fx.begin()

	_, err := f.Search(tid, types.IntField(1))
	assert.True(t, errors.Is(err, types.ErrIndexNotBuilt))
	_, err = f.FindFirstLeaf(tid)
	assert.True(t, errors.Is(err, types.ErrIndexNotBuilt))

	_, err = f.EnsureBuilt(tid)
	require.NoError(t, err)
	pid, err := f.Search(tid, types.IntField(1))
	require.NoError(t, err)
	assert.Equal(t, RootPageNumber, pid.PageNumber)
	assert.Equal(t, f.FileID(), pid.TableID)

	_, err = f.Search(tid, types.StringField("1"))
	assert.True(t, errors.Is(err, types.ErrTypeMismatch))
}

// failingTable is a base table whose scan breaks after a number of rows.
type failingTable struct {
	*heapfile.HeapFile
	failAfter int
}

func (ft *failingTable) Scan(tid uint64) types.RowIterator {
	return &failingScan{RowIterator: ft.HeapFile.Scan(tid), left: ft.failAfter}
}

type failingScan struct {
	types.RowIterator
	left int
}

func (fs *failingScan) Next() (*types.Row, error) {
	if fs.left == 0 {
		return nil, errors.Wrap(types.ErrIO, "disk went away")
	}
	fs.left--
	return fs.RowIterator.Next()
}

func TestFailedBuildResets(t *testing.T) {
	keys := make([]int, 50)
	for i := range keys {
		keys[i] = i
	}
	fx := newFixture(t, keys)
	table := &failingTable{HeapFile: fx.heap, failAfter: 30}
	f := fx.openOver(table, 3)

	tid := fx.begin()
	_, err := f.EnsureBuilt(tid)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrIO))
	assert.Equal(t, NotBuilt, f.State())
	assert.Equal(t, 0, f.NumPages())
	require.NoError(t, fx.bp.TransactionComplete(tid, false))

	table.failAfter = -1
	tid = fx.begin()
	_, err = f.EnsureBuilt(tid)
	require.NoError(t, err)
	n, err := f.Verify(tid)
	require.NoError(t, err)
	assert.Equal(t, len(keys), n)
}

func TestAbortedBuildIsForgotten(t *testing.T) {
	fx := newFixture(t, []int{3, 2, 1})
	f := fx.open(3)

	tid := fx.begin()
	_, err := f.EnsureBuilt(tid)
	require.NoError(t, err)
	require.NoError(t, fx.bp.TransactionComplete(tid, false))
	f.TransactionAborted(tid)
	assert.Equal(t, NotBuilt, f.State())

	tid = fx.begin()
	it := f.Iterator(tid)
	require.NoError(t, it.Open())
	assert.Equal(t, []int{1, 2, 3}, drain(t, it))

	// another transaction's abort leaves the build alone
	f.TransactionAborted(tid + 100)
	assert.Equal(t, Built, f.State())
}

func TestOpenTruncatesAndValidates(t *testing.T) {
	fx := newFixture(t, []int{1, 2, 3, 4, 5})
	f := fx.open(3)
	tid := fx.begin()
	_, err := f.EnsureBuilt(tid)
	require.NoError(t, err)
	fx.commit(tid)
	require.NoError(t, f.Close())

	f = fx.open(3)
	assert.Equal(t, NotBuilt, f.State())
	pages, err := fx.dm.NumPages(f.FileID())
	require.NoError(t, err)
	assert.Zero(t, pages)

	_, err = OpenIndexedFile(IndexConfig{Path: filepath.Join(fx.dir, "x.idx"), Table: fx.heap, KeyType: types.IntType, MaxKeysPerPage: 2}, fx.bp, fx.dm, nil)
	assert.Error(t, err)
	_, err = OpenIndexedFile(IndexConfig{Path: filepath.Join(fx.dir, "x.idx"), Table: fx.heap, KeyType: types.IntType, MaxKeysPerPage: 509}, fx.bp, fx.dm, nil)
	assert.Error(t, err)
	_, err = OpenIndexedFile(IndexConfig{Path: filepath.Join(fx.dir, "x.idx"), KeyType: types.IntType}, fx.bp, fx.dm, nil)
	assert.Error(t, err)
}
