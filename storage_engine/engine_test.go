package storageengine

import (
	"IndexDB/config"
	bplus "IndexDB/storage_engine/access/indexfile_manager/bplustree"
	"IndexDB/types"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.BufferPoolPages = 64
	cfg.LockTimeout = config.Duration(200 * time.Millisecond)
	cfg.Index.MaxKeysPerPage = 4
	return cfg
}

func openEngine(t *testing.T, cfg *config.Config) *StorageEngine {
	t.Helper()
	se, err := NewStorageEngine(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { se.Close() })
	return se
}

func createNumbers(t *testing.T, se *StorageEngine) {
	t.Helper()
	_, err := se.CreateTable(types.NewTableSchema("numbers",
		types.ColumnDef{Name: "key", Type: types.IntType},
		types.ColumnDef{Name: "name", Type: types.StringType},
	))
	require.NoError(t, err)
}

func insertKeys(t *testing.T, se *StorageEngine, keys ...int) {
	t.Helper()
	tx := se.BeginTransaction()
	for _, k := range keys {
		_, err := se.InsertRow(tx, "numbers", types.NewRow(types.IntField(k), types.StringField("row")))
		require.NoError(t, err)
	}
	require.NoError(t, se.CommitTransaction(tx))
}

func collectKeys(t *testing.T, it types.RowIterator) []int {
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
		out = append(out, int(row.Values[0].(types.IntField)))
	}
}

func indexKeys(t *testing.T, se *StorageEngine) []int {
	t.Helper()
	tx := se.BeginTransaction()
	defer func() { require.NoError(t, se.CommitTransaction(tx)) }()

	it, err := se.IndexScan(tx, "numbers", "key")
	require.NoError(t, err)
	require.NoError(t, it.Open())
	defer it.Close()
	return collectKeys(t, it)
}

func TestInsertThenIndexScan(t *testing.T) {
	se := openEngine(t, testConfig(t))
	createNumbers(t, se)
	insertKeys(t, se, 5, 1, 3)
	_, err := se.CreateIndex("numbers", "key")
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3, 5}, indexKeys(t, se))

	tx := se.BeginTransaction()
	it, err := se.IndexScan(tx, "numbers", "KEY")
	require.NoError(t, err)
	require.NoError(t, it.Seek(types.IntField(3)))
	assert.Equal(t, []int{3, 5}, collectKeys(t, it))
	it.Close()
	require.NoError(t, se.CommitTransaction(tx))
}

func TestInsertMaintainsOpenIndex(t *testing.T) {
	se := openEngine(t, testConfig(t))
	createNumbers(t, se)
	idx, err := se.CreateIndex("numbers", "key")
	require.NoError(t, err)
	assert.Equal(t, bplus.NotBuilt, idx.State())

	keys := []int{40, 7, 22, 7, 91, 3, 58, 14, 66, 1, 30, 85}
	insertKeys(t, se, keys...)
	assert.Equal(t, bplus.Built, idx.State())

	got := indexKeys(t, se)
	assert.Equal(t, []int{1, 3, 7, 7, 14, 22, 30, 40, 58, 66, 85, 91}, got)

	tx := se.BeginTransaction()
	n, err := idx.Verify(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, len(keys), n)
	require.NoError(t, se.CommitTransaction(tx))
}

func TestHeapScanKeepsInsertOrder(t *testing.T) {
	se := openEngine(t, testConfig(t))
	createNumbers(t, se)
	insertKeys(t, se, 9, 2, 6)

	tx := se.BeginTransaction()
	it, err := se.Scan(tx, "numbers")
	require.NoError(t, err)
	require.NoError(t, it.Open())
	assert.Equal(t, []int{9, 2, 6}, collectKeys(t, it))
	it.Close()
	require.NoError(t, se.CommitTransaction(tx))
}

func TestAbortedBuildIsRebuilt(t *testing.T) {
	se := openEngine(t, testConfig(t))
	createNumbers(t, se)
	insertKeys(t, se, 4, 2)

	idx, err := se.CreateIndex("numbers", "key")
	require.NoError(t, err)

	tx := se.BeginTransaction()
	_, err = se.InsertRow(tx, "numbers", types.NewRow(types.IntField(8), types.StringField("gone")))
	require.NoError(t, err)
	assert.Equal(t, bplus.Built, idx.State())
	require.NoError(t, se.AbortTransaction(tx))
	assert.Equal(t, bplus.NotBuilt, idx.State())

	assert.Equal(t, []int{2, 4}, indexKeys(t, se))
}

func TestAbortAfterCommittedBuild(t *testing.T) {
	se := openEngine(t, testConfig(t))
	createNumbers(t, se)
	_, err := se.CreateIndex("numbers", "key")
	require.NoError(t, err)
	insertKeys(t, se, 10, 20, 30, 40, 50)

	tx := se.BeginTransaction()
	for _, k := range []int{15, 25, 35} {
		_, err := se.InsertRow(tx, "numbers", types.NewRow(types.IntField(k), types.StringField("gone")))
		require.NoError(t, err)
	}
	require.NoError(t, se.AbortTransaction(tx))

	assert.Equal(t, []int{10, 20, 30, 40, 50}, indexKeys(t, se))
}

func TestInsertRejectsBadRow(t *testing.T) {
	se := openEngine(t, testConfig(t))
	createNumbers(t, se)

	tx := se.BeginTransaction()
	_, err := se.InsertRow(tx, "numbers", types.NewRow(types.StringField("x"), types.StringField("y")))
	assert.True(t, errors.Is(err, types.ErrTypeMismatch))

	_, err = se.InsertRow(tx, "missing", types.NewRow(types.IntField(1)))
	assert.Error(t, err)

	_, err = se.InsertRow(nil, "numbers", types.NewRow(types.IntField(1), types.StringField("y")))
	assert.Error(t, err)
	require.NoError(t, se.AbortTransaction(tx))
}

func TestReopenRebuildsIndex(t *testing.T) {
	cfg := testConfig(t)
	se, err := NewStorageEngine(cfg, nil)
	require.NoError(t, err)
	createNumbers(t, se)
	_, err = se.CreateIndex("numbers", "key")
	require.NoError(t, err)
	insertKeys(t, se, 12, 6, 18, 3)
	require.NoError(t, se.Close())
	require.NoError(t, se.Close(), "close is idempotent")

	reopened := openEngine(t, cfg)
	indexes := reopened.IndexManager.IndexesOn("numbers")
	require.Len(t, indexes, 1, "declared indexes are reopened")
	assert.Equal(t, bplus.NotBuilt, indexes[0].State())

	insertKeys(t, reopened, 9)
	assert.Equal(t, bplus.Built, indexes[0].State())
	assert.Equal(t, []int{3, 6, 9, 12, 18}, indexKeys(t, reopened))
}

func TestDropIndex(t *testing.T) {
	cfg := testConfig(t)
	se := openEngine(t, cfg)
	createNumbers(t, se)
	idx, err := se.CreateIndex("numbers", "key")
	require.NoError(t, err)
	insertKeys(t, se, 1, 2)
	path := idx.Path()
	require.FileExists(t, path)

	require.NoError(t, se.DropIndex("numbers", "KEY"))
	assert.NoFileExists(t, path)
	assert.Empty(t, se.IndexManager.IndexesOn("numbers"))
	assert.Empty(t, se.Catalog.Indexes())

	insertKeys(t, se, 3)
	assert.Error(t, se.DropIndex("numbers", "missing"))
}

func TestIndexScanNeedsDeclaredIndex(t *testing.T) {
	se := openEngine(t, testConfig(t))
	createNumbers(t, se)
	insertKeys(t, se, 2, 1)

	tx := se.BeginTransaction()
	_, err := se.IndexScan(tx, "numbers", "key")
	assert.True(t, errors.Is(err, types.ErrIndexNotFound))
	require.NoError(t, se.CommitTransaction(tx))

	assert.Empty(t, se.Catalog.Indexes(), "a failed scan declares nothing")
	assert.Empty(t, se.IndexManager.IndexesOn("numbers"))

	_, err = se.CreateIndex("numbers", "key")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, indexKeys(t, se))
}

func TestNewStorageEngineValidatesConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.BufferPoolPages = 0
	_, err := NewStorageEngine(cfg, nil)
	assert.Error(t, err)
}
