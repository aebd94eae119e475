// Structure of the B+ Tree index
/*
IndexedFile
 ├── page 0: root (leaf while the tree fits in one page, internal afterwards)
 │      └── Internal Nodes (keys + child page numbers)
 │             └── Leaf Nodes (keys + tuple references, prev/next page numbers)


- keys: sorted ascending order, duplicates allowed
- internal nodes: len(pointers) == len(keys)+1
- leaf nodes: len(pointers) == len(keys), each pointer encodes (heap page, slot)
- leaf nodes doubly linked with prev/next for range scans
- all leaf nodes at same depth
- the root never moves from page 0; a root split rewrites it in place
- a key equal to a separator routes to the left child

*/
package bplus

import (
	"IndexDB/storage_engine/bufferpool"
	diskmanager "IndexDB/storage_engine/disk_manager"
	"IndexDB/storage_engine/page"
	"IndexDB/types"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const (
	RootPageNumber = 0
	NoPage         = -1 // sibling / parent link meaning "none"

	MinCapacity = 3
)

// IndexedPage is the in-memory form of one B+ tree node. Nodes reference each
// other only by page number; a node is always re-read through the buffer pool.
type IndexedPage struct {
	id       page.PageID
	isLeaf   bool
	isRoot   bool
	parentID int
	prevID   int // leaf only
	nextID   int // leaf only
	keys     []types.Field
	pointers []int // child page numbers (internal) or tuple references (leaf)

	keyType  types.Type
	capacity int
}

// half is one side of a split node.
type half struct {
	keys     []types.Field
	pointers []int
}

// BaseTable is the row store an index is built over.
type BaseTable interface {
	FileID() uint32
	RowsPerPage() int
	Locate(tid uint64, pageNo, slot int) (*types.Row, error)
	Scan(tid uint64) types.RowIterator
}

type BuildState int32

const (
	NotBuilt BuildState = iota
	Building
	Built
)

func (s BuildState) String() string {
	switch s {
	case NotBuilt:
		return "not-built"
	case Building:
		return "building"
	case Built:
		return "built"
	default:
		return "unknown"
	}
}

// IndexConfig describes one secondary index.
type IndexConfig struct {
	Path           string     // backing file, truncated on open
	Table          BaseTable  // rows being indexed
	Column         int        // indexed column of Table
	KeyType        types.Type // type of that column
	MaxKeysPerPage int        // 0 derives the capacity from the page size
}

// IndexedFile is a B+ tree secondary index over one column of a base table.
type IndexedFile struct {
	fileID      uint32 // DiskManager file ID, derived from the path
	path        string
	table       BaseTable
	column      int
	keyType     types.Type
	capacity    int
	bufferPool  *bufferpool.BufferPool
	diskManager *diskmanager.DiskManager
	log         *zap.Logger

	allocMu   sync.Mutex // allocation + blank page write are one unit
	allocated []int

	buildMu sync.Mutex // held for the whole of a build
	state   atomic.Int32
	builtBy atomic.Uint64
}
