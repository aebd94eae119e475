package page

import (
	"fmt"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// PageID identifies a page by the table (file) it belongs to and its page
// number inside that file. It is a plain value: equality and hashing are
// structural, so it can be used directly as a map key.
type PageID struct {
	TableID    uint32
	PageNumber int
}

func NewPageID(tableID uint32, pageNumber int) PageID {
	return PageID{TableID: tableID, PageNumber: pageNumber}
}

// Key packs the id into a single integer for caches that need scalar keys.
// Page numbers are local to a file and fit in 32 bits.
func (id PageID) Key() uint64 {
	return uint64(id.TableID)<<32 | uint64(uint32(id.PageNumber))
}

func (id PageID) String() string {
	return fmt.Sprintf("%d:%d", id.TableID, id.PageNumber)
}

// TableIDFromPath derives a table id from the absolute location of its file.
// The same path yields the same id on every run regardless of open order.
func TableIDFromPath(path string) uint32 {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	h := xxhash.Sum64String(filepath.Clean(abs))
	id := uint32(h) ^ uint32(h>>32)
	if id == 0 {
		id = 1 // 0 is never a valid table id
	}
	return id
}
