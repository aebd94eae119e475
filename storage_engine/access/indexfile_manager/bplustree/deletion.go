package bplus

import (
	"IndexDB/storage_engine/page"
	"IndexDB/types"

	"github.com/pkg/errors"
)

// DeleteRow is not supported: pages never merge or get reclaimed.
// It fails before touching any page.
func (f *IndexedFile) DeleteRow(tid uint64, row *types.Row) ([]page.PageID, error) {
	return nil, errors.Wrap(types.ErrUnsupportedOperation, "delete from a B+ tree index")
}
