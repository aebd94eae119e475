package bplus

import (
	lockmanager "IndexDB/storage_engine/lock_manager"
	"IndexDB/storage_engine/page"
	"IndexDB/types"

	"github.com/pkg/errors"
)

// insert adds (key, ptr) to the tree. The leaf is allowed to go one key over
// capacity and is split right away when it does.
func (f *IndexedFile) insert(tid uint64, key types.Field, ptr int, ws *workingSet) error {
	leafID, err := f.search(tid, key)
	if err != nil {
		return errors.Wrap(err, "insert: failed to find leaf")
	}

	pg, leaf, err := f.fetchNode(tid, leafID.PageNumber, lockmanager.ReadWrite)
	if err != nil {
		return err
	}
	if err := leaf.Insert(key, ptr); err != nil {
		return err
	}

	if !leaf.IsOverflowing() {
		return f.writeNode(tid, pg, leaf, ws)
	}
	return f.split(tid, pg, leaf, ws)
}

// AddRow indexes a row that is already stored in the base table; storing it
// there is the caller's job. It returns the pages this call dirtied. When the
// call has to build the index first, the build's scan already covers the row.
func (f *IndexedFile) AddRow(tid uint64, row *types.Row) ([]page.PageID, error) {
	key, ptr, err := f.entryFor(row)
	if err != nil {
		return nil, err
	}

	pages, built, err := f.ensureBuilt(tid)
	if err != nil {
		return nil, err
	}
	if built {
		return pages, nil
	}

	ws := newWorkingSet()
	if err := f.insert(tid, key, ptr, ws); err != nil {
		return nil, errors.Wrapf(err, "failed to index row %s", row.Pointer)
	}
	return ws.pages(), nil
}
