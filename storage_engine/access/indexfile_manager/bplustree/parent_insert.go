package bplus

import (
	lockmanager "IndexDB/storage_engine/lock_manager"
	"IndexDB/types"

	"github.com/pkg/errors"
)

// insertIntoParent adds separator key between children left and right of
// parentNo. If the parent overflows, it splits and propagates upward.
func (f *IndexedFile) insertIntoParent(tid uint64, parentNo int, key types.Field, left, right int, ws *workingSet) error {
	pg, parent, err := f.fetchNode(tid, parentNo, lockmanager.ReadWrite)
	if err != nil {
		return errors.Wrapf(err, "insertIntoParent: failed to fetch parent %d", parentNo)
	}
	if err := parent.InsertChild(key, left, right); err != nil {
		return err
	}

	if !parent.IsOverflowing() {
		return f.writeNode(tid, pg, parent, ws)
	}
	return f.split(tid, pg, parent, ws)
}
