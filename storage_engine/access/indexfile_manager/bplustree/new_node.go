package bplus

import (
	lockmanager "IndexDB/storage_engine/lock_manager"
	"IndexDB/storage_engine/page"
	"IndexDB/types"

	"github.com/pkg/errors"
)

func (f *IndexedFile) pageID(pageNo int) page.PageID {
	return page.NewPageID(f.fileID, pageNo)
}

// fetchNode loads a node through the buffer pool under perm.
// The page handle is returned with it so a ReadWrite caller can write back.
func (f *IndexedFile) fetchNode(tid uint64, pageNo int, perm lockmanager.Permission) (*page.Page, *IndexedPage, error) {
	if pageNo < 0 {
		return nil, nil, errors.Wrapf(types.ErrCorruptPage, "fetchNode: invalid page number %d", pageNo)
	}
	pid := f.pageID(pageNo)
	pg, err := f.bufferPool.FetchPage(tid, pid, perm)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "fetchNode: failed to fetch page %s", pid)
	}

	pg.RLock()
	node, err := DeserializeNode(pg.Data, pid, f.keyType, f.capacity)
	pg.RUnlock()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "fetchNode: deserialize failed for page %s", pid)
	}
	return pg, node, nil
}

// writeNode serializes node into its frame, marks it dirty for tid and adds
// it to the working set. pg must have been fetched ReadWrite by tid.
func (f *IndexedFile) writeNode(tid uint64, pg *page.Page, node *IndexedPage, ws *workingSet) error {
	pg.Lock()
	pg.PageType = types.PageTypeBPlusNode
	err := SerializeNode(node, pg.Data)
	pg.Unlock()
	if err != nil {
		return errors.Wrapf(err, "writeNode: serialize failed for page %s", node.id)
	}

	if err := f.bufferPool.MarkDirty(tid, pg); err != nil {
		return errors.Wrapf(err, "writeNode: failed to mark page %s dirty", node.id)
	}
	ws.add(node.id)
	return nil
}

// updateNode fetches pageNo read-write, applies fn and writes it back.
func (f *IndexedFile) updateNode(tid uint64, pageNo int, ws *workingSet, fn func(n *IndexedPage)) error {
	pg, node, err := f.fetchNode(tid, pageNo, lockmanager.ReadWrite)
	if err != nil {
		return err
	}
	fn(node)
	return f.writeNode(tid, pg, node, ws)
}
