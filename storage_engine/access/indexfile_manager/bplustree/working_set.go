package bplus

import "IndexDB/storage_engine/page"

// workingSet collects the pages one insert dirtied, in first-touch order.
type workingSet struct {
	order []page.PageID
	seen  map[page.PageID]struct{}
}

func newWorkingSet() *workingSet {
	return &workingSet{seen: make(map[page.PageID]struct{})}
}

func (w *workingSet) add(pid page.PageID) {
	if _, ok := w.seen[pid]; ok {
		return
	}
	w.seen[pid] = struct{}{}
	w.order = append(w.order, pid)
}

func (w *workingSet) pages() []page.PageID {
	return w.order
}
