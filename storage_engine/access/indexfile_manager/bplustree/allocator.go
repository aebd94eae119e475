package bplus

import (
	"IndexDB/storage_engine/page"
	"IndexDB/types"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// FirstFreePageNumber returns 0 for an empty set, otherwise the smallest
// positive page number missing from existing. It runs in linear time and
// works in place on a scratch copy, so existing is left untouched.
func FirstFreePageNumber(existing []int) int {
	n := len(existing)
	if n == 0 {
		return RootPageNumber
	}
	nums := make([]int, n)
	copy(nums, existing)

	// 1. anything outside 1..n can't be the answer, fold it onto 1
	hasOne := false
	for i, v := range nums {
		if v == 1 {
			hasOne = true
		}
		if v < 1 || v > n {
			nums[i] = 1
		}
	}
	if !hasOne {
		return 1
	}

	// 2. mark v as present by negating nums[v-1]
	for _, v := range nums {
		idx := abs(v)
		nums[idx-1] = -abs(nums[idx-1])
	}

	// 3. first index still positive is missing
	for i, v := range nums {
		if v > 0 {
			return i + 1
		}
	}
	return n + 1
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// allocatePage claims the next free page number and writes a blank node there.
// The blank page goes straight through the disk manager: nobody else can know
// the number yet, so no page lock is needed, only allocMu.
func (f *IndexedFile) allocatePage(isRoot bool) (int, error) {
	f.allocMu.Lock()
	defer f.allocMu.Unlock()

	pageNo := FirstFreePageNumber(f.allocated)
	pid := page.NewPageID(f.fileID, pageNo)

	node := newIndexedPage(pid, f.keyType, f.capacity)
	node.isRoot = isRoot
	pg := page.NewPage(pid, types.PageTypeBPlusNode)
	if err := SerializeNode(node, pg.Data); err != nil {
		return 0, err
	}
	if err := f.diskManager.WritePage(pg); err != nil {
		return 0, errors.Wrapf(err, "allocatePage: failed to write blank page %d", pageNo)
	}
	// a page number reused after a reset must not be served from an old copy
	f.bufferPool.DiscardPage(pid)

	f.allocated = append(f.allocated, pageNo)
	f.log.Debug("page allocated", zap.Int("page", pageNo), zap.Bool("root", isRoot))
	return pageNo, nil
}

func (f *IndexedFile) resetAllocator() {
	f.allocMu.Lock()
	defer f.allocMu.Unlock()
	for _, n := range f.allocated {
		f.bufferPool.DiscardPage(page.NewPageID(f.fileID, n))
	}
	f.allocated = nil
}

// NumPages returns how many pages the index has allocated.
func (f *IndexedFile) NumPages() int {
	f.allocMu.Lock()
	defer f.allocMu.Unlock()
	return len(f.allocated)
}
