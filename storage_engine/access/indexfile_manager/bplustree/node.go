package bplus

import (
	"IndexDB/storage_engine/page"
	"IndexDB/types"

	"github.com/pkg/errors"
)

/*
Node level operations. None of these touch the buffer pool: the tree driver
fetches a page, decodes it into an IndexedPage, mutates it here and writes it
back with writeNode.

A node may hold one key over capacity between an insert and the split that
follows it. Nothing is ever written back in that state.
*/

func newIndexedPage(id page.PageID, keyType types.Type, capacity int) *IndexedPage {
	return &IndexedPage{
		id:       id,
		isLeaf:   true,
		parentID: NoPage,
		prevID:   NoPage,
		nextID:   NoPage,
		keys:     make([]types.Field, 0, capacity+1),
		pointers: make([]int, 0, capacity+2),
		keyType:  keyType,
		capacity: capacity,
	}
}

func (n *IndexedPage) ID() page.PageID { return n.id }
func (n *IndexedPage) PageNumber() int { return n.id.PageNumber }
func (n *IndexedPage) IsLeaf() bool { return n.isLeaf }
func (n *IndexedPage) IsRoot() bool { return n.isRoot }
func (n *IndexedPage) ParentID() int { return n.parentID }
func (n *IndexedPage) PrevID() int { return n.prevID }
func (n *IndexedPage) NextID() int { return n.nextID }
func (n *IndexedPage) NumKeys() int { return len(n.keys) }
func (n *IndexedPage) Capacity() int { return n.capacity }
func (n *IndexedPage) Key(i int) types.Field { return n.keys[i] }
func (n *IndexedPage) Pointer(i int) int { return n.pointers[i] }

// Keys returns a copy of the node's keys.
func (n *IndexedPage) Keys() []types.Field {
	return append([]types.Field(nil), n.keys...)
}

// Pointers returns a copy of the node's pointers.
func (n *IndexedPage) Pointers() []int {
	return append([]int(nil), n.pointers...)
}

// FindChild returns the child page that may hold key. A key equal to a
// separator routes left, so the leftmost leaf that can contain it is reached.
func (n *IndexedPage) FindChild(key types.Field) int {
	return n.pointers[lowerBound(n.keys, key)]
}

func (n *IndexedPage) FindLeftmostChild() int {
	return n.pointers[0]
}

// SlotFor returns the first slot whose key is >= key.
func (n *IndexedPage) SlotFor(key types.Field) int {
	return lowerBound(n.keys, key)
}

// Insert adds (key, ptr) to a leaf in sorted position, after any equal keys.
func (n *IndexedPage) Insert(key types.Field, ptr int) error {
	if !n.isLeaf {
		return errors.Errorf("Insert: page %s is not a leaf", n.id)
	}
	if err := n.checkKey(key); err != nil {
		return err
	}
	i := upperBound(n.keys, key)
	n.keys = insert(n.keys, i, key)
	n.pointers = insert(n.pointers, i, ptr)
	return nil
}

// InsertChild adds separator key to an internal node with left as the child
// immediately before it and right, already present, immediately after it.
func (n *IndexedPage) InsertChild(key types.Field, left, right int) error {
	if n.isLeaf {
		return errors.Errorf("InsertChild: page %s is a leaf", n.id)
	}
	if err := n.checkKey(key); err != nil {
		return err
	}
	j := -1
	for i, p := range n.pointers {
		if p == right {
			j = i
			break
		}
	}
	if j < 0 {
		return errors.Wrapf(types.ErrCorruptPage, "InsertChild: page %d is not a child of %s", right, n.id)
	}
	n.keys = insert(n.keys, j, key)
	n.pointers = insert(n.pointers, j, left)
	return nil
}

func (n *IndexedPage) checkKey(key types.Field) error {
	if key == nil || key.Type() != n.keyType {
		return errors.Wrapf(types.ErrTypeMismatch, "index on %s cannot hold key %v", n.keyType, key)
	}
	if len(n.keys) > n.capacity {
		return errors.Errorf("page %s already overflowing (%d keys, capacity %d)", n.id, len(n.keys), n.capacity)
	}
	return nil
}

func (n *IndexedPage) IsOverflowing() bool {
	return len(n.keys) == n.capacity+1
}

// IsUnderfull reports a non-root page below half capacity. Nothing merges
// such pages; splits never produce one.
func (n *IndexedPage) IsUnderfull() bool {
	return !n.isRoot && len(n.keys) < n.capacity/2
}

// SplitHalves splits the node at ceil(slots/2), where slots are the entries of
// a leaf or the child pointers of an internal node. The first half keeps the
// smaller keys. For a leaf the median is the first key of the second half and
// stays there; for an internal node the median moves up and is in neither half.
func (n *IndexedPage) SplitHalves() (first, second half, median types.Field) {
	if n.isLeaf {
		m := (len(n.keys) + 1) / 2
		first = half{keys: cloneKeys(n.keys[:m]), pointers: cloneInts(n.pointers[:m])}
		second = half{keys: cloneKeys(n.keys[m:]), pointers: cloneInts(n.pointers[m:])}
		return first, second, second.keys[0]
	}
	m := (len(n.pointers) + 1) / 2
	first = half{keys: cloneKeys(n.keys[:m-1]), pointers: cloneInts(n.pointers[:m])}
	second = half{keys: cloneKeys(n.keys[m:]), pointers: cloneInts(n.pointers[m:])}
	return first, second, n.keys[m-1]
}

func (n *IndexedPage) setContents(h half) {
	n.keys = h.keys
	n.pointers = h.pointers
}

func cloneKeys(keys []types.Field) []types.Field {
	return append(make([]types.Field, 0, len(keys)+1), keys...)
}

func cloneInts(ints []int) []int {
	return append(make([]int, 0, len(ints)+2), ints...)
}
