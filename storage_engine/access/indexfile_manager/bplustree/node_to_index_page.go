package bplus

import (
	"IndexDB/storage_engine/page"
	"IndexDB/types"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

/*
SerializeNode writes an IndexedPage into a 4KB page buffer.
Page numbers (parent, prev, next, children) are stored as int32 relative to
the index file, -1 meaning none. Leaf pointers are tuple references.

Layout:

	Header (20 bytes):
	  pageType   uint8  (byte 0, stamped again by DiskManager on write)
	  isLeaf     uint8  (byte 1)
	  isRoot     uint8  (byte 2)
	  keyType    uint8  (byte 3)
	  parent     int32  (4-7)
	  prev       int32  (8-11)   leaf only, -1 otherwise
	  next       int32  (12-15)  leaf only, -1 otherwise
	  numKeys    uint16 (16-17)
	  reserved          (18-19)

	Body:
	  numKeys × key, fixed width keyType.Len()
	  internal: (numKeys+1) × int32 child page number
	  leaf:      numKeys    × int32 tuple reference

Tree invariants:
	Internal nodes: len(pointers) == len(keys) + 1
	Leaf nodes: len(pointers) == len(keys)
	Keys sorted ascending, at most capacity per node once a split completes

*/

const (
	offIsLeaf   = 1
	offIsRoot   = 2
	offKeyType  = 3
	offParent   = 4
	offPrev     = 8
	offNext     = 12
	offNumKeys  = 16
	headerSize  = 20
	pointerSize = 4
)

// MaxCapacity is the largest capacity whose overflowing node (capacity+1 keys,
// capacity+2 pointers) still fits in one page.
func MaxCapacity(keyType types.Type) int {
	return (page.PageSize - headerSize - keyType.Len() - 2*pointerSize) / (keyType.Len() + pointerSize)
}

func nodeSize(keyType types.Type, numKeys int, isLeaf bool) int {
	numPointers := numKeys + 1
	if isLeaf {
		numPointers = numKeys
	}
	return headerSize + numKeys*keyType.Len() + numPointers*pointerSize
}

func SerializeNode(node *IndexedPage, data []byte) error {
	if len(data) != page.PageSize {
		return errors.Errorf("serializeNode: data buffer must be %d bytes", page.PageSize)
	}
	if node.isLeaf && len(node.pointers) != len(node.keys) {
		return errors.Errorf("serializeNode: leaf %s has %d keys and %d pointers", node.id, len(node.keys), len(node.pointers))
	}
	if !node.isLeaf && len(node.pointers) != len(node.keys)+1 {
		return errors.Errorf("serializeNode: internal %s has %d keys and %d pointers", node.id, len(node.keys), len(node.pointers))
	}
	if nodeSize(node.keyType, len(node.keys), node.isLeaf) > page.PageSize {
		return errors.Errorf("serializeNode: page %s overflows with %d keys", node.id, len(node.keys))
	}

	clear(data)

	// ── Header ────────────────────────────────────────────────────────────────
	data[page.PageTypeOffset] = byte(types.PageTypeBPlusNode)
	data[offIsLeaf] = boolByte(node.isLeaf)
	data[offIsRoot] = boolByte(node.isRoot)
	data[offKeyType] = byte(node.keyType)
	putPageNo(data[offParent:], node.parentID)
	putPageNo(data[offPrev:], node.prevID)
	putPageNo(data[offNext:], node.nextID)
	binary.LittleEndian.PutUint16(data[offNumKeys:], uint16(len(node.keys)))

	// ── Keys ──────────────────────────────────────────────────────────────────
	offset := headerSize
	keyLen := node.keyType.Len()
	for i, key := range node.keys {
		if key == nil || key.Type() != node.keyType {
			return errors.Wrapf(types.ErrTypeMismatch, "serializeNode: key %d of page %s", i, node.id)
		}
		key.Serialize(data[offset : offset+keyLen])
		offset += keyLen
	}

	// ── Pointers ──────────────────────────────────────────────────────────────
	for _, p := range node.pointers {
		if p < math.MinInt32 || p > math.MaxInt32 {
			return errors.Errorf("serializeNode: pointer %d does not fit in 32 bits", p)
		}
		binary.LittleEndian.PutUint32(data[offset:], uint32(int32(p)))
		offset += pointerSize
	}

	return nil
}

// DeserializeNode reads the node stored in data. pid is the page the bytes came
// from; keyType is the type the index was opened with and must match the page.
func DeserializeNode(data []byte, pid page.PageID, keyType types.Type, capacity int) (*IndexedPage, error) {
	if len(data) != page.PageSize {
		return nil, errors.Errorf("deserializeNode: data must be %d bytes", page.PageSize)
	}
	if types.PageType(data[page.PageTypeOffset]) != types.PageTypeBPlusNode {
		return nil, errors.Wrapf(types.ErrCorruptPage, "page %s has type %s", pid, types.PageType(data[page.PageTypeOffset]))
	}
	if types.Type(data[offKeyType]) != keyType {
		return nil, errors.Wrapf(types.ErrCorruptPage, "page %s holds %s keys, index expects %s",
			pid, types.Type(data[offKeyType]), keyType)
	}

	node := newIndexedPage(pid, keyType, capacity)
	node.isLeaf = data[offIsLeaf] == 1
	node.isRoot = data[offIsRoot] == 1
	node.parentID = getPageNo(data[offParent:])
	node.prevID = getPageNo(data[offPrev:])
	node.nextID = getPageNo(data[offNext:])

	numKeys := int(binary.LittleEndian.Uint16(data[offNumKeys:]))
	if nodeSize(keyType, numKeys, node.isLeaf) > page.PageSize {
		return nil, errors.Wrapf(types.ErrCorruptPage, "page %s claims %d keys", pid, numKeys)
	}

	// ── Keys ──────────────────────────────────────────────────────────────────
	offset := headerSize
	keyLen := keyType.Len()
	for i := 0; i < numKeys; i++ {
		key, err := keyType.Parse(data[offset : offset+keyLen])
		if err != nil {
			return nil, errors.Wrapf(err, "deserializeNode: key %d of page %s", i, pid)
		}
		node.keys = append(node.keys, key)
		offset += keyLen
	}

	// ── Pointers ──────────────────────────────────────────────────────────────
	numPointers := numKeys + 1
	if node.isLeaf {
		numPointers = numKeys
	}
	for i := 0; i < numPointers; i++ {
		node.pointers = append(node.pointers, int(int32(binary.LittleEndian.Uint32(data[offset:]))))
		offset += pointerSize
	}

	return node, nil
}

func putPageNo(buf []byte, n int) {
	binary.LittleEndian.PutUint32(buf, uint32(int32(n)))
}

func getPageNo(buf []byte) int {
	return int(int32(binary.LittleEndian.Uint32(buf)))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
