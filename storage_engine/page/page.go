package page

import (
	"IndexDB/types"
	"sync"
)

const (
	PageSize       = types.PageSize
	PageTypeOffset = 0 // first byte of every page = page type
)

/*
This contains the page struct shared by heap pages and index pages.
Both page kinds are ultimately handed to the bufferpool as raw frames; the
actual byte layout lives with the owner:
for heap page:  /IndexDB/storage_engine/access/heapfile_manager/heap_page.go
for index page: /IndexDB/storage_engine/access/indexfile_manager/bplustree/node_to_index_page.go

Byte 0 of every page holds its PageType so a frame read from disk can be
recognised without knowing which file it came from.
*/

type Page struct {
	ID       PageID
	Data     []byte
	PageType types.PageType
	mu       sync.RWMutex
}

func NewPage(id PageID, pageType types.PageType) *Page {
	pg := &Page{
		ID:       id,
		Data:     make([]byte, PageSize),
		PageType: pageType,
	}
	pg.Data[PageTypeOffset] = byte(pageType)
	return pg
}

// Clone returns a deep copy that shares nothing with pg.
func (p *Page) Clone() *Page {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := &Page{
		ID:       p.ID,
		Data:     make([]byte, len(p.Data)),
		PageType: p.PageType,
	}
	copy(out.Data, p.Data)
	return out
}

func (p *Page) Lock() {
	p.mu.Lock()
}

func (p *Page) Unlock() {
	p.mu.Unlock()
}

func (p *Page) RLock() {
	p.mu.RLock()
}

func (p *Page) RUnlock() {
	p.mu.RUnlock()
}
