package heapfile

import (
	page "IndexDB/storage_engine/page"
	"IndexDB/types"

	"github.com/pkg/errors"
)

/*
This file contains standalone functions operating on *page.Page for heap file operations.
All functions take *page.Page as first argument since methods cannot be defined on
types from external packages.

Heap page binary layout:

	Offset          Size              Field
	──────────────────────────────────────────────────────────────
	0               1                 PageType (stamped by DiskManager on write)
	1               ceil(N/8)         slot bitmap, bit i set = slot i holds a row
	1+ceil(N/8)     N * rowSize       rows, slot i at header + i*rowSize
	──────────────────────────────────────────────────────────────

N (rows per page) is fixed for a schema:

	N = floor((PageSize-1) * 8 / (rowSize*8 + 1))

which is what lets a row be addressed by the single integer
pageNumber*N + slot.
*/

// RowsPerPage returns how many rows of rowSize bytes fit on one heap page.
func RowsPerPage(rowSize int) int {
	if rowSize <= 0 {
		return 0
	}
	return ((page.PageSize - 1) * 8) / (rowSize*8 + 1)
}

func bitmapSize(rowsPerPage int) int {
	return (rowsPerPage + 7) / 8
}

func rowOffset(rowsPerPage, rowSize, slot int) int {
	return 1 + bitmapSize(rowsPerPage) + slot*rowSize
}

// InitHeapPage stamps an empty heap page into pg.Data.
func InitHeapPage(pg *page.Page) {
	clear(pg.Data)
	pg.PageType = types.PageTypeHeapData
	pg.Data[page.PageTypeOffset] = byte(types.PageTypeHeapData)
}

// IsSlotUsed reports whether slot holds a row.
func IsSlotUsed(pg *page.Page, slot int) bool {
	return pg.Data[1+slot/8]&(1<<(uint(slot)%8)) != 0
}

func setSlotUsed(pg *page.Page, slot int, used bool) {
	if used {
		pg.Data[1+slot/8] |= 1 << (uint(slot) % 8)
	} else {
		pg.Data[1+slot/8] &^= 1 << (uint(slot) % 8)
	}
}

// FirstFreeSlot returns the lowest empty slot, or -1 if the page is full.
func FirstFreeSlot(pg *page.Page, rowsPerPage int) int {
	for slot := 0; slot < rowsPerPage; slot++ {
		if !IsSlotUsed(pg, slot) {
			return slot
		}
	}
	return -1
}

// NumRows counts the used slots.
func NumRows(pg *page.Page, rowsPerPage int) int {
	n := 0
	for slot := 0; slot < rowsPerPage; slot++ {
		if IsSlotUsed(pg, slot) {
			n++
		}
	}
	return n
}

// WriteRecord stores data in slot and marks it used.
func WriteRecord(pg *page.Page, rowsPerPage, slot int, data []byte) error {
	if slot < 0 || slot >= rowsPerPage {
		return errors.Errorf("WriteRecord: slot %d out of range (rows per page=%d)", slot, rowsPerPage)
	}
	off := rowOffset(rowsPerPage, len(data), slot)
	if off+len(data) > page.PageSize {
		return errors.Errorf("WriteRecord: slot %d overflows page", slot)
	}
	copy(pg.Data[off:], data)
	setSlotUsed(pg, slot, true)
	return nil
}

// GetRecord returns a copy of the row bytes in slot.
func GetRecord(pg *page.Page, rowsPerPage, rowSize, slot int) ([]byte, error) {
	if slot < 0 || slot >= rowsPerPage {
		return nil, errors.Errorf("GetRecord: slot %d out of range (rows per page=%d)", slot, rowsPerPage)
	}
	if !IsSlotUsed(pg, slot) {
		return nil, errors.Errorf("GetRecord: slot %d is empty", slot)
	}
	off := rowOffset(rowsPerPage, rowSize, slot)
	out := make([]byte, rowSize)
	copy(out, pg.Data[off:off+rowSize])
	return out, nil
}
