package types

import (
	"fmt"
	"strings"
)

// RowPointer points to a specific row slot in a heap file.
type RowPointer struct {
	FileID     uint32 `json:"file_id"`
	PageNumber int    `json:"page_number"`
	SlotIndex  int    `json:"slot_index"`
}

func (p RowPointer) String() string {
	return fmt.Sprintf("(%d:%d:%d)", p.FileID, p.PageNumber, p.SlotIndex)
}

// Row is a tuple of field values. Pointer is set once the row lives in a heap file.
type Row struct {
	Values  []Field
	Pointer *RowPointer
}

func NewRow(values ...Field) *Row {
	return &Row{Values: values}
}

func (r *Row) Field(i int) Field {
	if i < 0 || i >= len(r.Values) {
		return nil
	}
	return r.Values[i]
}

func (r *Row) Clone() *Row {
	vals := make([]Field, len(r.Values))
	copy(vals, r.Values)
	out := &Row{Values: vals}
	if r.Pointer != nil {
		p := *r.Pointer
		out.Pointer = &p
	}
	return out
}

func (r *Row) String() string {
	parts := make([]string, len(r.Values))
	for i, v := range r.Values {
		parts[i] = v.String()
	}
	return strings.Join(parts, "\t")
}
