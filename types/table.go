package types

import (
	"strings"

	"github.com/pkg/errors"
)

type ColumnDef struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// TableSchema describes the fixed-width rows of a heap table.
type TableSchema struct {
	TableName string      `json:"table_name"`
	Columns   []ColumnDef `json:"columns"`
}

func NewTableSchema(name string, cols ...ColumnDef) *TableSchema {
	return &TableSchema{TableName: name, Columns: cols}
}

func (s *TableSchema) NumFields() int {
	return len(s.Columns)
}

// RowSize is the serialized width of one row in bytes.
func (s *TableSchema) RowSize() int {
	size := 0
	for _, c := range s.Columns {
		size += c.Type.Len()
	}
	return size
}

// ColumnIndex finds a column by case-insensitive name.
func (s *TableSchema) ColumnIndex(name string) (int, error) {
	for i, c := range s.Columns {
		if strings.EqualFold(c.Name, name) {
			return i, nil
		}
	}
	return -1, errors.Errorf("column %q not found in table %q", name, s.TableName)
}

// Validate checks that row matches the schema column by column.
func (s *TableSchema) Validate(row *Row) error {
	if len(row.Values) != len(s.Columns) {
		return errors.Wrapf(ErrTypeMismatch, "table %q expects %d fields, row has %d",
			s.TableName, len(s.Columns), len(row.Values))
	}
	for i, c := range s.Columns {
		if row.Values[i] == nil || row.Values[i].Type() != c.Type {
			return errors.Wrapf(ErrTypeMismatch, "column %q expects %s", c.Name, c.Type)
		}
		if s, ok := row.Values[i].(StringField); ok && !s.Fits() {
			return errors.Wrapf(ErrValueTooLong, "column %q holds at most %d bytes, got %d", c.Name, StringMaxLen, len(s))
		}
	}
	return nil
}
