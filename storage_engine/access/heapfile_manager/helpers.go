package heapfile

import (
	"IndexDB/types"

	"github.com/pkg/errors"
)

/*
This file contains the row codec: a row is the concatenation of its fields,
each serialized at its type's fixed width, in schema order.
*/

func EncodeRow(schema *types.TableSchema, row *types.Row) ([]byte, error) {
	if err := schema.Validate(row); err != nil {
		return nil, err
	}
	buf := make([]byte, schema.RowSize())
	off := 0
	for i, c := range schema.Columns {
		row.Values[i].Serialize(buf[off : off+c.Type.Len()])
		off += c.Type.Len()
	}
	return buf, nil
}

func DecodeRow(schema *types.TableSchema, buf []byte) (*types.Row, error) {
	if len(buf) < schema.RowSize() {
		return nil, errors.Wrapf(types.ErrCorruptPage, "row needs %d bytes, have %d", schema.RowSize(), len(buf))
	}
	row := &types.Row{Values: make([]types.Field, len(schema.Columns))}
	off := 0
	for i, c := range schema.Columns {
		f, err := c.Type.Parse(buf[off : off+c.Type.Len()])
		if err != nil {
			return nil, errors.Wrapf(err, "column %q", c.Name)
		}
		row.Values[i] = f
		off += c.Type.Len()
	}
	return row, nil
}
