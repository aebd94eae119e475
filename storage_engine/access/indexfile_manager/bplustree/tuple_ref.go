package bplus

import (
	"IndexDB/types"
	"math"

	"github.com/pkg/errors"
)

// A leaf stores each row as a single int: heapPage*rowsPerPage + slot.

func EncodeTupleRef(pageNo, slot, rowsPerPage int) (int, error) {
	if rowsPerPage <= 0 || pageNo < 0 || slot < 0 || slot >= rowsPerPage {
		return 0, errors.Wrapf(types.ErrInvalidTupleRef, "page=%d slot=%d rows per page=%d", pageNo, slot, rowsPerPage)
	}
	if pageNo > (math.MaxInt32-slot)/rowsPerPage {
		return 0, errors.Wrapf(types.ErrInvalidTupleRef, "page %d out of range", pageNo)
	}
	return pageNo*rowsPerPage + slot, nil
}

func DecodeTupleRef(ptr, rowsPerPage int) (pageNo, slot int, err error) {
	if rowsPerPage <= 0 || ptr < 0 {
		return 0, 0, errors.Wrapf(types.ErrInvalidTupleRef, "pointer=%d rows per page=%d", ptr, rowsPerPage)
	}
	return ptr / rowsPerPage, ptr % rowsPerPage, nil
}
