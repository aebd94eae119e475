package types

import "github.com/pkg/errors"

// Errors shared by the storage engine layers. Callers match them with errors.Is;
// every layer wraps them with context on the way up.
var (
	// ErrTransactionAborted is returned by the page cache when a lock wait gives up.
	// The owning transaction must be aborted by the caller.
	ErrTransactionAborted = errors.New("transaction aborted")

	// ErrIO marks a failed read or write against a backing file.
	ErrIO = errors.New("i/o failure")

	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrNoSuchElement        = errors.New("no more elements")
	ErrCorruptPage          = errors.New("corrupt page")
	ErrTypeMismatch         = errors.New("field type mismatch")
	ErrValueTooLong         = errors.New("value too long")

	// Index errors.
	ErrInvalidTupleRef = errors.New("invalid tuple reference")
	ErrRowNotStored    = errors.New("row has no location in the base table")
	ErrIndexNotBuilt   = errors.New("index not built")
	ErrIndexNotFound   = errors.New("index not found")
)
