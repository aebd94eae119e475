package types

// RowIterator is the cursor shape shared by heap scans and index scans.
// HasNext and Next report false / ErrNoSuchElement before Open and after Close.
type RowIterator interface {
	Open() error
	HasNext() (bool, error)
	Next() (*Row, error)
	Rewind() error
	Close()
}
