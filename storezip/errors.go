package storezip

import "errors"

var (
	// ErrPreconditionFailed reports a call made in the wrong writer state:
	// AddFile before Open, Finalize with no entries, Open while already open.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrDuplicateEntry reports a second entry with a name already stored.
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrIO wraps failures of the underlying sink.
	ErrIO = errors.New("i/o error")
)
