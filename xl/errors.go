package xl

import (
	"errors"

	"github.com/adnsv/xlbook/storezip"
)

// Error kinds. Every error returned by this package wraps exactly one of
// them; test with errors.Is.
var (
	ErrInvalidFormat   = errors.New("invalid format")
	ErrOutOfRange      = errors.New("out of range")
	ErrInvalidArgument = errors.New("invalid argument")

	ErrDuplicateEntry     = storezip.ErrDuplicateEntry
	ErrPreconditionFailed = storezip.ErrPreconditionFailed
	ErrIO                 = storezip.ErrIO
)
