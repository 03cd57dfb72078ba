package cellfmt

import "errors"

// Resolution errors fail a whole batch before any cell is formatted.
var (
	ErrFormatterNotFound    = errors.New("formatter not found")
	ErrFormatterUnavailable = errors.New("formatter unavailable")
)

// Per-cell errors.
var (
	ErrInvalidOptions = errors.New("invalid formatter options")
	ErrEmptyOutput    = errors.New("formatter produced no output")
)

// ErrDuplicateFormatter is the panic value for registering a name twice.
var ErrDuplicateFormatter = errors.New("formatter already registered")

// IsResolution reports whether err means the formatter could not be resolved.
// The HTTP boundary maps these to 404.
func IsResolution(err error) bool {
	return errors.Is(err, ErrFormatterNotFound) || errors.Is(err, ErrFormatterUnavailable)
}
