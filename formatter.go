package cellfmt

import (
	"context"
)

// Options carries backend-specific parameters from a request to a formatter.
// The core imposes no schema on it; each backend interprets and validates its
// own keys (see [OptionSchemaProvider]).
type Options map[string]any

// Formatter is the capability set every formatting backend implements.
//
// Responsibility design:
//   - Formatter: probe its tool, transform one piece of code, report errors
//   - registry.Registry: resolve formatters by name, isolate per-cell failures
//   - escape.Pipeline: protect notebook-only syntax around the transformation
//
// Backends that format a language with notebook magics apply the escaping
// pipeline themselves (usually with [escape.Wrap]); nothing forces it on them.
type Formatter interface {
	// Label returns a human-readable action name, e.g. "Apply Black Formatter".
	Label() string

	// Available reports whether the underlying tool, library or runtime can
	// currently be invoked. It may be expensive (spawning a process) and must
	// not mutate process-global state such as environment variables.
	Available(ctx context.Context) Availability

	// Format transforms code. notebook is true when code is a notebook cell
	// rather than a whole file. Errors are returned, never swallowed.
	Format(ctx context.Context, code string, notebook bool, opts Options) (string, error)
}

// OptionSchemaProvider is implemented by formatters that describe their
// accepted option keys as a JSON Schema. The registry compiles the schema at
// registration and validates request options before any cell is formatted.
type OptionSchemaProvider interface {
	OptionSchema() map[string]any
}

// BackendFunc is the raw transformation performed by a backend. It is the
// unit the escaping pipeline wraps.
type BackendFunc func(ctx context.Context, code string, notebook bool, opts Options) (string, error)

// ProbeFunc computes a fresh availability result.
type ProbeFunc func(ctx context.Context) Availability

// FormatterFunc is a convenience type for creating formatters from functions.
type FormatterFunc struct {
	label  string
	probe  ProbeFunc
	fn     BackendFunc
	schema map[string]any
}

// NewFormatterFunc creates a Formatter from a label, an availability probe and
// a backend function. A nil probe means the formatter is always available.
func NewFormatterFunc(label string, probe ProbeFunc, fn BackendFunc) *FormatterFunc {
	return &FormatterFunc{
		label: label,
		probe: probe,
		fn:    fn,
	}
}

// WithOptionSchema sets the JSON Schema describing accepted options.
func (f *FormatterFunc) WithOptionSchema(schema map[string]any) *FormatterFunc {
	f.schema = schema
	return f
}

// Label returns the human-readable action name.
func (f *FormatterFunc) Label() string {
	return f.label
}

// Available runs the probe, or reports available when there is none.
func (f *FormatterFunc) Available(ctx context.Context) Availability {
	if f.probe == nil {
		return Available()
	}
	return f.probe(ctx)
}

// Format calls the backend function.
func (f *FormatterFunc) Format(ctx context.Context, code string, notebook bool, opts Options) (string, error) {
	return f.fn(ctx, code, notebook, opts)
}

// OptionSchema returns the option schema, or nil when none was set.
func (f *FormatterFunc) OptionSchema() map[string]any {
	return f.schema
}

// Compile-time checks.
var (
	_ Formatter            = (*FormatterFunc)(nil)
	_ OptionSchemaProvider = (*FormatterFunc)(nil)
)
