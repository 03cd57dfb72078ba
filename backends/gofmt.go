package backends

import (
	"context"
	"go/format"
	"strings"

	"github.com/rickchristie/cellfmt"
	"github.com/rickchristie/cellfmt/schema"
)

// GoFmt formats Go source in-process with go/format. Cells may hold a full
// file, a list of declarations or a list of statements.
//
// GoFmt is used without the escaping pipeline: Go kernels have no line magics
// that would need protecting.
type GoFmt struct{}

// NewGoFmt creates the gofmt backend.
func NewGoFmt() *GoFmt {
	return &GoFmt{}
}

// Label implements cellfmt.Formatter.
func (*GoFmt) Label() string {
	return "Apply Gofmt Formatter"
}

// Available implements cellfmt.Formatter. The formatter is linked in, so it
// is always available.
func (*GoFmt) Available(context.Context) cellfmt.Availability {
	return cellfmt.Available()
}

// OptionSchema implements cellfmt.OptionSchemaProvider.
func (*GoFmt) OptionSchema() map[string]any {
	return schema.Empty()
}

// Format implements cellfmt.Formatter. In notebook mode the trailing newline
// gofmt always adds is dropped.
func (*GoFmt) Format(_ context.Context, code string, notebook bool, _ cellfmt.Options) (string, error) {
	out, err := format.Source([]byte(code))
	if err != nil {
		return "", err
	}
	if notebook {
		return strings.TrimRight(string(out), "\n"), nil
	}
	return string(out), nil
}

var (
	_ cellfmt.Formatter            = (*GoFmt)(nil)
	_ cellfmt.OptionSchemaProvider = (*GoFmt)(nil)
)
