package tt

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/rickchristie/cellfmt"
)

// -----------------------------------------------------------------------------
// Fake backends
// -----------------------------------------------------------------------------

var (
	statementAssignRe = regexp.MustCompile(`^([\w.\[\]]+)\s*=\s*(.+)$`)
	singleQuotedRe    = regexp.MustCompile(`'([^'"\\]*)'`)
)

// PythonLike is a tiny stand-in for a Python formatter. It behaves enough like
// black for pipeline and batch tests:
//   - splits "a; b" into separate statements and drops trailing ';'
//   - normalizes "x=1" to "x = 1"
//   - turns '...' into "..." unless string_normalization is false
//   - rewrites "#x" comments to "# x"
//   - fails with "Cannot parse: L:C: line" on an unterminated quote
//   - always ends its output with a newline
func PythonLike(_ context.Context, code string, _ bool, opts cellfmt.Options) (string, error) {
	normalizeStrings := true
	if v, ok := opts["string_normalization"].(bool); ok {
		normalizeStrings = v
	}

	var out []string
	for i, line := range strings.Split(code, "\n") {
		if strings.Count(line, "'")%2 == 1 {
			return "", fmt.Errorf("Cannot parse: %d:%d: %s", i+1, strings.Index(line, "'")-1, line)
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		body := strings.TrimSpace(line)
		if body == "" {
			out = append(out, "")
			continue
		}
		if strings.HasPrefix(body, "#") {
			if len(body) > 1 && body[1] != ' ' && body[1] != '!' {
				body = "# " + body[1:]
			}
			out = append(out, indent+body)
			continue
		}
		for _, stmt := range strings.Split(body, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			stmt = statementAssignRe.ReplaceAllString(stmt, "$1 = $2")
			if normalizeStrings {
				stmt = singleQuotedRe.ReplaceAllString(stmt, `"$1"`)
			}
			out = append(out, indent+stmt)
		}
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n") + "\n", nil
}

// SortImports is a stand-in for isort: it sorts the non-empty lines and
// returns them newline-terminated.
func SortImports(_ context.Context, code string, _ bool, _ cellfmt.Options) (string, error) {
	var lines []string
	for _, line := range strings.Split(code, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, strings.TrimSpace(line))
		}
	}
	sort.Strings(lines)
	if len(lines) == 0 {
		return "", nil
	}
	return strings.Join(lines, "\n") + "\n", nil
}

// -----------------------------------------------------------------------------
// MockFormatter
// -----------------------------------------------------------------------------

// MockFormatter is a configurable cellfmt.Formatter that records its calls.
// It is safe for concurrent use.
type MockFormatter struct {
	label  string
	fn     cellfmt.BackendFunc
	schema map[string]any

	mu           sync.Mutex
	availability cellfmt.Availability
	probes       int
	calls        []string
}

// NewMockFormatter creates an available formatter running fn.
func NewMockFormatter(label string, fn cellfmt.BackendFunc) *MockFormatter {
	return &MockFormatter{
		label:        label,
		fn:           fn,
		availability: cellfmt.Available(),
	}
}

// WithAvailability sets what Available returns.
func (m *MockFormatter) WithAvailability(a cellfmt.Availability) *MockFormatter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.availability = a
	return m
}

// WithOptionSchema sets the option schema the formatter advertises.
func (m *MockFormatter) WithOptionSchema(schema map[string]any) *MockFormatter {
	m.schema = schema
	return m
}

// SetAvailability changes what the next probe returns.
func (m *MockFormatter) SetAvailability(a cellfmt.Availability) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.availability = a
}

// Label returns the configured label.
func (m *MockFormatter) Label() string {
	return m.label
}

// Available returns the configured availability and counts the probe.
func (m *MockFormatter) Available(_ context.Context) cellfmt.Availability {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes++
	return m.availability
}

// Format records the code and calls the backend function.
func (m *MockFormatter) Format(ctx context.Context, code string, notebook bool, opts cellfmt.Options) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, code)
	m.mu.Unlock()
	return m.fn(ctx, code, notebook, opts)
}

// OptionSchema returns the configured schema.
func (m *MockFormatter) OptionSchema() map[string]any {
	return m.schema
}

// Probes returns how many times Available was called.
func (m *MockFormatter) Probes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probes
}

// Calls returns the code passed to each Format call, in order.
func (m *MockFormatter) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

var (
	_ cellfmt.Formatter            = (*MockFormatter)(nil)
	_ cellfmt.OptionSchemaProvider = (*MockFormatter)(nil)
)
