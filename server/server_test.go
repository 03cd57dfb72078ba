package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rickchristie/cellfmt"
	"github.com/rickchristie/cellfmt/escape"
	"github.com/rickchristie/cellfmt/hooks"
	"github.com/rickchristie/cellfmt/internal/tt"
	"github.com/rickchristie/cellfmt/registry"
	"github.com/rickchristie/cellfmt/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var blackSchema = schema.Object(map[string]*schema.Property{
	"line_length": schema.Integer("Maximum line length").Min(1),
})

type fixture struct {
	server *Server
	black  *tt.MockFormatter
	styler *tt.MockFormatter
}

func newFixture(cfg Config) *fixture {
	black := tt.NewMockFormatter("Apply Black Formatter", tt.PythonLike).WithOptionSchema(blackSchema)
	styler := tt.NewMockFormatter("Apply Styler Formatter", tt.PythonLike).
		WithAvailability(cellfmt.Unavailable(errors.New("Rscript not found")))

	metrics := hooks.NewMetrics(hooks.DefaultMetricsConfig())
	reg := registry.New().
		WithHooks(hooks.NewRegistry().Register(metrics)).
		Register("black", escape.Wrap(black, escape.LangPython)).
		Register("styler", styler)

	return &fixture{
		server: New(reg, cfg).WithMetrics(metrics.Registry()),
		black:  black,
		styler: styler,
	}
}

func (f *fixture) do(method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Format(t *testing.T) {
	type input struct {
		body string
	}

	type expected struct {
		status int
		body   string
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name: "notebook cells",
			input: input{
				body: `{"formatter": "black", "notebook": true, "code": ["x=1;", "%%timeit\ny='a'"]}`,
			},
			expected: expected{
				status: http.StatusOK,
				body:   `{"code": [{"code": "x = 1;"}, {"code": "%%timeit\ny = \"a\""}]}`,
			},
		},
		{
			name: "failing cell is isolated",
			input: input{
				body: `{"formatter": "black", "notebook": true, "code": ["this_is_bad = 'hihi", "x=1"]}`,
			},
			expected: expected{
				status: http.StatusOK,
				body:   `{"code": [{"error": "Cannot parse: 1:13: this_is_bad = 'hihi"}, {"code": "x = 1"}]}`,
			},
		},
		{
			name: "file mode keeps trailing newline",
			input: input{
				body: `{"formatter": "black", "notebook": false, "code": ["x=1"], "options": {"line_length": 88}}`,
			},
			expected: expected{
				status: http.StatusOK,
				body:   `{"code": [{"code": "x = 1\n"}]}`,
			},
		},
		{
			name: "empty batch",
			input: input{
				body: `{"formatter": "black", "notebook": true, "code": []}`,
			},
			expected: expected{
				status: http.StatusOK,
				body:   `{"code": []}`,
			},
		},
		{
			name: "unknown formatter",
			input: input{
				body: `{"formatter": "nope", "notebook": true, "code": ["x=1"]}`,
			},
			expected: expected{
				status: http.StatusNotFound,
				body:   `{"message": "Formatter nope not found!"}`,
			},
		},
		{
			name: "unavailable formatter",
			input: input{
				body: `{"formatter": "styler", "notebook": true, "code": ["x=1"]}`,
			},
			expected: expected{
				status: http.StatusNotFound,
				body:   `{"message": "Formatter styler not found!"}`,
			},
		},
		{
			name: "malformed body",
			input: input{
				body: `{"formatter": `,
			},
			expected: expected{
				status: http.StatusBadRequest,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(Config{})
			rec := f.do(http.MethodPost, "/jupyterlab_code_formatter/format", tc.input.body, nil)

			assert.Equal(t, tc.expected.status, rec.Code)
			if tc.expected.body != "" {
				assert.JSONEq(t, tc.expected.body, rec.Body.String())
			}
		})
	}
}

func TestServer_FormatInvalidOptions(t *testing.T) {
	f := newFixture(Config{})
	rec := f.do(http.MethodPost, "/jupyterlab_code_formatter/format",
		`{"formatter": "black", "notebook": true, "code": ["x=1", "y=2"], "options": {"line_length": 0}}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Equal(t, 2, strings.Count(body, "invalid formatter options for black"))
	assert.NotContains(t, body, `"code":"`)
	assert.Empty(t, f.black.Calls())
}

func TestServer_UnavailableFormatterNeverRuns(t *testing.T) {
	f := newFixture(Config{})
	rec := f.do(http.MethodPost, "/jupyterlab_code_formatter/format",
		`{"formatter": "styler", "notebook": true, "code": ["x=1"]}`, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, f.styler.Calls())
}

func TestServer_Formatters(t *testing.T) {
	f := newFixture(Config{})

	rec := f.do(http.MethodGet, "/jupyterlab_code_formatter/formatters", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"formatters": {
		"black": {"enabled": true, "label": "Apply Black Formatter"},
		"styler": {"enabled": false, "label": "Apply Styler Formatter"}
	}}`, rec.Body.String())
	assert.Equal(t, 1, f.black.Probes())

	rec = f.do(http.MethodGet, "/jupyterlab_code_formatter/formatters?cached=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.black.Probes())

	rec = f.do(http.MethodGet, "/jupyterlab_code_formatter/formatters?cached=false", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, f.black.Probes())

	rec = f.do(http.MethodGet, "/jupyterlab_code_formatter/formatters?cached=maybe", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_CachedFormatRequest(t *testing.T) {
	f := newFixture(Config{})
	body := `{"formatter": "black", "notebook": true, "code": ["x=1"], "cache_formatters": true}`

	for range 3 {
		rec := f.do(http.MethodPost, "/jupyterlab_code_formatter/format", body, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 1, f.black.Probes())
}

func TestServer_Version(t *testing.T) {
	f := newFixture(Config{Version: "2.2.1", CheckPluginVersion: true})

	rec := f.do(http.MethodGet, "/jupyterlab_code_formatter/version", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"version": "2.2.1"}`, rec.Body.String())
}

func TestServer_PluginVersionCheck(t *testing.T) {
	type input struct {
		check  bool
		header string
	}

	type expected struct {
		status int
		body   string
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name:     "check disabled",
			input:    input{check: false, header: ""},
			expected: expected{status: http.StatusOK},
		},
		{
			name:     "matching version",
			input:    input{check: true, header: "2.2.1"},
			expected: expected{status: http.StatusOK},
		},
		{
			name:  "missing header",
			input: input{check: true, header: ""},
			expected: expected{
				status: http.StatusUnprocessableEntity,
				body: `{"message": "Mismatched versions of server extension (2.2.1) and lab extension (). ` +
					`Please ensure they are the same."}`,
			},
		},
		{
			name:  "different version",
			input: input{check: true, header: "1.0.0"},
			expected: expected{
				status: http.StatusUnprocessableEntity,
				body: `{"message": "Mismatched versions of server extension (2.2.1) and lab extension (1.0.0). ` +
					`Please ensure they are the same."}`,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(Config{Version: "2.2.1", CheckPluginVersion: tc.input.check})
			header := map[string]string{}
			if tc.input.header != "" {
				header[PluginVersionHeader] = tc.input.header
			}

			for _, req := range []struct{ method, target, body string }{
				{http.MethodGet, "/jupyterlab_code_formatter/formatters", ""},
				{http.MethodPost, "/jupyterlab_code_formatter/format", `{"formatter": "black", "code": ["x=1"]}`},
			} {
				rec := f.do(req.method, req.target, req.body, header)
				assert.Equal(t, tc.expected.status, rec.Code, req.target)
				if tc.expected.body != "" {
					assert.JSONEq(t, tc.expected.body, rec.Body.String(), req.target)
				}
			}
		})
	}
}

func TestServer_BasePath(t *testing.T) {
	f := newFixture(Config{BasePath: "fmt/"})

	rec := f.do(http.MethodGet, "/fmt/version", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/jupyterlab_code_formatter/version", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_GroupImports(t *testing.T) {
	sorter := tt.NewMockFormatter("Apply isort Formatter", tt.SortImports)
	reg := registry.New().Register("isort", sorter)
	s := New(reg, Config{GroupImports: true})

	req := httptest.NewRequest(http.MethodPost, "/jupyterlab_code_formatter/format",
		strings.NewReader(`{"formatter": "isort", "notebook": true, "code": ["x", "import sys", "import os"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, sorter.Calls(), "import sys\nimport os")
}

func TestServer_RequestID(t *testing.T) {
	f := newFixture(Config{})
	rec := f.do(http.MethodGet, "/jupyterlab_code_formatter/version", "", nil)

	id := rec.Header().Get(echo.HeaderXRequestID)
	_, err := uuid.Parse(id)
	assert.NoError(t, err, "request id %q", id)

	rec = f.do(http.MethodGet, "/jupyterlab_code_formatter/version", "",
		map[string]string{echo.HeaderXRequestID: "caller-id"})
	assert.Equal(t, "caller-id", rec.Header().Get(echo.HeaderXRequestID))
}

func TestServer_Metrics(t *testing.T) {
	f := newFixture(Config{})
	rec := f.do(http.MethodPost, "/jupyterlab_code_formatter/format",
		`{"formatter": "black", "notebook": true, "code": ["x=1", "bad = 'x"]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `cellfmt_batches_total{formatter="black"} 1`)
	assert.Contains(t, body, `cellfmt_cells_total{formatter="black",outcome="ok"} 1`)
	assert.Contains(t, body, `cellfmt_cells_total{formatter="black",outcome="error"} 1`)
	assert.Contains(t, body, `cellfmt_formatter_available{formatter="black"} 1`)
}

func TestServer_NoMetricsWithoutGatherer(t *testing.T) {
	s := New(registry.New(), Config{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Run(t *testing.T) {
	s := New(registry.New(), Config{Addr: "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	assert.NoError(t, <-done)
}
