package escape

import (
	"context"
	"errors"
	"testing"

	"github.com/rickchristie/cellfmt"
	"github.com/rickchristie/cellfmt/internal/tt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_Run(t *testing.T) {
	type input struct {
		code     string
		notebook bool
		opts     cellfmt.Options
	}

	tests := []struct {
		name     string
		input    input
		expected string
	}{
		{
			name:     "plain code",
			input:    input{code: "x= 22;  e          =1", notebook: true},
			expected: "x = 22\ne = 1",
		},
		{
			name:     "cell magic preserved",
			input:    input{code: "%%timeit\nsome_string='abc'", notebook: true},
			expected: "%%timeit\nsome_string = \"abc\"",
		},
		{
			name:     "magic preserved with options",
			input:    input{code: "%%timeit\nsome_string='abc'", notebook: true, opts: cellfmt.Options{"string_normalization": false}},
			expected: "%%timeit\nsome_string = 'abc'",
		},
		{
			name:     "shell command preserved",
			input:    input{code: "x=1\n!pwd\ny=2", notebook: true},
			expected: "x = 1\n!pwd\ny = 2",
		},
		{
			name:     "help preserved",
			input:    input{code: "import os\nos.path?\nos.path??", notebook: true},
			expected: "import os\nos.path?\nos.path??",
		},
		{
			name:     "run script preserved",
			input:    input{code: "run my_script\nx=1", notebook: true},
			expected: "run my_script\nx = 1",
		},
		{
			name:     "structured comment preserved",
			input:    input{code: "#| echo: false\nx=1", notebook: true},
			expected: "#| echo: false\nx = 1",
		},
		{
			name:     "ordinary comment still formatted",
			input:    input{code: "#note\nx=1", notebook: true},
			expected: "# note\nx = 1",
		},
		{
			name:     "semicolon restored in notebook",
			input:    input{code: "x = 1;", notebook: true},
			expected: "x = 1;",
		},
		{
			name:     "semicolon with trailing whitespace restored",
			input:    input{code: "x = 1;  \n", notebook: true},
			expected: "x = 1;",
		},
		{
			name:     "semicolon not restored outside notebook",
			input:    input{code: "x = 1;", notebook: false},
			expected: "x = 1\n",
		},
		{
			name:     "file mode keeps single trailing newline",
			input:    input{code: "x=1\n", notebook: false},
			expected: "x = 1\n",
		},
		{
			name:     "html cell passthrough",
			input:    input{code: "%%html\n<h1>Hi</h1>", notebook: true},
			expected: "%%html\n<h1>Hi</h1>",
		},
		{
			name:     "line magic sql passthrough",
			input:    input{code: "%sql SELECT  *  FROM t;", notebook: true},
			expected: "%sql SELECT  *  FROM t;",
		},
		{
			name:     "incompatible magic only at cell start",
			input:    input{code: "x=1\n%%html", notebook: true},
			expected: "x = 1\n%%html",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline(LangPython)
			got, err := p.Run(context.Background(), pythonLike, tt.input.code, tt.input.notebook, tt.input.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

// pythonLike avoids shadowing by the table variable named tt.
var pythonLike cellfmt.BackendFunc = tt.PythonLike

func TestPipeline_IncompatibleSkipsBackend(t *testing.T) {
	called := false
	backend := func(context.Context, string, bool, cellfmt.Options) (string, error) {
		called = true
		return "", nil
	}

	for _, lang := range IncompatibleLanguages {
		called = false
		code := "%%" + lang + "\nanything  goes"
		got, err := NewPipeline(LangPython).Run(context.Background(), backend, code, true, nil)
		require.NoError(t, err)
		assert.Equal(t, code, got)
		assert.False(t, called, "backend must not run for %s", lang)
	}
}

func TestIsIncompatible(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected bool
	}{
		{name: "cell magic", code: "%%bash\nls -la", expected: true},
		{name: "line magic with arguments", code: "%sql SELECT 1", expected: true},
		{name: "magic alone", code: "%%html", expected: true},
		{name: "writefile with path", code: "%%writefile out.py\nx=1", expected: true},
		{name: "capture body is python", code: "%%capture out\nx=1", expected: false},
		{name: "longer magic name", code: "%%shellx\nx=1", expected: false},
		{name: "prefix of a name", code: "%sqlalchemy_thing\nx=1", expected: false},
		{name: "plain code", code: "html = 1", expected: false},
		{name: "empty", code: "", expected: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsIncompatible(tc.code))
		})
	}
}

func TestPipeline_CaptureCellFormatted(t *testing.T) {
	got, err := NewPipeline(LangPython).Run(context.Background(), pythonLike, "%%capture out\nx=1", true, nil)
	require.NoError(t, err)
	assert.Equal(t, "%%capture out\nx = 1", got)
}

func TestPipeline_BackendSeesEscapedText(t *testing.T) {
	var seen string
	backend := func(_ context.Context, code string, _ bool, _ cellfmt.Options) (string, error) {
		seen = code
		return code, nil
	}

	_, err := NewPipeline(LangPython).Run(context.Background(), backend, "%time f()\n!ls\nx = 1", true, nil)
	require.NoError(t, err)
	assert.Equal(t, Marker+"%time f()\n"+Marker+"!ls\nx = 1", seen)
}

func TestPipeline_BackendErrorPropagates(t *testing.T) {
	sentinel := errors.New("boom")
	backend := func(context.Context, string, bool, cellfmt.Options) (string, error) {
		return "partial", sentinel
	}

	got, err := NewPipeline(LangPython).Run(context.Background(), backend, "x = 1", true, nil)
	assert.ErrorIs(t, err, sentinel)
	assert.Empty(t, got)
}

func TestPipeline_ParseErrorMessage(t *testing.T) {
	_, err := NewPipeline(LangPython).Run(context.Background(), pythonLike, "this_is_bad = 'hihi", true, nil)
	require.Error(t, err)
	assert.Equal(t, "Cannot parse: 1:13: this_is_bad = 'hihi", err.Error())
}

func TestPipeline_RLanguageOnlyEscapesStructuredComments(t *testing.T) {
	var seen string
	backend := func(_ context.Context, code string, _ bool, _ cellfmt.Options) (string, error) {
		seen = code
		return code, nil
	}

	got, err := NewPipeline(LangR).Run(context.Background(), backend, "#| echo: false\n!x", true, nil)
	require.NoError(t, err)
	assert.Equal(t, Marker+"#| echo: false\n!x", seen)
	assert.Equal(t, "#| echo: false\n!x", got)
}

func TestPipeline_IndentedMagicInsideBlock(t *testing.T) {
	// The backend re-indents the escaped comment to the block level.
	backend := func(_ context.Context, code string, _ bool, _ cellfmt.Options) (string, error) {
		return "for i in range(3):\n    " + Marker + "  %time f(i)\n", nil
	}

	got, err := NewPipeline(LangPython).Run(context.Background(), backend, "for i in range(3):\n  %time f(i)", true, nil)
	require.NoError(t, err)
	assert.Equal(t, "for i in range(3):\n  %time f(i)", got)
}

func TestWrap(t *testing.T) {
	inner := tt.NewMockFormatter("Apply Fake", tt.PythonLike).
		WithOptionSchema(map[string]any{"type": "object"})

	f := Wrap(inner, LangPython)

	assert.Equal(t, "Apply Fake", f.Label())
	assert.True(t, f.Available(context.Background()).OK())

	sp, ok := f.(cellfmt.OptionSchemaProvider)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"type": "object"}, sp.OptionSchema())

	got, err := f.Format(context.Background(), "!pwd\nx=1;", true, nil)
	require.NoError(t, err)
	assert.Equal(t, "!pwd\nx = 1;", got)
	assert.Equal(t, []string{Marker + "!pwd\nx=1;"}, inner.Calls())
}
