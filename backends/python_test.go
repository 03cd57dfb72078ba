package backends

import (
	"testing"

	"github.com/rickchristie/cellfmt"
	"github.com/stretchr/testify/assert"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{name: "black beta", text: "black, 19.3b0", expected: "v19.3.0-b0"},
		{name: "black release", text: "black, 23.1.0 (compiled: yes)\nPython (CPython) 3.11.2", expected: "v23.1.0"},
		{name: "ruff", text: "ruff 0.4.10", expected: "v0.4.10"},
		{name: "dev release", text: "0.4.10.dev3", expected: "v0.4.10-dev3"},
		{name: "release candidate", text: "1.2rc1", expected: "v1.2.0-rc1"},
		{name: "R", text: "Rscript (R) version 4.3.1 (2023-06-16)", expected: "v4.3.1"},
		{name: "no version", text: "command not found", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseVersion(tt.text))
		})
	}
}

func TestAtLeast(t *testing.T) {
	assert.False(t, AtLeast("v19.3.0-b0", "v20.8.0-b0"))
	assert.True(t, AtLeast("v20.8.0-b0", "v20.8.0-b0"))
	assert.True(t, AtLeast("v22.1.0", "v20.8.0-b0"))
	assert.False(t, AtLeast("v19.3.0-b0", "v19.3.0"))
	assert.True(t, AtLeast("", "v99.0.0"))
}

func TestArgs(t *testing.T) {
	type input struct {
		args    ArgsFunc
		version string
		opts    cellfmt.Options
	}

	type expected struct {
		args []string
		err  string
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name:     "black defaults",
			input:    input{args: blackArgs, version: "v24.1.0"},
			expected: expected{args: []string{"-q", "-"}},
		},
		{
			name: "black options from JSON",
			input: input{args: blackArgs, version: "v24.1.0", opts: cellfmt.Options{
				"line_length":          float64(100),
				"string_normalization": false,
				"magic_trailing_comma": false,
				"target_versions":      []any{"py38", "py39"},
				"preview":              true,
			}},
			expected: expected{args: []string{
				"-q", "--line-length", "100", "--skip-string-normalization", "--skip-magic-trailing-comma",
				"--target-version", "py38", "--target-version", "py39", "--preview", "-",
			}},
		},
		{
			name: "black before file mode uses py36 switch",
			input: input{args: blackArgs, version: "v18.9.0-b0", opts: cellfmt.Options{
				"target_versions": []any{"py36", "py37"},
			}},
			expected: expected{args: []string{"-q", "--py36", "-"}},
		},
		{
			name: "black before file mode ignores py27 targets",
			input: input{args: blackArgs, version: "v18.9.0-b0", opts: cellfmt.Options{
				"target_versions": []any{"py27", "py37"},
			}},
			expected: expected{args: []string{"-q", "-"}},
		},
		{
			name:     "black preview too old",
			input:    input{args: blackArgs, version: "v21.12.0-b0", opts: cellfmt.Options{"preview": true}},
			expected: expected{err: "invalid formatter options: preview requires black >= 22.1.0, found 21.12.0-b0"},
		},
		{
			name:     "black fractional line length",
			input:    input{args: blackArgs, opts: cellfmt.Options{"line_length": 88.5}},
			expected: expected{err: "invalid formatter options: line_length must be an integer, got 88.5"},
		},
		{
			name: "isort 5",
			input: input{args: isortArgs, version: "v5.12.0", opts: cellfmt.Options{
				"profile":           "black",
				"force_single_line": true,
				"line_length":       120,
			}},
			expected: expected{args: []string{"--line-length", "120", "--profile", "black", "--force-single-line-imports", "-"}},
		},
		{
			name:     "isort 4 has no profiles",
			input:    input{args: isortArgs, version: "v4.3.21", opts: cellfmt.Options{"profile": "black"}},
			expected: expected{err: "invalid formatter options: profile requires isort >= 5.0.0, found 4.3.21"},
		},
		{
			name: "autopep8",
			input: input{args: autopep8Args, opts: cellfmt.Options{
				"max_line_length": 120,
				"aggressive":      float64(5),
				"select":          []any{"E1", "W2"},
			}},
			expected: expected{args: []string{"--max-line-length=120", "--aggressive", "--aggressive", "--select=E1,W2", "-"}},
		},
		{
			name:     "yapf predefined style",
			input:    input{args: yapfArgs, opts: cellfmt.Options{"style": "google"}},
			expected: expected{args: []string{"--style=google"}},
		},
		{
			name: "yapf style knobs",
			input: input{args: yapfArgs, opts: cellfmt.Options{
				"style": "pep8",
				"style_config": map[string]any{
					"split_before_logical_operator": true,
					"column_limit":                  float64(100),
				},
			}},
			expected: expected{args: []string{"--style={based_on_style: pep8, column_limit: 100, split_before_logical_operator: True}"}},
		},
		{
			name:     "yapf defaults",
			input:    input{args: yapfArgs},
			expected: expected{args: nil},
		},
		{
			name:     "ruff format",
			input:    input{args: ruffFormatArgs, version: "v0.4.10", opts: cellfmt.Options{"line_length": 100, "preview": true}},
			expected: expected{args: []string{"format", "--line-length", "100", "--preview", "-"}},
		},
		{
			name:     "ruff without format subcommand",
			input:    input{args: ruffFormatArgs, version: "v0.0.290"},
			expected: expected{err: "ruff format requires ruff >= 0.1.2, found 0.0.290"},
		},
		{
			name:     "ruff fixes defaults",
			input:    input{args: ruffArgs, version: "v0.4.10"},
			expected: expected{args: []string{"check", "--fix-only", "--quiet", "-"}},
		},
		{
			name: "ruff fixes with extra args",
			input: input{args: ruffArgs, version: "v0.4.10", opts: cellfmt.Options{
				"args": []any{"--select=I001", "--config", "lint.isort.known-first-party=['foo']"},
			}},
			expected: expected{args: []string{
				"check", "--fix-only", "--quiet",
				"--select=I001", "--config", "lint.isort.known-first-party=['foo']", "-",
			}},
		},
		{
			name:     "ruff fixes unsafe",
			input:    input{args: ruffArgs, opts: cellfmt.Options{"args": []any{"--select=E711", "--unsafe-fixes"}}},
			expected: expected{args: []string{"check", "--fix-only", "--quiet", "--select=E711", "--unsafe-fixes", "-"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := tt.input.args(tt.input.version, tt.input.opts)
			if tt.expected.err != "" {
				assert.EqualError(t, err, tt.expected.err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected.args, args)
		})
	}
}

func TestBlueIgnoresBlackReleaseGates(t *testing.T) {
	args, err := BlueSpec().Args("v0.9.1", cellfmt.Options{"preview": true})
	assert.NoError(t, err)
	assert.Equal(t, []string{"-q", "--preview", "-"}, args)
}

func TestCleanStderr(t *testing.T) {
	assert.Equal(t, "Cannot parse: 1:13: this_is_bad = 'hihi",
		cleanBlackStderr("error: cannot format -: Cannot parse: 1:13: this_is_bad = 'hihi\nOh no!"))
	assert.Equal(t, "1:5: Expected an expression",
		cleanRuffStderr("error: Failed to parse <stdin>:1:5: Expected an expression"))
}
