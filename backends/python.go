package backends

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rickchristie/cellfmt"
	"github.com/rickchristie/cellfmt/escape"
	"github.com/rickchristie/cellfmt/schema"
	"go.uber.org/zap"
)

// Release gates for option translation.
const (
	blackFileMode          = "v19.3.0-b0"
	blackMagicTrailComma   = "v20.8.0-b0"
	blackPreview           = "v22.1.0"
	isortProfiles          = "v5.0.0"
	ruffFormatSubcommand   = "v0.1.2"
	autopep8MaxAggressive  = 2
	defaultPythonLineWidth = 88
)

var blackStderrRe = regexp.MustCompile(`(?m)^error: cannot format [^:]*: `)

func wrapPython(f cellfmt.Formatter, logger *zap.Logger) cellfmt.Formatter {
	return escape.WrapWith(f, escape.NewPipeline(escape.LangPython).WithLogger(logger))
}

// -----------------------------------------------------------------------------
// black / blue
// -----------------------------------------------------------------------------

var blackSchema = schema.Object(map[string]*schema.Property{
	"line_length":          schema.Integer("How many characters per line to allow").Min(1).Default(defaultPythonLineWidth),
	"string_normalization": schema.Boolean("Normalize string quotes and prefixes").Default(true),
	"magic_trailing_comma": schema.Boolean("Use trailing commas as a reason to split lines").Default(true),
	"target_versions": schema.Array("Python versions the output must support",
		schema.Enum("py27", "py33", "py34", "py35", "py36", "py37", "py38", "py39", "py310", "py311", "py312", "py313")),
	"is_pyi":  schema.Boolean("Format as a typing stub"),
	"preview": schema.Boolean("Enable preview style"),
})

// BlackSpec describes black. Errors carry black's parse message, e.g.
// "Cannot parse: 1:13: this_is_bad = 'hihi".
func BlackSpec() ProcessSpec {
	return ProcessSpec{
		Label:       "Apply Black Formatter",
		Binary:      "black",
		VersionArgs: []string{"--version"},
		Args:        blackArgs,
		Policy:      ExitCode,
		CleanStderr: cleanBlackStderr,
		Schema:      blackSchema,
	}
}

// Black formats Python with black, wrapped for notebook cells.
func Black(cfg ProcessConfig) cellfmt.Formatter {
	return wrapPython(NewProcess(BlackSpec(), cfg), cfg.Logger)
}

// BlueSpec describes blue, a black fork sharing its command line. Blue is
// versioned independently, so no black release gates apply to it.
func BlueSpec() ProcessSpec {
	spec := BlackSpec()
	spec.Label = "Apply Blue Formatter"
	spec.Binary = "blue"
	spec.Args = func(_ string, opts cellfmt.Options) ([]string, error) {
		return blackArgs("", opts)
	}
	return spec
}

// Blue formats Python with blue, wrapped for notebook cells.
func Blue(cfg ProcessConfig) cellfmt.Formatter {
	return wrapPython(NewProcess(BlueSpec(), cfg), cfg.Logger)
}

func blackArgs(version string, opts cellfmt.Options) ([]string, error) {
	args := []string{"-q"}

	if n, ok, err := intOption(opts, "line_length"); err != nil {
		return nil, err
	} else if ok {
		args = append(args, "--line-length", strconv.Itoa(n))
	}

	if b, ok, err := boolOption(opts, "string_normalization"); err != nil {
		return nil, err
	} else if ok && !b {
		args = append(args, "--skip-string-normalization")
	}

	if b, ok, err := boolOption(opts, "magic_trailing_comma"); err != nil {
		return nil, err
	} else if ok && !b {
		if !AtLeast(version, blackMagicTrailComma) {
			return nil, unsupported("black", version, "magic_trailing_comma", blackMagicTrailComma)
		}
		args = append(args, "--skip-magic-trailing-comma")
	}

	if targets, ok, err := stringsOption(opts, "target_versions"); err != nil {
		return nil, err
	} else if ok && len(targets) > 0 {
		// Before the file mode rework black only knew a single --py36 switch.
		if !AtLeast(version, blackFileMode) {
			if allAtLeastPy36(targets) {
				args = append(args, "--py36")
			}
		} else {
			for _, t := range targets {
				args = append(args, "--target-version", t)
			}
		}
	}

	if b, ok, err := boolOption(opts, "is_pyi"); err != nil {
		return nil, err
	} else if ok && b {
		args = append(args, "--pyi")
	}

	if b, ok, err := boolOption(opts, "preview"); err != nil {
		return nil, err
	} else if ok && b {
		if !AtLeast(version, blackPreview) {
			return nil, unsupported("black", version, "preview", blackPreview)
		}
		args = append(args, "--preview")
	}

	return append(args, "-"), nil
}

func allAtLeastPy36(targets []string) bool {
	for _, t := range targets {
		minor, err := strconv.Atoi(strings.TrimPrefix(t, "py3"))
		if !strings.HasPrefix(t, "py3") || err != nil || minor < 6 {
			return false
		}
	}
	return true
}

func cleanBlackStderr(stderr string) string {
	stderr = blackStderrRe.ReplaceAllString(stderr, "")
	if i := strings.IndexByte(stderr, '\n'); i >= 0 {
		stderr = stderr[:i]
	}
	return strings.TrimSpace(stderr)
}

func unsupported(tool, version, option, minimum string) error {
	return fmt.Errorf("%w: %s requires %s >= %s, found %s",
		cellfmt.ErrInvalidOptions, option, tool, strings.TrimPrefix(minimum, "v"), strings.TrimPrefix(version, "v"))
}

// -----------------------------------------------------------------------------
// isort
// -----------------------------------------------------------------------------

var isortSchema = schema.Object(map[string]*schema.Property{
	"line_length":       schema.Integer("Maximum line length").Min(1).Default(79),
	"profile":           schema.String("Base profile").Enum("black", "django", "pycharm", "google", "open_stack", "plone", "attrs", "hug", "wemake", "appnexus"),
	"force_single_line": schema.Boolean("Put every import on its own line"),
	"float_to_top":      schema.Boolean("Move imports found anywhere to the top"),
	"combine_as":        schema.Boolean("Combine 'as' imports on the same line"),
})

// IsortSpec describes isort.
func IsortSpec() ProcessSpec {
	return ProcessSpec{
		Label:       "Apply Isort Formatter",
		Binary:      "isort",
		VersionArgs: []string{"--version"},
		Args:        isortArgs,
		Policy:      ExitCode,
		Schema:      isortSchema,
	}
}

// Isort sorts Python imports with isort, wrapped for notebook cells.
func Isort(cfg ProcessConfig) cellfmt.Formatter {
	return wrapPython(NewProcess(IsortSpec(), cfg), cfg.Logger)
}

func isortArgs(version string, opts cellfmt.Options) ([]string, error) {
	var args []string

	if n, ok, err := intOption(opts, "line_length"); err != nil {
		return nil, err
	} else if ok {
		args = append(args, "--line-length", strconv.Itoa(n))
	}

	if p, ok, err := stringOption(opts, "profile"); err != nil {
		return nil, err
	} else if ok {
		if !AtLeast(version, isortProfiles) {
			return nil, unsupported("isort", version, "profile", isortProfiles)
		}
		args = append(args, "--profile", p)
	}

	if b, ok, err := boolOption(opts, "force_single_line"); err != nil {
		return nil, err
	} else if ok && b {
		args = append(args, "--force-single-line-imports")
	}

	if b, ok, err := boolOption(opts, "float_to_top"); err != nil {
		return nil, err
	} else if ok && b {
		if !AtLeast(version, isortProfiles) {
			return nil, unsupported("isort", version, "float_to_top", isortProfiles)
		}
		args = append(args, "--float-to-top")
	}

	if b, ok, err := boolOption(opts, "combine_as"); err != nil {
		return nil, err
	} else if ok && b {
		args = append(args, "--combine-as")
	}

	return append(args, "-"), nil
}

// -----------------------------------------------------------------------------
// autopep8
// -----------------------------------------------------------------------------

var autopep8Schema = schema.Object(map[string]*schema.Property{
	"max_line_length": schema.Integer("Maximum line length").Min(1).Default(79),
	"aggressive":      schema.Integer("Aggressiveness level").Min(0).Max(autopep8MaxAggressive),
	"select":          schema.Array("Only fix these error codes", map[string]any{"type": "string"}),
	"ignore":          schema.Array("Do not fix these error codes", map[string]any{"type": "string"}),
})

// Autopep8Spec describes autopep8.
func Autopep8Spec() ProcessSpec {
	return ProcessSpec{
		Label:       "Apply Autopep8 Formatter",
		Binary:      "autopep8",
		VersionArgs: []string{"--version"},
		Args:        autopep8Args,
		Policy:      ExitCode,
		Schema:      autopep8Schema,
	}
}

// Autopep8 formats Python with autopep8, wrapped for notebook cells.
func Autopep8(cfg ProcessConfig) cellfmt.Formatter {
	return wrapPython(NewProcess(Autopep8Spec(), cfg), cfg.Logger)
}

func autopep8Args(_ string, opts cellfmt.Options) ([]string, error) {
	var args []string

	if n, ok, err := intOption(opts, "max_line_length"); err != nil {
		return nil, err
	} else if ok {
		args = append(args, "--max-line-length="+strconv.Itoa(n))
	}

	if n, ok, err := intOption(opts, "aggressive"); err != nil {
		return nil, err
	} else if ok {
		for range min(n, autopep8MaxAggressive) {
			args = append(args, "--aggressive")
		}
	}

	for _, key := range []string{"select", "ignore"} {
		codes, ok, err := stringsOption(opts, key)
		if err != nil {
			return nil, err
		}
		if ok && len(codes) > 0 {
			args = append(args, "--"+key+"="+strings.Join(codes, ","))
		}
	}

	return append(args, "-"), nil
}

// -----------------------------------------------------------------------------
// yapf
// -----------------------------------------------------------------------------

var yapfSchema = schema.Object(map[string]*schema.Property{
	"style":        schema.String("Predefined style").Enum("pep8", "google", "facebook", "yapf"),
	"style_config": schema.Map("Style knobs, e.g. column_limit", schema.Scalar("").Schema()),
})

// YapfSpec describes yapf.
func YapfSpec() ProcessSpec {
	return ProcessSpec{
		Label:       "Apply YAPF Formatter",
		Binary:      "yapf",
		VersionArgs: []string{"--version"},
		Args:        yapfArgs,
		Policy:      ExitCode,
		Schema:      yapfSchema,
	}
}

// Yapf formats Python with yapf, wrapped for notebook cells.
func Yapf(cfg ProcessConfig) cellfmt.Formatter {
	return wrapPython(NewProcess(YapfSpec(), cfg), cfg.Logger)
}

// yapfArgs builds --style={based_on_style: pep8, column_limit: 100}. yapf
// reads stdin when no file is given.
func yapfArgs(_ string, opts cellfmt.Options) ([]string, error) {
	base, hasBase, err := stringOption(opts, "style")
	if err != nil {
		return nil, err
	}
	knobs, hasKnobs, err := mapOption(opts, "style_config")
	if err != nil {
		return nil, err
	}

	switch {
	case !hasKnobs || len(knobs) == 0:
		if hasBase {
			return []string{"--style=" + base}, nil
		}
		return nil, nil
	default:
		var parts []string
		if hasBase {
			parts = append(parts, "based_on_style: "+base)
		}
		for _, k := range sortedKeys(knobs) {
			parts = append(parts, k+": "+scalarText(knobs[k]))
		}
		return []string{"--style={" + strings.Join(parts, ", ") + "}"}, nil
	}
}

// -----------------------------------------------------------------------------
// ruff
// -----------------------------------------------------------------------------

var ruffFormatSchema = schema.Object(map[string]*schema.Property{
	"line_length": schema.Integer("How many characters per line to allow").Min(1).Max(320),
	"preview":     schema.Boolean("Enable preview style"),
})

var ruffSchema = schema.Object(map[string]*schema.Property{
	"args": schema.Array("Extra arguments for ruff check, e.g. --select=I001 or --unsafe-fixes",
		schema.String("One command-line argument").Schema()),
})

// RuffFormatSpec describes "ruff format".
func RuffFormatSpec() ProcessSpec {
	return ProcessSpec{
		Label:       "Apply Ruff Formatter",
		Binary:      "ruff",
		VersionArgs: []string{"--version"},
		Args:        ruffFormatArgs,
		Policy:      ExitCode,
		CleanStderr: cleanRuffStderr,
		Schema:      ruffFormatSchema,
	}
}

// RuffFormat formats Python with ruff, wrapped for notebook cells.
func RuffFormat(cfg ProcessConfig) cellfmt.Formatter {
	return wrapPython(NewProcess(RuffFormatSpec(), cfg), cfg.Logger)
}

// RuffSpec describes "ruff check --fix-only", which applies lint fixes such
// as import sorting (--select=I001) instead of reformatting.
func RuffSpec() ProcessSpec {
	return ProcessSpec{
		Label:       "Apply Ruff Fixes",
		Binary:      "ruff",
		VersionArgs: []string{"--version"},
		Args:        ruffArgs,
		Policy:      ExitCode,
		CleanStderr: cleanRuffStderr,
		Schema:      ruffSchema,
	}
}

// Ruff applies ruff lint fixes to Python, wrapped for notebook cells.
func Ruff(cfg ProcessConfig) cellfmt.Formatter {
	return wrapPython(NewProcess(RuffSpec(), cfg), cfg.Logger)
}

func ruffArgs(_ string, opts cellfmt.Options) ([]string, error) {
	args := []string{"check", "--fix-only", "--quiet"}
	extra, _, err := stringsOption(opts, "args")
	if err != nil {
		return nil, err
	}
	args = append(args, extra...)
	return append(args, "-"), nil
}

func ruffFormatArgs(version string, opts cellfmt.Options) ([]string, error) {
	if !AtLeast(version, ruffFormatSubcommand) {
		return nil, fmt.Errorf("ruff format requires ruff >= %s, found %s",
			strings.TrimPrefix(ruffFormatSubcommand, "v"), strings.TrimPrefix(version, "v"))
	}
	args := []string{"format"}

	if n, ok, err := intOption(opts, "line_length"); err != nil {
		return nil, err
	} else if ok {
		args = append(args, "--line-length", strconv.Itoa(n))
	}

	if b, ok, err := boolOption(opts, "preview"); err != nil {
		return nil, err
	} else if ok && b {
		args = append(args, "--preview")
	}

	return append(args, "-"), nil
}

func cleanRuffStderr(stderr string) string {
	stderr = strings.TrimPrefix(stderr, "error: ")
	stderr = strings.TrimPrefix(stderr, "Failed to parse <stdin>:")
	return strings.TrimSpace(stderr)
}

// -----------------------------------------------------------------------------
// Generic command
// -----------------------------------------------------------------------------

// CommandSpec describes an arbitrary command that reads code on stdin and
// writes the result on stdout. Any stderr output makes it return the code
// unchanged. Options are not accepted.
func CommandSpec(label string, argv []string) ProcessSpec {
	var binary string
	var args []string
	if len(argv) > 0 {
		binary, args = argv[0], argv[1:]
	}
	return ProcessSpec{
		Label:  label,
		Binary: binary,
		Args: func(string, cellfmt.Options) ([]string, error) {
			return args, nil
		},
		Policy: SoftFail,
		Schema: schema.Empty(),
	}
}

// Command wraps an arbitrary formatting command with the escaping pipeline
// for lang. An empty lang skips the pipeline.
func Command(label string, argv []string, lang string, cfg ProcessConfig) cellfmt.Formatter {
	p := NewProcess(CommandSpec(label, argv), cfg)
	if lang == "" {
		return p
	}
	return escape.WrapWith(p, escape.NewPipeline(lang).WithLogger(cfg.Logger))
}
