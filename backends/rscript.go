package backends

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/rickchristie/cellfmt"
	"github.com/rickchristie/cellfmt/escape"
	"github.com/rickchristie/cellfmt/schema"
)

var (
	rErrorRe      = regexp.MustCompile(`^Error(?: in .*?)?\s?: ?`)
	rSyntacticRe  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9._]*$`)
	rHaltedSuffix = "Execution halted"
)

// RScript formats R code with an R package. Every call spawns a fresh
// "Rscript --vanilla" process, so no state leaks from one cell to the next.
type RScript struct {
	*Process
	pkg string
}

// RFunc builds the R expression that reads code from stdin and prints the
// formatted result, given the options already rendered as R arguments.
type RFunc func(args string) string

// NewRScript creates an R backend for pkg. call renders the formatting
// expression. A string value of a preset option names a pkg function whose
// result is passed instead, e.g. styler::tidyverse_reindention().
func NewRScript(label, pkg string, call RFunc, optionSchema map[string]any, cfg ProcessConfig, presets ...string) *RScript {
	spec := ProcessSpec{
		Label:       label,
		Binary:      "Rscript",
		VersionArgs: []string{"--version"},
		Args: func(_ string, opts cellfmt.Options) ([]string, error) {
			args, err := rArguments(pkg, opts, presets)
			if err != nil {
				return nil, err
			}
			return []string{"--vanilla", "-e", call(args)}, nil
		},
		Policy:      ExitCode,
		CleanStderr: cleanRStderr,
		Schema:      optionSchema,
	}
	return &RScript{Process: NewProcess(spec, cfg), pkg: pkg}
}

// Available checks that Rscript runs and that the package is installed.
func (r *RScript) Available(ctx context.Context) cellfmt.Availability {
	if a := r.Process.Available(ctx); !a.OK() {
		return a
	}
	path, err := r.path()
	if err != nil {
		return cellfmt.Unavailable(err)
	}

	expr := fmt.Sprintf("cat(requireNamespace(%s, quietly = TRUE))", strconv.Quote(r.pkg))
	out, err := r.cfg.Runner.Run(ctx, Invocation{Path: path, Args: []string{"--vanilla", "-e", expr}, Env: r.cfg.Env})
	if err != nil {
		return cellfmt.CheckFailed(fmt.Errorf("Rscript: %w", err))
	}
	if out.ExitCode != 0 {
		return cellfmt.CheckFailed(&ExitError{Tool: "Rscript", Code: out.ExitCode, Stderr: cleanRStderr(out.Stderr)})
	}
	if strings.TrimSpace(out.Stdout) != "TRUE" {
		return cellfmt.Unavailable(fmt.Errorf("R package %s is not installed", r.pkg))
	}
	return cellfmt.Available()
}

var stylerSchema = schema.Object(map[string]*schema.Property{
	"scope":                         schema.String("Invasiveness of styling").Enum("none", "spaces", "indention", "line_breaks", "tokens"),
	"strict":                        schema.Boolean("Apply rules strictly"),
	"indent_by":                     schema.Integer("Spaces per indention level").Min(0),
	"start_comments_with_one_space": schema.Boolean("Force one space after #"),
	"math_token_spacing":            schema.Map("Spacing around math tokens, or a preset such as tidyverse_math_token_spacing", nil).AlsoString(),
	"reindention":                   schema.Map("Reindention rules, or a preset such as tidyverse_reindention", nil).AlsoString(),
})

// Styler formats R with the styler package.
func Styler(cfg ProcessConfig) cellfmt.Formatter {
	call := func(args string) string {
		return `cat(styler::style_text(readLines(file("stdin"))` + args + `), sep = "\n")`
	}
	r := NewRScript("Apply Styler Formatter", "styler", call, stylerSchema, cfg, "math_token_spacing", "reindention")
	return escape.WrapWith(r, escape.NewPipeline(escape.LangR).WithLogger(cfg.Logger))
}

var formatRSchema = schema.Object(map[string]*schema.Property{
	"comment":        schema.Boolean("Keep comments"),
	"blank":          schema.Boolean("Keep blank lines"),
	"arrow":          schema.Boolean("Replace = with <- for assignment"),
	"brace.newline":  schema.Boolean("Put { on a new line"),
	"indent":         schema.Integer("Spaces per indention level").Min(0),
	"wrap":           schema.Boolean("Wrap comments"),
	"width.cutoff":   schema.Integer("Line width for deparsing").Min(20).Max(500),
	"args.newline":   schema.Boolean("Start function arguments on a new line"),
	"pipe":           schema.Boolean("Replace %>% with |>"),
	"spaces":         schema.Integer("Spaces per indention level (deprecated alias of indent)").Min(0),
	"replace_assign": schema.Boolean("Replace = with <- (old name of arrow)"),
})

// FormatR formats R with the formatR package.
func FormatR(cfg ProcessConfig) cellfmt.Formatter {
	call := func(args string) string {
		return `cat(formatR::tidy_source(text = readLines(file("stdin")), output = FALSE` + args + `)$text.tidy, sep = "\n")`
	}
	r := NewRScript("Apply FormatR Formatter", "formatR", call, formatRSchema, cfg)
	return escape.WrapWith(r, escape.NewPipeline(escape.LangR).WithLogger(cfg.Logger))
}

// rArguments renders options as ", key = value" R arguments, keys sorted.
func rArguments(pkg string, opts cellfmt.Options, presets []string) (string, error) {
	var b strings.Builder
	for _, k := range sortedKeys(opts) {
		var v string
		var err error
		if name, ok := opts[k].(string); ok && slices.Contains(presets, k) {
			v, err = rPresetCall(pkg, name)
		} else {
			v, err = RLiteral(opts[k])
		}
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", cellfmt.ErrInvalidOptions, k, err)
		}
		b.WriteString(", ")
		b.WriteString(rName(k))
		b.WriteString(" = ")
		b.WriteString(v)
	}
	return b.String(), nil
}

func rPresetCall(pkg, name string) (string, error) {
	if !rSyntacticRe.MatchString(name) {
		return "", fmt.Errorf("%q is not an R function name", name)
	}
	return pkg + "::" + name + "()", nil
}

// RLiteral renders a decoded option value as R source. Mappings become
// list(...), arrays become c(...) or list(...) when they hold mappings.
func RLiteral(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if t {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return "", fmt.Errorf("unsupported number %v", t)
		}
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case string:
		return strconv.Quote(t), nil
	case map[string]any:
		parts := make([]string, 0, len(t))
		for _, k := range sortedKeys(t) {
			lit, err := RLiteral(t[k])
			if err != nil {
				return "", err
			}
			parts = append(parts, rName(k)+" = "+lit)
		}
		return "list(" + strings.Join(parts, ", ") + ")", nil
	case []any:
		fn := "c"
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if _, ok := item.(map[string]any); ok {
				fn = "list"
			}
			lit, err := RLiteral(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, lit)
		}
		return fn + "(" + strings.Join(parts, ", ") + ")", nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}

func rName(k string) string {
	if rSyntacticRe.MatchString(k) {
		return k
	}
	return "`" + strings.ReplaceAll(k, "`", "\\`") + "`"
}

func cleanRStderr(stderr string) string {
	stderr = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(stderr), rHaltedSuffix))
	return strings.TrimSpace(rErrorRe.ReplaceAllString(stderr, ""))
}
