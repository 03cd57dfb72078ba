package escape

import (
	"context"
	"slices"
	"strings"

	"github.com/rickchristie/cellfmt"
	"go.uber.org/zap"
)

// IncompatibleLanguages lists cell magics whose body is not code in the
// formatter's language. Cells opening with "%<lang>" or "%%<lang>", followed by
// whitespace or the end of the cell, are returned untouched.
var IncompatibleLanguages = []string{
	"html",
	"js",
	"javascript",
	"latex",
	"markdown",
	"perl",
	"ruby",
	"sh",
	"bash",
	"script",
	"svg",
	"sql",
	"writefile",
}

// IsIncompatible reports whether code opens with a magic for a language the
// formatter cannot parse.
func IsIncompatible(code string) bool {
	if !strings.HasPrefix(code, "%") {
		return false
	}
	name := strings.TrimPrefix(strings.TrimPrefix(code, "%"), "%")
	if i := strings.IndexAny(name, " \t\r\n"); i >= 0 {
		name = name[:i]
	}
	return slices.Contains(IncompatibleLanguages, name)
}

// Pipeline protects notebook-only syntax around a backend call.
//
// Run performs, in order:
//  1. Return code unchanged if it opens with an incompatible language magic
//  2. Remember whether the trimmed code ends with ';'
//  3. Escape every line with every escaper, in order
//  4. Call the backend; its error is returned as-is
//  5. Unescape every line of the output
//  6. In notebook mode, trim trailing whitespace
//  7. In notebook mode, restore a trailing ';' the backend dropped
type Pipeline struct {
	lang     string
	escapers []Escaper
	logger   *zap.Logger
}

// NewPipeline creates a pipeline with the default escapers for lang.
func NewPipeline(lang string) *Pipeline {
	return &Pipeline{
		lang:     lang,
		escapers: ForLanguage(lang),
		logger:   zap.NewNop(),
	}
}

// WithEscapers replaces the escaper set. Order is significant.
func (p *Pipeline) WithEscapers(escapers ...Escaper) *Pipeline {
	p.escapers = escapers
	return p
}

// WithLogger sets the logger used for passthrough notices.
func (p *Pipeline) WithLogger(logger *zap.Logger) *Pipeline {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// Lang returns the cell language this pipeline is tuned for.
func (p *Pipeline) Lang() string {
	return p.lang
}

// Escapers returns the escapers applied by this pipeline, in order.
func (p *Pipeline) Escapers() []Escaper {
	return p.escapers
}

// Run formats code through backend with notebook-only syntax protected.
func (p *Pipeline) Run(
	ctx context.Context,
	backend cellfmt.BackendFunc,
	code string,
	notebook bool,
	opts cellfmt.Options,
) (string, error) {
	if IsIncompatible(code) {
		p.logger.Debug("incompatible cell magic, leaving cell untouched",
			zap.String("lang", p.lang))
		return code, nil
	}

	hasSemicolon := strings.HasSuffix(strings.TrimSpace(code), ";")

	escaped := strings.Join(EscapeLines(SplitLines(code), p.escapers), "\n")

	formatted, err := backend(ctx, escaped, notebook, opts)
	if err != nil {
		return "", err
	}

	// The extra empty line keeps the backend's final newline once rejoined.
	lines := append(SplitLines(formatted), "")
	result := strings.Join(UnescapeLines(lines), "\n")

	if notebook {
		result = strings.TrimRightFunc(result, isTrailingSpace)
	}
	if hasSemicolon && notebook && !strings.HasSuffix(result, ";") {
		result += ";"
	}
	return result, nil
}

func isTrailingSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}

// Wrap returns a Formatter that runs f's Format through a pipeline for lang.
// Label, availability and option schema are delegated to f.
func Wrap(f cellfmt.Formatter, lang string) cellfmt.Formatter {
	return WrapWith(f, NewPipeline(lang))
}

// WrapWith is like Wrap with an explicitly configured pipeline.
func WrapWith(f cellfmt.Formatter, p *Pipeline) cellfmt.Formatter {
	return &wrapped{inner: f, pipeline: p}
}

type wrapped struct {
	inner    cellfmt.Formatter
	pipeline *Pipeline
}

func (w *wrapped) Label() string {
	return w.inner.Label()
}

func (w *wrapped) Available(ctx context.Context) cellfmt.Availability {
	return w.inner.Available(ctx)
}

func (w *wrapped) Format(ctx context.Context, code string, notebook bool, opts cellfmt.Options) (string, error) {
	return w.pipeline.Run(ctx, w.inner.Format, code, notebook, opts)
}

func (w *wrapped) OptionSchema() map[string]any {
	if sp, ok := w.inner.(cellfmt.OptionSchemaProvider); ok {
		return sp.OptionSchema()
	}
	return nil
}

// Unwrap returns the formatter underneath the pipeline.
func (w *wrapped) Unwrap() cellfmt.Formatter {
	return w.inner
}
