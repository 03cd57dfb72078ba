package escape

import (
	"regexp"
	"slices"
	"strings"
)

// Marker is the reserved prefix that disguises a notebook-only line as a
// comment. The control character keeps it from colliding with anything a
// formatter emits on its own.
const Marker = "# \x01 "

// Language identifiers used by escapers and pipelines.
const (
	LangPython = "python"
	LangR      = "r"
)

// Escaper recognizes one class of notebook-only syntax on a single line and
// disguises it as a comment. Escapers are stateless and safe for concurrent use.
type Escaper struct {
	// Name identifies the rule in logs and tests.
	Name string

	// Langs lists the cell languages the rule applies to.
	Langs []string

	// Match reports whether an unescaped line belongs to this syntax class.
	Match func(line string) bool
}

// Applies reports whether the escaper is relevant for lang.
func (e Escaper) Applies(lang string) bool {
	return slices.Contains(e.Langs, lang)
}

// Escape prefixes a matching line with [Marker], keeping the original line
// (indentation included) verbatim after it. Lines already carrying the marker
// are returned unchanged, so a line matched by several rules is escaped once.
func (e Escaper) Escape(line string) string {
	if IsEscaped(line) || !e.Match(line) {
		return line
	}
	return Marker + line
}

// Unescape restores a line escaped by any rule. See [UnescapeLine].
func (e Escaper) Unescape(line string) string {
	return UnescapeLine(line)
}

// IsEscaped reports whether line carries the marker after its indentation.
func IsEscaped(line string) bool {
	return strings.HasPrefix(trimIndent(line), Marker)
}

// UnescapeLine strips the marker and returns what followed it. A formatter
// may have re-indented the comment; that indentation is discarded because the
// original indentation was kept after the marker.
func UnescapeLine(line string) string {
	stripped := trimIndent(line)
	if !strings.HasPrefix(stripped, Marker) {
		return line
	}
	return stripped[len(Marker):]
}

func trimIndent(line string) string {
	return strings.TrimLeft(line, " \t")
}

// -----------------------------------------------------------------------------
// Rules
// -----------------------------------------------------------------------------

var runScriptRe = regexp.MustCompile(`^\s*run\s+\w+`)

// MagicCommand escapes line magics and cell magics: "%time x", "%%timeit".
func MagicCommand() Escaper {
	return Escaper{
		Name:  "magic",
		Langs: []string{LangPython},
		Match: func(line string) bool {
			return strings.HasPrefix(trimIndent(line), "%")
		},
	}
}

// RunScript escapes the automagic form of %run: "run script.py".
func RunScript() Escaper {
	return Escaper{
		Name:  "run",
		Langs: []string{LangPython},
		Match: runScriptRe.MatchString,
	}
}

// Help escapes interactive help such as "obj?", "obj??" and "?obj". Lines with
// a '#' anywhere are left alone so comments that mention '?' are not touched.
func Help() Escaper {
	return Escaper{
		Name:  "help",
		Langs: []string{LangPython},
		Match: func(line string) bool {
			if strings.Contains(line, "#") {
				return false
			}
			stripped := strings.TrimSpace(line)
			return strings.HasPrefix(stripped, "?") || strings.HasSuffix(stripped, "?")
		},
	}
}

// Shell escapes shell escapes: "!pip install x", "!!ls".
func Shell() Escaper {
	return Escaper{
		Name:  "shell",
		Langs: []string{LangPython},
		Match: func(line string) bool {
			return strings.HasPrefix(trimIndent(line), "!")
		},
	}
}

// StructuredComment escapes report front-matter options such as "#| echo: false",
// which formatters like to rewrite as "# | echo: false".
func StructuredComment() Escaper {
	return Escaper{
		Name:  "structured-comment",
		Langs: []string{LangPython, LangR},
		Match: func(line string) bool {
			return strings.HasPrefix(trimIndent(line), "#|")
		},
	}
}

// Default returns every rule in its fixed order. Escaping applies them in this
// order; unescaping strips the marker once per line whatever rule set it.
func Default() []Escaper {
	return []Escaper{
		MagicCommand(),
		RunScript(),
		Help(),
		Shell(),
		StructuredComment(),
	}
}

// ForLanguage returns the default rules that apply to lang, in order.
func ForLanguage(lang string) []Escaper {
	var out []Escaper
	for _, e := range Default() {
		if e.Applies(lang) {
			out = append(out, e)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Line helpers
// -----------------------------------------------------------------------------

// EscapeLines applies every escaper, in order, to every line. The input slice
// is not modified.
func EscapeLines(lines []string, escapers []Escaper) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		for _, e := range escapers {
			line = e.Escape(line)
		}
		out[i] = line
	}
	return out
}

// UnescapeLines strips the marker from every line that carries it. All rules
// share one marker, so one pass restores lines escaped by any of them.
func UnescapeLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = UnescapeLine(line)
	}
	return out
}

// SplitLines splits text into lines. A single trailing newline does not yield
// an extra empty line, and "\r\n" endings are treated as "\n".
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}
