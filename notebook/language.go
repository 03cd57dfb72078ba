package notebook

import (
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"
)

// Languages the classifier may pick when a file has no telling name.
var classifierCandidates = []string{"Python", "R", "Go"}

// Language detects the language of a source file from its name and content
// and returns it lowercased ("python", "r", "go"), or "" when unknown.
// Notebooks report their kernel language instead.
func Language(path string, content []byte) string {
	if strings.EqualFold(filepath.Ext(path), ".ipynb") {
		nb, err := Parse(content)
		if err != nil {
			return ""
		}
		return nb.Language()
	}

	if path != "" {
		if lang := enry.GetLanguage(filepath.Base(path), content); lang != "" {
			return strings.ToLower(lang)
		}
	}
	if lang, safe := enry.GetLanguageByShebang(content); safe && lang != "" {
		return strings.ToLower(lang)
	}
	if len(content) == 0 {
		return ""
	}
	lang, _ := enry.GetLanguageByClassifier(content, classifierCandidates)
	return strings.ToLower(lang)
}

// DefaultFormatters maps a language to the formatters applied, in order,
// when the caller does not name one.
type DefaultFormatters map[string][]string

// BuiltinDefaults returns the formatter chains used when nothing is configured.
func BuiltinDefaults() DefaultFormatters {
	return DefaultFormatters{
		"python": {"isort", "black"},
		"r":      {"styler"},
		"go":     {"gofmt"},
	}
}

// skipNames disable formatting for a language when configured.
var skipNames = map[string]bool{"noop": true, "skip": true}

// For returns the formatter chain for lang, with "noop" and "skip" entries
// removed. Configured chains in d override the built-in ones.
func (d DefaultFormatters) For(lang string) []string {
	lang = strings.ToLower(lang)
	chain, ok := d[lang]
	if !ok {
		chain = BuiltinDefaults()[lang]
	}
	var out []string
	for _, name := range chain {
		if !skipNames[name] {
			out = append(out, name)
		}
	}
	return out
}
