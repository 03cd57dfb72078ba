// Package notebook reads and writes Jupyter notebooks and picks formatters
// for their language.
//
// Only code cells are touched. Every other part of the document, including
// unknown metadata, survives a read/write round trip.
package notebook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrCellCount is returned when replacing code cells with a different count.
var ErrCellCount = errors.New("code cell count mismatch")

// Notebook is a decoded .ipynb document.
type Notebook struct {
	doc   map[string]any
	cells []map[string]any
}

// Read decodes a notebook.
func Read(r io.Reader) (*Notebook, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode notebook: %w", err)
	}

	nb := &Notebook{doc: doc}
	raw, _ := doc["cells"].([]any)
	for i, c := range raw {
		cell, ok := c.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("decode notebook: cell %d is not an object", i)
		}
		nb.cells = append(nb.cells, cell)
	}
	return nb, nil
}

// Parse decodes a notebook from bytes.
func Parse(data []byte) (*Notebook, error) {
	return Read(bytes.NewReader(data))
}

// Language returns the lowercased kernel language, falling back to the
// CodeMirror mode of language_info. It returns "" when neither is set.
// IPython kernels report "python".
func (nb *Notebook) Language() string {
	lang := nb.language()
	if lang == "ipython" {
		return "python"
	}
	return lang
}

func (nb *Notebook) language() string {
	meta, _ := nb.doc["metadata"].(map[string]any)
	if ks, ok := meta["kernelspec"].(map[string]any); ok {
		if lang, ok := ks["language"].(string); ok && lang != "" {
			return strings.ToLower(lang)
		}
	}
	if info, ok := meta["language_info"].(map[string]any); ok {
		switch mode := info["codemirror_mode"].(type) {
		case string:
			return strings.ToLower(mode)
		case map[string]any:
			if name, ok := mode["name"].(string); ok {
				return strings.ToLower(name)
			}
		}
		if name, ok := info["name"].(string); ok {
			return strings.ToLower(name)
		}
	}
	return ""
}

// CodeCells returns the source of every code cell, in order.
func (nb *Notebook) CodeCells() []string {
	var out []string
	for _, cell := range nb.cells {
		if cell["cell_type"] == "code" {
			out = append(out, joinSource(cell["source"]))
		}
	}
	return out
}

// SetCodeCells replaces the source of every code cell, in order. code must
// hold one entry per code cell.
func (nb *Notebook) SetCodeCells(code []string) error {
	i := 0
	for _, cell := range nb.cells {
		if cell["cell_type"] != "code" {
			continue
		}
		if i >= len(code) {
			return fmt.Errorf("%w: have %d sources", ErrCellCount, len(code))
		}
		cell["source"] = splitSource(code[i])
		i++
	}
	if i != len(code) {
		return fmt.Errorf("%w: notebook has %d code cells, got %d sources", ErrCellCount, i, len(code))
	}
	return nil
}

// Write encodes the notebook the way Jupyter saves it: one-space indent,
// sorted keys, no HTML escaping and a trailing newline.
func (nb *Notebook) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(nb.doc); err != nil {
		return fmt.Errorf("encode notebook: %w", err)
	}
	return nil
}

// Bytes returns the encoded notebook.
func (nb *Notebook) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := nb.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func joinSource(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []any:
		var b strings.Builder
		for _, line := range s {
			if str, ok := line.(string); ok {
				b.WriteString(str)
			}
		}
		return b.String()
	default:
		return ""
	}
}

// splitSource splits code into lines that keep their newline, the list form
// Jupyter writes.
func splitSource(code string) []any {
	lines := strings.SplitAfter(code, "\n")
	out := make([]any, 0, len(lines))
	for _, l := range lines {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
