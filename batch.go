package cellfmt

import (
	"context"
	"encoding/json"
	"errors"
)

// BatchRequest is one format call: a list of cells and the formatter to run
// against them. The order of Code is preserved in the response.
type BatchRequest struct {
	// Formatter is the registry name of the backend, e.g. "black".
	Formatter string `json:"formatter" yaml:"formatter"`

	// Notebook enables notebook post-processing: trailing whitespace trim and
	// trailing semicolon restoration.
	Notebook bool `json:"notebook" yaml:"notebook"`

	// Code holds one entry per cell.
	Code []string `json:"code" yaml:"code"`

	// Options is passed through to the backend untouched.
	Options Options `json:"options,omitempty" yaml:"options,omitempty"`

	// UseCache serves the formatter's availability from cache instead of
	// probing it again.
	UseCache bool `json:"cache_formatters,omitempty" yaml:"cache_formatters,omitempty"`

	// GroupImports consolidates import statements from all cells into the
	// first cell that has any.
	GroupImports bool `json:"group_imports,omitempty" yaml:"group_imports,omitempty"`
}

// CellResult is the outcome for one cell: either Code or Error is set, never
// both and never neither. Use [Success] and [Failure] to build one.
type CellResult struct {
	Code  *string `json:"code,omitempty" yaml:"code,omitempty"`
	Error *string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Success builds a result holding formatted code.
func Success(code string) CellResult {
	return CellResult{Code: &code}
}

// Failure builds a result holding an error message.
func Failure(err error) CellResult {
	msg := err.Error()
	return CellResult{Error: &msg}
}

// OK reports whether the cell was formatted.
func (r CellResult) OK() bool {
	return r.Code != nil
}

// Text returns the formatted code, or "" for a failed cell.
func (r CellResult) Text() string {
	if r.Code == nil {
		return ""
	}
	return *r.Code
}

// Message returns the error message, or "" for a formatted cell.
func (r CellResult) Message() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// MarshalJSON enforces the one-of shape on the wire.
func (r CellResult) MarshalJSON() ([]byte, error) {
	switch {
	case r.Code != nil && r.Error == nil:
		return json.Marshal(struct {
			Code string `json:"code"`
		}{*r.Code})
	case r.Error != nil && r.Code == nil:
		return json.Marshal(struct {
			Error string `json:"error"`
		}{*r.Error})
	default:
		return nil, errors.New("cell result must hold exactly one of code or error")
	}
}

// BatchResponse holds one result per request cell, in request order.
type BatchResponse struct {
	Code []CellResult `json:"code" yaml:"code"`
}

// Errors returns the number of failed cells.
func (r *BatchResponse) Errors() int {
	n := 0
	for _, c := range r.Code {
		if !c.OK() {
			n++
		}
	}
	return n
}

// FormatterInfo describes one registered formatter for listing.
type FormatterInfo struct {
	Name    string `json:"-" yaml:"name"`
	Label   string `json:"label" yaml:"label"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Status  Status `json:"-" yaml:"-"`
}

// FormatterList is the wire shape of the formatter listing.
type FormatterList struct {
	Formatters map[string]FormatterInfo `json:"formatters"`
}

// NewFormatterList indexes infos by name.
func NewFormatterList(infos []FormatterInfo) FormatterList {
	list := FormatterList{Formatters: make(map[string]FormatterInfo, len(infos))}
	for _, info := range infos {
		list.Formatters[info.Name] = info
	}
	return list
}

// CellFunc formats one piece of code. index is the cell position in the batch,
// or -1 for code that does not belong to a single cell.
type CellFunc func(ctx context.Context, index int, code string) (string, error)

// FormatEach formats cells in order and records one result per cell. A failing
// cell never stops the loop; the next cell is formatted regardless.
func FormatEach(ctx context.Context, cells []string, format CellFunc) []CellResult {
	results := make([]CellResult, len(cells))
	for i, code := range cells {
		out, err := format(ctx, i, code)
		if err != nil {
			results[i] = Failure(err)
			continue
		}
		results[i] = Success(out)
	}
	return results
}
