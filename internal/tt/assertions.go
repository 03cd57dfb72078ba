package tt

import (
	"testing"

	"github.com/rickchristie/cellfmt"
	"github.com/stretchr/testify/assert"
)

// Cell describes the expected outcome of one cell. Exactly one of Code and
// Error should be set; ErrorContains matches a substring instead.
type Cell struct {
	Code          *string
	Error         *string
	ErrorContains string
}

// Code builds an expected successful cell.
func Code(code string) Cell {
	return Cell{Code: &code}
}

// Error builds an expected failed cell with an exact message.
func Error(msg string) Cell {
	return Cell{Error: &msg}
}

// ErrorContaining builds an expected failed cell matched by substring.
func ErrorContaining(substr string) Cell {
	return Cell{ErrorContains: substr}
}

// AssertCells asserts that actual holds exactly the expected cells, in order.
// It also checks the one-of invariant on every actual entry.
func AssertCells(t *testing.T, expected []Cell, actual []cellfmt.CellResult) {
	t.Helper()

	if !assert.Equal(t, len(expected), len(actual), "cell count mismatch") {
		return
	}

	for i := range expected {
		exp, act := expected[i], actual[i]
		assert.True(t, (act.Code == nil) != (act.Error == nil),
			"cell %d must hold exactly one of code or error", i)

		switch {
		case exp.Code != nil:
			if assert.NotNil(t, act.Code, "cell %d: expected code, got error %q", i, act.Message()) {
				assert.Equal(t, *exp.Code, *act.Code, "cell %d code", i)
			}
		case exp.Error != nil:
			if assert.NotNil(t, act.Error, "cell %d: expected error, got code %q", i, act.Text()) {
				assert.Equal(t, *exp.Error, *act.Error, "cell %d error", i)
			}
		default:
			if assert.NotNil(t, act.Error, "cell %d: expected error, got code %q", i, act.Text()) {
				assert.Contains(t, *act.Error, exp.ErrorContains, "cell %d error", i)
			}
		}
	}
}
