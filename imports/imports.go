// Package imports consolidates import statements across the cells of a batch.
//
// With grouping enabled, import lines are pulled out of every cell, formatted
// once as a single block and placed at the top of the first cell that had
// any. Import sorters can then order and deduplicate imports for the whole
// notebook instead of cell by cell. The number of results always equals the
// number of cells.
package imports

import (
	"context"
	"regexp"
	"strings"

	"github.com/rickchristie/cellfmt"
)

var (
	// importRe matches top-level "import x" and "from x import y", commented
	// or not. Indented imports belong to a block and stay where they are.
	importRe = regexp.MustCompile(`^(#\s*)?(import\s+\S|from\s+\S+\s+import[\s(])`)
)

// Parts is a cell split into its import lines and everything else.
type Parts struct {
	// Imports holds the import lines, in order.
	Imports string

	// Rest holds the non-import lines. Empty when the cell is imports only.
	Rest string

	// HasImports reports whether the cell had at least one import line.
	HasImports bool
}

// Split separates import lines from the rest of a cell. A parenthesized
// "from x import (" block extends until the line containing ")".
//
// A cell made only of imports (ignoring blank lines) keeps its original text
// as the import block, so comments and grouping between imports survive.
func Split(cell string) Parts {
	var imports, rest []string
	inBlock := false

	for _, line := range strings.Split(cell, "\n") {
		switch {
		case inBlock:
			imports = append(imports, line)
			if strings.Contains(line, ")") {
				inBlock = false
			}
		case importRe.MatchString(line):
			imports = append(imports, line)
			if strings.Contains(line, "(") && !strings.Contains(line, ")") {
				inBlock = true
			}
		default:
			rest = append(rest, line)
		}
	}

	if len(imports) == 0 {
		return Parts{Rest: cell}
	}

	restText := strings.Join(dropLeadingBlank(rest), "\n")
	if strings.TrimSpace(restText) == "" {
		return Parts{Imports: cell, HasImports: true}
	}
	return Parts{
		Imports:    strings.Join(imports, "\n"),
		Rest:       restText,
		HasImports: true,
	}
}

func dropLeadingBlank(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	return lines
}

// Group formats cells with import grouping.
//
// Each cell's non-import remainder is formatted on its own. The import lines
// of every cell whose remainder formatted cleanly are joined in batch order
// and formatted once (with index -1); the formatted block is prepended to the
// result of the first cell that contributed imports, separated by a blank
// line when that cell has other code. Cells whose only content was imports
// end up empty. A cell whose remainder fails keeps its imports, so the caller
// falling back to the original cell does not duplicate them.
//
// If the first import cell or the import block fails to format, grouping is
// abandoned and only the cells that had imports are formatted again as-is.
func Group(ctx context.Context, cells []string, format cellfmt.CellFunc) []cellfmt.CellResult {
	parts := make([]Parts, len(cells))
	anchor := -1
	for i, cell := range cells {
		parts[i] = Split(cell)
		if parts[i].HasImports && anchor < 0 {
			anchor = i
		}
	}

	if anchor < 0 {
		return cellfmt.FormatEach(ctx, cells, format)
	}

	results := make([]cellfmt.CellResult, len(cells))
	for i, p := range parts {
		if p.HasImports && p.Rest == "" {
			results[i] = cellfmt.Success("")
			continue
		}
		results[i] = formatCell(ctx, i, p.Rest, format)
	}

	if !results[anchor].OK() {
		return ungroup(ctx, cells, parts, results, format)
	}

	var blocks []string
	for i, p := range parts {
		if p.HasImports && results[i].OK() {
			blocks = append(blocks, p.Imports)
		}
	}

	block, err := format(ctx, -1, strings.Join(blocks, "\n"))
	if err != nil {
		return ungroup(ctx, cells, parts, results, format)
	}

	if body := results[anchor].Text(); strings.TrimSpace(body) != "" {
		block = strings.TrimRight(block, "\n") + "\n\n" + body
	}
	results[anchor] = cellfmt.Success(block)
	return results
}

// ungroup reformats the cells that had imports from their original text and
// keeps the results of the others.
func ungroup(ctx context.Context, cells []string, parts []Parts, results []cellfmt.CellResult, format cellfmt.CellFunc) []cellfmt.CellResult {
	for i, p := range parts {
		if p.HasImports {
			results[i] = formatCell(ctx, i, cells[i], format)
		}
	}
	return results
}

func formatCell(ctx context.Context, index int, code string, format cellfmt.CellFunc) cellfmt.CellResult {
	out, err := format(ctx, index, code)
	if err != nil {
		return cellfmt.Failure(err)
	}
	return cellfmt.Success(out)
}
