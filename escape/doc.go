// Package escape keeps notebook-only syntax intact across a call to a
// general-purpose code formatter.
//
// Formatters are written for plain source files. A notebook cell may contain
// lines that are not valid in the cell's language: magics ("%timeit",
// "%%capture"), shell escapes ("!pip install x"), interactive help ("len?"),
// automagic "run script.py" or report options ("#| echo: false"). Each
// [Escaper] recognizes one of these classes on a single line and disguises it
// as a comment prefixed with [Marker]. After the formatter runs, the marker is
// stripped and the original line comes back byte for byte.
//
// # Using a Pipeline
//
//	p := escape.NewPipeline(escape.LangPython)
//	out, err := p.Run(ctx, blackBackend, "%%timeit\nx=1", true, nil)
//	// out == "%%timeit\nx = 1"
//
// Backends usually apply the pipeline by wrapping themselves:
//
//	f := escape.Wrap(backends.Black(), escape.LangPython)
//
// Backends whose language has no notebook magics (gofmt, for example) are
// registered unwrapped.
//
// # Ordering
//
// Escapers run in the order returned by [Default]. A line matching several
// rules ("%time f?") is escaped by the first; later rules see the marker and
// leave it alone. Unescaping is marker-driven and rule independent.
package escape
