// Package cellfmt formats notebook cells and source files through pluggable
// formatting backends.
//
// The library provides the contract between a caller holding code cells and
// the tools that format them. Notebook cells carry syntax that no language
// formatter accepts (IPython magics, shell escapes, help queries); the escape
// package hides it from the backend and restores it afterwards.
//
// # Quick Start
//
//	reg := registry.New().
//	    Register("black", backends.Black(backends.ProcessConfig{})).
//	    Register("isort", backends.Isort(backends.ProcessConfig{}))
//
//	resp, err := reg.FormatBatch(ctx, &cellfmt.BatchRequest{
//	    Formatter: "black",
//	    Notebook:  true,
//	    Code:      []string{"x=1;", "%%timeit\ny=2"},
//	})
//	if cellfmt.IsResolution(err) {
//	    // unknown or unavailable formatter, nothing was formatted
//	}
//	for _, cell := range resp.Code {
//	    if cell.OK() {
//	        fmt.Println(cell.Text())
//	    } else {
//	        fmt.Println("error:", cell.Message())
//	    }
//	}
//
// # Formatter
//
// A [Formatter] probes its tool with Available and transforms one piece of
// code with Format. [NewFormatterFunc] adapts plain functions:
//
//	upper := cellfmt.NewFormatterFunc("Upper", nil,
//	    func(ctx context.Context, code string, notebook bool, opts cellfmt.Options) (string, error) {
//	        return strings.ToUpper(code), nil
//	    })
//
// Availability is tri-state: [StatusAvailable], [StatusUnavailable] when the
// tool is missing, and [StatusError] when the probe itself failed. The
// registry caches the last probe per formatter; requests choose between the
// cached value and a fresh probe.
//
// # Batches
//
// [BatchRequest] and [BatchResponse] are the wire shapes. Every request cell
// gets exactly one [CellResult] in the same position, holding either code or
// an error message. A failing cell never stops the batch.
//
// # Hooks
//
// Hooks observe batches, cells and availability probes. Implement any of the
// hook interfaces ([BeforeBatchHook], [AfterCellHook], ...) and register the
// value on a hooks.Registry. The hooks package ships zap logging and
// Prometheus metrics hooks.
//
// # Packages
//
//   - escape: line escapers and the escaping pipeline
//   - registry: name resolution, availability cache, batch dispatch
//   - imports: consolidation of imports across cells
//   - backends: black, isort, styler, gofmt, LLM and command-line formatters
//   - notebook: .ipynb reading and writing, language detection
//   - server: HTTP API compatible with the JupyterLab code formatter
//   - config: file and environment configuration
package cellfmt

// Version is the cellfmt release reported by the version endpoint.
const Version = "0.1.0"
