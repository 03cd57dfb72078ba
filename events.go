package cellfmt

import "time"

// -----------------------------------------------------------------------------
// Hook Event Interface
// -----------------------------------------------------------------------------

// HookEvent is a marker interface for all hook events.
type HookEvent interface {
	hookEvent()
}

// -----------------------------------------------------------------------------
// Batch Events
// -----------------------------------------------------------------------------

// BeforeBatchEvent is emitted once a formatter is resolved, before the first cell.
type BeforeBatchEvent struct {
	// Formatter is the registry name of the resolved formatter.
	Formatter string

	// Cells is the number of cells in the request.
	Cells int

	// Notebook mirrors the request flag.
	Notebook bool

	// GroupImports mirrors the request flag.
	GroupImports bool
}

func (BeforeBatchEvent) hookEvent() {}

// AfterBatchEvent is emitted after every cell has a result.
type AfterBatchEvent struct {
	Formatter string
	Cells     int

	// Errors is the number of cells that failed.
	Errors int

	// Duration is how long the whole batch took.
	Duration time.Duration
}

func (AfterBatchEvent) hookEvent() {}

// -----------------------------------------------------------------------------
// Cell Events
// -----------------------------------------------------------------------------

// BeforeCellEvent is emitted before a single piece of code is formatted.
type BeforeCellEvent struct {
	Formatter string

	// Index is the cell position in the batch. It is -1 for the consolidated
	// import block produced by import grouping.
	Index int

	Code string
}

func (BeforeCellEvent) hookEvent() {}

// AfterCellEvent is emitted after a single piece of code is formatted.
type AfterCellEvent struct {
	Formatter string
	Index     int
	Code      string

	// Result is the formatted code (empty if Error is set).
	Result string

	Duration time.Duration

	// Error is any error that occurred (nil if successful).
	Error error
}

func (AfterCellEvent) hookEvent() {}

// -----------------------------------------------------------------------------
// Availability Events
// -----------------------------------------------------------------------------

// AvailabilityEvent is emitted whenever a formatter's availability is resolved.
type AvailabilityEvent struct {
	Formatter    string
	Availability Availability

	// Cached is true when the result came from the cache without probing.
	Cached bool
}

func (AvailabilityEvent) hookEvent() {}
