package hooks

import (
	"context"

	"github.com/rickchristie/cellfmt"
	"go.uber.org/zap"
)

// Logging writes structured logs for batches, cells and availability probes.
// Successful cells are logged at debug level, failures at info: a cell that
// does not parse is a user error, not a server fault.
type Logging struct {
	logger *zap.Logger
}

// NewLogging creates a logging hook. A nil logger disables logging.
func NewLogging(logger *zap.Logger) *Logging {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logging{logger: logger.Named("format")}
}

// OnBeforeBatch logs the start of a batch.
func (h *Logging) OnBeforeBatch(_ context.Context, e cellfmt.BeforeBatchEvent) {
	h.logger.Debug("batch started",
		zap.String("formatter", e.Formatter),
		zap.Int("cells", e.Cells),
		zap.Bool("notebook", e.Notebook),
		zap.Bool("group_imports", e.GroupImports))
}

// OnAfterBatch logs the batch summary.
func (h *Logging) OnAfterBatch(_ context.Context, e cellfmt.AfterBatchEvent) {
	h.logger.Info("batch formatted",
		zap.String("formatter", e.Formatter),
		zap.Int("cells", e.Cells),
		zap.Int("errors", e.Errors),
		zap.Duration("duration", e.Duration))
}

// OnAfterCell logs the cell outcome.
func (h *Logging) OnAfterCell(_ context.Context, e cellfmt.AfterCellEvent) {
	if e.Error != nil {
		h.logger.Info("cell not formatted",
			zap.String("formatter", e.Formatter),
			zap.Int("index", e.Index),
			zap.Duration("duration", e.Duration),
			zap.Error(e.Error))
		return
	}
	h.logger.Debug("cell formatted",
		zap.String("formatter", e.Formatter),
		zap.Int("index", e.Index),
		zap.Bool("changed", e.Result != e.Code),
		zap.Duration("duration", e.Duration))
}

// OnAvailability logs probes that did not report the formatter as available.
func (h *Logging) OnAvailability(_ context.Context, e cellfmt.AvailabilityEvent) {
	if e.Availability.OK() || e.Cached {
		return
	}
	fields := []zap.Field{
		zap.String("formatter", e.Formatter),
		zap.Stringer("status", e.Availability.Status),
	}
	if e.Availability.Err != nil {
		fields = append(fields, zap.Error(e.Availability.Err))
	}
	if e.Availability.Status == cellfmt.StatusError {
		h.logger.Warn("availability check failed", fields...)
		return
	}
	h.logger.Debug("formatter unavailable", fields...)
}

var (
	_ cellfmt.BeforeBatchHook  = (*Logging)(nil)
	_ cellfmt.AfterBatchHook   = (*Logging)(nil)
	_ cellfmt.AfterCellHook    = (*Logging)(nil)
	_ cellfmt.AvailabilityHook = (*Logging)(nil)
)
