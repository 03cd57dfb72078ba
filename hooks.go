package cellfmt

import (
	"context"
)

// -----------------------------------------------------------------------------
// Formatting Hook Interfaces
// -----------------------------------------------------------------------------
//
// Hooks observe batch formatting. To use hooks:
//
//  1. Implement the desired hook interface(s)
//  2. Register with hooks.Registry
//  3. Pass the registry to registry.Registry.WithHooks
//
// Example:
//
//	type SlowCellHook struct {
//	    logger *zap.Logger
//	}
//
//	func (h *SlowCellHook) OnAfterCell(ctx context.Context, e AfterCellEvent) {
//	    if e.Duration > time.Second {
//	        h.logger.Warn("slow cell", zap.String("formatter", e.Formatter))
//	    }
//	}
//
// Hooks are called in registration order and never return errors. A hook
// cannot change a cell's result.
// -----------------------------------------------------------------------------

// BeforeBatchHook is notified after the formatter is resolved and before the
// first cell is formatted. It is not called for batches that fail resolution.
type BeforeBatchHook interface {
	OnBeforeBatch(ctx context.Context, event BeforeBatchEvent)
}

// AfterBatchHook is notified once every cell has a result. It is always
// called if OnBeforeBatch was called.
type AfterBatchHook interface {
	OnAfterBatch(ctx context.Context, event AfterBatchEvent)
}

// BeforeCellHook is notified before each backend invocation.
type BeforeCellHook interface {
	OnBeforeCell(ctx context.Context, event BeforeCellEvent)
}

// AfterCellHook is notified after each backend invocation, successful or not.
type AfterCellHook interface {
	OnAfterCell(ctx context.Context, event AfterCellEvent)
}

// AvailabilityHook is notified whenever availability is resolved, from a
// fresh probe or from the cache.
type AvailabilityHook interface {
	OnAvailability(ctx context.Context, event AvailabilityEvent)
}
