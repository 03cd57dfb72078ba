// Package hooks provides a registry for batch formatting hooks, plus the
// logging and metrics hooks used by the server and CLI.
//
// Each hook interface in the cellfmt package corresponds to one event type.
// A hook implements only the interfaces it needs:
//
//	type SlowCells struct{}
//
//	func (SlowCells) OnAfterCell(ctx context.Context, e cellfmt.AfterCellEvent) {
//	    if e.Duration > time.Second {
//	        fmt.Printf("cell %d took %s\n", e.Index, e.Duration)
//	    }
//	}
//
//	reg := hooks.NewRegistry().Register(SlowCells{}).Register(hooks.NewLogging(logger))
//	formatters := registry.New().WithHooks(reg)
package hooks

import (
	"context"

	"github.com/rickchristie/cellfmt"
)

// Registry stores hooks in order and dispatches events to those implementing
// the relevant interface.
//
// Registry is NOT safe for concurrent registration. Register all hooks before
// formatting starts; the Fire methods are safe to call concurrently.
type Registry struct {
	hooks []any
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		hooks: make([]any, 0),
	}
}

// Register adds a hook. Hooks are called in the order they are registered.
func (r *Registry) Register(hook any) *Registry {
	r.hooks = append(r.hooks, hook)
	return r
}

// FireBeforeBatch dispatches a BeforeBatchEvent to all BeforeBatchHook implementations.
func (r *Registry) FireBeforeBatch(ctx context.Context, event cellfmt.BeforeBatchEvent) {
	if r == nil {
		return
	}
	for _, h := range r.hooks {
		if hook, ok := h.(cellfmt.BeforeBatchHook); ok {
			hook.OnBeforeBatch(ctx, event)
		}
	}
}

// FireAfterBatch dispatches an AfterBatchEvent to all AfterBatchHook implementations.
func (r *Registry) FireAfterBatch(ctx context.Context, event cellfmt.AfterBatchEvent) {
	if r == nil {
		return
	}
	for _, h := range r.hooks {
		if hook, ok := h.(cellfmt.AfterBatchHook); ok {
			hook.OnAfterBatch(ctx, event)
		}
	}
}

// FireBeforeCell dispatches a BeforeCellEvent to all BeforeCellHook implementations.
func (r *Registry) FireBeforeCell(ctx context.Context, event cellfmt.BeforeCellEvent) {
	if r == nil {
		return
	}
	for _, h := range r.hooks {
		if hook, ok := h.(cellfmt.BeforeCellHook); ok {
			hook.OnBeforeCell(ctx, event)
		}
	}
}

// FireAfterCell dispatches an AfterCellEvent to all AfterCellHook implementations.
func (r *Registry) FireAfterCell(ctx context.Context, event cellfmt.AfterCellEvent) {
	if r == nil {
		return
	}
	for _, h := range r.hooks {
		if hook, ok := h.(cellfmt.AfterCellHook); ok {
			hook.OnAfterCell(ctx, event)
		}
	}
}

// FireAvailability dispatches an AvailabilityEvent to all AvailabilityHook implementations.
func (r *Registry) FireAvailability(ctx context.Context, event cellfmt.AvailabilityEvent) {
	if r == nil {
		return
	}
	for _, h := range r.hooks {
		if hook, ok := h.(cellfmt.AvailabilityHook); ok {
			hook.OnAvailability(ctx, event)
		}
	}
}

// Len returns the number of registered hooks.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.hooks)
}

// Clear removes all registered hooks.
func (r *Registry) Clear() {
	r.hooks = make([]any, 0)
}
