// Package registry resolves formatters by name and runs batches of cells
// against them.
//
// A Registry is built once at startup and then shared by every request. The
// formatter table is read-only after registration; the availability cache is
// the only mutable state and is safe for concurrent use.
//
// Basic usage:
//
//	reg := registry.New().
//	    WithLogger(logger).
//	    Register("black", backends.Black(backends.ProcessConfig{})).
//	    Register("isort", backends.Isort(backends.ProcessConfig{}))
//
//	resp, err := reg.FormatBatch(ctx, &cellfmt.BatchRequest{
//	    Formatter: "black",
//	    Notebook:  true,
//	    Code:      []string{"x=1", "%%timeit\ny=2"},
//	})
//	if cellfmt.IsResolution(err) {
//	    // unknown or unavailable formatter
//	}
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rickchristie/cellfmt"
	"github.com/rickchristie/cellfmt/hooks"
	"github.com/rickchristie/cellfmt/imports"
	"github.com/rickchristie/cellfmt/schema"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type entry struct {
	name      string
	formatter cellfmt.Formatter
	schema    *schema.Schema
}

// Registry maps formatter names to formatters and caches their availability.
//
// Register all formatters before serving requests; Register is not safe to
// call concurrently with anything else. Every other method is.
type Registry struct {
	entries map[string]*entry
	order   []string

	mu    sync.RWMutex
	cache map[string]cellfmt.Availability
	probe singleflight.Group

	hooks  *hooks.Registry
	logger *zap.Logger
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		cache:   make(map[string]cellfmt.Availability),
		logger:  zap.NewNop(),
	}
}

// WithHooks sets the hook registry receiving batch, cell and availability events.
func (r *Registry) WithHooks(h *hooks.Registry) *Registry {
	r.hooks = h
	return r
}

// WithLogger sets the logger.
func (r *Registry) WithLogger(logger *zap.Logger) *Registry {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Register adds a formatter under name and returns the registry for chaining.
//
// Register panics if name is empty, f is nil, name is already taken, or f
// advertises an option schema that does not compile. All of these are
// programming errors in the startup table.
func (r *Registry) Register(name string, f cellfmt.Formatter) *Registry {
	if name == "" {
		panic("registry: empty formatter name")
	}
	if f == nil {
		panic(fmt.Sprintf("registry: nil formatter %q", name))
	}
	if _, ok := r.entries[name]; ok {
		panic(fmt.Errorf("registry: %w: %q", cellfmt.ErrDuplicateFormatter, name))
	}

	e := &entry{name: name, formatter: f}
	if sp, ok := f.(cellfmt.OptionSchemaProvider); ok {
		if raw := sp.OptionSchema(); raw != nil {
			compiled, err := schema.Compile(raw)
			if err != nil {
				panic(fmt.Errorf("registry: option schema for %q: %w", name, err))
			}
			e.schema = compiled
		}
	}

	r.entries[name] = e
	r.order = append(r.order, name)
	return r
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// Get returns the formatter registered under name without probing it.
func (r *Registry) Get(name string) (cellfmt.Formatter, bool) {
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.formatter, true
}

// Lookup resolves name to an available formatter. It returns an error
// wrapping cellfmt.ErrFormatterNotFound for unknown names and
// cellfmt.ErrFormatterUnavailable when the probe is not OK.
func (r *Registry) Lookup(ctx context.Context, name string, useCache bool) (cellfmt.Formatter, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", cellfmt.ErrFormatterNotFound, name)
	}
	a := r.availability(ctx, e, useCache)
	if !a.OK() {
		if a.Err != nil {
			return nil, fmt.Errorf("%w: %q: %w", cellfmt.ErrFormatterUnavailable, name, a.Err)
		}
		return nil, fmt.Errorf("%w: %q", cellfmt.ErrFormatterUnavailable, name)
	}
	return e.formatter, nil
}

// Availability returns the availability of name, from cache when useCache
// is set and an entry exists.
func (r *Registry) Availability(ctx context.Context, name string, useCache bool) (cellfmt.Availability, error) {
	e, ok := r.entries[name]
	if !ok {
		return cellfmt.Availability{}, fmt.Errorf("%w: %q", cellfmt.ErrFormatterNotFound, name)
	}
	return r.availability(ctx, e, useCache), nil
}

// Refresh probes name again and stores the result.
func (r *Registry) Refresh(ctx context.Context, name string) (cellfmt.Availability, error) {
	return r.Availability(ctx, name, false)
}

// Invalidate drops every cached availability result.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]cellfmt.Availability)
}

// List describes every registered formatter, sorted by name. Formatters are
// probed concurrently; with useCache, cached results are reused.
func (r *Registry) List(ctx context.Context, useCache bool) []cellfmt.FormatterInfo {
	names := r.Names()
	infos := make([]cellfmt.FormatterInfo, len(names))

	var g errgroup.Group
	for i, name := range names {
		e := r.entries[name]
		g.Go(func() error {
			a := r.availability(ctx, e, useCache)
			infos[i] = cellfmt.FormatterInfo{
				Name:    name,
				Label:   e.formatter.Label(),
				Enabled: a.OK(),
				Status:  a.Status,
			}
			return nil
		})
	}
	_ = g.Wait()
	return infos
}

func (r *Registry) availability(ctx context.Context, e *entry, useCache bool) cellfmt.Availability {
	if useCache {
		r.mu.RLock()
		a, ok := r.cache[e.name]
		r.mu.RUnlock()
		if ok {
			r.hooks.FireAvailability(ctx, cellfmt.AvailabilityEvent{
				Formatter:    e.name,
				Availability: a,
				Cached:       true,
			})
			return a
		}
	}

	v, _, _ := r.probe.Do(e.name, func() (any, error) {
		a := probe(ctx, e.formatter)
		// A probe cut short by the caller says nothing about the formatter.
		if ctx.Err() != nil {
			return a, nil
		}
		r.mu.Lock()
		r.cache[e.name] = a
		r.mu.Unlock()
		return a, nil
	})
	a := v.(cellfmt.Availability)

	r.hooks.FireAvailability(ctx, cellfmt.AvailabilityEvent{
		Formatter:    e.name,
		Availability: a,
	})
	return a
}

func probe(ctx context.Context, f cellfmt.Formatter) (a cellfmt.Availability) {
	defer func() {
		if p := recover(); p != nil {
			a = cellfmt.CheckFailed(fmt.Errorf("availability probe panicked: %v", p))
		}
	}()
	return f.Available(ctx)
}

// FormatBatch resolves req.Formatter and formats every cell.
//
// Resolution errors (see cellfmt.IsResolution) fail the whole batch and no
// cell is formatted. Once resolved, FormatBatch never returns an error: every
// cell gets exactly one result slot, in request order, and a failing cell
// never prevents the following cells from being formatted.
func (r *Registry) FormatBatch(ctx context.Context, req *cellfmt.BatchRequest) (*cellfmt.BatchResponse, error) {
	f, err := r.Lookup(ctx, req.Formatter, req.UseCache)
	if err != nil {
		return nil, err
	}
	e := r.entries[req.Formatter]

	r.hooks.FireBeforeBatch(ctx, cellfmt.BeforeBatchEvent{
		Formatter:    req.Formatter,
		Cells:        len(req.Code),
		Notebook:     req.Notebook,
		GroupImports: req.GroupImports,
	})
	start := time.Now()

	var results []cellfmt.CellResult
	if err := validateOptions(e, req.Options); err != nil {
		results = make([]cellfmt.CellResult, len(req.Code))
		for i := range results {
			results[i] = cellfmt.Failure(err)
		}
	} else {
		format := r.cellFunc(f, req)
		if req.GroupImports {
			results = imports.Group(ctx, req.Code, format)
		} else {
			results = cellfmt.FormatEach(ctx, req.Code, format)
		}
	}

	resp := &cellfmt.BatchResponse{Code: results}
	r.hooks.FireAfterBatch(ctx, cellfmt.AfterBatchEvent{
		Formatter: req.Formatter,
		Cells:     len(req.Code),
		Errors:    resp.Errors(),
		Duration:  time.Since(start),
	})
	return resp, nil
}

func validateOptions(e *entry, opts cellfmt.Options) error {
	if e.schema == nil || opts == nil {
		return nil
	}
	if err := e.schema.Validate(opts); err != nil {
		return fmt.Errorf("%w for %s: %w", cellfmt.ErrInvalidOptions, e.name, err)
	}
	return nil
}

// cellFunc formats a single cell with panic recovery, cancellation checks and
// hook events around the backend call.
func (r *Registry) cellFunc(f cellfmt.Formatter, req *cellfmt.BatchRequest) cellfmt.CellFunc {
	return func(ctx context.Context, index int, code string) (out string, err error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		r.hooks.FireBeforeCell(ctx, cellfmt.BeforeCellEvent{
			Formatter: req.Formatter,
			Index:     index,
			Code:      code,
		})
		start := time.Now()

		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("formatter panicked",
					zap.String("formatter", req.Formatter),
					zap.Int("index", index),
					zap.Any("panic", p))
				out, err = "", fmt.Errorf("formatter %s panicked: %v", req.Formatter, p)
			}
			r.hooks.FireAfterCell(ctx, cellfmt.AfterCellEvent{
				Formatter: req.Formatter,
				Index:     index,
				Code:      code,
				Result:    out,
				Duration:  time.Since(start),
				Error:     err,
			})
		}()

		out, err = f.Format(ctx, code, req.Notebook, req.Options)
		if err == nil && out == "" && strings.TrimSpace(code) != "" {
			// Some tools exit zero and print nothing on input they cannot handle.
			return "", cellfmt.ErrEmptyOutput
		}
		return out, err
	}
}
