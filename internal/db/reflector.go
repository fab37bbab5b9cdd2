package db

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tordrt/schemareflect/internal/schema"
)

// DefaultConcurrency is the number of tables read in parallel
const DefaultConcurrency = 4

// ErrUnknownTable is returned when an explicitly requested table is not a
// base table of the namespace
var ErrUnknownTable = errors.New("unknown table")

// ReflectorOptions tunes a reflection run. The zero value reflects every
// base table with DefaultConcurrency and lenient assembly.
type ReflectorOptions struct {
	// Tables restricts the run to these tables. Empty means all base tables.
	Tables []string

	// ExcludeTables is applied after Tables
	ExcludeTables []string

	// Concurrency bounds parallel table reads. 1 reads strictly in order.
	Concurrency int

	Policy schema.Policy

	Logger *zerolog.Logger
}

// Result is the outcome of a successful run
type Result struct {
	Schema *schema.Schema

	// Warnings are grouped by table in listing order
	Warnings []schema.Warning
}

// Reflector drives a CatalogReader over one namespace and folds the
// assembled tables into a Schema. It never closes the reader's connection.
type Reflector struct {
	reader    CatalogReader
	namespace string
	opts      ReflectorOptions
	log       zerolog.Logger
}

// NewReflector creates a reflector for namespace
func NewReflector(reader CatalogReader, namespace string, opts ReflectorOptions) *Reflector {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Reflector{
		reader:    reader,
		namespace: namespace,
		opts:      opts,
		log:       log.With().Str("namespace", namespace).Logger(),
	}
}

// Reflect reads every selected table and returns the assembled schema.
// Any stage failure aborts the whole run and no partial schema is returned.
func (r *Reflector) Reflect(ctx context.Context) (*Result, error) {
	tables, err := r.reader.ListBaseTables(ctx, r.namespace)
	if err != nil {
		return nil, wrapStage(StageListTables, "", err)
	}

	tables, err = r.selectTables(tables)
	if err != nil {
		return nil, err
	}
	r.log.Debug().Int("tables", len(tables)).Msg("listed base tables")

	out := schema.New()
	tableWarnings := make(map[string][]schema.Warning)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for _, name := range tables {
		g.Go(func() error {
			rows, err := readTable(gctx, r.reader, r.namespace, name)
			if err != nil {
				return err
			}

			table, warnings, err := schema.Assemble(rows, r.opts.Policy)
			for _, w := range warnings {
				r.log.Warn().Str("table", w.Table).Str("column", w.Column).Str("kind", string(w.Kind)).Msg(w.Message)
			}
			if err != nil {
				return &CatalogError{Stage: StageAssemble, Table: name, Kind: ErrKindInconsistent, Err: err}
			}

			mu.Lock()
			out.Tables[name] = table
			if len(warnings) > 0 {
				tableWarnings[name] = warnings
			}
			mu.Unlock()

			r.log.Debug().
				Str("table", name).
				Int("columns", len(table.Columns)).
				Int("indexes", len(table.Indexes)).
				Msg("reflected table")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge in listing order so warnings do not depend on completion order
	var warnings []schema.Warning
	for _, name := range tables {
		warnings = append(warnings, tableWarnings[name]...)
	}

	return &Result{Schema: out, Warnings: warnings}, nil
}

// selectTables applies the include and exclude lists to the listed tables,
// keeping catalog order
func (r *Reflector) selectTables(listed []string) ([]string, error) {
	if len(r.opts.Tables) == 0 && len(r.opts.ExcludeTables) == 0 {
		return listed, nil
	}

	known := make(map[string]bool, len(listed))
	for _, t := range listed {
		known[t] = true
	}

	include := make(map[string]bool, len(r.opts.Tables))
	for _, t := range r.opts.Tables {
		if !known[t] {
			return nil, fmt.Errorf("%w: %q in namespace %q", ErrUnknownTable, t, r.namespace)
		}
		include[t] = true
	}

	exclude := make(map[string]bool, len(r.opts.ExcludeTables))
	for _, t := range r.opts.ExcludeTables {
		exclude[t] = true
	}

	selected := make([]string, 0, len(listed))
	for _, t := range listed {
		if len(include) > 0 && !include[t] {
			continue
		}
		if exclude[t] {
			continue
		}
		selected = append(selected, t)
	}
	return selected, nil
}
