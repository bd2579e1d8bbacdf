package directive

import (
	"context"
	"log/slog"

	"github.com/daimoniac/covdocs/internal/defects"
	"github.com/daimoniac/covdocs/internal/errors"
	"github.com/daimoniac/covdocs/internal/observability"
)

// Result carries the structured output of one processed directive, ready
// for handoff to the rendering collaborator.
type Result struct {
	Spec    *Spec
	Matched int // defects remaining after filtering
	Columns []string
	Widths  []int
	Rows    []defects.Row
	Slices  []defects.Slice
}

// Orchestrator drives one directive through the pipeline: cache lookup,
// filter, then table rows and/or chart slices against the same filtered
// sequence. Filters are evaluated exactly once per directive.
type Orchestrator struct {
	cache    *defects.Cache
	resolver *defects.ColumnResolver
	stream   string
	snapshot string
	logger   *slog.Logger
}

// NewOrchestrator creates an orchestrator bound to one stream/snapshot scope
func NewOrchestrator(cache *defects.Cache, resolver *defects.ColumnResolver, stream, snapshot string, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cache:    cache,
		resolver: resolver,
		stream:   stream,
		snapshot: snapshot,
		logger:   logger,
	}
}

// Process runs one directive to completion or first fatal error
func (o *Orchestrator) Process(ctx context.Context, spec *Spec) (*Result, error) {
	metrics := observability.GetMetrics()

	records, err := o.cache.GetDefects(ctx, o.stream, o.snapshot)
	if err != nil {
		metrics.DirectiveErrors.WithLabelValues("retrieval").Inc()
		return nil, err
	}

	filtered := spec.Filter.Apply(records)
	result := &Result{Spec: spec, Matched: len(filtered)}

	if len(filtered) == 0 {
		// valid outcome, rendered as an empty table or chart
		o.logger.Info("no defects match the directive filters",
			"location", spec.Location)
	}

	if spec.Table != nil {
		rows, err := o.resolver.BuildRows(records, filtered, *spec.Table)
		if err != nil {
			metrics.DirectiveErrors.WithLabelValues("config").Inc()
			return nil, errors.AtLocation(err, spec.Location)
		}
		result.Columns = spec.Table.Columns
		result.Widths = spec.Table.Widths
		result.Rows = rows
	}

	if spec.Chart != nil {
		slices, err := defects.Aggregate(filtered, *spec.Chart)
		if err != nil {
			metrics.DirectiveErrors.WithLabelValues("config").Inc()
			return nil, errors.AtLocation(err, spec.Location)
		}
		result.Slices = slices
	}

	metrics.DirectivesProcessed.Inc()
	return result, nil
}
