package policy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"

	"github.com/daimoniac/covdocs/internal/defects"
	"github.com/daimoniac/covdocs/internal/observability"
)

// GateConfig defines a CEL-based defect gate configuration
type GateConfig struct {
	// Expression is the CEL expression that must evaluate to true for the gate to pass
	// Available variables:
	//   - totalCount: number of defects fetched for the build
	//   - counts: map from classification to defect count
	//   - impacts: map from impact to defect count
	//   - checkers: map from checker name to defect count
	//   - stream: the Coverity stream the build ran against
	Expression string `yaml:"expression"`

	// FailureMessage is the message to report when the gate fails (optional)
	FailureMessage string `yaml:"failureMessage"`
}

// Decision represents the result of gate evaluation
type Decision struct {
	Passed     bool
	Reason     string
	TotalCount int
}

// Engine evaluates the defect gate using a compiled CEL expression
type Engine struct {
	logger     *slog.Logger
	config     GateConfig
	celEnv     *cel.Env
	celProgram cel.Program
}

// NewEngine compiles the gate expression. The expression must be non-empty;
// callers skip gate evaluation entirely when no gate is configured.
func NewEngine(logger *slog.Logger, config GateConfig) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Expression == "" {
		return nil, fmt.Errorf("gate expression is empty")
	}

	env, err := cel.NewEnv(
		cel.Variable("totalCount", cel.IntType),
		cel.Variable("counts", cel.MapType(cel.StringType, cel.IntType)),
		cel.Variable("impacts", cel.MapType(cel.StringType, cel.IntType)),
		cel.Variable("checkers", cel.MapType(cel.StringType, cel.IntType)),
		cel.Variable("stream", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(config.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile gate expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("gate expression must return a boolean, got %v", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Engine{
		logger:     logger,
		config:     config,
		celEnv:     env,
		celProgram: program,
	}, nil
}

// Evaluate runs the gate against the defect set fetched for one build
func (e *Engine) Evaluate(ctx context.Context, stream string, records []defects.Record) (*Decision, error) {
	counts := make(map[string]int)
	impacts := make(map[string]int)
	checkers := make(map[string]int)
	for _, r := range records {
		counts[r.Classification]++
		impacts[r.Impact]++
		checkers[r.Checker]++
	}

	celInput := map[string]interface{}{
		"totalCount": len(records),
		"counts":     counts,
		"impacts":    impacts,
		"checkers":   checkers,
		"stream":     stream,
	}

	out, _, err := e.celProgram.Eval(celInput)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate gate: %w", err)
	}

	passed, ok := out.Value().(bool)
	if !ok {
		return nil, fmt.Errorf("gate expression did not return a boolean: %v", out.Value())
	}

	decision := &Decision{Passed: passed, TotalCount: len(records)}
	metrics := observability.GetMetrics()

	if passed {
		decision.Reason = fmt.Sprintf("gate passed: %d defects on stream %s", len(records), stream)
		metrics.GatePassed.Inc()
		e.logger.Info("defect gate passed",
			"stream", stream,
			"total", len(records),
			"expression", e.config.Expression)
	} else {
		if e.config.FailureMessage != "" {
			decision.Reason = e.config.FailureMessage
		} else {
			decision.Reason = fmt.Sprintf("gate failed: %d defects on stream %s", len(records), stream)
		}
		metrics.GateFailed.Inc()
		e.logger.Warn("defect gate failed",
			"stream", stream,
			"total", len(records),
			"expression", e.config.Expression)
		for label, n := range counts {
			e.logger.Warn("defect counts by classification",
				"classification", label,
				"count", n,
				"stream", stream)
		}
	}

	return decision, nil
}
