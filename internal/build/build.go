package build

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/daimoniac/covdocs/internal/directive"
	"github.com/daimoniac/covdocs/internal/errors"
	"github.com/daimoniac/covdocs/internal/observability"
	"github.com/daimoniac/covdocs/internal/render"
)

// Builder turns a source tree of Markdown documents into the output tree,
// replacing every directive block with its rendered table and chart.
type Builder struct {
	orch      *directive.Orchestrator
	sourceDir string
	outputDir string
	imageDir  string // relative to outputDir
	logger    *slog.Logger
}

// Report summarises one build across all documents
type Report struct {
	Documents  []render.SummaryRow
	Directives int
	Matched    int
	Errors     int
}

// NewBuilder creates a builder writing rendered documents under outputDir
func NewBuilder(orch *directive.Orchestrator, sourceDir, outputDir, imageDir string, logger *slog.Logger) *Builder {
	return &Builder{
		orch:      orch,
		sourceDir: sourceDir,
		outputDir: outputDir,
		imageDir:  imageDir,
		logger:    logger,
	}
}

// Build walks the source tree and processes every document. Directive errors
// are reported and counted but never abort the build; only I/O failures on
// the tree itself do.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	report := &Report{}
	metrics := observability.GetMetrics()

	err := filepath.WalkDir(b.sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(b.sourceDir, path)
		if err != nil {
			return err
		}
		target := filepath.Join(b.outputDir, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		if strings.EqualFold(filepath.Ext(path), ".md") {
			row, err := b.buildDocument(ctx, path, rel, target)
			if err != nil {
				metrics.DocumentsFailed.Inc()
				return err
			}
			metrics.DocumentsBuilt.Inc()
			report.Documents = append(report.Documents, row)
			report.Directives += row.Directives
			report.Matched += row.Matched
			report.Errors += row.Errors
			return nil
		}

		// non-Markdown files are copied through untouched
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build document tree: %w", err)
	}

	b.logger.Info("build finished",
		"documents", len(report.Documents),
		"directives", report.Directives,
		"matched", report.Matched,
		"errors", report.Errors)

	return report, nil
}

func (b *Builder) buildDocument(ctx context.Context, path, rel, target string) (render.SummaryRow, error) {
	row := render.SummaryRow{Document: rel}

	data, err := os.ReadFile(path)
	if err != nil {
		return row, err
	}
	lines := strings.Split(string(data), "\n")

	blocks := directive.ScanBlocks(rel, lines)
	row.Directives = len(blocks)

	if len(blocks) == 0 {
		return row, os.WriteFile(target, data, 0o644)
	}

	var out []string
	pos := 0
	for _, block := range blocks {
		out = append(out, lines[pos:block.Start]...)
		rendered := b.renderBlock(ctx, block, &row)
		out = append(out, rendered...)
		pos = block.End + 1
	}
	out = append(out, lines[pos:]...)

	return row, os.WriteFile(target, []byte(strings.Join(out, "\n")), 0o644)
}

// renderBlock processes one directive and returns its replacement lines.
// Failures degrade to an inline comment so the rest of the document and the
// rest of the build still go through.
func (b *Builder) renderBlock(ctx context.Context, block directive.Block, row *render.SummaryRow) []string {
	spec, err := directive.Parse(block)
	if err != nil {
		return b.failBlock(block, row, err)
	}

	result, err := b.orch.Process(ctx, spec)
	if err != nil {
		return b.failBlock(block, row, err)
	}
	row.Matched += result.Matched

	var out []string
	if result.Columns != nil {
		table := render.MarkdownTable(spec.Title, result.Columns, result.Rows)
		out = append(out, strings.Split(strings.TrimRight(table, "\n"), "\n")...)
		row.Tables++
	}

	if spec.Chart != nil {
		out = append(out, b.renderChart(spec, result, row)...)
	}

	return out
}

func (b *Builder) renderChart(spec *directive.Spec, result *directive.Result, row *render.SummaryRow) []string {
	if len(result.Slices) == 0 {
		b.logger.Info("skipping empty chart", "location", spec.Location)
		return []string{fmt.Sprintf("*%s: no defects matched*", spec.Title)}
	}

	name, err := render.PieChart(spec.Title, result.Slices, filepath.Join(b.outputDir, b.imageDir))
	if err != nil {
		row.Errors++
		b.logger.Error("chart rendering failed",
			"location", spec.Location,
			"error", err)
		return []string{fmt.Sprintf("<!-- %s: chart rendering failed: %v -->", directive.Name, err)}
	}

	row.Charts++

	var out []string
	if result.Columns != nil {
		// table and chart share the block, keep a blank line between them
		out = append(out, "")
	}
	out = append(out, render.MarkdownImage(spec.Title, b.imageDir, name))
	return out
}

func (b *Builder) failBlock(block directive.Block, row *render.SummaryRow, err error) []string {
	row.Errors++

	if errors.IsRetrieval(err) {
		// the cache already reported the fetch failure at error level,
		// once per (stream, snapshot) key
		b.logger.Debug("directive skipped after retrieval failure",
			"location", block.Location())
	} else {
		b.logger.Error("directive failed",
			"location", block.Location(),
			"error", err)
	}

	return []string{fmt.Sprintf("<!-- %s at %s failed: %v -->", directive.Name, block.Location(), err)}
}
