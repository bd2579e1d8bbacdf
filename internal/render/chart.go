package render

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/daimoniac/covdocs/internal/defects"
	"github.com/daimoniac/covdocs/internal/observability"
)

const (
	chartWidth  = 512
	chartHeight = 512
)

// PieChart writes a pie chart for the slice set as a PNG under imageDir and
// returns the file name. The name is derived from a hash of the chart inputs
// so repeated builds of an unchanged directive reuse the same file.
func PieChart(title string, slices []defects.Slice, imageDir string) (string, error) {
	name := chartFileName(title, slices)
	path := filepath.Join(imageDir, name)

	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}

	values := make([]chart.Value, 0, len(slices))
	for _, s := range slices {
		values = append(values, chart.Value{
			Value: float64(s.Count),
			Label: fmt.Sprintf("%s (%d)", s.Label, s.Count),
		})
	}

	pie := chart.PieChart{
		Title:  title,
		Width:  chartWidth,
		Height: chartHeight,
		Values: values,
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()

	if err := pie.Render(chart.PNG, f); err != nil {
		return "", fmt.Errorf("failed to render chart: %w", err)
	}

	observability.GetMetrics().ChartsRendered.Inc()
	return name, nil
}

// MarkdownImage returns the Markdown image reference for a rendered chart
func MarkdownImage(title, imageDir, name string) string {
	return fmt.Sprintf("![%s](%s)", title, filepath.ToSlash(filepath.Join(imageDir, name)))
}

func chartFileName(title string, slices []defects.Slice) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n", title)
	for _, s := range slices {
		fmt.Fprintf(h, "%s=%d\n", s.Label, s.Count)
	}
	return fmt.Sprintf("coverity_pie_%x.png", h.Sum(nil)[:8])
}
