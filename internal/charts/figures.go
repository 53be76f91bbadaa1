package charts

import (
	"fmt"

	"github.com/saltyorg/ipldash/internal/stats"
)

// ForReport draws the figure declared by a report for one of its result tables.
// plot picks bar or pie for reports that offer the choice.
func ForReport(r *stats.Report, t *stats.Table, plot string) (*Figure, error) {
	spec := r.Chart
	if spec == nil {
		return nil, fmt.Errorf("report %s has no chart", r.ID)
	}
	if t.Empty() {
		return nil, ErrNoData
	}

	label := t.Column(spec.Label)
	value := t.Column(spec.Value)
	if label < 0 || value < 0 {
		return nil, fmt.Errorf("report %s: chart columns %q/%q not in result", r.ID, spec.Label, spec.Value)
	}
	group := -1
	if spec.Group != "" {
		group = t.Column(spec.Group)
	}

	kind := spec.Kind
	if kind == stats.ChartBarOrPie {
		kind = stats.ChartBar
		if plot == stats.PlotPie {
			kind = stats.ChartPie
		}
	}

	switch kind {
	case stats.ChartPie:
		slices := make([]Slice, 0, len(t.Rows))
		for i := range t.Rows {
			slices = append(slices, Slice{Label: t.String(i, label), Value: t.Float(i, value)})
		}
		return PieChart(t.Title, slices)

	case stats.ChartBubble:
		points := make([]Point, 0, len(t.Rows))
		for i := range t.Rows {
			points = append(points, Point{Label: t.String(i, label), Value: t.Float(i, value)})
		}
		return BubbleChart(t.Title, spec.XLabel, spec.YLabel, points)

	default:
		bars := make([]Bar, 0, len(t.Rows))
		for i := range t.Rows {
			b := Bar{Label: t.String(i, label), Value: t.Float(i, value)}
			if group >= 0 {
				b.Group = t.String(i, group)
			}
			bars = append(bars, b)
		}
		return BarChart(t.Title, spec.YLabel, bars)
	}
}
