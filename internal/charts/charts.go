package charts

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData is returned when there is nothing to draw
var ErrNoData = errors.New("no data found")

// Bar is one bar of a bar chart. Bars sharing a Group share a colour.
type Bar struct {
	Label string
	Value float64
	Group string
}

// Slice is one wedge of a pie chart
type Slice struct {
	Label string
	Value float64
}

// Point is one bubble; its size follows Value
type Point struct {
	Label string
	Value float64
}

// LegendEntry pairs a colour with the group or slice it stands for
type LegendEntry struct {
	Label string
	Color string
}

// Figure is a rendered SVG plus the legend shown beside it
type Figure struct {
	SVG    []byte
	Legend []LegendEntry
}

const (
	chartHeight   = 480
	minChartWidth = 640
	barSlotWidth  = 70
)

// hexColor formats a colour as #rrggbb for use in HTML legends
func hexColor(c drawing.Color) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func chartWidth(n int) int {
	return max(minChartWidth, n*barSlotWidth+160)
}

// yRange starts at zero and leaves headroom above the tallest value. It is
// never empty, so all-zero data still renders.
func yRange(values []float64) *chart.ContinuousRange {
	top := 0.0
	for _, v := range values {
		top = math.Max(top, v)
	}
	if top <= 0 {
		top = 1
	}
	return &chart.ContinuousRange{Min: 0, Max: math.Ceil(top * 1.15)}
}

// BarChart renders a vertical bar chart. When any bar has a Group, bars are
// coloured per group and the legend lists the groups in first-seen order.
func BarChart(title, yLabel string, bars []Bar) (*Figure, error) {
	if len(bars) == 0 {
		return nil, ErrNoData
	}

	groupColor := map[string]drawing.Color{}
	var legend []LegendEntry
	values := make([]chart.Value, 0, len(bars))
	heights := make([]float64, 0, len(bars))

	for i, b := range bars {
		var color drawing.Color
		if b.Group != "" {
			c, ok := groupColor[b.Group]
			if !ok {
				c = chart.GetDefaultColor(len(groupColor))
				groupColor[b.Group] = c
				legend = append(legend, LegendEntry{Label: b.Group, Color: hexColor(c)})
			}
			color = c
		} else {
			color = chart.GetDefaultColor(i)
		}
		values = append(values, chart.Value{
			Label: b.Label,
			Value: b.Value,
			Style: chart.Style{FillColor: color, StrokeColor: color},
		})
		heights = append(heights, b.Value)
	}

	graph := chart.BarChart{
		Title:      title,
		Width:      chartWidth(len(bars)),
		Height:     chartHeight,
		BarWidth:   40,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 140}},
		XAxis:      chart.Style{TextRotationDegrees: 90},
		YAxis:      chart.YAxis{Name: yLabel, Range: yRange(heights)},
		Bars:       values,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.SVG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render bar chart %q: %w", title, err)
	}
	return &Figure{SVG: buf.Bytes(), Legend: legend}, nil
}

// PieChart renders a pie with percentage labels. Zero slices are dropped.
func PieChart(title string, slices []Slice) (*Figure, error) {
	total := 0.0
	for _, s := range slices {
		if s.Value > 0 {
			total += s.Value
		}
	}
	if total == 0 {
		return nil, ErrNoData
	}

	var values []chart.Value
	var legend []LegendEntry
	for _, s := range slices {
		if s.Value <= 0 {
			continue
		}
		color := chart.GetDefaultColor(len(values))
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%.1f%%", s.Value/total*100),
			Value: s.Value,
			Style: chart.Style{FillColor: color},
		})
		legend = append(legend, LegendEntry{Label: s.Label, Color: hexColor(color)})
	}

	graph := chart.PieChart{
		Title:  title,
		Width:  minChartWidth,
		Height: chartHeight,
		Values: values,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.SVG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render pie chart %q: %w", title, err)
	}
	return &Figure{SVG: buf.Bytes(), Legend: legend}, nil
}

// BubbleChart places one bubble per point along the x axis in input order,
// with both height and dot size proportional to Value.
func BubbleChart(title, xLabel, yLabel string, points []Point) (*Figure, error) {
	if len(points) == 0 {
		return nil, ErrNoData
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	// The x range follows the ticks, so unlabeled edge ticks pad it to 0..n+1
	ticks := make([]chart.Tick, 0, len(points)+2)
	ticks = append(ticks, chart.Tick{Value: 0})
	legend := make([]LegendEntry, 0, len(points))
	top := 0.0
	for i, p := range points {
		xs[i] = float64(i + 1)
		ys[i] = p.Value
		top = math.Max(top, p.Value)
		ticks = append(ticks, chart.Tick{Value: xs[i], Label: p.Label})
		legend = append(legend, LegendEntry{Label: p.Label, Color: hexColor(chart.GetDefaultColor(i))})
	}
	if top <= 0 {
		top = 1
	}
	ticks = append(ticks, chart.Tick{Value: float64(len(points) + 1)})

	series := chart.ContinuousSeries{
		Name:    yLabel,
		XValues: xs,
		YValues: ys,
		Style: chart.Style{
			StrokeColor: drawing.ColorTransparent,
			DotWidthProvider: func(_, _ chart.Range, _ int, _, y float64) float64 {
				return 6 + 24*y/top
			},
			DotColorProvider: func(_, _ chart.Range, index int, _, _ float64) drawing.Color {
				return chart.GetDefaultColor(index).WithAlpha(200)
			},
		},
	}

	graph := chart.Chart{
		Title:      title,
		Width:      chartWidth(len(points)),
		Height:     chartHeight,
		Background: chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 140}},
		XAxis: chart.XAxis{
			Name:  xLabel,
			Ticks: ticks,
			Style: chart.Style{TextRotationDegrees: 90},
		},
		YAxis:  chart.YAxis{Name: yLabel, Range: yRange(ys)},
		Series: []chart.Series{series},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.SVG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render bubble chart %q: %w", title, err)
	}
	return &Figure{SVG: buf.Bytes(), Legend: legend}, nil
}
