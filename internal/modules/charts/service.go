// Package charts renders PNG charts of the NAV history and the efficient
// frontier.
package charts

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/aristath/helmsman/internal/modules/optimization"
	"github.com/aristath/helmsman/internal/modules/portfolio"
)

// RenderNAVChart renders the per-share NAV history as a PNG line chart.
func RenderNAVChart(records []portfolio.NAVRecord) ([]byte, error) {
	if len(records) < 2 {
		return nil, fmt.Errorf("need at least 2 NAV records, got %d", len(records))
	}

	xValues := make([]time.Time, len(records))
	yValues := make([]float64, len(records))
	for i, rec := range records {
		xValues[i] = rec.Date
		yValues[i] = rec.NAV()
	}

	navSeries := chart.TimeSeries{
		Name: "NAV per share",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"),
			StrokeWidth: 2.5,
		},
		XValues: xValues,
		YValues: yValues,
	}

	graph := chart.Chart{
		Title:  "Net Asset Value",
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 06")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.2f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{navSeries},
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}

// RenderFrontierChart renders the efficient frontier as a volatility/return
// curve with the named reference portfolios overlaid as markers.
func RenderFrontierChart(frontier *optimization.Frontier) ([]byte, error) {
	if frontier == nil || len(frontier.Points) == 0 {
		return nil, fmt.Errorf("frontier is empty")
	}

	frontierX := make([]float64, len(frontier.Points))
	frontierY := make([]float64, len(frontier.Points))
	for i, p := range frontier.Points {
		frontierX[i] = p.Volatility
		frontierY[i] = p.ExpectedReturn
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name: "Efficient frontier",
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex("2563eb"),
				StrokeWidth: 2.5,
			},
			XValues: frontierX,
			YValues: frontierY,
		},
	}

	markerColors := map[string]string{
		"gmv":       "16a34a", // green-600
		"current":   "dc2626", // red-600
		"optimized": "9333ea", // purple-600
	}
	for _, marker := range frontier.Markers {
		color, ok := markerColors[marker.Name]
		if !ok {
			color = "9ca3af"
		}
		series = append(series, chart.ContinuousSeries{
			Name: marker.Name,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    6,
				DotColor:    drawing.ColorFromHex(color),
			},
			XValues: []float64{marker.Volatility},
			YValues: []float64{marker.ExpectedReturn},
		})
	}

	graph := chart.Chart{
		Title:  "Efficient Frontier",
		Width:  900,
		Height: 500,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			Name: "Annualized volatility",
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.1f%%", f*100)
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			Name: "Expected return",
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.4f%%", f*100)
				}
				return ""
			},
		},
		Series: series,
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
