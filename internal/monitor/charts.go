package monitor

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderDashboard writes an HTML page with a bar chart of per-topic
// interval statistics and a line chart of the offset error history.
func RenderDashboard(w io.Writer, sums []IntervalSummary, samples []OffsetSample) error {
	topics := make([]string, len(sums))
	mean := make([]opts.BarData, len(sums))
	stddev := make([]opts.BarData, len(sums))
	p95 := make([]opts.BarData, len(sums))
	for i, s := range sums {
		topics[i] = s.Topic
		mean[i] = opts.BarData{Value: round3(s.MeanMs)}
		stddev[i] = opts.BarData{Value: round3(s.StdDevMs)}
		p95[i] = opts.BarData{Value: round3(s.P95Ms)}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "depthsync timing", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Sample intervals", Subtitle: fmt.Sprintf("topics=%d", len(sums))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
	)
	bar.SetXAxis(topics).
		AddSeries("mean", mean).
		AddSeries("stddev", stddev).
		AddSeries("p95", p95)

	xs := make([]string, len(samples))
	ys := make([]opts.LineData, len(samples))
	for i, s := range samples {
		xs[i] = fmt.Sprintf("%.3f", float64(s.HostNanos)/1e9)
		ys[i] = opts.LineData{Value: round3(float64(s.OffsetErrorNanos) / 1e6)}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Clock offset error", Subtitle: fmt.Sprintf("samples=%d", len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "s"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
	)
	line.SetXAxis(xs).AddSeries("offset error", ys)

	page := components.NewPage()
	page.PageTitle = "depthsync timing"
	page.AddCharts(bar, line)
	return page.Render(w)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
