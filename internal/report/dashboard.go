// Package report renders analyzed sessions for humans: an interactive
// go-echarts dashboard served over HTTP or written to a standalone HTML
// file, and static PNG depth profiles for printed reports.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/freedive-data/apnea.report/internal/analysis"
	"github.com/freedive-data/apnea.report/internal/dive"
)

// SessionDashboard assembles the session page: overlaid depth profiles,
// heart rate traces, per-dive speed bars, and the classification verdicts.
func SessionDashboard(title string, dives []analysis.Dive) *components.Page {
	page := components.NewPage()
	page.PageTitle = title

	page.AddCharts(
		depthChart(dives),
		heartRateChart(dives),
		rateChart(dives),
		classificationChart(dives),
	)
	return page
}

// RenderSession writes the dashboard HTML to w.
func RenderSession(w io.Writer, title string, dives []analysis.Dive) error {
	return SessionDashboard(title, dives).Render(w)
}

// WriteSessionHTML writes the dashboard as a standalone HTML file.
func WriteSessionHTML(path, title string, dives []analysis.Dive) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report %s: %w", path, err)
	}
	defer f.Close()
	return RenderSession(f, title, dives)
}

func diveLabel(d analysis.Dive) string {
	return fmt.Sprintf("Dive %d (%.1fm)", d.DiveNumber, d.MaxDepth)
}

// depthChart overlays the depth trace of every dive, depth positive down
// so the chart reads like the water column.
func depthChart(dives []analysis.Dive) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Depth Profiles"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Depth (m)"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	line.SetXAxis(timeAxis(dives))
	for _, d := range dives {
		data := make([]opts.LineData, 0, len(d.Samples))
		for _, s := range d.Samples {
			data = append(data, opts.LineData{Value: []interface{}{s.TimeOffset, -s.Depth}})
		}
		line.AddSeries(diveLabel(d), data)
	}
	return line
}

func heartRateChart(dives []analysis.Dive) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Heart Rate"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "HR (bpm)"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	line.SetXAxis(timeAxis(dives))
	for _, d := range dives {
		data := make([]opts.LineData, 0, len(d.Samples))
		for _, s := range d.Samples {
			if s.HeartRate == nil {
				continue
			}
			data = append(data, opts.LineData{Value: []interface{}{s.TimeOffset, *s.HeartRate}})
		}
		line.AddSeries(diveLabel(d), data)
	}
	return line
}

func rateChart(dives []analysis.Dive) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Descent / Ascent Rates"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "m/s"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	labels := make([]string, 0, len(dives))
	descent := make([]opts.BarData, 0, len(dives))
	ascent := make([]opts.BarData, 0, len(dives))
	for _, d := range dives {
		labels = append(labels, fmt.Sprintf("Dive %d", d.DiveNumber))
		descent = append(descent, opts.BarData{Value: d.Profile.DescentRate})
		ascent = append(ascent, opts.BarData{Value: d.Profile.AscentRate})
	}
	bar.SetXAxis(labels)
	bar.AddSeries("descent", descent)
	bar.AddSeries("ascent", ascent)
	return bar
}

// classificationChart shows detection confidence per dive, one bar group
// per classifier axis.
func classificationChart(dives []analysis.Dive) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Classification Confidence"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "confidence", Max: 100}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	labels := make([]string, 0, len(dives))
	disc := make([]opts.BarData, 0, len(dives))
	lung := make([]opts.BarData, 0, len(dives))
	for _, d := range dives {
		labels = append(labels, barLabel(d))
		disc = append(disc, opts.BarData{Value: d.Discipline.Confidence})
		lung = append(lung, opts.BarData{Value: d.LungVolume.Confidence})
	}
	bar.SetXAxis(labels)
	bar.AddSeries("discipline", disc)
	bar.AddSeries("lung volume", lung)
	return bar
}

func barLabel(d analysis.Dive) string {
	disc := d.Discipline.Discipline
	if disc == dive.DisciplineUnknown {
		disc = "?"
	}
	return fmt.Sprintf("Dive %d: %s", d.DiveNumber, disc)
}

// timeAxis builds a shared x axis long enough for the longest dive.
func timeAxis(dives []analysis.Dive) []float64 {
	longest := 0
	for _, d := range dives {
		if len(d.Samples) > longest {
			longest = len(d.Samples)
		}
	}
	axis := make([]float64, longest)
	for i := range axis {
		axis[i] = float64(i)
	}
	return axis
}
