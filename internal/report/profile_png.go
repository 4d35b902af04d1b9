package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/freedive-data/apnea.report/internal/analysis"
	"github.com/freedive-data/apnea.report/internal/phase"
)

// SaveProfilePNG renders one dive's depth profile to a PNG file, with the
// bottom phase window shaded when the dive has one.
func SaveProfilePNG(d analysis.Dive, path string) error {
	if len(d.Samples) == 0 {
		return fmt.Errorf("dive %d has no samples to plot", d.DiveNumber)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Dive %d: %.1f m / %.0f s", d.DiveNumber, d.MaxDepth, d.Duration)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Depth (m)"

	pts := make(plotter.XYs, 0, len(d.Samples))
	for _, s := range d.Samples {
		pts = append(pts, plotter.XY{X: s.TimeOffset, Y: -s.Depth})
	}

	depthLine, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("building depth line: %w", err)
	}
	depthLine.Width = vg.Points(1.5)
	depthLine.Color = color.RGBA{R: 30, G: 100, B: 200, A: 255}
	p.Add(depthLine)
	p.Legend.Add("depth", depthLine)

	if bottom := d.Phases.Get(phase.Bottom); bottom != nil {
		floor, err := plotter.NewLine(plotter.XYs{
			{X: pts[0].X, Y: -bottom.MaxDepth},
			{X: pts[len(pts)-1].X, Y: -bottom.MaxDepth},
		})
		if err != nil {
			return fmt.Errorf("building floor line: %w", err)
		}
		floor.Width = vg.Points(1)
		floor.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		floor.Color = color.RGBA{R: 200, G: 60, B: 60, A: 255}
		p.Add(floor)
		p.Legend.Add("max depth", floor)
	}

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
