package monitor

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/depthsync/internal/clocksync"
	"github.com/banshee-data/depthsync/internal/security"
)

const (
	plotWidth  = 14 * vg.Inch
	plotHeight = 6 * vg.Inch
)

// ErrNoSamples is returned when there is nothing to plot.
var ErrNoSamples = errors.New("no offset samples recorded")

// Plot draws the offset error (ms) against host time (s), with calibration
// events marked per kind.
func (s *ClockSeries) Plot() (*plot.Plot, error) {
	samples := s.Samples()
	events := s.Events()
	if len(samples) == 0 && len(events) == 0 {
		return nil, ErrNoSamples
	}

	p := plot.New()
	p.Title.Text = "Device clock offset error"
	p.X.Label.Text = "Host time (s)"
	p.Y.Label.Text = "Offset error (ms)"

	if len(samples) > 0 {
		pts := make(plotter.XYs, len(samples))
		for i, smp := range samples {
			pts[i] = plotter.XY{X: float64(smp.HostNanos) / 1e9, Y: float64(smp.OffsetErrorNanos) / 1e6}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = color.RGBA{R: 33, G: 150, B: 243, A: 255}
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add("offset error", line)
	}

	byKind := make(map[clocksync.EventKind]plotter.XYs)
	for _, ev := range events {
		byKind[ev.Kind] = append(byKind[ev.Kind], plotter.XY{X: float64(ev.HostNanos) / 1e9, Y: float64(ev.OffsetErrorNanos) / 1e6})
	}
	kinds := []clocksync.EventKind{clocksync.EventCalibrated, clocksync.EventResynchronized, clocksync.EventWrapped, clocksync.EventAmbiguous}
	colors := generateColors(len(kinds))
	for i, kind := range kinds {
		pts, ok := byKind[kind]
		if !ok {
			continue
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = colors[i]
		sc.GlyphStyle.Radius = vg.Points(3)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(sc)
		p.Legend.Add(kind.String(), sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	p.Add(plotter.NewGrid())
	return p, nil
}

// SavePlot writes the plot to path, creating the parent directory.
func (s *ClockSeries) SavePlot(path string) error {
	p, err := s.Plot()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("save clock plot: %w", err)
	}
	return nil
}

// FormatTimestamp generates a timestamp string for file naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// PlotPath names the drift plot for a run: clock_<source>_<timestamp>.png
// under baseDir.
func PlotPath(baseDir, source string, t time.Time) string {
	name := "live"
	if source != "" {
		name = security.SanitizeFilename(source)
	}
	return filepath.Join(baseDir, fmt.Sprintf("clock_%s_%s.png", name, FormatTimestamp(t)))
}

// generateColors creates a palette of n distinct colors.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(l * 255)
		return v, v, v
	}
	q := l + s - l*s
	if l < 0.5 {
		q = l * (1 + s)
	}
	p := 2*l - q
	return uint8(hueToRGB(p, q, h+1.0/3.0) * 255), uint8(hueToRGB(p, q, h) * 255), uint8(hueToRGB(p, q, h-1.0/3.0) * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
