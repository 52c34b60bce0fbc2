package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/perimeter-labs/trackmatch/internal/trackstore"
)

// WriteTrailPlot renders every track's center path through the arena as
// a PNG at outPath. arenaWidth and arenaHeight fix the axis ranges when
// positive; otherwise the plot auto-scales to the data.
func WriteTrailPlot(db *trackstore.DB, runID, outPath string, arenaWidth, arenaHeight float64) error {
	run, err := db.GetRun(runID)
	if err != nil {
		return err
	}
	observations, err := db.ListRunObservations(runID)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Track trails: %s (%s)", run.RunID, run.Scenario)
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"
	if arenaWidth > 0 && arenaHeight > 0 {
		p.X.Min, p.X.Max = 0, arenaWidth
		p.Y.Min, p.Y.Max = 0, arenaHeight
	}

	trails := groupByTrack(observations)
	colors := generateColors(len(trails))
	for i, trail := range trails {
		pts := make(plotter.XYs, 0, len(trail.observations))
		for _, obs := range trail.observations {
			pts = append(pts, plotter.XY{X: obs.X + obs.Width/2, Y: obs.Y + obs.Height/2})
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("trail for %s: %w", trail.trackID, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(shortTrackID(trail.trackID), line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}
	if err := p.Save(12*vg.Inch, 7*vg.Inch, outPath); err != nil {
		return fmt.Errorf("save trail plot: %w", err)
	}
	return nil
}

type trail struct {
	trackID      string
	observations []*trackstore.Observation
}

// groupByTrack splits run observations into per-track trails. The store
// returns rows grouped by track already, so a single pass suffices.
func groupByTrack(observations []*trackstore.Observation) []trail {
	var trails []trail
	for _, obs := range observations {
		if len(trails) == 0 || trails[len(trails)-1].trackID != obs.TrackID {
			trails = append(trails, trail{trackID: obs.TrackID})
		}
		last := &trails[len(trails)-1]
		last.observations = append(last.observations, obs)
	}
	return trails
}

// generateColors creates a palette of distinct line colors.
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
