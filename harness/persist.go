package harness

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Noofbiz/subjectcv/datasets"
)

// Persist writes the configured outputs of a finished run into outDir:
// per-fold AUC and accuracy text arrays, the fold bar chart and the metrics
// textfile.
func (a *Aggregator) Persist(outDir string, rc *ResultCollection) error {
	out := a.Config.Outputs
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if out.AUCs != "" {
		if err := datasets.SaveTextArray(filepath.Join(outDir, out.AUCs), rc.AUCs()); err != nil {
			return fmt.Errorf("save aucs: %w", err)
		}
	}
	if out.Accuracies != "" {
		if err := datasets.SaveTextArray(filepath.Join(outDir, out.Accuracies), rc.Accuracies()); err != nil {
			return fmt.Errorf("save accuracies: %w", err)
		}
	}
	if out.Plot != "" {
		if err := PlotFolds(filepath.Join(outDir, out.Plot), rc); err != nil {
			return fmt.Errorf("plot folds: %w", err)
		}
	}
	if out.Metrics != "" && a.Metrics != nil {
		if err := a.Metrics.WriteTextfile(filepath.Join(outDir, out.Metrics)); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// PlotFolds writes a PNG bar chart of per-fold AUC (blue) and accuracy
// (orange), one group per held-out subject. Skipped folds are drawn as
// empty bars.
func PlotFolds(path string, rc *ResultCollection) error {
	p := plot.New()
	p.Title.Text = "Leave-one-subject-out: AUC (blue), accuracy (orange)"
	p.X.Label.Text = "held-out subject"
	p.Y.Label.Text = "score"
	p.Y.Min = 0
	p.Y.Max = 1

	w := vg.Points(8)
	aucBars, err := plotter.NewBarChart(bars(rc.AUCs()), w)
	if err != nil {
		return err
	}
	aucBars.Color = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	aucBars.LineStyle.Width = vg.Length(0)
	aucBars.Offset = -w / 2

	accBars, err := plotter.NewBarChart(bars(rc.Accuracies()), w)
	if err != nil {
		return err
	}
	accBars.Color = color.RGBA{R: 230, G: 140, B: 20, A: 220}
	accBars.LineStyle.Width = vg.Length(0)
	accBars.Offset = w / 2

	p.Add(aucBars, accBars, plotter.NewGrid())
	p.Legend.Add("AUC", aucBars)
	p.Legend.Add("accuracy", accBars)
	p.Legend.Top = true

	names := make([]string, len(rc.Subjects))
	for i, s := range rc.Subjects {
		names[i] = strconv.Itoa(s)
	}
	p.NominalX(names...)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	width := max(6*vg.Inch, vg.Length(len(names))*3*w)
	return p.Save(width, 4*vg.Inch, path)
}

// bars maps NaN slots to zero height; bar charts reject NaN.
func bars(v []float64) plotter.Values {
	out := make(plotter.Values, len(v))
	for i, x := range v {
		if !math.IsNaN(x) {
			out[i] = x
		}
	}
	return out
}
