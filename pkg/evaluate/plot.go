package evaluate

import (
	"errors"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotROC saves the ROC curves of every report that has one to filename.
// The image format follows the file extension.
func PlotROC(reports []Report, filename string) error {
	p := plot.New()
	p.Title.Text = "ROC"
	p.X.Label.Text = "False positive rate"
	p.Y.Label.Text = "True positive rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	chance, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return err
	}
	chance.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(chance)

	drawn := 0
	for _, r := range reports {
		if r.ROC == nil {
			continue
		}
		pts := make(plotter.XYs, len(r.ROC.FPR))
		for i := range pts {
			pts[i] = plotter.XY{X: r.ROC.FPR[i], Y: r.ROC.TPR[i]}
		}
		l, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("roc line for %s: %w", r.Model, err)
		}
		l.LineStyle.Width = vg.Points(2)
		l.LineStyle.Color = plotutil.Color(drawn)
		p.Add(l)
		label := r.Model
		if r.AUC != nil {
			label = fmt.Sprintf("%s (AUC %.3f)", r.Model, *r.AUC)
		}
		p.Legend.Add(label, l)
		drawn++
	}
	if drawn == 0 {
		return errors.New("no report has an ROC curve")
	}
	p.Legend.Top = false
	p.Legend.Left = false

	return p.Save(6*vg.Inch, 6*vg.Inch, filename)
}
