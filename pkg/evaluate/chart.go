package evaluate

import (
	"errors"
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
)

// CompareChart renders one bar per report for the chosen metric ("f1",
// "recall", "precision" or "accuracy") as a PNG.
func CompareChart(w io.Writer, reports []Report, metric string) error {
	if len(reports) == 0 {
		return errors.New("no reports to chart")
	}
	var bars []chart.Value
	for _, r := range reports {
		v, ok := r.Metrics()[metric]
		if !ok {
			return fmt.Errorf("unknown metric %q", metric)
		}
		bars = append(bars, chart.Value{Label: r.Model, Value: v})
	}

	barChart := chart.BarChart{
		Title: fmt.Sprintf("Holdout %s by model", metric),
		Background: chart.Style{
			Padding: chart.Box{
				Top:    40,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
		},
		Width:    800,
		Height:   400,
		BarWidth: 60,
		Bars:     bars,
	}
	barChart.YAxis.Range = &chart.ContinuousRange{Min: 0, Max: 1}
	barChart.YAxis.ValueFormatter = func(v interface{}) string {
		if vf, isFloat := v.(float64); isFloat {
			return fmt.Sprintf("%.2f", vf)
		}
		return ""
	}

	return barChart.Render(chart.PNG, w)
}
