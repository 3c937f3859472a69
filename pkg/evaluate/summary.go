package evaluate

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// WriteSummary renders the reports as a text table.
func WriteSummary(w io.Writer, reports []Report) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Model", "Precision", "Recall", "F1", "Accuracy", "AUC", "TP", "FP", "TN", "FN"})
	for _, r := range reports {
		auc := "N/A"
		if r.AUC != nil {
			auc = fmt.Sprintf("%.4f", *r.AUC)
		}
		table.Append([]string{
			r.Model,
			fmt.Sprintf("%.4f", r.Precision),
			fmt.Sprintf("%.4f", r.Recall),
			fmt.Sprintf("%.4f", r.F1),
			fmt.Sprintf("%.4f", r.Accuracy),
			auc,
			strconv.Itoa(r.Confusion.TP),
			strconv.Itoa(r.Confusion.FP),
			strconv.Itoa(r.Confusion.TN),
			strconv.Itoa(r.Confusion.FN),
		})
	}
	table.Render()
}
