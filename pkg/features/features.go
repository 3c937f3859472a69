// Package features owns the serving-side feature contract: the canonical
// order of raw transaction values and the mapping from that order to the
// column layout a model was trained on.
package features

import (
	"fmt"
	"math"

	"fraudml/pkg/data"
	"fraudml/pkg/dataprep"
	"fraudml/pkg/model"
)

// Width is the number of raw values in a transaction record.
const Width = 30

// KaggleOrder is the canonical raw feature order: V1..V28, Amount, Time.
func KaggleOrder() []string {
	names := make([]string, 0, Width)
	for i := 1; i <= 28; i++ {
		names = append(names, fmt.Sprintf("V%d", i))
	}
	return append(names, "Amount", "Time")
}

// Align checks a raw vector against the canonical width. Short vectors are
// zero-padded at the end and reported as padded; long vectors and NaN or
// infinite values are rejected.
//
// Padding keeps compatibility with clients that send fewer values, but the
// model then scores zeros it never saw in that position.
func Align(values []float64) ([]float64, bool, error) {
	if len(values) > Width {
		return nil, false, fmt.Errorf("expected at most %d features, got %d", Width, len(values))
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false, fmt.Errorf("feature %s is %v: %w", KaggleOrder()[i], v, model.ErrNonFinite)
		}
	}
	out := make([]float64, Width)
	copy(out, values)
	return out, len(values) < Width, nil
}

// FromMap orders named raw values canonically. Every name must be present.
func FromMap(m map[string]float64) ([]float64, error) {
	out := make([]float64, 0, Width)
	for _, name := range KaggleOrder() {
		v, ok := m[name]
		if !ok {
			return nil, fmt.Errorf("missing feature %q", name)
		}
		out = append(out, v)
	}
	return out, nil
}

// FromTable extracts the canonical raw vectors from a table that carries
// every KaggleOrder column by name. Extra columns such as the label are
// ignored.
func FromTable(t *data.Table) ([][]float64, error) {
	order := KaggleOrder()
	idx := make([]int, len(order))
	for i, name := range order {
		if idx[i] = t.Index(name); idx[i] < 0 {
			return nil, fmt.Errorf("missing feature column %q", name)
		}
	}
	out := make([][]float64, t.Len())
	for r, row := range t.Rows {
		v := make([]float64, len(idx))
		for i, j := range idx {
			v[i] = row[j]
		}
		out[r] = v
	}
	return out, nil
}

// TrainingLayout describes how the preprocessed columns of res derive from
// raw columns, so serving can rebuild model rows from raw transactions.
func TrainingLayout(res *dataprep.Result, opts dataprep.Options) model.InputLayout {
	l := model.InputLayout{
		Columns:    append([]string(nil), res.Columns...),
		Sources:    make([]string, len(res.Columns)),
		ScaleIndex: make([]int, len(res.Columns)),
		Scaler:     res.Scaler,
	}
	for i, c := range res.Columns {
		switch c {
		case dataprep.ScaledAmount:
			l.Sources[i], l.ScaleIndex[i] = opts.Amount, 0
		case dataprep.ScaledTime:
			l.Sources[i], l.ScaleIndex[i] = opts.Time, 1
		default:
			l.Sources[i], l.ScaleIndex[i] = c, -1
		}
	}
	return l
}

// Layout maps canonical raw vectors onto a model's input columns.
type Layout struct {
	in  model.InputLayout
	src []int // position in KaggleOrder of each model column
}

// NewLayout validates an artifact layout against the canonical order. An
// empty layout means the model consumes raw vectors as they are.
func NewLayout(in model.InputLayout) (*Layout, error) {
	pos := make(map[string]int, Width)
	for i, n := range KaggleOrder() {
		pos[n] = i
	}
	if len(in.Sources) != len(in.Columns) || len(in.ScaleIndex) != len(in.Columns) {
		return nil, fmt.Errorf("layout: %d columns, %d sources, %d scale indices",
			len(in.Columns), len(in.Sources), len(in.ScaleIndex))
	}

	l := &Layout{in: in, src: make([]int, len(in.Columns))}
	for i, s := range in.Sources {
		p, ok := pos[s]
		if !ok {
			return nil, fmt.Errorf("layout: column %q reads unknown raw feature %q", in.Columns[i], s)
		}
		l.src[i] = p
		if k := in.ScaleIndex[i]; k >= 0 {
			if in.Scaler == nil || k >= len(in.Scaler.Center) {
				return nil, fmt.Errorf("layout: column %q needs scaler column %d", in.Columns[i], k)
			}
		}
	}
	return l, nil
}

// Columns is the model-side column order.
func (l *Layout) Columns() []string {
	if len(l.in.Columns) == 0 {
		return KaggleOrder()
	}
	return l.in.Columns
}

// Transform turns one canonical raw vector of Width values into a model row.
func (l *Layout) Transform(raw []float64) ([]float64, error) {
	if len(raw) != Width {
		return nil, fmt.Errorf("expected %d raw features, got %d", Width, len(raw))
	}
	if len(l.in.Columns) == 0 {
		return append([]float64(nil), raw...), nil
	}
	out := make([]float64, len(l.src))
	for i, p := range l.src {
		v := raw[p]
		if k := l.in.ScaleIndex[i]; k >= 0 {
			// Scaling an extreme raw value can overflow.
			v = math.Max(-math.MaxFloat64, math.Min(math.MaxFloat64, l.in.Scaler.TransformValue(k, v)))
		}
		out[i] = v
	}
	return out, nil
}

// TransformAll applies Transform to every row.
func (l *Layout) TransformAll(raw [][]float64) ([][]float64, error) {
	out := make([][]float64, len(raw))
	for i, r := range raw {
		row, err := l.Transform(r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = row
	}
	return out, nil
}
