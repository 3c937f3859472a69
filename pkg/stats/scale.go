package stats

import "errors"

// RobustScaler centers each column on its median and scales it by the
// interquartile range, which keeps heavy-tailed amounts from dominating.
type RobustScaler struct {
	Center []float64
	Scale  []float64
	fit    bool
}

func NewRobustScaler() *RobustScaler { return &RobustScaler{} }

// Fit learns per-column medians and IQRs. A zero IQR scales by 1.
func (s *RobustScaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return errors.New("stats: cannot fit scaler on empty data")
	}
	r, c := len(X), len(X[0])
	s.Center = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			col[i] = X[i][j]
		}
		q1, med, q3 := Quartiles(col)
		s.Center[j] = med
		s.Scale[j] = q3 - q1
		if s.Scale[j] == 0 {
			s.Scale[j] = 1
		}
	}
	s.fit = true
	return nil
}

// Fitted reports whether the scaler holds learned statistics.
func (s *RobustScaler) Fitted() bool { return s.fit || len(s.Center) > 0 }

// Transform returns a scaled copy of X. An unfitted scaler returns X unchanged.
func (s *RobustScaler) Transform(X [][]float64) [][]float64 {
	if !s.Fitted() {
		return X
	}
	Y := make([][]float64, len(X))
	for i, row := range X {
		out := make([]float64, len(row))
		for j, v := range row {
			out[j] = s.TransformValue(j, v)
		}
		Y[i] = out
	}
	return Y
}

// TransformValue scales a single value of column j.
func (s *RobustScaler) TransformValue(j int, v float64) float64 {
	return (v - s.Center[j]) / s.Scale[j]
}

func (s *RobustScaler) FitTransform(X [][]float64) ([][]float64, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X), nil
}
