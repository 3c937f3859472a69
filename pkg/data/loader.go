package data

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Sample represents a single data point.
type Sample struct {
	X []float64
	Y float64
}

// Row is one parsed CSV record, or the error that stopped the stream.
type Row struct {
	Line   int
	Values []float64
	Err    error
}

// LoadCSV reads a headed CSV file into a Table.
func LoadCSV(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()
	return ReadCSV(file)
}

// ReadCSV reads a headed CSV stream into a Table. Empty, "NA" and "NaN"
// cells become NaN; any other non-numeric cell is an error.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("read header: empty input")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	rows := make(chan Row, 256)
	done := StreamRecords(reader, len(columns), rows)
	defer close(done)

	t := &Table{Columns: columns}
	for row := range rows {
		if row.Err != nil {
			return nil, row.Err
		}
		t.Rows = append(t.Rows, row.Values)
	}
	return t, nil
}

// StreamRecords parses CSV records on a goroutine and sends them to out.
// Close the returned done chan to stop early; out is closed when the stream ends.
func StreamRecords(reader *csv.Reader, width int, out chan<- Row) (done chan struct{}) {
	reader.ReuseRecord = true
	done = make(chan struct{})

	go func() {
		defer close(out)
		line := 1
		for {
			rec, err := reader.Read()
			if err == io.EOF {
				return
			}
			line++
			var row Row
			if err != nil {
				row = Row{Line: line, Err: fmt.Errorf("line %d: %w", line, err)}
			} else {
				row = parseRecord(rec, width, line)
			}
			select {
			case <-done:
				return
			case out <- row:
			}
			if row.Err != nil {
				return
			}
		}
	}()
	return done
}

func parseRecord(rec []string, width, line int) Row {
	if len(rec) != width {
		return Row{Line: line, Err: fmt.Errorf("line %d: expected %d fields, got %d", line, width, len(rec))}
	}
	x := make([]float64, width)
	for i, s := range rec {
		v, err := ParseCell(s)
		if err != nil {
			return Row{Line: line, Err: fmt.Errorf("line %d, field %d: %w", line, i+1, err)}
		}
		x[i] = v
	}
	return Row{Line: line, Values: x}
}

// ParseCell converts a CSV cell to a float, mapping missing markers to NaN.
func ParseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "NA", "NaN", "nan", "null":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// Batch represents a collection of data points.
type Batch struct {
	X [][]float64
	Y []float64
	W []float64
}

// Batcher reads from a Sample channel and emits mini-batches via a channel.
// weight maps a label to its loss weight; nil means unit weights.
func Batcher(in <-chan Sample, batchSize int, weight func(y float64) float64, out chan<- Batch) (done chan struct{}) {
	done = make(chan struct{})

	go func() {
		defer close(out)

		var b Batch
		for {
			select {
			case <-done:
				return

			case s, ok := <-in:
				if !ok {
					// Flush the final, possibly incomplete, batch.
					if len(b.Y) > 0 {
						out <- b
					}
					return
				}

				w := 1.0
				if weight != nil {
					w = weight(s.Y)
				}
				b.X = append(b.X, s.X)
				b.Y = append(b.Y, s.Y)
				b.W = append(b.W, w)

				if len(b.Y) == batchSize {
					out <- b
					b = Batch{}
				}
			}
		}
	}()

	return done
}

// Emit sends the rows of X (in the given order) as Samples and closes out.
func Emit(X [][]float64, y []float64, order []int, out chan<- Sample) {
	go func() {
		defer close(out)
		for _, i := range order {
			out <- Sample{X: X[i], Y: y[i]}
		}
	}()
}
