package model

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"time"

	"fraudml/pkg/stats"
)

// InputLayout records how a raw transaction becomes a model input row.
// Columns, Sources and ScaleIndex are aligned: model column i is read from
// raw column Sources[i] and, when ScaleIndex[i] >= 0, passed through that
// column of Scaler.
type InputLayout struct {
	Columns    []string
	Sources    []string
	ScaleIndex []int
	Scaler     *stats.RobustScaler
}

// Metadata describes the training run that produced an artifact.
type Metadata struct {
	RunID     string
	TrainedAt time.Time
	TrainRows int
	Params    map[string]string
	Metrics   map[string]float64
}

// Artifact is the persisted form of a trained model: a family tag and
// exactly one populated variant matching it.
type Artifact struct {
	Family Family

	Linear    *LinearModel
	Forest    *RandomForest
	Neighbors *KNN
	Tree      *DecisionTreeClassifier

	Layout InputLayout
	Meta   Metadata
}

// NewArtifact wraps a trained classifier.
func NewArtifact(clf Classifier, layout InputLayout, meta Metadata) (*Artifact, error) {
	a := &Artifact{Family: clf.Family(), Layout: layout, Meta: meta}
	switch m := clf.(type) {
	case *LinearModel:
		a.Linear = m
	case *RandomForest:
		a.Forest = m
	case *KNN:
		a.Neighbors = m
	case *DecisionTreeClassifier:
		a.Tree = m
	default:
		return nil, fmt.Errorf("artifact: unsupported classifier %T", clf)
	}
	return a, nil
}

// Classifier returns the populated variant after checking it matches the
// family tag.
func (a *Artifact) Classifier() (Classifier, error) {
	var (
		clf Classifier
		set int
	)
	if a.Linear != nil {
		clf, set = a.Linear, set+1
	}
	if a.Forest != nil {
		clf, set = a.Forest, set+1
	}
	if a.Neighbors != nil {
		clf, set = a.Neighbors, set+1
	}
	if a.Tree != nil {
		clf, set = a.Tree, set+1
	}
	if set != 1 {
		return nil, fmt.Errorf("artifact: %d model variants populated, want exactly 1", set)
	}
	if clf.Family() != a.Family {
		return nil, fmt.Errorf("artifact: tagged %s but holds %s", a.Family, clf.Family())
	}
	return clf, nil
}

// artifactWire has Artifact's fields without its methods, so gob encodes the
// struct itself instead of recursing into MarshalBinary.
type artifactWire Artifact

// Encode writes the artifact as gob.
func (a *Artifact) Encode(w io.Writer) error {
	if _, err := a.Classifier(); err != nil {
		return err
	}
	return gob.NewEncoder(w).Encode((*artifactWire)(a))
}

// DecodeArtifact reads a gob-encoded artifact and validates its variant.
func DecodeArtifact(r io.Reader) (*Artifact, error) {
	var a Artifact
	if err := gob.NewDecoder(r).Decode((*artifactWire)(&a)); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if a.Family == "" {
		return nil, errors.New("decode artifact: missing family tag")
	}
	if _, err := a.Classifier(); err != nil {
		return nil, err
	}
	return &a, nil
}

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (a *Artifact) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := a.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using gob.
func (a *Artifact) UnmarshalBinary(data []byte) error {
	decoded, err := DecodeArtifact(bytes.NewReader(data))
	if err != nil {
		return err
	}
	*a = *decoded
	return nil
}
