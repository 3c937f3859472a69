// Package artifact persists trained models under their family key.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"fraudml/pkg/model"
)

// Store saves and loads model artifacts by name. Saving an existing name
// overwrites it.
type Store interface {
	Save(ctx context.Context, name string, a *model.Artifact) error
	Load(ctx context.Context, name string) (*model.Artifact, error)
	List(ctx context.Context) ([]string, error)
}

// ErrNotFound matches every *NotFoundError via errors.Is.
var ErrNotFound = errors.New("artifact not found")

// NotFoundError is returned by Load when nothing is stored under Name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("artifact %q not found", e.Name) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

var validName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func checkName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	return nil
}
