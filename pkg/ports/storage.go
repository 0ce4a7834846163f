package ports

import (
	"context"
	"errors"

	"github.com/aretw0/anneal/pkg/domain"
)

// ErrTrajectoryNotFound is returned when a named trajectory does not exist.
var ErrTrajectoryNotFound = errors.New("trajectory not found")

// TrajectoryStore is the trajectory persistence collaborator. Semantics
// are append-or-create keyed by name: appending to an existing trajectory
// preserves prior contents and ordering.
type TrajectoryStore interface {
	// Append stores frames under name, creating the trajectory if needed.
	Append(ctx context.Context, name string, frames []domain.Frame) error

	// Load returns every frame stored under name, in append order.
	Load(ctx context.Context, name string) ([]domain.Frame, error)

	// Frame returns the frame at a local index within one trajectory.
	Frame(ctx context.Context, name string, index int) (domain.Frame, error)
}
