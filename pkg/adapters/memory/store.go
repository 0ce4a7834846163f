// Package memory implements ports.TrajectoryStore in memory. It is the
// backbone of the test suite and a reasonable choice for short runs that
// never need trajectories on disk.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/anneal/pkg/domain"
	"github.com/aretw0/anneal/pkg/ports"
)

// Store implements ports.TrajectoryStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string][]domain.Frame
	mu   sync.RWMutex
}

// NewStore creates a new in-memory trajectory store.
func NewStore() *Store {
	return &Store{data: make(map[string][]domain.Frame)}
}

var _ ports.TrajectoryStore = (*Store)(nil)

// Append stores frames under name, creating the trajectory if needed.
// Frames are deep-copied so the caller's buffer can be reused.
func (s *Store) Append(ctx context.Context, name string, frames []domain.Frame) error {
	copied := make([]domain.Frame, len(frames))
	for i, f := range frames {
		positions := make([][3]float64, len(f.Positions))
		copy(positions, f.Positions)
		copied[i] = domain.Frame{Positions: positions, BoxLengths: f.BoxLengths, BoxAngles: f.BoxAngles}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = append(s.data[name], copied...)
	return nil
}

// Load returns every frame stored under name in append order.
func (s *Store) Load(ctx context.Context, name string) ([]domain.Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	frames, ok := s.data[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrTrajectoryNotFound, name)
	}
	out := make([]domain.Frame, len(frames))
	copy(out, frames)
	return out, nil
}

// Frame returns the frame at a local index within one trajectory.
func (s *Store) Frame(ctx context.Context, name string, index int) (domain.Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	frames, ok := s.data[name]
	if !ok {
		return domain.Frame{}, fmt.Errorf("%w: %s", ports.ErrTrajectoryNotFound, name)
	}
	if index < 0 || index >= len(frames) {
		return domain.Frame{}, fmt.Errorf("frame index %d out of range for %s (%d frames)", index, name, len(frames))
	}
	return frames[index], nil
}

// Names lists stored trajectory names; handy for assertions in tests.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	return names
}
