// Package disk implements ports.TrajectoryStore on the local filesystem.
// Each trajectory is one file of length-prefixed gob-encoded frame blocks;
// appending writes a new block, so prior contents are never rewritten.
package disk

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aretw0/anneal/pkg/domain"
	"github.com/aretw0/anneal/pkg/ports"
)

// Store implements ports.TrajectoryStore under a root directory.
// Safe for concurrent use across distinct names; appends to the same name
// are serialized by an internal lock.
type Store struct {
	root string
	mu   sync.Mutex
}

// NewStore creates a disk store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating trajectory directory: %w", err)
	}
	return &Store{root: dir}, nil
}

var _ ports.TrajectoryStore = (*Store)(nil)

// path maps a trajectory name to a file path, rejecting traversal.
func (s *Store) path(name string) (string, error) {
	clean := filepath.Clean(name)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid trajectory name %q", name)
	}
	return filepath.Join(s.root, clean), nil
}

// Append encodes frames as one length-prefixed gob block at the end of the
// trajectory file.
func (s *Store) Append(ctx context.Context, name string, frames []domain.Frame) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}

	var block bytes.Buffer
	if err := gob.NewEncoder(&block).Encode(frames); err != nil {
		return fmt.Errorf("encoding trajectory block: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating trajectory subdirectory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening trajectory %s: %w", name, err)
	}
	defer f.Close()

	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(block.Len()))
	if _, err := f.Write(prefix[:]); err != nil {
		return fmt.Errorf("writing block prefix: %w", err)
	}
	if _, err := f.Write(block.Bytes()); err != nil {
		return fmt.Errorf("writing block: %w", err)
	}
	return f.Sync()
}

// Load reads every block of the trajectory file in order.
func (s *Store) Load(ctx context.Context, name string) ([]domain.Frame, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ports.ErrTrajectoryNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("opening trajectory %s: %w", name, err)
	}
	defer f.Close()

	var out []domain.Frame
	for {
		var prefix [8]byte
		if _, err := io.ReadFull(f, prefix[:]); err == io.EOF {
			return out, nil
		} else if err != nil {
			return nil, fmt.Errorf("reading block prefix of %s: %w", name, err)
		}
		block := make([]byte, binary.BigEndian.Uint64(prefix[:]))
		if _, err := io.ReadFull(f, block); err != nil {
			return nil, fmt.Errorf("reading block of %s: %w", name, err)
		}
		var frames []domain.Frame
		if err := gob.NewDecoder(bytes.NewReader(block)).Decode(&frames); err != nil {
			return nil, fmt.Errorf("decoding block of %s: %w", name, err)
		}
		out = append(out, frames...)
	}
}

// Frame returns the frame at a local index within one trajectory.
func (s *Store) Frame(ctx context.Context, name string, index int) (domain.Frame, error) {
	frames, err := s.Load(ctx, name)
	if err != nil {
		return domain.Frame{}, err
	}
	if index < 0 || index >= len(frames) {
		return domain.Frame{}, fmt.Errorf("frame index %d out of range for %s (%d frames)", index, name, len(frames))
	}
	return frames[index], nil
}
