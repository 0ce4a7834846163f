package equilibration

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/aretw0/anneal/pkg/domain"
	"github.com/aretw0/anneal/pkg/ports"
)

// FrameRef locates one stored snapshot: a chunk file plus the frame index
// local to that file.
type FrameRef struct {
	File  string
	Index int
}

// Decorrelated is the outcome of decorrelating one end-state's collected
// reduced potentials: the retained global indices and their resolution to
// stored frames.
type Decorrelated struct {
	Cutoff           int
	Inefficiency     float64
	EffectiveSamples float64

	// Indices are the retained global sample indices, ascending.
	Indices []int

	// Sources maps each retained global index to exactly one stored frame.
	Sources map[int]FrameRef
}

// Decorrelate computes the equilibration cutoff and statistical
// inefficiency of the full reduced-potential series collected at one
// end-state, discards burn-in, subsamples the remainder, and maps every
// retained global index back to its (file, local index) pair.
//
// A retained index that does not resolve to exactly one file is a fatal
// ConsistencyError: it means the file records and the potential series
// have drifted apart upstream.
func Decorrelate(estimator ports.Estimator, potentials []float64, files []domain.FileRecord) (*Decorrelated, error) {
	if len(potentials) == 0 {
		return nil, domain.ErrNoDecorrelatedSamples
	}

	eq, err := estimator.DetectEquilibration(potentials)
	if err != nil {
		return nil, fmt.Errorf("decorrelation: detecting equilibration: %w", err)
	}
	local, err := estimator.SubsampleIndependent(potentials[eq.Cutoff:], eq.Inefficiency)
	if err != nil {
		return nil, fmt.Errorf("decorrelation: subsampling: %w", err)
	}

	d := &Decorrelated{
		Cutoff:           eq.Cutoff,
		Inefficiency:     eq.Inefficiency,
		EffectiveSamples: eq.EffectiveSamples,
		Indices:          make([]int, 0, len(local)),
		Sources:          make(map[int]FrameRef, len(local)),
	}
	for _, i := range local {
		d.Indices = append(d.Indices, i+eq.Cutoff)
	}

	// Resolve each retained global index to its chunk file by walking the
	// file records in order.
	type span struct {
		file       string
		start, end int // [start, end)
	}
	spans := make([]span, 0, len(files))
	offset := 0
	for _, f := range files {
		spans = append(spans, span{file: f.Name, start: offset, end: offset + f.Snapshots})
		offset += f.Snapshots
	}

	for _, global := range d.Indices {
		matches := 0
		var ref FrameRef
		for _, s := range spans {
			if global >= s.start && global < s.end {
				matches++
				ref = FrameRef{File: s.file, Index: global - s.start}
			}
		}
		if matches != 1 {
			return nil, &domain.ConsistencyError{
				Op: "decorrelation",
				Detail: fmt.Sprintf("global index %d resolves to %d files (have %d snapshots across %d files)",
					global, matches, offset, len(files)),
			}
		}
		d.Sources[global] = ref
	}
	return d, nil
}

// DrawSnapshot uniformly samples one decorrelated global index and loads
// the corresponding configuration from storage.
func DrawSnapshot(ctx context.Context, rng *rand.Rand, d *Decorrelated, store ports.TrajectoryStore) (*domain.SamplerState, error) {
	if d == nil || len(d.Indices) == 0 {
		return nil, domain.ErrNoDecorrelatedSamples
	}
	global := d.Indices[rng.Intn(len(d.Indices))]
	ref, ok := d.Sources[global]
	if !ok {
		return nil, &domain.ConsistencyError{
			Op:     "snapshot draw",
			Detail: fmt.Sprintf("global index %d has no source file", global),
		}
	}
	frame, err := store.Frame(ctx, ref.File, ref.Index)
	if err != nil {
		return nil, fmt.Errorf("drawing snapshot %d from %s[%d]: %w", global, ref.File, ref.Index, err)
	}
	return domain.SamplerStateOf(frame), nil
}
