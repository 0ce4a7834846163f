package domain

// WorkLedger collects incremental-work sequences per direction, in the
// order particles were submitted. Cumulative sums are always derived from
// the incremental values, never stored, so the two can not drift apart.
type WorkLedger struct {
	incremental map[Direction][][]float64
}

// NewWorkLedger returns an empty ledger.
func NewWorkLedger() *WorkLedger {
	return &WorkLedger{incremental: make(map[Direction][][]float64)}
}

// Append records one particle's incremental-work sequence.
func (l *WorkLedger) Append(d Direction, incremental []float64) {
	work := make([]float64, len(incremental))
	copy(work, incremental)
	l.incremental[d] = append(l.incremental[d], work)
}

// Count returns the number of recorded particles for a direction.
func (l *WorkLedger) Count(d Direction) int { return len(l.incremental[d]) }

// Directions lists directions with at least one recorded particle, in the
// canonical forward, reverse order.
func (l *WorkLedger) Directions() []Direction {
	out := make([]Direction, 0, 2)
	for _, d := range []Direction{DirectionForward, DirectionReverse} {
		if len(l.incremental[d]) > 0 {
			out = append(out, d)
		}
	}
	return out
}

// Incremental returns the recorded sequences for a direction. The caller
// must not mutate the returned slices.
func (l *WorkLedger) Incremental(d Direction) [][]float64 { return l.incremental[d] }

// CumulativeMatrix derives the cumulative-work matrix for a direction:
// rows are particles in submission order, column j holds the running sum
// of the first j+1 incremental values.
func (l *WorkLedger) CumulativeMatrix(d Direction) [][]float64 {
	rows := l.incremental[d]
	out := make([][]float64, len(rows))
	for i, row := range rows {
		cum := make([]float64, len(row))
		var sum float64
		for j, w := range row {
			sum += w
			cum[j] = sum
		}
		out[i] = cum
	}
	return out
}

// FinalWorks returns the total dissipated work per particle, the last
// column of the cumulative matrix.
func (l *WorkLedger) FinalWorks(d Direction) []float64 {
	rows := l.incremental[d]
	out := make([]float64, len(rows))
	for i, row := range rows {
		var sum float64
		for _, w := range row {
			sum += w
		}
		out[i] = sum
	}
	return out
}

// LedgerSnapshot is the serializable form of a ledger, used for
// checkpointing between phases.
type LedgerSnapshot struct {
	Forward [][]float64 `json:"forward,omitempty"`
	Reverse [][]float64 `json:"reverse,omitempty"`
}

// Snapshot captures the ledger contents.
func (l *WorkLedger) Snapshot() LedgerSnapshot {
	return LedgerSnapshot{
		Forward: copyMatrix(l.incremental[DirectionForward]),
		Reverse: copyMatrix(l.incremental[DirectionReverse]),
	}
}

// Restore replaces the ledger contents with a snapshot.
func (l *WorkLedger) Restore(s LedgerSnapshot) {
	l.incremental = map[Direction][][]float64{}
	if len(s.Forward) > 0 {
		l.incremental[DirectionForward] = copyMatrix(s.Forward)
	}
	if len(s.Reverse) > 0 {
		l.incremental[DirectionReverse] = copyMatrix(s.Reverse)
	}
}

func copyMatrix(m [][]float64) [][]float64 {
	if m == nil {
		return nil
	}
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = make([]float64, len(row))
		copy(out[i], row)
	}
	return out
}
