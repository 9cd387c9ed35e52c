package model

// SplitRatio maps participants to fractional shares of a cost. Participants
// keep their insertion order, which fixes the otherwise unspecified "first
// split" used for rounding reconciliation.
type SplitRatio struct {
	shares map[string]float64
	order  []string
}

// NewSplitRatio creates an empty ratio map.
func NewSplitRatio() *SplitRatio {
	return &SplitRatio{shares: make(map[string]float64)}
}

// EqualSplit builds a ratio giving every participant 1/n. Duplicate
// participants are ignored.
func EqualSplit(participants []string) *SplitRatio {
	r := NewSplitRatio()
	for _, p := range participants {
		r.Set(p, 0)
	}
	if len(r.order) == 0 {
		return r
	}
	share := 1.0 / float64(len(r.order))
	for _, p := range r.order {
		r.shares[p] = share
	}
	return r
}

// Set assigns a share to a participant, recording insertion order on first use.
func (r *SplitRatio) Set(participant string, share float64) {
	if _, ok := r.shares[participant]; !ok {
		r.order = append(r.order, participant)
	}
	r.shares[participant] = share
}

// Share returns the participant's share, or 0 if absent.
func (r *SplitRatio) Share(participant string) float64 {
	return r.shares[participant]
}

// Has reports whether the participant is present in the ratio map.
func (r *SplitRatio) Has(participant string) bool {
	_, ok := r.shares[participant]
	return ok
}

// Participants returns the participants in insertion order.
func (r *SplitRatio) Participants() []string {
	return r.order
}

// Len returns the number of participants in the ratio map.
func (r *SplitRatio) Len() int {
	return len(r.order)
}

// Sum returns the sum of all shares.
func (r *SplitRatio) Sum() float64 {
	var total float64
	for _, share := range r.shares {
		total += share
	}
	return total
}

// Normalize rescales every share so they sum to 1.0. A ratio whose shares sum
// to zero or less is left unchanged.
func (r *SplitRatio) Normalize() {
	total := r.Sum()
	if total <= 0 {
		return
	}
	for p, share := range r.shares {
		r.shares[p] = share / total
	}
}
