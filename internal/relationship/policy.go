package relationship

// DecayPolicy decides how affinity drifts when nothing happens between a pair.
type DecayPolicy interface {
	Decay(affinity, dtSeconds float64) float64
}

// NoDecay keeps affinity exactly where dialogue outcomes left it.
// Relationships are sticky: a quarrel an hour ago still counts.
type NoDecay struct{}

// Decay returns affinity unchanged.
func (NoDecay) Decay(affinity, _ float64) float64 {
	return affinity
}

// ApplyPolicy runs the policy over every pair and drops pairs that settle at zero.
func ApplyPolicy(l Ledger, p DecayPolicy, dtSeconds float64) Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		nv := p.Decay(v, dtSeconds)
		if nv == 0 {
			continue
		}
		out[k] = nv
	}
	return out
}
