package core

import "fmt"

// PredictorConfig sizes the branch predictor tables.
type PredictorConfig struct {
	// BHTSize is the number of 2-bit counters. Must be a power of 2.
	BHTSize uint32 `json:"bht_size" yaml:"bht_size"`
	// BTBSize is the number of target buffer entries. Must be a power of 2.
	BTBSize uint32 `json:"btb_size" yaml:"btb_size"`
}

// DefaultPredictorConfig returns a 1024-counter, 256-target predictor.
func DefaultPredictorConfig() PredictorConfig {
	return PredictorConfig{
		BHTSize: 1024,
		BTBSize: 256,
	}
}

// Validate checks that both table sizes are non-zero powers of 2.
func (c PredictorConfig) Validate() error {
	if c.BHTSize == 0 || c.BHTSize&(c.BHTSize-1) != 0 {
		return fmt.Errorf("bht_size must be a power of 2, got %d", c.BHTSize)
	}
	if c.BTBSize == 0 || c.BTBSize&(c.BTBSize-1) != 0 {
		return fmt.Errorf("btb_size must be a power of 2, got %d", c.BTBSize)
	}
	return nil
}

// PredictorStats holds branch predictor statistics.
type PredictorStats struct {
	Predictions uint64
	// Correct and Mispredictions count direction outcomes only.
	Correct        uint64
	Mispredictions uint64
	BTBHits        uint64
	BTBMisses      uint64
}

// Accuracy returns the fraction of correctly predicted directions as a
// percentage.
func (s PredictorStats) Accuracy() float64 {
	if s.Predictions == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Predictions) * 100
}

// Prediction is the predictor's guess for one control transfer.
type Prediction struct {
	Taken       bool
	Target      uint64
	TargetKnown bool
}

// Correct reports whether the prediction matches the resolved transfer:
// the direction must agree and, for a taken transfer, the target must be
// known and equal.
func (p Prediction) Correct(taken bool, target uint64) bool {
	if p.Taken != taken {
		return false
	}
	return !taken || (p.TargetKnown && p.Target == target)
}

type btbEntry struct {
	valid  bool
	pc     uint64
	target uint64
}

// Predictor is a bimodal predictor (2-bit saturating counters indexed by
// PC) with a direct-mapped branch target buffer.
type Predictor struct {
	// 0 strongly not taken .. 3 strongly taken
	bht []uint8
	btb []btbEntry

	stats PredictorStats
}

// NewPredictor creates a predictor. Zero sizes take the defaults.
func NewPredictor(config PredictorConfig) *Predictor {
	def := DefaultPredictorConfig()
	if config.BHTSize == 0 {
		config.BHTSize = def.BHTSize
	}
	if config.BTBSize == 0 {
		config.BTBSize = def.BTBSize
	}

	p := &Predictor{
		bht: make([]uint8, config.BHTSize),
		btb: make([]btbEntry, config.BTBSize),
	}
	p.Reset()
	return p
}

// Instructions are 2-byte aligned, so bit 0 of the PC carries no
// information.
func (p *Predictor) bhtIndex(pc uint64) uint64 {
	return (pc >> 1) & uint64(len(p.bht)-1)
}

func (p *Predictor) btbIndex(pc uint64) uint64 {
	return (pc >> 1) & uint64(len(p.btb)-1)
}

// Predict returns the prediction for the control transfer at pc.
func (p *Predictor) Predict(pc uint64) Prediction {
	pred := Prediction{Taken: p.bht[p.bhtIndex(pc)] >= 2}

	entry := p.btb[p.btbIndex(pc)]
	if entry.valid && entry.pc == pc {
		pred.Target = entry.target
		pred.TargetKnown = true
		p.stats.BTBHits++
	} else {
		p.stats.BTBMisses++
	}

	p.stats.Predictions++
	return pred
}

// Update trains the predictor with the resolved outcome of the transfer
// at pc.
func (p *Predictor) Update(pc uint64, taken bool, target uint64) {
	idx := p.bhtIndex(pc)
	counter := p.bht[idx]

	if (counter >= 2) == taken {
		p.stats.Correct++
	} else {
		p.stats.Mispredictions++
	}

	switch {
	case taken && counter < 3:
		p.bht[idx] = counter + 1
	case !taken && counter > 0:
		p.bht[idx] = counter - 1
	}

	if taken {
		p.btb[p.btbIndex(pc)] = btbEntry{valid: true, pc: pc, target: target}
	}
}

// Stats returns predictor statistics.
func (p *Predictor) Stats() PredictorStats {
	return p.stats
}

// Reset sets every counter to weakly taken, empties the target buffer and
// clears the statistics.
func (p *Predictor) Reset() {
	for i := range p.bht {
		p.bht[i] = 2
	}
	for i := range p.btb {
		p.btb[i] = btbEntry{}
	}
	p.stats = PredictorStats{}
}
