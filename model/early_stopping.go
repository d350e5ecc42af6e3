package model

import (
	"fmt"
	"math"
)

// DefaultPatience matches the patience the P300 experiments were run with.
const DefaultPatience = 50

// EarlyStopping stops training once the monitored validation loss has not
// improved by more than MinDelta for Patience consecutive epochs. With
// RestoreBest the parameters of the best epoch are kept instead of the last.
type EarlyStopping struct {
	Patience    int     `yaml:"patience" validate:"gte=0"`
	MinDelta    float64 `yaml:"min_delta" validate:"gte=0"`
	RestoreBest bool    `yaml:"restore_best"`
}

// Monitor tracks one training run against an EarlyStopping policy.
type Monitor struct {
	policy EarlyStopping
	best   float64
	epoch  int
	wait   int
}

// NewMonitor starts tracking with no best loss yet.
func NewMonitor(policy EarlyStopping) *Monitor {
	return &Monitor{policy: policy, best: math.Inf(1), epoch: -1}
}

// Observe records the loss of epoch. improved is true when it becomes the new
// best; stop is true when patience has run out.
func (m *Monitor) Observe(epoch int, loss float64) (improved, stop bool) {
	if math.IsNaN(loss) {
		m.wait++
		return false, m.wait >= m.policy.Patience
	}
	if loss < m.best-m.policy.MinDelta {
		m.best = loss
		m.epoch = epoch
		m.wait = 0
		return true, false
	}
	m.wait++
	return false, m.wait >= m.policy.Patience
}

// Best returns the best epoch and its loss; epoch is -1 before any improvement.
func (m *Monitor) Best() (epoch int, loss float64) {
	return m.epoch, m.best
}

func (m *Monitor) String() string {
	return fmt.Sprintf("best epoch %d (loss %.5f), %d epoch(s) without improvement", m.epoch, m.best, m.wait)
}
