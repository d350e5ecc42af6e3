// Package balance corrects class imbalance in two independent ways:
// inverse-frequency sample weights for training and random undersampling of
// the negative class for validation.
package balance

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

var (
	// ErrDegenerate is wrapped by every condition that leaves a balanced set
	// without both classes.
	ErrDegenerate = errors.New("balance: degenerate class distribution")
	// ErrNoPositives means there is no positive example to balance against.
	ErrNoPositives = fmt.Errorf("no positive examples: %w", ErrDegenerate)
	// ErrTooFewNegatives means negatives cannot be drawn without replacement
	// in the number of positives.
	ErrTooFewNegatives = fmt.Errorf("fewer negatives than positives: %w", ErrDegenerate)
)

// Counts returns the number of negative (0) and positive (1) labels.
func Counts(y []float32) (neg, pos int) {
	for _, v := range y {
		if v == 1 {
			pos++
		} else {
			neg++
		}
	}
	return neg, pos
}

// SampleWeights returns one weight per example using the "balanced" scheme:
// weight(c) = N / (K * N_c), K being the number of classes present. The
// weighted class totals are equal (N/K each).
func SampleWeights(y []float32) []float64 {
	neg, pos := Counts(y)
	classes := 0
	if neg > 0 {
		classes++
	}
	if pos > 0 {
		classes++
	}
	weights := make([]float64, len(y))
	if classes == 0 {
		return weights
	}
	n := float64(len(y))
	wNeg, wPos := 0.0, 0.0
	if neg > 0 {
		wNeg = n / (float64(classes) * float64(neg))
	}
	if pos > 0 {
		wPos = n / (float64(classes) * float64(pos))
	}
	for i, v := range y {
		if v == 1 {
			weights[i] = wPos
		} else {
			weights[i] = wNeg
		}
	}
	return weights
}

// Undersample keeps every positive position and draws, uniformly and without
// replacement, as many negative positions. The returned positions are sorted.
func Undersample(y []float32, rng *rand.Rand) ([]int, error) {
	var pos, neg []int
	for i, v := range y {
		if v == 1 {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}
	if len(pos) == 0 {
		return nil, ErrNoPositives
	}
	if len(neg) < len(pos) {
		return nil, fmt.Errorf("%d negatives for %d positives: %w", len(neg), len(pos), ErrTooFewNegatives)
	}

	keep := make([]int, 0, 2*len(pos))
	keep = append(keep, pos...)
	for _, j := range rng.Perm(len(neg))[:len(pos)] {
		keep = append(keep, neg[j])
	}
	sort.Ints(keep)
	return keep, nil
}
