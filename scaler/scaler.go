// Package scaler standardizes signals channel by channel.
//
// A Scaler is fit once, on a fold's training partition, and then applied
// unchanged to that fold's validation and test partitions. It refuses to be
// refit so validation or test statistics can never leak into the state.
package scaler

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

var (
	// ErrNotFitted is returned by Transform on a scaler that has no state yet.
	ErrNotFitted = errors.New("scaler: transform called before fit")
	// ErrAlreadyFitted is returned by a second Fit.
	ErrAlreadyFitted = errors.New("scaler: already fitted")
	// ErrChannels is returned when the buffer does not divide into the
	// scaler's channel count.
	ErrChannels = errors.New("scaler: channel count mismatch")
	// ErrDegenerate is wrapped by DegenerateChannelError.
	ErrDegenerate = errors.New("scaler: degenerate channel")
)

// DegenerateChannelError reports a channel whose training standard deviation
// is zero. Such a fold is not scaled; there is no epsilon substitution.
type DegenerateChannelError struct {
	Channel int
	Mean    float64
}

func (e *DegenerateChannelError) Error() string {
	return fmt.Sprintf("scaler: channel %d has zero variance (constant %g)", e.Channel, e.Mean)
}

func (e *DegenerateChannelError) Unwrap() error { return ErrDegenerate }

// State is the frozen per-channel statistics.
type State struct {
	Mean []float64
	Std  []float64
}

// Scaler holds the state of one fold.
type Scaler struct {
	channels int
	state    *State
}

// New returns an unfitted scaler for buffers whose last axis has the given size.
func New(channels int) *Scaler {
	return &Scaler{channels: channels}
}

// Channels returns the channel count the scaler expects.
func (s *Scaler) Channels() int { return s.channels }

// State returns a copy of the fitted state and whether Fit has succeeded.
func (s *Scaler) State() (State, bool) {
	if s.state == nil {
		return State{}, false
	}
	return State{
		Mean: append([]float64(nil), s.state.Mean...),
		Std:  append([]float64(nil), s.state.Std...),
	}, true
}

// Fit computes the population mean and standard deviation of every channel
// over all examples and samples in x (laid out [..., channels]).
func (s *Scaler) Fit(x []float32) error {
	if s.state != nil {
		return ErrAlreadyFitted
	}
	if err := s.check(x); err != nil {
		return err
	}
	if len(x) == 0 {
		return fmt.Errorf("scaler: fit on empty buffer: %w", ErrDegenerate)
	}

	n := len(x) / s.channels
	buf := make([]float64, n)
	st := &State{Mean: make([]float64, s.channels), Std: make([]float64, s.channels)}
	for c := range s.channels {
		for i := range n {
			buf[i] = float64(x[i*s.channels+c])
		}
		mean, variance := stat.PopMeanVariance(buf, nil)
		std := math.Sqrt(variance)
		if std == 0 || math.IsNaN(std) {
			return &DegenerateChannelError{Channel: c, Mean: mean}
		}
		st.Mean[c] = mean
		st.Std[c] = std
	}
	s.state = st
	return nil
}

// Transform returns a standardized copy of x using the fitted state.
func (s *Scaler) Transform(x []float32) ([]float32, error) {
	if s.state == nil {
		return nil, ErrNotFitted
	}
	if err := s.check(x); err != nil {
		return nil, err
	}
	out := make([]float32, len(x))
	for i, v := range x {
		c := i % s.channels
		out[i] = float32((float64(v) - s.state.Mean[c]) / s.state.Std[c])
	}
	return out, nil
}

// FitTransform fits on x and returns its standardized copy.
func (s *Scaler) FitTransform(x []float32) ([]float32, error) {
	if err := s.Fit(x); err != nil {
		return nil, err
	}
	return s.Transform(x)
}

func (s *Scaler) check(x []float32) error {
	if s.channels <= 0 {
		return fmt.Errorf("%w: scaler built for %d channels", ErrChannels, s.channels)
	}
	if len(x)%s.channels != 0 {
		return fmt.Errorf("%w: %d values do not divide into %d channels", ErrChannels, len(x), s.channels)
	}
	return nil
}
