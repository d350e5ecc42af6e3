package datasets

import (
	"errors"
	"fmt"
)

// This package holds the evaluation inputs in memory and hands out
// fold-local copies of them.
//
// Layout and intended usage:
//
// Dataset
//   - A 4-D float32 tensor [subjects, examples_per_subject, samples, channels]
//     stored flat in row-major order, paired with a LabelSet of shape
//     [subjects, examples_per_subject] holding binary labels (0/1).
//   - Owned by the caller. Nothing in this package mutates it.
//
// Flat
//   - The [examples, samples, channels] view of a Dataset plus the
//     GroupVector mapping each flat example to its subject id.
//
// Partition
//   - A materialized copy of a subset of the flat examples (one of the
//     train/valid/test partitions of a fold). Partitions are what scalers
//     transform and classifiers consume.

// ErrShape is wrapped by every data/label shape violation.
var ErrShape = errors.New("data shape error")

// ShapeError describes a data/label shape mismatch detected before any fold runs.
type ShapeError struct {
	Msg string
}

func (e *ShapeError) Error() string { return "data shape error: " + e.Msg }

func (e *ShapeError) Unwrap() error { return ErrShape }

func shapeErrorf(format string, args ...any) error {
	return &ShapeError{Msg: fmt.Sprintf(format, args...)}
}

// LabelSet holds one binary label per (subject, example) pair.
type LabelSet struct {
	Values []float32
	Shape  [2]int
}

// Dataset is the immutable evaluation input.
type Dataset struct {
	Data   []float32
	Shape  [4]int
	Labels LabelSet
}

// New validates the data and label arrays and wraps them in a Dataset.
// The slices are referenced, not copied.
func New(data []float32, shape []int, labels []float32, labelShape []int) (*Dataset, error) {
	if len(shape) != 4 {
		return nil, shapeErrorf("data must be 4-D [subjects, examples, samples, channels], got %d-D %v", len(shape), shape)
	}
	if len(labelShape) != 2 {
		return nil, shapeErrorf("labels must be 2-D [subjects, examples], got %d-D %v", len(labelShape), labelShape)
	}
	if labelShape[0] != shape[0] || labelShape[1] != shape[1] {
		return nil, shapeErrorf("labels shape %v does not match data shape %v", labelShape, shape[:2])
	}
	for i, d := range shape {
		if d <= 0 {
			return nil, shapeErrorf("data dimension %d is %d", i, d)
		}
	}
	if n := product(shape); len(data) != n {
		return nil, shapeErrorf("data has %d values, shape %v needs %d", len(data), shape, n)
	}
	if n := product(labelShape); len(labels) != n {
		return nil, shapeErrorf("labels have %d values, shape %v needs %d", len(labels), labelShape, n)
	}
	for i, l := range labels {
		if l != 0 && l != 1 {
			return nil, shapeErrorf("label %d is %v, expected 0 or 1", i, l)
		}
	}

	ds := &Dataset{
		Data:   data,
		Labels: LabelSet{Values: labels, Shape: [2]int{labelShape[0], labelShape[1]}},
	}
	copy(ds.Shape[:], shape)
	return ds, nil
}

// Subjects returns the number of subjects (outer folds).
func (d *Dataset) Subjects() int { return d.Shape[0] }

// Channels returns the size of the last axis.
func (d *Dataset) Channels() int { return d.Shape[3] }

// Flatten reshapes the dataset into the flat example axis without copying.
func (d *Dataset) Flatten() *Flat {
	subjects, perSubject := d.Shape[0], d.Shape[1]
	groups := make([]int, subjects*perSubject)
	for s := range subjects {
		for j := range perSubject {
			groups[s*perSubject+j] = s
		}
	}
	return &Flat{
		X:        d.Data,
		Y:        d.Labels.Values,
		Groups:   groups,
		Samples:  d.Shape[2],
		Channels: d.Shape[3],
	}
}

// Flat is the [examples, samples, channels] view of a Dataset.
type Flat struct {
	X        []float32
	Y        []float32
	Groups   []int
	Samples  int
	Channels int
}

// Len returns the number of flat examples.
func (f *Flat) Len() int { return len(f.Y) }

// exampleSize is the number of float32 values per example.
func (f *Flat) exampleSize() int { return f.Samples * f.Channels }

// Gather copies the given flat examples into a new Partition.
func (f *Flat) Gather(indices []int) *Partition {
	size := f.exampleSize()
	p := &Partition{
		X:        make([]float32, len(indices)*size),
		Y:        make([]float32, len(indices)),
		Index:    make([]int, len(indices)),
		Samples:  f.Samples,
		Channels: f.Channels,
	}
	for i, idx := range indices {
		copy(p.X[i*size:(i+1)*size], f.X[idx*size:(idx+1)*size])
		p.Y[i] = f.Y[idx]
		p.Index[i] = idx
	}
	return p
}

func product(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}
