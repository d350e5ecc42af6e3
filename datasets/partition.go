package datasets

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Partition stores a fold partition in flat contiguous buffers.
// X is [examples, samples, channels] row-major, Y holds one label per example
// and Index maps each row back to its flat example index in the Dataset.
type Partition struct {
	X        []float32
	Y        []float32
	Index    []int
	Samples  int
	Channels int
}

// Len returns the number of examples in the partition.
func (p *Partition) Len() int { return len(p.Y) }

// Shape returns [examples, samples, channels].
func (p *Partition) Shape() []int {
	return []int{p.Len(), p.Samples, p.Channels}
}

// FeatureDim is the flattened size of one example.
func (p *Partition) FeatureDim() int { return p.Samples * p.Channels }

// Example returns the features of row i without copying.
func (p *Partition) Example(i int) []float32 {
	d := p.FeatureDim()
	return p.X[i*d : (i+1)*d]
}

// Positives counts examples labelled 1.
func (p *Partition) Positives() int {
	n := 0
	for _, y := range p.Y {
		if y == 1 {
			n++
		}
	}
	return n
}

// Subset copies the rows at the given positions into a new Partition.
func (p *Partition) Subset(positions []int) *Partition {
	d := p.FeatureDim()
	out := &Partition{
		X:        make([]float32, len(positions)*d),
		Y:        make([]float32, len(positions)),
		Index:    make([]int, len(positions)),
		Samples:  p.Samples,
		Channels: p.Channels,
	}
	for i, pos := range positions {
		copy(out.X[i*d:(i+1)*d], p.X[pos*d:(pos+1)*d])
		out.Y[i] = p.Y[pos]
		out.Index[i] = p.Index[pos]
	}
	return out
}

// WithFeatures returns a partition sharing labels and indices with p but
// holding the given feature buffer (e.g. a scaled copy of p.X).
func (p *Partition) WithFeatures(x []float32) (*Partition, error) {
	if len(x) != len(p.X) {
		return nil, fmt.Errorf("feature buffer has %d values, partition needs %d", len(x), len(p.X))
	}
	return &Partition{
		X:        x,
		Y:        p.Y,
		Index:    p.Index,
		Samples:  p.Samples,
		Channels: p.Channels,
	}, nil
}

// ToGomlxTensors converts the partition to gomlx tensors: inputs shaped
// [examples, samples, channels] and labels shaped [examples, 1].
func (p *Partition) ToGomlxTensors() (*tensors.Tensor, *tensors.Tensor, error) {
	if p.Samples <= 0 || p.Channels <= 0 {
		return nil, nil, fmt.Errorf("partition has invalid example shape [%d, %d]", p.Samples, p.Channels)
	}
	if len(p.X) != p.Len()*p.FeatureDim() {
		return nil, nil, fmt.Errorf("partition buffer has %d values, shape %v needs %d",
			len(p.X), p.Shape(), p.Len()*p.FeatureDim())
	}
	inT := tensors.FromFlatDataAndDimensions(p.X, p.Len(), p.Samples, p.Channels)
	labT := tensors.FromFlatDataAndDimensions(p.Y, p.Len(), 1)
	return inT, labT, nil
}
