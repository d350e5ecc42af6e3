package logistic

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/Noofbiz/subjectcv/datasets"
	"github.com/Noofbiz/subjectcv/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separable builds n examples of shape [2, 2] whose label is 1 when the sum of
// the first sample's channels is positive. flip inverts the labels.
func separable(n int, seed int64, flip bool) *datasets.Partition {
	rng := rand.New(rand.NewSource(seed))
	p := &datasets.Partition{
		X:        make([]float32, n*4),
		Y:        make([]float32, n),
		Index:    make([]int, n),
		Samples:  2,
		Channels: 2,
	}
	for i := 0; i < n; i++ {
		for j := 0; j < 4; j++ {
			p.X[i*4+j] = float32(rng.NormFloat64())
		}
		if (p.X[i*4]+p.X[i*4+1] > 0) != flip {
			p.Y[i] = 1
		}
		p.Index[i] = i
	}
	return p
}

func TestModelFitSeparable(t *testing.T) {
	train := separable(200, 1, false)
	m, err := NewModel(Config{InputDim: train.FeatureDim(), LearningRate: 0.5, Epochs: 60})
	require.NoError(t, err)

	hist, err := m.Fit(train, model.FitOptions{})
	require.NoError(t, err)
	require.Equal(t, 60, hist.Epochs)
	require.Len(t, hist.TrainLoss, 60)
	assert.InDelta(t, math.Ln2, hist.TrainLoss[0], 1e-4, "zero weights start at log(2)")
	assert.Less(t, hist.TrainLoss[59], hist.TrainLoss[0])
	assert.Empty(t, hist.ValidLoss)

	test := separable(100, 2, false)
	proba, err := m.Predict(test)
	require.NoError(t, err)
	require.Len(t, proba, test.Len())
	correct := 0
	for i, v := range proba {
		assert.True(t, v > 0 && v < 1, "probability %v out of (0, 1)", v)
		if (v > 0.5) == (test.Y[i] == 1) {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/float64(len(proba)), 0.85)

	w, _ := m.Weights()
	assert.Greater(t, w[0], float32(0))
	assert.Greater(t, w[1], float32(0))
}

func TestModelEarlyStoppingRestoresBest(t *testing.T) {
	train := separable(200, 4, false)
	valid := separable(60, 5, true)

	m, err := NewModel(Config{InputDim: 4, LearningRate: 0.5, Epochs: 100})
	require.NoError(t, err)
	hist, err := m.Fit(train, model.FitOptions{
		Validation:    valid,
		EarlyStopping: &model.EarlyStopping{Patience: 3, RestoreBest: true},
	})
	require.NoError(t, err)
	assert.True(t, hist.Stopped)
	assert.Less(t, hist.Epochs, 100)
	require.Len(t, hist.ValidLoss, hist.Epochs)

	bestEpoch, bestLoss := 0, math.Inf(1)
	for ep, l := range hist.ValidLoss {
		if l < bestLoss {
			bestEpoch, bestLoss = ep, l
		}
	}
	assert.Equal(t, bestEpoch, hist.BestEpoch)

	got, err := m.Loss(valid)
	require.NoError(t, err)
	assert.InDelta(t, bestLoss, got, 1e-5)
}

func TestModelSampleWeights(t *testing.T) {
	train := separable(20, 6, false)
	m, err := NewModel(Config{InputDim: 4, Epochs: 1})
	require.NoError(t, err)

	_, err = m.Fit(train, model.FitOptions{SampleWeights: []float64{1, 2}})
	assert.Error(t, err)

	ones := make([]float64, train.Len())
	for i := range ones {
		ones[i] = 1
	}
	a, err := NewModel(Config{InputDim: 4, Epochs: 5})
	require.NoError(t, err)
	b, err := NewModel(Config{InputDim: 4, Epochs: 5})
	require.NoError(t, err)
	_, err = a.Fit(train, model.FitOptions{})
	require.NoError(t, err)
	_, err = b.Fit(train, model.FitOptions{SampleWeights: ones})
	require.NoError(t, err)
	wa, ba := a.Weights()
	wb, bb := b.Weights()
	assert.InDeltaSlice(t, wa, wb, 1e-6)
	assert.InDelta(t, ba, bb, 1e-6)
}

func TestModelSaveLoad(t *testing.T) {
	train := separable(40, 8, false)
	m, err := NewModel(Config{InputDim: 4, Epochs: 5})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "models", "s0.gob")
	assert.Error(t, m.Save(path), "untrained model must not be saved")

	_, err = m.Fit(train, model.FitOptions{})
	require.NoError(t, err)
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	want, err := m.Predict(train)
	require.NoError(t, err)
	got, err := loaded.Predict(train)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFactory(t *testing.T) {
	f := Factory(Config{Epochs: 2})
	c, err := f(3, []int{6, 2}, 11)
	require.NoError(t, err)
	m := c.(*Model)
	assert.Equal(t, 12, m.Config.InputDim)
	assert.Equal(t, 0.1, m.Config.LearningRate)

	_, err = f(0, []int{0, 2}, 1)
	assert.Error(t, err)

	p := &datasets.Partition{X: make([]float32, 3), Y: []float32{0}, Samples: 1, Channels: 3}
	_, err = m.Predict(p)
	assert.Error(t, err, "input dimension mismatch")

	empty := &datasets.Partition{Samples: 6, Channels: 2}
	proba, err := m.Predict(empty)
	require.NoError(t, err)
	assert.Empty(t, proba)
}
