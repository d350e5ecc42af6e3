package simple

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
		pos := p.X[i*4]+p.X[i*4+1] > 0
		if pos != flip {
			p.Y[i] = 1
		}
		p.Index[i] = i
	}
	return p
}

func accuracy(t *testing.T, m *Model, p *datasets.Partition) float64 {
	t.Helper()
	proba, err := m.Predict(p)
	require.NoError(t, err)
	correct := 0
	for i, v := range proba {
		if (v > 0.5) == (p.Y[i] == 1) {
			correct++
		}
	}
	return float64(correct) / float64(len(proba))
}

// TestModelFitSeparable verifies the trainer learns a linearly separable
// problem and its training loss goes down.
func TestModelFitSeparable(t *testing.T) {
	train := separable(200, 1, false)

	m, err := NewModel(Config{
		HiddenSizes:  []int{8},
		InputDim:     train.FeatureDim(),
		LearningRate: 0.1,
		Epochs:       50,
		BatchSize:    16,
		Seed:         42,
	})
	require.NoError(t, err)

	hist, err := m.Fit(train, model.FitOptions{})
	require.NoError(t, err)
	require.Equal(t, 50, hist.Epochs)
	require.Len(t, hist.TrainLoss, 50)
	assert.Less(t, hist.TrainLoss[49], hist.TrainLoss[0])
	assert.Empty(t, hist.ValidLoss)
	assert.False(t, hist.Stopped)

	assert.Greater(t, accuracy(t, m, separable(100, 2, false)), 0.85)

	proba, err := m.Predict(train)
	require.NoError(t, err)
	for _, v := range proba {
		assert.True(t, v > 0 && v < 1, "probability %v out of (0, 1)", v)
	}
}

func TestModelFitDeterministic(t *testing.T) {
	train := separable(64, 3, false)
	cfg := Config{HiddenSizes: []int{4}, InputDim: 4, Epochs: 5, Seed: 7}

	run := func() []float64 {
		m, err := NewModel(cfg)
		require.NoError(t, err)
		_, err = m.Fit(train, model.FitOptions{})
		require.NoError(t, err)
		p, err := m.Predict(train)
		require.NoError(t, err)
		return p
	}
	assert.Equal(t, run(), run())
}

// TestModelEarlyStoppingRestoresBest trains against a validation set with
// inverted labels so validation loss rises as training improves.
func TestModelEarlyStoppingRestoresBest(t *testing.T) {
	train := separable(200, 4, false)
	valid := separable(60, 5, true)

	m, err := NewModel(Config{HiddenSizes: []int{8}, InputDim: 4, LearningRate: 0.1, Epochs: 100, BatchSize: 16, Seed: 9})
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

	got, err := m.Loss(valid, nil)
	require.NoError(t, err)
	assert.InDelta(t, bestLoss, got, 1e-9)
}

func TestModelSampleWeights(t *testing.T) {
	train := separable(10, 6, false)
	m, err := NewModel(Config{InputDim: 4, Epochs: 1, Seed: 1})
	require.NoError(t, err)

	_, err = m.Fit(train, model.FitOptions{SampleWeights: []float64{1, 2}})
	assert.Error(t, err)

	w := make([]float64, train.Len())
	for i := range w {
		w[i] = 1
	}
	unweighted, err := m.Loss(train, nil)
	require.NoError(t, err)
	weighted, err := m.Loss(train, w)
	require.NoError(t, err)
	assert.InDelta(t, unweighted, weighted, 1e-12)
}

func TestModelSaveLoad(t *testing.T) {
	train := separable(40, 8, false)
	m, err := NewModel(Config{InputDim: 4, Epochs: 3, Seed: 3})
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
	assert.Equal(t, []int{4, 64, 1}, loaded.layerSizes)
}

func TestFactory(t *testing.T) {
	f := Factory(Config{HiddenSizes: []int{5}, Epochs: 2})
	c, err := f(3, []int{6, 2}, 11)
	require.NoError(t, err)
	m := c.(*Model)
	assert.Equal(t, 12, m.Config.InputDim)
	assert.Equal(t, int64(11), m.Config.Seed)
	assert.Equal(t, []int{12, 5, 1}, m.layerSizes)

	c2, err := f(3, []int{6, 2}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), c2.(*Model).Config.Seed)

	_, err = f(0, []int{0, 2}, 1)
	assert.Error(t, err)

	p := &datasets.Partition{X: make([]float32, 3), Y: []float32{0}, Samples: 1, Channels: 3}
	_, err = m.Predict(p)
	assert.Error(t, err, "input dimension mismatch")
}
