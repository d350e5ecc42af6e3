package simple

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/Noofbiz/subjectcv/datasets"
	"github.com/Noofbiz/subjectcv/model"
)

// Config holds configurable hyperparameters for the MLP model and training.
type Config struct {
	// HiddenSizes is the list of hidden layer sizes. Example: []int{64, 32}
	// If empty, a single hidden layer of size 64 will be used.
	HiddenSizes []int `yaml:"hidden_sizes" validate:"dive,gt=0"`

	// InputDim is the dimensionality of the flattened epoch (samples*channels).
	// Factory fills it from the fold's input shape.
	InputDim int `yaml:"-"`

	// LearningRate used by the SGD optimizer.
	LearningRate float64 `yaml:"learning_rate" validate:"gte=0"`

	// Epochs to train for (default if 0 will be set by NewModel to 10).
	Epochs int `yaml:"epochs" validate:"gte=0"`

	// BatchSize for mini-batch updates (default if 0 will be set by NewModel to 32).
	BatchSize int `yaml:"batch_size" validate:"gte=0"`

	// Seed controls RNG for weight init and shuffling. If zero, time-based seed is used.
	Seed int64 `yaml:"-"`

	// ClipNorm is the global gradient norm threshold. If zero a sensible default is used.
	ClipNorm float32 `yaml:"clip_norm" validate:"gte=0"`
}

// Model is a small configurable MLP binary classifier. Inputs are flattened
// epochs, hidden layers use ReLU and the single output unit a sigmoid giving
// the positive-class probability. Training minimises sample-weighted binary
// cross-entropy with mini-batch SGD. It is implemented in pure Go so tests
// run quickly and deterministically.
type Model struct {
	// Config used for training / initialization.
	Config Config

	// layerSizes includes input size, hidden sizes, then output size.
	layerSizes []int

	// weights[l] is a matrix of shape [out][in] for layer l -> l+1
	weights [][][]float32

	// biases[l] is a vector of length out for layer l -> l+1
	biases [][]float32

	// rng used for weight initialization and shuffling
	rng *rand.Rand

	trained bool
}

var _ model.Classifier = (*Model)(nil)

// NewModel creates a new Model instance with the provided configuration.
// It initializes weights (small random values) and is ready to train.
func NewModel(cfg Config) (*Model, error) {
	if cfg.InputDim <= 0 {
		return nil, fmt.Errorf("input dimension must be > 0, got %d", cfg.InputDim)
	}
	// defaults
	if len(cfg.HiddenSizes) == 0 {
		cfg.HiddenSizes = []int{64}
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 0.01
	}
	if cfg.Epochs == 0 {
		cfg.Epochs = 10
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 32
	}
	if cfg.ClipNorm == 0 {
		cfg.ClipNorm = 5.0
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	m := &Model{
		Config: cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}

	const outputDim = 1

	// build layer sizes
	sizes := make([]int, 0, 2+len(cfg.HiddenSizes))
	sizes = append(sizes, cfg.InputDim)
	sizes = append(sizes, cfg.HiddenSizes...)
	sizes = append(sizes, outputDim)
	m.layerSizes = sizes

	// allocate weights and biases
	L := len(sizes) - 1
	m.weights = make([][][]float32, L)
	m.biases = make([][]float32, L)
	for l := 0; l < L; l++ {
		in := sizes[l]
		out := sizes[l+1]
		// Xavier/Glorot uniform initialization heuristic
		limit := float32(math.Sqrt(6.0 / float64(in+out)))
		mat := make([][]float32, out)
		for j := 0; j < out; j++ {
			row := make([]float32, in)
			for i := 0; i < in; i++ {
				row[i] = (m.rng.Float32()*2.0 - 1.0) * limit
			}
			mat[j] = row
		}
		m.weights[l] = mat
		m.biases[l] = make([]float32, out)
	}

	return m, nil
}

// Factory returns a model.Factory building one Model per fold from cfg.
// The fold's input shape and seed override cfg.InputDim and cfg.Seed.
func Factory(cfg Config) model.Factory {
	return func(fold int, inputShape []int, seed int64) (model.Classifier, error) {
		c := cfg
		c.HiddenSizes = append([]int(nil), cfg.HiddenSizes...)
		c.InputDim = 1
		for _, d := range inputShape {
			c.InputDim *= d
		}
		c.Seed = seed
		if c.Seed == 0 {
			// zero means "time based" to NewModel; keep folds reproducible
			c.Seed = int64(fold) + 1
		}
		return NewModel(c)
	}
}

// activationReLU applies ReLU in-place over the slice.
func activationReLU(x []float32) {
	for i := range x {
		if x[i] < 0 {
			x[i] = 0
		}
	}
}

// activationReLUDeriv returns elementwise derivative of ReLU applied to preact.
// derivative is 1 where preact>0, else 0.
func activationReLUDeriv(preact []float32) []float32 {
	d := make([]float32, len(preact))
	for i := range preact {
		if preact[i] > 0 {
			d[i] = 1.0
		}
	}
	return d
}

func sigmoid(z float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(z))))
}

// forwardSingle performs a forward pass for a single input vector, returning:
// - preActivations: list of pre-activation vectors per layer (len = L)
// - activations: list of activation vectors per layer (len = L+1, activations[0] = input)
// The last activation is the sigmoid probability.
func (m *Model) forwardSingle(input []float32) (preActs [][]float32, acts [][]float32, err error) {
	if len(input) != m.layerSizes[0] {
		return nil, nil, fmt.Errorf("input has dimension %d, model expects %d", len(input), m.layerSizes[0])
	}
	L := len(m.weights)
	acts = make([][]float32, L+1)
	acts[0] = input

	preActs = make([][]float32, L)
	for l := 0; l < L; l++ {
		inVec := acts[l]
		outDim := len(m.biases[l])
		pre := make([]float32, outDim)
		W := m.weights[l]
		b := m.biases[l]
		for j := 0; j < outDim; j++ {
			sum := b[j]
			row := W[j]
			for i, v := range inVec {
				sum += row[i] * v
			}
			pre[j] = sum
		}
		preActs[l] = pre

		act := make([]float32, outDim)
		copy(act, pre)
		if l < L-1 {
			activationReLU(act)
		} else {
			for j := range act {
				act[j] = sigmoid(act[j])
			}
		}
		acts[l+1] = act
	}
	return preActs, acts, nil
}

// Predict returns the positive-class probability of every example in x.
func (m *Model) Predict(x *datasets.Partition) ([]float64, error) {
	if x == nil {
		return nil, errors.New("partition is nil")
	}
	out := make([]float64, x.Len())
	for i := range out {
		_, acts, err := m.forwardSingle(x.Example(i))
		if err != nil {
			return nil, err
		}
		out[i] = float64(acts[len(acts)-1][0])
	}
	return out, nil
}

// binaryCrossEntropy of a probability against a 0/1 label, clamped away from log(0).
func binaryCrossEntropy(p float32, y float32) float64 {
	const eps = 1e-7
	q := math.Min(math.Max(float64(p), eps), 1-eps)
	if y == 1 {
		return -math.Log(q)
	}
	return -math.Log(1 - q)
}

// Loss returns the mean (optionally sample-weighted) binary cross-entropy on x.
func (m *Model) Loss(x *datasets.Partition, weights []float64) (float64, error) {
	if x.Len() == 0 {
		return math.NaN(), nil
	}
	var sum float64
	for i := 0; i < x.Len(); i++ {
		_, acts, err := m.forwardSingle(x.Example(i))
		if err != nil {
			return 0, err
		}
		l := binaryCrossEntropy(acts[len(acts)-1][0], x.Y[i])
		if weights != nil {
			l *= weights[i]
		}
		sum += l
	}
	return sum / float64(x.Len()), nil
}

// Fit trains the model with mini-batch SGD on sample-weighted binary
// cross-entropy. When opts carries a validation partition and an
// early-stopping policy, training stops once the validation loss stops
// improving and, with RestoreBest, the best epoch's parameters are restored.
func (m *Model) Fit(train *datasets.Partition, opts model.FitOptions) (*model.History, error) {
	if train == nil {
		return nil, errors.New("training partition is nil")
	}
	n := train.Len()
	if n == 0 {
		return nil, errors.New("training partition has no examples")
	}
	if opts.SampleWeights != nil && len(opts.SampleWeights) != n {
		return nil, fmt.Errorf("%d sample weights for %d training examples", len(opts.SampleWeights), n)
	}

	var monitor *model.Monitor
	if opts.EarlyStopping != nil && opts.Validation != nil && opts.Validation.Len() > 0 {
		monitor = model.NewMonitor(*opts.EarlyStopping)
	}

	hist := &model.History{BestEpoch: -1}
	var best *snapshot

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	for ep := 0; ep < m.Config.Epochs; ep++ {
		m.rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		trainLoss, err := m.epoch(train, opts.SampleWeights, indices)
		if err != nil {
			return hist, err
		}
		if math.IsNaN(trainLoss) || math.IsInf(trainLoss, 0) {
			return hist, fmt.Errorf("training diverged at epoch %d (loss %v)", ep, trainLoss)
		}
		hist.TrainLoss = append(hist.TrainLoss, trainLoss)
		hist.Epochs = ep + 1
		hist.BestEpoch = ep

		if opts.Validation != nil && opts.Validation.Len() > 0 {
			vl, err := m.Loss(opts.Validation, nil)
			if err != nil {
				return hist, err
			}
			hist.ValidLoss = append(hist.ValidLoss, vl)
			if monitor != nil {
				improved, stop := monitor.Observe(ep, vl)
				if improved && opts.EarlyStopping.RestoreBest {
					best = m.snapshot()
				}
				if stop {
					hist.Stopped = true
					break
				}
			}
		}
	}

	if monitor != nil && opts.EarlyStopping.RestoreBest && best != nil {
		m.restore(best)
		hist.BestEpoch, _ = monitor.Best()
	}
	m.trained = true
	return hist, nil
}

// epoch runs one pass of mini-batch SGD over indices and returns the mean
// weighted training loss seen during the pass.
func (m *Model) epoch(train *datasets.Partition, sampleWeights []float64, indices []int) (float64, error) {
	n := len(indices)
	batchSize := m.Config.BatchSize
	lr := float32(m.Config.LearningRate)
	L := len(m.weights)

	// gradient accumulators (same shape as weights / biases), reused per batch
	gradW := make([][][]float32, L)
	gradB := make([][]float32, L)
	for l := 0; l < L; l++ {
		outDim := len(m.biases[l])
		inDim := len(m.weights[l][0])
		gradW[l] = make([][]float32, outDim)
		for j := 0; j < outDim; j++ {
			gradW[l][j] = make([]float32, inDim)
		}
		gradB[l] = make([]float32, outDim)
	}

	var lossSum float64
	for bstart := 0; bstart < n; bstart += batchSize {
		bend := min(bstart+batchSize, n)
		batchIdx := indices[bstart:bend]
		batchN := len(batchIdx)

		for l := 0; l < L; l++ {
			clear(gradB[l])
			for j := range gradW[l] {
				clear(gradW[l][j])
			}
		}

		for _, ex := range batchIdx {
			preacts, acts, err := m.forwardSingle(train.Example(ex))
			if err != nil {
				return 0, err
			}
			w := float32(1)
			if sampleWeights != nil {
				w = float32(sampleWeights[ex])
			}
			p := acts[len(acts)-1][0]
			lossSum += float64(w) * binaryCrossEntropy(p, train.Y[ex])

			// sigmoid + cross-entropy: dLoss/dz = w * (p - y)
			delta := []float32{w * (p - train.Y[ex])}

			for l := L - 1; l >= 0; l-- {
				inAct := acts[l]
				outDim := len(delta)
				for j := 0; j < outDim; j++ {
					if delta[j] == 0 {
						continue
					}
					gradB[l][j] += delta[j]
					row := gradW[l][j]
					for i, a := range inAct {
						row[i] += delta[j] * a
					}
				}
				if l > 0 {
					prevLen := len(m.weights[l][0])
					newDelta := make([]float32, prevLen)
					for j := 0; j < outDim; j++ {
						if delta[j] == 0 {
							continue
						}
						row := m.weights[l][j]
						for i := 0; i < prevLen; i++ {
							newDelta[i] += row[i] * delta[j]
						}
					}
					deriv := activationReLUDeriv(preacts[l-1])
					for i := range newDelta {
						newDelta[i] *= deriv[i]
					}
					delta = newDelta
				}
			}
		}

		// average over the batch, then clip the global gradient norm
		bInv := float32(1.0 / float64(batchN))
		var norm float64
		for l := 0; l < L; l++ {
			for j := range gradB[l] {
				gradB[l][j] *= bInv
				norm += float64(gradB[l][j] * gradB[l][j])
				for i := range gradW[l][j] {
					gradW[l][j][i] *= bInv
					norm += float64(gradW[l][j][i] * gradW[l][j][i])
				}
			}
		}
		scale := lr
		if norm = math.Sqrt(norm); norm > float64(m.Config.ClipNorm) {
			scale = lr * m.Config.ClipNorm / float32(norm)
		}

		for l := 0; l < L; l++ {
			for j := range m.biases[l] {
				m.biases[l][j] -= scale * gradB[l][j]
				row := m.weights[l][j]
				for i := range row {
					row[i] -= scale * gradW[l][j][i]
				}
			}
		}
	}
	return lossSum / float64(n), nil
}
