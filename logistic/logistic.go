// Package logistic is a logistic-regression classifier trained with gomlx on
// the pure-Go simplego backend. Epochs are full-batch gradient steps; the
// gradient comes from gomlx reverse-mode autodiff.
package logistic

import (
	"errors"
	"fmt"
	"math"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/backends/simplego"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/Noofbiz/subjectcv/datasets"
	"github.com/Noofbiz/subjectcv/model"
)

// Config holds the training hyperparameters.
type Config struct {
	// InputDim is the flattened example size (samples*channels).
	InputDim int
	// LearningRate of the gradient step (default 0.1).
	LearningRate float64
	// Epochs is the maximum number of full-batch steps (default 100).
	Epochs int
}

// Model holds a weight vector over the flattened epoch and a bias, both as
// gomlx tensors.
type Model struct {
	Config Config

	backend backends.Backend
	step    *Exec // (x, y, sw, w, b) -> loss, w', b'
	loss    *Exec // (x, y, w, b) -> unweighted mean loss
	predict *Exec // (x, w, b) -> probabilities

	w, b    *tensors.Tensor
	trained bool
}

var _ model.Classifier = (*Model)(nil)

// NewModel builds an untrained model with zero weights.
func NewModel(cfg Config) (*Model, error) {
	if cfg.InputDim <= 0 {
		return nil, fmt.Errorf("input dimension must be > 0, got %d", cfg.InputDim)
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 0.1
	}
	if cfg.Epochs == 0 {
		cfg.Epochs = 100
	}
	m := &Model{
		Config:  cfg,
		backend: simplego.GetBackend(),
		w:       tensors.FromFlatDataAndDimensions(make([]float32, cfg.InputDim), cfg.InputDim),
		b:       tensors.FromScalar(float32(0)),
	}
	if err := m.compile(); err != nil {
		return nil, err
	}
	return m, nil
}

// Factory returns a model.Factory building one Model per fold. The fold seed
// is unused: weights start at zero and steps are full-batch.
func Factory(cfg Config) model.Factory {
	return func(_ int, inputShape []int, _ int64) (model.Classifier, error) {
		c := cfg
		c.InputDim = 1
		for _, d := range inputShape {
			c.InputDim *= d
		}
		return NewModel(c)
	}
}

// logits flattens x [n, samples, channels] and applies x·w + b.
func logits(x, w, b *Node) *Node {
	n := x.Shape().Dimensions[0]
	flat := Reshape(x, n, w.Shape().Dimensions[0])
	return Add(Dot(flat, w), b)
}

// crossEntropy is the per-example binary cross-entropy of logits z against
// labels y, in the form max(z, 0) - z*y + log(1 + exp(-|z|)).
func crossEntropy(z, y *Node) *Node {
	y = Reshape(y, z.Shape().Dimensions...)
	return Add(Sub(Max(z, ZerosLike(z)), Mul(z, y)), Log1p(Exp(Neg(Abs(z)))))
}

func (m *Model) compile() error {
	lr := m.Config.LearningRate
	var err error
	m.step, err = NewExec(m.backend, func(x, y, sw, w, b *Node) []*Node {
		loss := ReduceAllMean(Mul(sw, crossEntropy(logits(x, w, b), y)))
		grads := Gradient(loss, w, b)
		return []*Node{
			loss,
			Sub(w, MulScalar(grads[0], lr)),
			Sub(b, MulScalar(grads[1], lr)),
		}
	})
	if err != nil {
		return fmt.Errorf("compile training step: %w", err)
	}
	m.loss, err = NewExec(m.backend, func(x, y, w, b *Node) *Node {
		return ReduceAllMean(crossEntropy(logits(x, w, b), y))
	})
	if err != nil {
		return fmt.Errorf("compile loss: %w", err)
	}
	m.predict, err = NewExec(m.backend, func(x, w, b *Node) *Node {
		return Logistic(logits(x, w, b))
	})
	if err != nil {
		return fmt.Errorf("compile prediction: %w", err)
	}
	return nil
}

func (m *Model) check(p *datasets.Partition) error {
	if p == nil {
		return errors.New("partition is nil")
	}
	if p.FeatureDim() != m.Config.InputDim {
		return fmt.Errorf("examples have dimension %d, model expects %d", p.FeatureDim(), m.Config.InputDim)
	}
	return nil
}

// Fit runs full-batch gradient descent on sample-weighted cross-entropy,
// with early stopping on the validation loss when opts asks for it.
func (m *Model) Fit(train *datasets.Partition, opts model.FitOptions) (*model.History, error) {
	if err := m.check(train); err != nil {
		return nil, err
	}
	n := train.Len()
	if n == 0 {
		return nil, errors.New("training partition has no examples")
	}
	if opts.SampleWeights != nil && len(opts.SampleWeights) != n {
		return nil, fmt.Errorf("%d sample weights for %d training examples", len(opts.SampleWeights), n)
	}
	sw := make([]float32, n)
	for i := range sw {
		sw[i] = 1
		if opts.SampleWeights != nil {
			sw[i] = float32(opts.SampleWeights[i])
		}
	}

	x, y, err := train.ToGomlxTensors()
	if err != nil {
		return nil, err
	}
	swT := tensors.FromFlatDataAndDimensions(sw, n)

	var vx, vy *tensors.Tensor
	validate := opts.Validation != nil && opts.Validation.Len() > 0
	if validate {
		if err := m.check(opts.Validation); err != nil {
			return nil, fmt.Errorf("validation: %w", err)
		}
		if vx, vy, err = opts.Validation.ToGomlxTensors(); err != nil {
			return nil, err
		}
	}
	var monitor *model.Monitor
	if validate && opts.EarlyStopping != nil {
		monitor = model.NewMonitor(*opts.EarlyStopping)
	}

	hist := &model.History{BestEpoch: -1}
	var bestW []float32
	var bestB float32

	for ep := 0; ep < m.Config.Epochs; ep++ {
		out, err := m.step.Exec(x, y, swT, m.w, m.b)
		if err != nil {
			return hist, fmt.Errorf("epoch %d: %w", ep, err)
		}
		trainLoss := float64(tensors.ToScalar[float32](out[0]))
		if math.IsNaN(trainLoss) || math.IsInf(trainLoss, 0) {
			return hist, fmt.Errorf("training diverged at epoch %d (loss %v)", ep, trainLoss)
		}
		m.w, m.b = out[1], out[2]
		hist.TrainLoss = append(hist.TrainLoss, trainLoss)
		hist.Epochs = ep + 1
		hist.BestEpoch = ep

		if !validate {
			continue
		}
		vl, err := m.loss.Exec1(vx, vy, m.w, m.b)
		if err != nil {
			return hist, fmt.Errorf("validation loss: %w", err)
		}
		validLoss := float64(tensors.ToScalar[float32](vl))
		hist.ValidLoss = append(hist.ValidLoss, validLoss)
		if monitor == nil {
			continue
		}
		improved, stop := monitor.Observe(ep, validLoss)
		if improved && opts.EarlyStopping.RestoreBest {
			bestW = tensors.CopyFlatData[float32](m.w)
			bestB = tensors.ToScalar[float32](m.b)
		}
		if stop {
			hist.Stopped = true
			break
		}
	}

	if monitor != nil && opts.EarlyStopping.RestoreBest && bestW != nil {
		m.setParams(bestW, bestB)
		hist.BestEpoch, _ = monitor.Best()
	}
	m.trained = true
	return hist, nil
}

// Predict returns the positive-class probability of every example in x.
func (m *Model) Predict(x *datasets.Partition) ([]float64, error) {
	if err := m.check(x); err != nil {
		return nil, err
	}
	if x.Len() == 0 {
		return []float64{}, nil
	}
	xT, _, err := x.ToGomlxTensors()
	if err != nil {
		return nil, err
	}
	pT, err := m.predict.Exec1(xT, m.w, m.b)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	flat := tensors.CopyFlatData[float32](pT)
	out := make([]float64, len(flat))
	for i, v := range flat {
		out[i] = float64(v)
	}
	return out, nil
}

// Loss is the unweighted mean cross-entropy of the model on p.
func (m *Model) Loss(p *datasets.Partition) (float64, error) {
	if err := m.check(p); err != nil {
		return 0, err
	}
	if p.Len() == 0 {
		return 0, errors.New("partition has no examples")
	}
	x, y, err := p.ToGomlxTensors()
	if err != nil {
		return 0, err
	}
	l, err := m.loss.Exec1(x, y, m.w, m.b)
	if err != nil {
		return 0, fmt.Errorf("loss: %w", err)
	}
	return float64(tensors.ToScalar[float32](l)), nil
}

// Weights returns a copy of the weight vector and the bias.
func (m *Model) Weights() ([]float32, float32) {
	return tensors.CopyFlatData[float32](m.w), tensors.ToScalar[float32](m.b)
}

func (m *Model) setParams(w []float32, b float32) {
	m.w = tensors.FromFlatDataAndDimensions(append([]float32(nil), w...), len(w))
	m.b = tensors.FromScalar(b)
}
