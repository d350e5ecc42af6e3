package model

import (
	"github.com/Noofbiz/subjectcv/datasets"
)

// Classifier is a binary classifier the harness trains and scores once per fold.
// Implementations are opaque: any architecture works as long as it fits on a
// scaled partition and returns a positive-class probability per example.
type Classifier interface {
	// Fit trains on train. opts carries per-example weights, the validation
	// partition and the early-stopping policy, each optional.
	Fit(train *datasets.Partition, opts FitOptions) (*History, error)
	// Predict returns one positive-class probability per example of x.
	Predict(x *datasets.Partition) ([]float64, error)
	// Save writes the trained model to path.
	Save(path string) error
}

// Factory builds a fresh classifier for a fold. inputShape is [samples, channels]
// and seed is the fold's derived seed, so model initialisation is reproducible
// independently of other folds.
type Factory func(fold int, inputShape []int, seed int64) (Classifier, error)

// FitOptions are the optional inputs of Classifier.Fit.
type FitOptions struct {
	SampleWeights []float64          // one per training example, nil for uniform
	Validation    *datasets.Partition // monitored by early stopping, may be nil
	EarlyStopping *EarlyStopping      // nil disables early stopping
}

// History is the training report of one Fit.
type History struct {
	Epochs    int       // epochs actually run
	BestEpoch int       // epoch whose parameters were kept
	TrainLoss []float64 // per epoch, weighted
	ValidLoss []float64 // per epoch, empty without validation data
	Stopped   bool      // true if early stopping ended training
}
