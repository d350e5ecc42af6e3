package harness

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/Noofbiz/subjectcv/balance"
	"github.com/Noofbiz/subjectcv/datasets"
	"github.com/Noofbiz/subjectcv/metrics"
	"github.com/Noofbiz/subjectcv/model"
	"github.com/Noofbiz/subjectcv/scaler"
	"github.com/Noofbiz/subjectcv/split"
)

// Evaluator trains and scores one fold. Scaler and balancer state is local to
// each EvaluateFold call, so one Evaluator may serve concurrent folds.
type Evaluator struct {
	Config  Config
	Factory model.Factory
	Logger  *slog.Logger

	// OutDir receives the per-fold model files when Config.SaveModels is set.
	OutDir string
}

func (e *Evaluator) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// EvaluateFold runs the fold pipeline: standardise with statistics of the
// training partition, weight the training classes, undersample the
// validation partition, fit, then score the test partition (or the balanced
// validation partition in validation mode). Fold-local failures come back as
// *FoldError wrapping ErrDegenerateFold or ErrModelTraining.
func (e *Evaluator) EvaluateFold(flat *datasets.Flat, fold split.Fold, seed int64) (*FoldResult, error) {
	start := time.Now()
	log := e.logger().With("fold", fold.Index, "subject", fold.Subject)
	fail := func(kind, err error) error {
		return &FoldError{Fold: fold.Index, Subject: fold.Subject, Kind: kind, Err: err}
	}
	rng := rand.New(rand.NewSource(seed))

	train := flat.Gather(fold.Train)
	valid := flat.Gather(fold.Valid)
	test := flat.Gather(fold.Test)
	log.Info(fmt.Sprintf("Partition %d: train=%v valid=%v test=%v", fold.Index, train.Shape(), valid.Shape(), test.Shape()))
	log.Info(fmt.Sprintf("groups train=%v valid=%v test=%v",
		split.Subjects(fold.Train, flat.Groups), split.Subjects(fold.Valid, flat.Groups), split.Subjects(fold.Test, flat.Groups)))

	sc := scaler.New(flat.Channels)
	scaled, err := sc.FitTransform(train.X)
	if err != nil {
		if errors.Is(err, scaler.ErrDegenerate) {
			return nil, fail(ErrDegenerateFold, err)
		}
		return nil, err
	}
	if train, err = train.WithFeatures(scaled); err != nil {
		return nil, err
	}
	if valid, err = transform(sc, valid); err != nil {
		return nil, err
	}
	if test, err = transform(sc, test); err != nil {
		return nil, err
	}

	weights := balance.SampleWeights(train.Y)

	keep, err := balance.Undersample(valid.Y, rng)
	if err != nil {
		return nil, fail(ErrDegenerateFold, fmt.Errorf("validation subject %d: %w", fold.ValidSubject, err))
	}
	valid = valid.Subset(keep)

	target := test
	if e.Config.Mode == ModeValidation {
		target = valid
	}
	// scoring needs both classes; fail before paying for training
	if neg, pos := balance.Counts(target.Y); neg == 0 || pos == 0 {
		return nil, fail(ErrDegenerateFold, fmt.Errorf("%s partition: %w", e.mode(), metrics.ErrSingleClass))
	}

	modelSeed := rng.Int63()
	var clf model.Classifier
	var hist *model.History
	err = guard("training", func() error {
		var err error
		clf, err = e.Factory(fold.Index, []int{flat.Samples, flat.Channels}, modelSeed)
		if err != nil {
			return fmt.Errorf("build classifier: %w", err)
		}
		hist, err = clf.Fit(train, model.FitOptions{
			SampleWeights: weights,
			Validation:    valid,
			EarlyStopping: e.Config.EarlyStopping,
		})
		return err
	})
	if err != nil {
		return nil, fail(ErrModelTraining, err)
	}
	if hist != nil {
		log.Debug("trained", "epochs", hist.Epochs, "best_epoch", hist.BestEpoch, "stopped", hist.Stopped)
	}

	if e.Config.SaveModels && e.OutDir != "" {
		path := filepath.Join(e.OutDir, fmt.Sprintf("s%d.gob", fold.Index))
		if err := guard("save", func() error { return clf.Save(path) }); err != nil {
			log.Warn("could not save fold model", "path", path, "err", err)
		}
	}

	var proba []float64
	err = guard("prediction", func() error {
		var err error
		proba, err = clf.Predict(target)
		return err
	})
	if err != nil {
		return nil, fail(ErrModelTraining, err)
	}
	if len(proba) != target.Len() {
		return nil, fail(ErrModelTraining, fmt.Errorf("classifier returned %d probabilities for %d examples", len(proba), target.Len()))
	}
	for i, p := range proba {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, fail(ErrModelTraining, fmt.Errorf("classifier returned probability %v for example %d", p, i))
		}
	}

	auc, err := metrics.AUC(target.Y, proba)
	if err != nil {
		return nil, fail(ErrDegenerateFold, err)
	}
	acc, err := metrics.Accuracy(target.Y, proba, e.threshold())
	if err != nil {
		return nil, fail(ErrDegenerateFold, err)
	}

	res := &FoldResult{
		Fold:           fold.Index,
		HeldOutSubject: fold.Subject,
		ValidSubject:   fold.ValidSubject,
		Seed:           seed,
		TrainShape:     train.Shape(),
		ValidShape:     valid.Shape(),
		TestShape:      test.Shape(),
		AUC:            auc,
		Accuracy:       acc,
		Mode:           e.mode(),
		Duration:       time.Since(start),
		History:        hist,
	}
	log.Info(fmt.Sprintf("P%d AUC: %.4f ACC: %.4f", fold.Index, auc, acc), "mode", res.Mode, "duration", res.Duration)
	return res, nil
}

func (e *Evaluator) mode() string {
	if e.Config.Mode == "" {
		return ModeTest
	}
	return e.Config.Mode
}

func (e *Evaluator) threshold() float64 {
	if e.Config.Threshold == 0 {
		return metrics.DefaultThreshold
	}
	return e.Config.Threshold
}

func transform(sc *scaler.Scaler, p *datasets.Partition) (*datasets.Partition, error) {
	x, err := sc.Transform(p.X)
	if err != nil {
		return nil, err
	}
	return p.WithFeatures(x)
}
