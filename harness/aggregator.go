package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Noofbiz/subjectcv/datasets"
	"github.com/Noofbiz/subjectcv/split"
	"github.com/Noofbiz/subjectcv/store"
)

// Aggregator runs every leave-one-subject-out fold of a dataset and collects
// the per-fold metrics.
type Aggregator struct {
	Config    Config
	Evaluator *Evaluator
	Logger    *slog.Logger
	Metrics   *Metrics

	// Store, when set, records the run and each fold as it finishes.
	Store      *store.Store
	DataPath   string
	LabelsPath string
}

func (a *Aggregator) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

// Run evaluates all folds. Fold-local failures leave NaN in their slot and
// the run continues; any other error aborts it. Per-fold seeds are derived
// up front from Config.Seed so results do not depend on Config.Workers.
// Cancelling ctx stops new folds from starting.
func (a *Aggregator) Run(ctx context.Context, ds *datasets.Dataset) (*ResultCollection, error) {
	log := a.logger()
	flat := ds.Flatten()

	outers, err := split.LeaveOneSubjectOut(flat.Groups)
	if err != nil {
		return nil, err
	}
	subjects := make([]int, len(outers))
	for k, o := range outers {
		subjects[k] = o.Subject
	}
	seeds := split.FoldSeeds(a.Config.Seed, len(outers))

	rc := NewResultCollection(uuid.NewString(), subjects)
	started := time.Now()
	log = log.With("run", rc.RunID)
	log.Info("starting cross-validation",
		"subjects", len(outers), "examples", flat.Len(), "samples", flat.Samples, "channels", flat.Channels,
		"seed", a.Config.Seed, "mode", a.Config.Mode, "workers", a.Config.Workers)

	if a.Store != nil {
		if err := a.Store.StartRun(store.Run{
			ID: rc.RunID, DataPath: a.DataPath, LabelsPath: a.LabelsPath,
			Seed: a.Config.Seed, Mode: a.Config.Mode, Subjects: len(outers), StartedAt: started,
		}); err != nil {
			return nil, err
		}
	}

	var done atomic.Int64
	runFold := func(k int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		outer := outers[k]
		foldStart := time.Now()
		res, err := a.evaluate(flat, outer, seeds[k])
		if err != nil {
			if !IsFoldLocal(err) {
				return err
			}
			rc.Fail(k, outer.Subject, err)
			a.Metrics.foldSkipped(err)
			log.Warn("skipping fold", "fold", k, "subject", outer.Subject, "err", err)
			return a.saveFold(rc.RunID, store.Fold{
				Fold: k, Subject: outer.Subject, ValidSubject: -1, Seed: seeds[k],
				AUC: math.NaN(), Accuracy: math.NaN(), Duration: time.Since(foldStart), Error: err.Error(),
			})
		}
		rc.Set(res)
		a.Metrics.foldCompleted(strconv.Itoa(outer.Subject), res.AUC, res.Duration)
		n := done.Add(1)
		log.Info(fmt.Sprintf("progress: %d/%d folds", n, len(outers)))
		return a.saveFold(rc.RunID, store.Fold{
			Fold: k, Subject: outer.Subject, ValidSubject: res.ValidSubject, Seed: seeds[k],
			AUC: res.AUC, Accuracy: res.Accuracy,
			TrainSize: res.TrainShape[0], ValidSize: res.ValidShape[0], TestSize: res.TestShape[0],
			Duration: res.Duration,
		})
	}

	if a.Config.Workers <= 1 {
		for k := range outers {
			if err := runFold(k); err != nil {
				return rc, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.Config.Workers)
		for k := range outers {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error { return runFold(k) })
		}
		if err := g.Wait(); err != nil {
			return rc, err
		}
		if err := ctx.Err(); err != nil {
			return rc, err
		}
	}

	sum := rc.Summary()
	a.Metrics.summary(sum)
	log.Info(fmt.Sprintf("AUC: %.4f ± %.4f ACC: %.4f ± %.4f", sum.MeanAUC, sum.StdAUC, sum.MeanAccuracy, sum.StdAccuracy),
		"completed", sum.Completed, "folds", sum.Folds, "elapsed", time.Since(started))
	if a.Store != nil {
		if err := a.Store.FinishRun(rc.RunID, store.Summary{
			MeanAUC: sum.MeanAUC, StdAUC: sum.StdAUC,
			MeanAccuracy: sum.MeanAccuracy, StdAccuracy: sum.StdAccuracy,
		}, time.Now()); err != nil {
			return rc, err
		}
	}
	return rc, nil
}

// evaluate draws the nested validation subject and hands the fold to the Evaluator.
func (a *Aggregator) evaluate(flat *datasets.Flat, outer split.Outer, seed int64) (*FoldResult, error) {
	rng := rand.New(rand.NewSource(seed))
	fold, err := split.Nested(outer, flat.Groups, rng)
	if err != nil {
		if errors.Is(err, split.ErrTooFewSubjects) {
			return nil, &FoldError{Fold: outer.Index, Subject: outer.Subject, Kind: ErrDegenerateFold, Err: err}
		}
		return nil, err
	}
	// the evaluator continues on its own stream drawn from the fold's source
	return a.Evaluator.EvaluateFold(flat, fold, rng.Int63())
}

func (a *Aggregator) saveFold(runID string, f store.Fold) error {
	if a.Store == nil {
		return nil
	}
	return a.Store.SaveFold(runID, f)
}
