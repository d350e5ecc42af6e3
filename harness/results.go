package harness

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/Noofbiz/subjectcv/model"
)

// FoldResult is the outcome of one completed fold.
type FoldResult struct {
	Fold           int
	HeldOutSubject int
	ValidSubject   int
	Seed           int64
	TrainShape     []int
	ValidShape     []int // after undersampling
	TestShape      []int
	AUC            float64
	Accuracy       float64
	Mode           string
	Duration       time.Duration
	History        *model.History
}

// FoldFailure records a fold that was skipped.
type FoldFailure struct {
	Fold    int
	Subject int
	Err     error
}

// Summary aggregates the completed folds of a run. Std is the sample
// standard deviation; it is NaN with fewer than two completed folds.
type Summary struct {
	Folds        int
	Completed    int
	MeanAUC      float64
	StdAUC       float64
	MeanAccuracy float64
	StdAccuracy  float64
}

// ResultCollection holds one slot per subject. Slots of folds that did not
// complete stay NaN. It is safe for concurrent use.
type ResultCollection struct {
	RunID    string
	Subjects []int

	mu         sync.Mutex
	aucs       []float64
	accuracies []float64
	results    []*FoldResult
	failures   []FoldFailure
}

// NewResultCollection allocates NaN-filled slots for the given subjects in fold order.
func NewResultCollection(runID string, subjects []int) *ResultCollection {
	rc := &ResultCollection{
		RunID:      runID,
		Subjects:   append([]int(nil), subjects...),
		aucs:       make([]float64, len(subjects)),
		accuracies: make([]float64, len(subjects)),
		results:    make([]*FoldResult, len(subjects)),
	}
	for i := range subjects {
		rc.aucs[i] = math.NaN()
		rc.accuracies[i] = math.NaN()
	}
	return rc
}

// Len is the number of fold slots.
func (rc *ResultCollection) Len() int { return len(rc.Subjects) }

// Set stores a completed fold in its slot.
func (rc *ResultCollection) Set(r *FoldResult) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.aucs[r.Fold] = r.AUC
	rc.accuracies[r.Fold] = r.Accuracy
	rc.results[r.Fold] = r
}

// Fail records a skipped fold; its slots stay NaN.
func (rc *ResultCollection) Fail(fold, subject int, err error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.aucs[fold] = math.NaN()
	rc.accuracies[fold] = math.NaN()
	rc.results[fold] = nil
	rc.failures = append(rc.failures, FoldFailure{Fold: fold, Subject: subject, Err: err})
}

// AUCs returns a copy of the per-fold AUC slots.
func (rc *ResultCollection) AUCs() []float64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]float64(nil), rc.aucs...)
}

// Accuracies returns a copy of the per-fold accuracy slots.
func (rc *ResultCollection) Accuracies() []float64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]float64(nil), rc.accuracies...)
}

// Result returns the fold's result, nil if it did not complete.
func (rc *ResultCollection) Result(fold int) *FoldResult {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.results[fold]
}

// Failures returns the skipped folds in the order they were recorded.
func (rc *ResultCollection) Failures() []FoldFailure {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]FoldFailure(nil), rc.failures...)
}

// Completed counts folds with a result.
func (rc *ResultCollection) Completed() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	n := 0
	for _, r := range rc.results {
		if r != nil {
			n++
		}
	}
	return n
}

// Summary computes mean and std over completed folds only.
func (rc *ResultCollection) Summary() Summary {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	var aucs, accs []float64
	for _, r := range rc.results {
		if r == nil {
			continue
		}
		aucs = append(aucs, r.AUC)
		accs = append(accs, r.Accuracy)
	}
	s := Summary{Folds: len(rc.results), Completed: len(aucs)}
	s.MeanAUC, s.StdAUC = meanStd(aucs)
	s.MeanAccuracy, s.StdAccuracy = meanStd(accs)
	return s
}

func meanStd(x []float64) (mean, std float64) {
	switch len(x) {
	case 0:
		return math.NaN(), math.NaN()
	case 1:
		return x[0], math.NaN()
	}
	return stat.MeanStdDev(x, nil)
}
