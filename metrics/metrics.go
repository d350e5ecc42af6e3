// Package metrics scores binary classifier outputs.
package metrics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// DefaultThreshold is the decision threshold on the positive-class probability.
const DefaultThreshold = 0.5

var (
	// ErrSingleClass is returned by AUC when the labels hold only one class.
	ErrSingleClass = errors.New("metrics: AUC needs both classes")
	// ErrNonFinite is returned when a score is NaN or infinite.
	ErrNonFinite = errors.New("metrics: non-finite score")
)

// checkFinite returns the first non-finite score as an error.
func checkFinite(proba []float64) error {
	for i, p := range proba {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: score %d is %v", ErrNonFinite, i, p)
		}
	}
	return nil
}

// AUC returns the area under the ROC curve of proba against the binary labels.
// Tied scores contribute half, as in the Mann-Whitney statistic.
func AUC(labels []float32, proba []float64) (float64, error) {
	if len(labels) != len(proba) {
		return 0, fmt.Errorf("metrics: %d labels for %d scores", len(labels), len(proba))
	}
	if err := checkFinite(proba); err != nil {
		return 0, err
	}
	y := make([]float64, len(proba))
	classes := make([]bool, len(labels))
	var pos int
	for i, l := range labels {
		y[i] = proba[i]
		classes[i] = l == 1
		if classes[i] {
			pos++
		}
	}
	if pos == 0 || pos == len(labels) {
		return 0, ErrSingleClass
	}

	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}

// Accuracy returns the fraction of examples whose thresholded probability
// matches the label. A score is positive only when strictly above threshold,
// so 0.5 rounds down as numpy's round-half-to-even does.
func Accuracy(labels []float32, proba []float64, threshold float64) (float64, error) {
	if len(labels) != len(proba) {
		return 0, fmt.Errorf("metrics: %d labels for %d scores", len(labels), len(proba))
	}
	if len(labels) == 0 {
		return 0, errors.New("metrics: accuracy of an empty set")
	}
	if err := checkFinite(proba); err != nil {
		return 0, err
	}
	correct := 0
	for i, l := range labels {
		pred := float32(0)
		if proba[i] > threshold {
			pred = 1
		}
		if pred == l {
			correct++
		}
	}
	return float64(correct) / float64(len(labels)), nil
}
