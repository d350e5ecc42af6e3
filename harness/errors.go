package harness

import (
	"errors"
	"fmt"
)

// Fold-local error kinds. A fold failing with either is recorded as missing
// and the run continues.
var (
	ErrDegenerateFold = errors.New("degenerate fold")
	ErrModelTraining  = errors.New("model training failed")
)

// FoldError attributes a fold-local failure to its fold.
type FoldError struct {
	Fold    int
	Subject int
	Kind    error // ErrDegenerateFold or ErrModelTraining
	Err     error
}

func (e *FoldError) Error() string {
	return fmt.Sprintf("fold %d (subject %d): %v: %v", e.Fold, e.Subject, e.Kind, e.Err)
}

func (e *FoldError) Unwrap() []error { return []error{e.Kind, e.Err} }

// IsFoldLocal reports whether err only invalidates its own fold.
func IsFoldLocal(err error) bool {
	return errors.Is(err, ErrDegenerateFold) || errors.Is(err, ErrModelTraining)
}

// reason is the metrics label of a fold-local error.
func reason(err error) string {
	if errors.Is(err, ErrModelTraining) {
		return "model_training"
	}
	return "degenerate"
}

// guard runs fn and turns a panic into an error.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", op, r)
		}
	}()
	return fn()
}
