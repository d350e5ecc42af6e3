// Command subjectcv runs leave-one-subject-out cross-validation of a binary
// classifier over a subject-structured EEG epoch dataset.
//
//	subjectcv DATA LABELS OUTDIR [--config file.yaml] [--seed N] [--mode test|validation] [--workers N]
//
// DATA is a [subjects, trials, samples, channels] array and LABELS a
// [subjects, trials] 0/1 array, as .npy or text. OUTDIR receives per-fold AUC
// and accuracy arrays, model files, a plot, a metrics textfile and a SQLite
// record of the run.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Noofbiz/subjectcv/harness"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

// exitCode maps usage and configuration errors to 2, other failures to 1.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case harness.IsConfigError(err):
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "for help use --help")
		return 2
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
}
