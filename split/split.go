// Package split partitions flat examples by subject: leave-one-subject-out
// outer folds, each with one further training subject drawn at random to act
// as the validation set.
//
// Every function here is pure: randomness comes in through an explicit
// *rand.Rand so a run is reproducible from its seed alone.
package split

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

// ErrTooFewSubjects is returned when a fold cannot give the train, valid and
// test roles one distinct subject each.
var ErrTooFewSubjects = errors.New("too few subjects")

// Outer is one leave-one-subject-out fold before the nested split.
type Outer struct {
	Index   int
	Subject int
	Train   []int
	Test    []int
}

// Fold is a complete partition of the flat example axis for one outer
// iteration. Test holds every example of Subject, Valid every example of
// ValidSubject, and Train the rest.
type Fold struct {
	Index        int
	Subject      int
	ValidSubject int
	Train        []int
	Valid        []int
	Test         []int
}

// LeaveOneSubjectOut returns one outer fold per distinct subject id, in
// ascending subject order.
func LeaveOneSubjectOut(groups []int) ([]Outer, error) {
	subjects := distinct(groups)
	if len(subjects) < 2 {
		return nil, fmt.Errorf("leave-one-subject-out needs at least 2 subjects, got %d: %w", len(subjects), ErrTooFewSubjects)
	}
	outers := make([]Outer, len(subjects))
	for k, s := range subjects {
		o := Outer{Index: k, Subject: s}
		for i, g := range groups {
			if g == s {
				o.Test = append(o.Test, i)
			} else {
				o.Train = append(o.Train, i)
			}
		}
		outers[k] = o
	}
	return outers, nil
}

// Nested moves one training subject into the validation role. The subject is
// chosen by drawing a single training example uniformly, so subjects are
// weighted by how many examples they contribute.
func Nested(outer Outer, groups []int, rng *rand.Rand) (Fold, error) {
	if len(outer.Train) == 0 {
		return Fold{}, fmt.Errorf("fold %d has no training examples: %w", outer.Index, ErrTooFewSubjects)
	}
	if n := len(Subjects(outer.Train, groups)); n < 2 {
		return Fold{}, fmt.Errorf("fold %d has %d training subject(s), need 2 to hold one out for validation: %w",
			outer.Index, n, ErrTooFewSubjects)
	}

	pick := outer.Train[rng.Intn(len(outer.Train))]
	vs := groups[pick]

	fold := Fold{
		Index:        outer.Index,
		Subject:      outer.Subject,
		ValidSubject: vs,
		Test:         outer.Test,
	}
	for _, i := range outer.Train {
		if groups[i] == vs {
			fold.Valid = append(fold.Valid, i)
		} else {
			fold.Train = append(fold.Train, i)
		}
	}
	return fold, nil
}

// Split runs LeaveOneSubjectOut and a Nested split for every outer fold,
// drawing from rng in fold order. labels only needs to line up with groups.
func Split(labels []float32, groups []int, rng *rand.Rand) ([]Fold, error) {
	if len(labels) != len(groups) {
		return nil, fmt.Errorf("labels (%d) and groups (%d) differ in length", len(labels), len(groups))
	}
	outers, err := LeaveOneSubjectOut(groups)
	if err != nil {
		return nil, err
	}
	folds := make([]Fold, len(outers))
	for k, o := range outers {
		if folds[k], err = Nested(o, groups, rng); err != nil {
			return nil, err
		}
	}
	return folds, nil
}

// FoldSeeds derives one independent seed per fold from a master seed. Seeds
// are drawn serially up front so a fold's randomness does not depend on the
// order or concurrency in which folds are evaluated.
func FoldSeeds(seed int64, n int) []int64 {
	master := rand.New(rand.NewSource(seed))
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = master.Int63()
	}
	return seeds
}

// Subjects returns the sorted distinct subject ids of the given examples.
func Subjects(indices []int, groups []int) []int {
	seen := make(map[int]struct{})
	for _, i := range indices {
		seen[groups[i]] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

func distinct(groups []int) []int {
	all := make([]int, len(groups))
	for i := range all {
		all[i] = i
	}
	return Subjects(all, groups)
}
