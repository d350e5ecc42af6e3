package split

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contiguousGroups(subjects, perSubject int) []int {
	groups := make([]int, 0, subjects*perSubject)
	for s := range subjects {
		for range perSubject {
			groups = append(groups, s)
		}
	}
	return groups
}

func TestLeaveOneSubjectOut_Coverage(t *testing.T) {
	groups := contiguousGroups(5, 7)
	outers, err := LeaveOneSubjectOut(groups)
	require.NoError(t, err)
	require.Len(t, outers, 5)

	seen := make([]int, len(groups))
	for k, o := range outers {
		assert.Equal(t, k, o.Index)
		assert.Equal(t, []int{k}, Subjects(o.Test, groups))
		assert.Equal(t, len(groups), len(o.Train)+len(o.Test))
		assert.NotContains(t, Subjects(o.Train, groups), o.Subject)
		for _, i := range o.Test {
			seen[i]++
		}
	}
	// union of test sets covers every example exactly once
	for i, n := range seen {
		assert.Equal(t, 1, n, "example %d tested %d times", i, n)
	}
}

func TestLeaveOneSubjectOut_TooFewSubjects(t *testing.T) {
	_, err := LeaveOneSubjectOut([]int{0, 0, 0})
	assert.ErrorIs(t, err, ErrTooFewSubjects)
}

func TestNested_ConcreteScenario(t *testing.T) {
	labels := []float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0}
	groups := contiguousGroups(3, 4)

	outcomes := map[int]bool{}
	for seed := int64(0); seed < 50; seed++ {
		folds, err := Split(labels, groups, rand.New(rand.NewSource(seed)))
		require.NoError(t, err)
		require.Len(t, folds, 3)

		f := folds[0]
		assert.Equal(t, 0, f.Subject)
		assert.Equal(t, []int{0, 1, 2, 3}, f.Test)

		union := append(append([]int{}, f.Train...), f.Valid...)
		sort.Ints(union)
		assert.Equal(t, []int{4, 5, 6, 7, 8, 9, 10, 11}, union)

		require.Contains(t, []int{1, 2}, f.ValidSubject)
		assert.Equal(t, []int{f.ValidSubject}, Subjects(f.Valid, groups))
		assert.Equal(t, []int{3 - f.ValidSubject}, Subjects(f.Train, groups))
		assert.NotContains(t, f.Train, 0)
		assert.NotContains(t, f.Valid, 0)
		outcomes[f.ValidSubject] = true
	}
	// both validation subjects come up across seeds
	assert.Len(t, outcomes, 2)
}

func TestSplit_Disjointness(t *testing.T) {
	groups := contiguousGroups(22, 10)
	labels := make([]float32, len(groups))
	folds, err := Split(labels, groups, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	require.Len(t, folds, 22)

	testSubjects := map[int]bool{}
	for _, f := range folds {
		train := Subjects(f.Train, groups)
		valid := Subjects(f.Valid, groups)
		test := Subjects(f.Test, groups)

		require.Len(t, test, 1)
		require.Len(t, valid, 1)
		assert.False(t, testSubjects[test[0]], "subject %d tested twice", test[0])
		testSubjects[test[0]] = true

		assert.NotContains(t, train, valid[0])
		assert.NotContains(t, train, test[0])
		assert.NotEqual(t, valid[0], test[0])
		assert.Equal(t, len(groups), len(f.Train)+len(f.Valid)+len(f.Test))
	}
}

func TestSplit_Reproducible(t *testing.T) {
	groups := contiguousGroups(6, 5)
	labels := make([]float32, len(groups))
	a, err := Split(labels, groups, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	b, err := Split(labels, groups, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSplit_LengthMismatch(t *testing.T) {
	_, err := Split([]float32{0, 1}, []int{0, 1, 2}, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestNested_TwoSubjectsOnly(t *testing.T) {
	groups := contiguousGroups(2, 3)
	outers, err := LeaveOneSubjectOut(groups)
	require.NoError(t, err)
	_, err = Nested(outers[0], groups, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, err, ErrTooFewSubjects)
}

func TestFoldSeeds(t *testing.T) {
	a := FoldSeeds(1, 10)
	b := FoldSeeds(1, 10)
	assert.Equal(t, a, b)
	assert.Len(t, a, 10)
	assert.NotEqual(t, a, FoldSeeds(2, 10))
	// a prefix does not depend on how many seeds are requested
	assert.Equal(t, a[:4], FoldSeeds(1, 4))
}
