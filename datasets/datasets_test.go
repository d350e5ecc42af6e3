package datasets

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio/npy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeDataset builds a [subjects, perSubject, samples, channels] dataset whose
// values encode their own flat position, so gathers are easy to check.
func makeDataset(t *testing.T, subjects, perSubject, samples, channels int, labels []float32) *Dataset {
	t.Helper()
	data := make([]float32, subjects*perSubject*samples*channels)
	for i := range data {
		data[i] = float32(i)
	}
	ds, err := New(data, []int{subjects, perSubject, samples, channels}, labels, []int{subjects, perSubject})
	require.NoError(t, err)
	return ds
}

func TestNew_ShapeValidation(t *testing.T) {
	data := make([]float32, 2*3*4*2)
	labels := make([]float32, 6)

	cases := []struct {
		name       string
		shape      []int
		labels     []float32
		labelShape []int
	}{
		{"data not 4-D", []int{6, 4, 2}, labels, []int{2, 3}},
		{"labels not 2-D", []int{2, 3, 4, 2}, labels, []int{6}},
		{"labels shape mismatch", []int{2, 3, 4, 2}, labels, []int{3, 2}},
		{"data length mismatch", []int{2, 3, 4, 3}, labels, []int{2, 3}},
		{"labels length mismatch", []int{2, 3, 4, 2}, labels[:5], []int{2, 3}},
		{"non-binary label", []int{2, 3, 4, 2}, []float32{0, 1, 2, 0, 0, 0}, []int{2, 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(data, tc.shape, tc.labels, tc.labelShape)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrShape), "expected ErrShape, got %v", err)
			var se *ShapeError
			assert.True(t, errors.As(err, &se))
		})
	}
}

func TestFlatten_GroupVector(t *testing.T) {
	labels := []float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0}
	ds := makeDataset(t, 3, 4, 2, 2, labels)

	flat := ds.Flatten()
	require.Equal(t, 12, flat.Len())
	assert.Equal(t, []int{0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2}, flat.Groups)
	assert.Equal(t, labels, flat.Y)
	assert.Equal(t, 2, flat.Samples)
	assert.Equal(t, 2, flat.Channels)
	assert.Equal(t, 3, ds.Subjects())
	assert.Equal(t, 2, ds.Channels())
}

func TestGatherAndSubset(t *testing.T) {
	labels := []float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0}
	ds := makeDataset(t, 3, 4, 2, 2, labels)
	flat := ds.Flatten()

	p := flat.Gather([]int{5, 10})
	require.Equal(t, 2, p.Len())
	assert.Equal(t, []int{2, 2, 2}, p.Shape())
	assert.Equal(t, []float32{20, 21, 22, 23}, p.Example(0))
	assert.Equal(t, []float32{40, 41, 42, 43}, p.Example(1))
	assert.Equal(t, []float32{1, 1}, p.Y)
	assert.Equal(t, []int{5, 10}, p.Index)
	assert.Equal(t, 2, p.Positives())

	// gathering copies: mutating the partition leaves the dataset alone
	p.X[0] = -1
	assert.Equal(t, float32(20), ds.Data[20])

	s := p.Subset([]int{1})
	assert.Equal(t, []int{10}, s.Index)
	assert.Equal(t, []float32{40, 41, 42, 43}, s.X)

	scaled, err := p.WithFeatures(make([]float32, len(p.X)))
	require.NoError(t, err)
	assert.Equal(t, p.Index, scaled.Index)
	_, err = p.WithFeatures(make([]float32, 3))
	assert.Error(t, err)
}

func TestPartition_ToGomlxTensors(t *testing.T) {
	ds := makeDataset(t, 2, 3, 4, 2, []float32{0, 1, 0, 1, 0, 0})
	p := ds.Flatten().Gather([]int{0, 1, 4})

	inT, labT, err := p.ToGomlxTensors()
	require.NoError(t, err)
	require.NotNil(t, inT)
	require.NotNil(t, labT)
	assert.Equal(t, []int{3, 4, 2}, inT.Shape().Dimensions)
	assert.Equal(t, []int{3, 1}, labT.Shape().Dimensions)

	bad := &Partition{X: []float32{1}, Y: []float32{1}, Samples: 2, Channels: 2}
	_, _, err = bad.ToGomlxTensors()
	assert.Error(t, err)
}

func TestLoadArray_Text(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "data.txt")
	content := "# shape: 2 1 2 1\n1 2\n3 4\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	values, shape, err := LoadArray(path)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 2, 1}, shape)
	assert.Equal(t, []float32{1, 2, 3, 4}, values)

	labelsPath := filepath.Join(tmp, "labels.csv")
	require.NoError(t, os.WriteFile(labelsPath, []byte("1\n0\n"), 0644))
	_, labelShape, err := LoadArray(labelsPath)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, labelShape)

	ragged := filepath.Join(tmp, "ragged.txt")
	require.NoError(t, os.WriteFile(ragged, []byte("1 2\n3\n"), 0644))
	_, _, err = LoadArray(ragged)
	assert.Error(t, err)
}

func TestLoad_ShapeMismatch(t *testing.T) {
	tmp := t.TempDir()
	dataPath := filepath.Join(tmp, "data.txt")
	labelsPath := filepath.Join(tmp, "labels.txt")
	require.NoError(t, os.WriteFile(dataPath, []byte("# shape: 2 1 2 1\n1 2\n3 4\n"), 0644))
	require.NoError(t, os.WriteFile(labelsPath, []byte("# shape: 1 2\n1 0\n"), 0644))

	_, err := Load(dataPath, labelsPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrShape)

	require.NoError(t, os.WriteFile(labelsPath, []byte("# shape: 2 1\n1\n0\n"), 0644))
	ds, err := Load(dataPath, labelsPath)
	require.NoError(t, err)
	assert.Equal(t, [4]int{2, 1, 2, 1}, ds.Shape)
}

func TestLoadArray_Npy(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "labels.npy")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, npy.Write(f, []float64{0, 1, 1, 0}))
	require.NoError(t, f.Close())

	values, shape, err := LoadArray(path)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, shape)
	assert.Equal(t, []float32{0, 1, 1, 0}, values)
}

func TestSaveTextArray_RoundTripWithNaN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "aucs.txt")
	in := []float64{0.75, math.NaN(), 0.5}
	require.NoError(t, SaveTextArray(path, in))

	out, err := ReadTextArray(path)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.InDelta(t, 0.75, out[0], 1e-12)
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 0.5, out[2], 1e-12)

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
