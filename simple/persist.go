package simple

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

// snapshot is a deep copy of the trainable parameters.
type snapshot struct {
	weights [][][]float32
	biases  [][]float32
}

func (m *Model) snapshot() *snapshot {
	s := &snapshot{
		weights: make([][][]float32, len(m.weights)),
		biases:  make([][]float32, len(m.biases)),
	}
	for l := range m.weights {
		s.weights[l] = make([][]float32, len(m.weights[l]))
		for j, row := range m.weights[l] {
			s.weights[l][j] = append([]float32(nil), row...)
		}
		s.biases[l] = append([]float32(nil), m.biases[l]...)
	}
	return s
}

func (m *Model) restore(s *snapshot) {
	for l := range s.weights {
		for j, row := range s.weights[l] {
			copy(m.weights[l][j], row)
		}
		copy(m.biases[l], s.biases[l])
	}
}

// savedModel is the on-disk form of a Model.
type savedModel struct {
	Config     Config
	LayerSizes []int
	Weights    [][][]float32
	Biases     [][]float32
}

// Save writes the model as gob to path. The file is written to a temp file
// in the same directory and renamed into place.
func (m *Model) Save(path string) error {
	if !m.trained {
		return errors.New("model has not been trained")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	enc := gob.NewEncoder(f)
	if err := enc.Encode(savedModel{
		Config:     m.Config,
		LayerSizes: m.layerSizes,
		Weights:    m.weights,
		Biases:     m.biases,
	}); err != nil {
		f.Close()
		return fmt.Errorf("encode model: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads a model previously written by Save.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sm savedModel
	if err := gob.NewDecoder(f).Decode(&sm); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if len(sm.LayerSizes) < 2 || len(sm.Weights) != len(sm.LayerSizes)-1 || len(sm.Biases) != len(sm.Weights) {
		return nil, fmt.Errorf("model %s has inconsistent layers", path)
	}
	return &Model{
		Config:     sm.Config,
		layerSizes: sm.LayerSizes,
		weights:    sm.Weights,
		biases:     sm.Biases,
		rng:        rand.New(rand.NewSource(sm.Config.Seed)),
		trained:    true,
	}, nil
}
