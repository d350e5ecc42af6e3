package logistic

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

type savedModel struct {
	Config Config
	W      []float32
	B      float32
}

// Save writes the parameters as gob to path via a temp file and rename.
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

	w, b := m.Weights()
	if err := gob.NewEncoder(f).Encode(savedModel{Config: m.Config, W: w, B: b}); err != nil {
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
	if len(sm.W) != sm.Config.InputDim {
		return nil, fmt.Errorf("model %s has %d weights for input dimension %d", path, len(sm.W), sm.Config.InputDim)
	}
	m, err := NewModel(sm.Config)
	if err != nil {
		return nil, err
	}
	m.setParams(sm.W, sm.B)
	m.trained = true
	return m, nil
}
