package harness

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Noofbiz/subjectcv/logistic"
	"github.com/Noofbiz/subjectcv/model"
	"github.com/Noofbiz/subjectcv/simple"
)

// Scoring targets of a fold.
const (
	ModeTest       = "test"
	ModeValidation = "validation"
)

// Classifier kinds selectable with model.kind.
const (
	ModelMLP      = "mlp"
	ModelLogistic = "logistic"
)

// DefaultSeed seeds the run when no seed is configured.
const DefaultSeed = 1

// Outputs names the files written into the output directory. An empty name
// disables that output.
type Outputs struct {
	AUCs       string `yaml:"aucs"`
	Accuracies string `yaml:"accuracies"`
	Plot       string `yaml:"plot"`
	Metrics    string `yaml:"metrics"`
	Database   string `yaml:"database"`
}

// ModelConfig selects the classifier and carries its hyperparameters. The
// logistic kind reads only learning_rate and epochs.
type ModelConfig struct {
	Kind          string `yaml:"kind" validate:"oneof=mlp logistic"`
	simple.Config `yaml:",inline"`
}

// Factory returns the model.Factory for the configured kind.
func (m ModelConfig) Factory() model.Factory {
	if m.Kind == ModelLogistic {
		return logistic.Factory(logistic.Config{
			LearningRate: m.LearningRate,
			Epochs:       m.Epochs,
		})
	}
	return simple.Factory(m.Config)
}

// Config controls a cross-validation run.
type Config struct {
	Seed       int64   `yaml:"seed"`
	Mode       string  `yaml:"mode" validate:"oneof=test validation"`
	Workers    int     `yaml:"workers" validate:"gte=1"`
	SaveModels bool    `yaml:"save_models"`
	Threshold  float64 `yaml:"threshold" validate:"gt=0,lt=1"`

	// EarlyStopping nil disables early stopping.
	EarlyStopping *model.EarlyStopping `yaml:"early_stopping"`
	Model         ModelConfig          `yaml:"model"`
	Outputs       Outputs              `yaml:"outputs"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Seed:       DefaultSeed,
		Mode:       ModeTest,
		Workers:    1,
		SaveModels: true,
		Threshold:  0.5,
		EarlyStopping: &model.EarlyStopping{
			Patience:    model.DefaultPatience,
			RestoreBest: true,
		},
		Model: ModelConfig{
			Kind: ModelMLP,
			Config: simple.Config{
				HiddenSizes:  []int{64},
				LearningRate: 0.01,
				Epochs:       200,
				BatchSize:    32,
				ClipNorm:     5,
			},
		},
		Outputs: Outputs{
			AUCs:       "aucs.txt",
			Accuracies: "accuracies.txt",
			Plot:       "folds.png",
			Metrics:    "metrics.prom",
			Database:   "results.db",
		},
	}
}

// ConfigError reports an invalid invocation or configuration.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "configuration error: " + e.Err.Error() }

func (e *ConfigError) Unwrap() error { return e.Err }

// ConfigErrorf builds a ConfigError from a format string.
func ConfigErrorf(format string, args ...any) error {
	return &ConfigError{Err: fmt.Errorf(format, args...)}
}

// IsConfigError reports whether err is or wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

var validate = validator.New()

// LoadConfig starts from DefaultConfig, overlays the YAML file at path (when
// path is non-empty) and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, &ConfigError{Err: fmt.Errorf("read config: %w", err)}
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, &ConfigError{Err: fmt.Errorf("parse config %s: %w", path, err)}
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the struct tags of cfg and its nested sections.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return &ConfigError{Err: err}
	}
	return nil
}
