package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CTAG07/nextword/pkg/markov"
	"github.com/goccy/go-json"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds the settings of the HTTP API and the shared resources.
type ServerConfig struct {
	ApiAddr      string `json:"api_addr" yaml:"api_addr"`
	LogLevel     string `json:"log_level" yaml:"log_level"`
	DatabasePath string `json:"database_path" yaml:"database_path"`
	DatasetPath  string `json:"dataset_path" yaml:"dataset_path"`
	ModelName    string `json:"model_name" yaml:"model_name"`
}

// MarkovConfig holds the settings of training and generation.
type MarkovConfig struct {
	MaxWords        int     `json:"max_words" yaml:"max_words"`
	MinSteps        int     `json:"min_steps" yaml:"min_steps"`
	WorkerCount     int     `json:"worker_count" yaml:"worker_count"`
	Epsilon         float64 `json:"epsilon" yaml:"epsilon"`
	Epochs          int     `json:"epochs" yaml:"epochs"`
	StopPolicy      string  `json:"stop_policy" yaml:"stop_policy"`
	StopProbability float64 `json:"stop_probability" yaml:"stop_probability"`
	Filler          string  `json:"filler" yaml:"filler"`
	Seed            int64   `json:"seed" yaml:"seed"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server ServerConfig `json:"server_config" yaml:"server_config"`
	Markov MarkovConfig `json:"markov_config" yaml:"markov_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ApiAddr:      ":7278",
		LogLevel:     "info",
		DatabasePath: "./data/nextword.db",
		DatasetPath:  "./data/dataset.txt",
		ModelName:    "default",
	}
}

// DefaultMarkovConfig creates a markov configuration with default values.
func DefaultMarkovConfig() MarkovConfig {
	return MarkovConfig{
		MaxWords:        15,
		MinSteps:        4,
		WorkerCount:     0,
		Epsilon:         markov.DefaultEpsilon,
		Epochs:          1,
		StopPolicy:      markov.StopStrict.String(),
		StopProbability: 1.0 / 3.0,
		Filler:          "word",
		Seed:            0,
	}
}

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: DefaultServerConfig(),
		Markov: DefaultMarkovConfig(),
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// LoadConfig reads the configuration from the file at the given path. Files
// ending in .yaml or .yml are read as YAML, everything else as JSON. Values
// missing from the file keep their defaults. If the file doesn't exist, it
// creates one with default values.
func LoadConfig(path string) (*Config, error) {
	// Initialize with default configurations
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		// If the file doesn't exist, create it with the default config.
		if errors.Is(err, os.ErrNotExist) {
			data, err := config.marshal(path)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if dir := filepath.Dir(path); dir != "" {
				_ = os.MkdirAll(dir, 0o755)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// Warn instead of failing, as everything can still run with defaults.
				fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		// For other errors (e.g., permission denied), return the error.
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(file, config)
	} else {
		err = json.Unmarshal(file, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return config, nil
}

func (c *Config) marshal(path string) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(c)
	}
	return json.MarshalIndent(c, "", "  ")
}

// Validate reports the first setting that is out of range.
func (c *Config) Validate() error {
	m := c.Markov
	switch {
	case m.MaxWords < 0:
		return fmt.Errorf("max_words must not be negative, got %d", m.MaxWords)
	case m.MinSteps < 0:
		return fmt.Errorf("min_steps must not be negative, got %d", m.MinSteps)
	case m.WorkerCount < 0:
		return fmt.Errorf("worker_count must not be negative, got %d", m.WorkerCount)
	case m.Epsilon < 0:
		return fmt.Errorf("epsilon must not be negative, got %g", m.Epsilon)
	case m.StopProbability < 0 || m.StopProbability > 1:
		return fmt.Errorf("stop_probability must be between 0 and 1, got %g", m.StopProbability)
	}
	if _, err := markov.ParseStopPolicy(m.StopPolicy); err != nil {
		return err
	}
	return nil
}

// parseLogLevel maps a configured level name to a slog.Level, defaulting to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newRand creates the random source used for random stops. A zero seed picks a
// time-based one.
func (m MarkovConfig) newRand() *rand.Rand {
	seed := uint64(m.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// buildOptions returns the builder options for this configuration.
func (m MarkovConfig) buildOptions(logger *slog.Logger) []markov.BuildOption {
	opts := []markov.BuildOption{markov.WithBuildLogger(logger)}
	if m.WorkerCount > 0 {
		opts = append(opts, markov.WithWorkers(m.WorkerCount))
	}
	return opts
}

// generateOptions returns the generation options for this configuration.
// maxWords overrides MaxWords when positive.
func (m MarkovConfig) generateOptions(rng *rand.Rand, logger *slog.Logger, maxWords int) ([]markov.GenerateOption, error) {
	policy, err := markov.ParseStopPolicy(m.StopPolicy)
	if err != nil {
		return nil, err
	}
	if maxWords <= 0 {
		maxWords = m.MaxWords
	}
	return []markov.GenerateOption{
		markov.WithMaxWords(maxWords),
		markov.WithMinSteps(m.MinSteps),
		markov.WithStopPolicy(policy),
		markov.WithStopProbability(m.StopProbability),
		markov.WithFiller(m.Filler),
		markov.WithRand(rng),
		markov.WithGenerateLogger(logger),
	}, nil
}
