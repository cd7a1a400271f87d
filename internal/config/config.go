package config

import (
	"fmt"
	"os"
	"strconv"

	"transcssr/domain/core"
	"transcssr/domain/stream"
)

// Config represents the complete application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Inference InferenceConfig
	Paths     PathConfig
}

// DatabaseConfig holds the optional machine-registry database settings
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
}

// InferenceConfig holds the default inference parameter surface
type InferenceConfig struct {
	InputAlphabet  string
	OutputAlphabet string
	Alpha          float64
	LMaxWords      int
	LMaxCSSR       int
	LMaxICT        int
	MaxSplitIters  int
}

// PathConfig holds file system paths
type PathConfig struct {
	DataDir    string
	ResultsDir string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	defaults := core.DefaultParams()
	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Inference: InferenceConfig{
			InputAlphabet:  getEnv("INPUT_ALPHABET", "01"),
			OutputAlphabet: getEnv("OUTPUT_ALPHABET", "01"),
			Alpha:          getEnvFloat("ALPHA", defaults.Alpha),
			LMaxWords:      getEnvInt("L_MAX_WORDS", defaults.LMaxWords),
			LMaxCSSR:       getEnvInt("L_MAX_CSSR", defaults.LMaxCSSR),
			LMaxICT:        getEnvInt("L_MAX_ICT", defaults.LMaxICT),
			MaxSplitIters:  getEnvInt("MAX_SPLIT_ITERS", defaults.MaxSplitIters),
		},
		Paths: PathConfig{
			DataDir:    getEnv("DATA_DIR", "data"),
			ResultsDir: getEnv("RESULTS_DIR", "results"),
		},
	}

	if _, err := cfg.Params(); err != nil {
		return nil, fmt.Errorf("invalid inference configuration: %w", err)
	}
	if _, _, err := cfg.Alphabets(); err != nil {
		return nil, fmt.Errorf("invalid alphabet configuration: %w", err)
	}
	return cfg, nil
}

// Params builds the validated core parameter struct from the configuration.
func (c *Config) Params() (core.Params, error) {
	p := core.Params{
		Alpha:         c.Inference.Alpha,
		LMaxWords:     c.Inference.LMaxWords,
		LMaxCSSR:      c.Inference.LMaxCSSR,
		LMaxICT:       c.Inference.LMaxICT,
		MaxSplitIters: c.Inference.MaxSplitIters,
	}
	if err := p.Validate(); err != nil {
		return core.Params{}, err
	}
	return p, nil
}

// Alphabets parses the configured input and output alphabets.
func (c *Config) Alphabets() (inputs, outputs stream.Alphabet, err error) {
	inputs, err = stream.ParseAlphabet(c.Inference.InputAlphabet)
	if err != nil {
		return stream.Alphabet{}, stream.Alphabet{}, fmt.Errorf("input alphabet: %w", err)
	}
	outputs, err = stream.ParseAlphabet(c.Inference.OutputAlphabet)
	if err != nil {
		return stream.Alphabet{}, stream.Alphabet{}, fmt.Errorf("output alphabet: %w", err)
	}
	return inputs, outputs, nil
}

// Environment variable helpers
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
