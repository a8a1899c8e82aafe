package tss

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/canopy-network/canopy/lib/tss/logging"
	"github.com/canopy-network/canopy/lib/tss/metrics"
)

// MetricsConfig controls collector registration.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// ProofConfig selects the no-small-factors proof parameters.
type ProofConfig struct {
	// ChallengeCurve names the group whose order bounds the challenge.
	ChallengeCurve CurveType `yaml:"challenge_curve" json:"challenge_curve"`
	Ell            uint      `yaml:"ell" json:"ell"`
	Epsilon        uint      `yaml:"epsilon" json:"epsilon"`
}

// Config is the file-level configuration of a signing node.
type Config struct {
	// Curve is the group used by the secret sharing engine. Threshold
	// EdDSA always runs on ed25519.
	Curve     CurveType          `yaml:"curve" json:"curve"`
	Threshold ThresholdValidator `yaml:"threshold" json:"threshold"`
	Logging   logging.Config     `yaml:"logging" json:"logging"`
	Metrics   MetricsConfig      `yaml:"metrics" json:"metrics"`
	Proof     ProofConfig        `yaml:"proof" json:"proof"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Curve:     Ed25519,
		Threshold: *NewDefaultThresholdValidator(),
		Logging:   logging.Config{Level: "info", Format: "json"},
		Metrics:   MetricsConfig{Namespace: "tss"},
		Proof:     ProofConfig{ChallengeCurve: Ed25519, Ell: 256, Epsilon: 512},
	}
}

// ParseConfig decodes YAML over DefaultConfig and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, ErrInvalidConfiguration.WithCause(err)
	}
	if res := NewDefaultConfigurationValidator().Validate(cfg); !res.Valid {
		return nil, ErrInvalidConfiguration.WithDetails("%s", strings.Join(res.Errors, "; "))
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// NewLogger builds the configured logger.
func (c *Config) NewLogger() (*zap.Logger, error) {
	return logging.New(c.Logging)
}

// NewMetrics registers collectors on reg, or returns nil when disabled.
func (c *Config) NewMetrics(reg prometheus.Registerer) (*metrics.Metrics, error) {
	if !c.Metrics.Enabled {
		return nil, nil
	}
	return metrics.New(reg, c.Metrics.Namespace)
}

// NewSecretSharing returns a sharing engine over the configured curve.
// A nil reader selects crypto/rand.
func (c *Config) NewSecretSharing(r io.Reader) (*SecretSharing, error) {
	curve, err := NewCurve(c.Curve)
	if err != nil {
		return nil, ErrInvalidConfiguration.WithCause(err)
	}
	return NewSecretSharing(curve, r), nil
}

// ConfigurationValidator checks a Config before it is used.
type ConfigurationValidator struct {
	supportedCurves map[CurveType]bool
	maxEll          uint
}

// NewDefaultConfigurationValidator creates a validator with secure defaults
func NewDefaultConfigurationValidator() *ConfigurationValidator {
	return &ConfigurationValidator{
		supportedCurves: map[CurveType]bool{
			Secp256k1: true,
			Ed25519:   true,
		},
		maxEll: 1024,
	}
}

// ValidateCurve reports whether curveType is supported.
func (cv *ConfigurationValidator) ValidateCurve(curveType CurveType) *ValidationResult {
	result := newValidationResult()
	if !cv.supportedCurves[curveType] {
		result.fail("unsupported curve %q", curveType)
	}
	return result
}

// Validate checks every section of cfg.
func (cv *ConfigurationValidator) Validate(cfg *Config) *ValidationResult {
	result := newValidationResult()
	if cfg == nil {
		result.fail("configuration cannot be nil")
		return result
	}

	merge := func(sub *ValidationResult) {
		if !sub.Valid {
			result.Valid = false
			result.Errors = append(result.Errors, sub.Errors...)
		}
		result.Warnings = append(result.Warnings, sub.Warnings...)
	}

	merge(cv.ValidateCurve(cfg.Curve))

	th := cfg.Threshold
	if th.MinThreshold < 1 {
		result.fail("threshold.min_threshold must be at least 1, got %d", th.MinThreshold)
	}
	if th.MaxParties < 1 || th.MaxParties > MaxShares {
		result.fail("threshold.max_parties must be in [1, %d], got %d", MaxShares, th.MaxParties)
	}
	if th.MinThreshold > th.MaxParties {
		result.fail("threshold.min_threshold %d exceeds max_parties %d", th.MinThreshold, th.MaxParties)
	}
	for name, ratio := range map[string]float64{
		"byzantine_ratio":       th.ByzantineRatio,
		"recommended_min_ratio": th.RecommendedMinRatio,
		"recommended_max_ratio": th.RecommendedMaxRatio,
	} {
		if ratio <= 0 || ratio > 1 {
			result.fail("threshold.%s must be in (0, 1], got %v", name, ratio)
		}
	}

	if _, err := zap.ParseAtomicLevel(cfg.Logging.Level); cfg.Logging.Level != "" && err != nil {
		result.fail("logging.level: %v", err)
	}
	switch cfg.Logging.Format {
	case "", "json", "console":
	default:
		result.fail("logging.format must be json or console, got %q", cfg.Logging.Format)
	}

	if cfg.Proof.ChallengeCurve != "" {
		merge(cv.ValidateCurve(cfg.Proof.ChallengeCurve))
	}
	if cfg.Proof.Ell == 0 || cfg.Proof.Ell > cv.maxEll {
		result.fail("proof.ell must be in [1, %d], got %d", cv.maxEll, cfg.Proof.Ell)
	}
	if cfg.Proof.Epsilon < cfg.Proof.Ell {
		result.fail("proof.epsilon %d is below ell %d", cfg.Proof.Epsilon, cfg.Proof.Ell)
	}

	if result.Valid && cfg.Curve == Secp256k1 {
		result.Warnings = append(result.Warnings, "secp256k1 sharing is not used by threshold EdDSA")
	}

	return result
}
