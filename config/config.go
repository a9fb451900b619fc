// Package config loads verifier profiles from YAML.
package config

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/georgepadayatti/goxades/keys"
)

// Common errors
var (
	ErrConfigurationError   = errors.New("configuration error")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidValue         = errors.New("invalid value")
)

// OIDRegex matches OID strings like "1.2.3.4"
var OIDRegex = regexp.MustCompile(`^\d+(\.\d+)+$`)

// ConfigError represents a configuration error with context.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message, Err: ErrConfigurationError}
}

func missingField(field string) *ConfigError {
	return &ConfigError{Field: field, Message: "required field is missing", Err: ErrMissingRequiredField}
}

func invalidValue(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message, Err: ErrInvalidValue}
}

// Defaults
const (
	DefaultMaxTimeStampAccuracy = time.Minute
	DefaultBatchConcurrency     = 4
	DefaultLogLevel             = "info"
)

// Config is a verifier profile.
type Config struct {
	Verification *VerificationConfig `yaml:"verification" json:"verification,omitempty"`

	Trust *TrustConfig `yaml:"trust" json:"trust,omitempty"`

	TimeStamps *TimeStampConfig `yaml:"timestamps" json:"timestamps,omitempty"`

	// Policies maps signature policy identifiers to policy document files.
	Policies map[string]string `yaml:"policies" json:"policies,omitempty"`

	Logging *LoggingConfig `yaml:"logging" json:"logging,omitempty"`

	Metrics *MetricsConfig `yaml:"metrics" json:"metrics,omitempty"`
}

// VerificationConfig tunes the verification engine.
type VerificationConfig struct {
	// RequireSigningCertificate rejects signatures without a
	// SigningCertificate property.
	RequireSigningCertificate bool `yaml:"require-signing-certificate" json:"require_signing_certificate"`

	// GracePeriod enables the grace period check when non-zero.
	GracePeriod time.Duration `yaml:"grace-period" json:"grace_period,omitempty"`

	// MaxTimeStampAccuracy bounds the accuracy a timestamp token may claim.
	MaxTimeStampAccuracy time.Duration `yaml:"max-timestamp-accuracy" json:"max_timestamp_accuracy,omitempty"`

	// SigningTimeTolerance is how far in the future a claimed signing time
	// may lie.
	SigningTimeTolerance time.Duration `yaml:"signing-time-tolerance" json:"signing_time_tolerance,omitempty"`

	// BatchConcurrency bounds the signatures verified in parallel.
	BatchConcurrency int `yaml:"batch-concurrency" json:"batch_concurrency,omitempty"`

	// CoreValidation runs the XML-DSig core validation before the
	// qualifying properties are verified.
	CoreValidation bool `yaml:"core-validation" json:"core_validation"`

	// RequireRevocation fails path validation for certificates without CRL
	// coverage.
	RequireRevocation bool `yaml:"require-revocation" json:"require_revocation"`
}

// SetDefaults sets default values for unset fields.
func (c *VerificationConfig) SetDefaults() {
	if c.MaxTimeStampAccuracy == 0 {
		c.MaxTimeStampAccuracy = DefaultMaxTimeStampAccuracy
	}
	if c.BatchConcurrency == 0 {
		c.BatchConcurrency = DefaultBatchConcurrency
	}
}

// Validate validates the verification configuration.
func (c *VerificationConfig) Validate() error {
	switch {
	case c.GracePeriod < 0:
		return invalidValue("verification.grace-period", "must not be negative")
	case c.MaxTimeStampAccuracy < 0:
		return invalidValue("verification.max-timestamp-accuracy", "must not be negative")
	case c.SigningTimeTolerance < 0:
		return invalidValue("verification.signing-time-tolerance", "must not be negative")
	case c.BatchConcurrency < 0:
		return invalidValue("verification.batch-concurrency", "must not be negative")
	}
	return nil
}

// TrustConfig names the trust anchors and validation data for signing
// certificate paths.
type TrustConfig struct {
	// Roots are PEM or DER certificate files of trust anchors.
	Roots []string `yaml:"roots" json:"roots,omitempty"`

	// TrustStore is a PKCS#12 trust store with further trust anchors.
	TrustStore string `yaml:"trust-store" json:"trust_store,omitempty"`

	// TrustStorePassword is the trust store password.
	TrustStorePassword string `yaml:"trust-store-password" json:"trust_store_password,omitempty"`

	// Intermediates are PEM or DER certificate files of CA certificates.
	Intermediates []string `yaml:"intermediates" json:"intermediates,omitempty"`

	// CRLs are PEM or DER CRL files.
	CRLs []string `yaml:"crls" json:"crls,omitempty"`
}

// Validate validates the trust configuration.
func (c *TrustConfig) Validate() error {
	if len(c.Roots) == 0 && c.TrustStore == "" {
		return missingField("trust.roots")
	}
	return nil
}

// TrustMaterial is the loaded content of a TrustConfig.
type TrustMaterial struct {
	Roots         []*x509.Certificate
	Intermediates []*x509.Certificate
	CRLs          []*x509.RevocationList
}

// Load reads every configured file.
func (c *TrustConfig) Load() (*TrustMaterial, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	m := &TrustMaterial{}
	if len(c.Roots) > 0 {
		roots, err := keys.LoadCertsFromPemDerFiles(c.Roots)
		if err != nil {
			return nil, fmt.Errorf("failed to load trust roots: %w", err)
		}
		m.Roots = roots
	}
	if c.TrustStore != "" {
		roots, err := keys.LoadTrustStore(c.TrustStore, c.TrustStorePassword)
		if err != nil {
			return nil, fmt.Errorf("failed to load trust store: %w", err)
		}
		m.Roots = append(m.Roots, roots...)
	}
	if len(c.Intermediates) > 0 {
		certs, err := keys.LoadCertsFromPemDerFiles(c.Intermediates)
		if err != nil {
			return nil, fmt.Errorf("failed to load intermediates: %w", err)
		}
		m.Intermediates = certs
	}
	if len(c.CRLs) > 0 {
		crls, err := keys.LoadCRLsFromPemDerFiles(c.CRLs)
		if err != nil {
			return nil, fmt.Errorf("failed to load CRLs: %w", err)
		}
		m.CRLs = crls
	}
	return m, nil
}

// TimeStampConfig names the trust anchors of timestamp authorities.
type TimeStampConfig struct {
	// Roots are PEM or DER certificate files of TSA trust anchors.
	Roots []string `yaml:"roots" json:"roots,omitempty"`

	// Intermediates are PEM or DER certificate files of TSA CAs.
	Intermediates []string `yaml:"intermediates" json:"intermediates,omitempty"`
}

// Validate validates the timestamp configuration.
func (c *TimeStampConfig) Validate() error {
	if len(c.Roots) == 0 {
		return missingField("timestamps.roots")
	}
	return nil
}

// Load returns the TSA roots and intermediates.
func (c *TimeStampConfig) Load() (roots, intermediates []*x509.Certificate, err error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	roots, err = keys.LoadCertsFromPemDerFiles(c.Roots)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load TSA roots: %w", err)
	}
	if len(c.Intermediates) > 0 {
		intermediates, err = keys.LoadCertsFromPemDerFiles(c.Intermediates)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load TSA intermediates: %w", err)
		}
	}
	return roots, intermediates, nil
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `yaml:"level" json:"level,omitempty"`

	// Development selects the console encoder and development defaults.
	Development bool `yaml:"development" json:"development"`
}

// SetDefaults sets default values for logging configuration.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = DefaultLogLevel
	}
}

// Validate validates the logging configuration.
func (c *LoggingConfig) Validate() error {
	if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return invalidValue("logging.level", err.Error())
	}
	return nil
}

// Build creates the configured logger.
func (c *LoggingConfig) Build() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, invalidValue("logging.level", err.Error())
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// MetricsConfig controls metrics collection.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Textfile receives the collected metrics in the text exposition format
	// when the run ends.
	Textfile string `yaml:"textfile" json:"textfile,omitempty"`
}

// Validate validates the metrics configuration.
func (c *MetricsConfig) Validate() error {
	if c.Enabled && c.Textfile == "" {
		return missingField("metrics.textfile")
	}
	return nil
}

// Default returns a configuration with every section present and defaults
// applied. It has no trust anchors.
func Default() *Config {
	c := &Config{}
	c.SetDefaults()
	return c
}

// SetDefaults fills in missing sections and default values.
func (c *Config) SetDefaults() {
	if c.Verification == nil {
		c.Verification = &VerificationConfig{}
	}
	c.Verification.SetDefaults()
	if c.Trust == nil {
		c.Trust = &TrustConfig{}
	}
	if c.Logging == nil {
		c.Logging = &LoggingConfig{}
	}
	c.Logging.SetDefaults()
	if c.Metrics == nil {
		c.Metrics = &MetricsConfig{}
	}
}

// Validate validates every section. The trust and timestamp sections are
// checked when they are loaded, so that a profile can leave them to flags.
func (c *Config) Validate() error {
	if c.Verification != nil {
		if err := c.Verification.Validate(); err != nil {
			return err
		}
	}
	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return err
		}
	}
	if c.Metrics != nil {
		if err := c.Metrics.Validate(); err != nil {
			return err
		}
	}
	for id, file := range c.Policies {
		if _, err := ProcessPolicyIdentifier(id); err != nil {
			return err
		}
		if file == "" {
			return missingField("policies." + id)
		}
	}
	return nil
}

// PolicyFiles returns the policy files keyed by normalized identifier.
func (c *Config) PolicyFiles() (map[string]string, error) {
	files := make(map[string]string, len(c.Policies))
	for id, file := range c.Policies {
		normalized, err := ProcessPolicyIdentifier(id)
		if err != nil {
			return nil, err
		}
		files[normalized] = file
	}
	return files, nil
}

// Load loads a configuration from a YAML file.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from YAML data, applies defaults and validates
// it. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ProcessPolicyIdentifier validates a signature policy identifier. Bare OIDs
// are turned into "urn:oid:" URNs, the form XAdES uses for OIDAsURN
// qualifiers; URIs are kept as they are.
func ProcessPolicyIdentifier(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", invalidValue("policies", "policy identifier is empty")
	}
	if OIDRegex.MatchString(id) {
		return "urn:oid:" + id, nil
	}
	if oid, ok := strings.CutPrefix(strings.ToLower(id), "urn:oid:"); ok {
		if !OIDRegex.MatchString(oid) {
			return "", invalidValue("policies", fmt.Sprintf("'%s' is not a valid OID URN", id))
		}
		return "urn:oid:" + oid, nil
	}
	if !strings.Contains(id, ":") {
		return "", invalidValue("policies", fmt.Sprintf("'%s' is neither an OID nor a URI", id))
	}
	return id, nil
}
