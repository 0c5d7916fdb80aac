// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database. Optional: when empty the server runs on in-memory stores,
	// which is only appropriate for development and tests.
	DatabaseURL string `koanf:"database_url"`

	// Redis. Optional: enables the extraction cache and shared rate limiting.
	RedisURL string `koanf:"redis_url"`

	// LLM completion service
	LLMAPIKey  string `koanf:"llm_api_key"`
	LLMModel   string `koanf:"llm_model"`
	LLMBaseURL string `koanf:"llm_base_url"` // optional, for OpenAI-compatible gateways

	// AttributeTypes is the ordered list of attribute types the extractor
	// may search for.
	AttributeTypes []string `koanf:"attribute_types"`

	// CalibrationPath points at an optional JSON file overriding scoring
	// defaults.
	CalibrationPath string `koanf:"calibration_path"`

	// Rate limiting. Limits are requests per minute per client.
	RateLimitEnabled bool `koanf:"rate_limit_enabled"`
	SearchRateLimit  int  `koanf:"search_rate_limit"`
	GlobalRateLimit  int  `koanf:"global_rate_limit"`

	// CORSAllowedOrigins is the explicit browser-origin allowlist. Empty
	// disables CORS processing.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// ProfilingEnabled exposes pprof endpoints. Development only.
	ProfilingEnabled bool `koanf:"profiling_enabled"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporterType string  `koanf:"tracing_exporter_type"` // otlp-grpc or otlp-http
	TracingOTLPEndpoint string  `koanf:"tracing_otlp_endpoint"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
	TracingInsecure     bool    `koanf:"tracing_insecure"`
}

// Configuration validation errors.
var (
	ErrMissingLLMAPIKey       = errors.New("LLM_API_KEY is required")
	ErrNoAttributeTypes       = errors.New("ATTRIBUTE_TYPES must list at least one type")
	ErrInvalidPort            = errors.New("PORT must be a valid integer")
	ErrInvalidSamplingRate    = errors.New("TRACING_SAMPLING_RATE must be between 0 and 1")
	ErrInvalidSearchRateLimit = errors.New("SEARCH_RATE_LIMIT must be > 0")
)

// Default values for non-secret configuration.
const (
	DefaultPort                = 8080
	DefaultEnv                 = "development"
	DefaultLLMModel            = "gpt-4o-mini"
	DefaultSearchRateLimit     = 30
	DefaultGlobalRateLimit     = 100
	DefaultTracingSamplingRate = 1.0
)

// DefaultAttributeTypes returns the attribute types the extractor searches
// when none are configured.
func DefaultAttributeTypes() []string {
	return []string{"agency", "role", "seniority", "skill", "program"}
}

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Parse port from env, collecting error if invalid
	// Try EXPERTRANK_PORT first, then PORT for convenience
	port, portErr := getEnvIntOrDefaultMulti([]string{"EXPERTRANK_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	searchLimit, searchLimitErr := getEnvIntOrDefault("SEARCH_RATE_LIMIT", k.Int("search_rate_limit"), DefaultSearchRateLimit)
	if searchLimitErr != nil {
		loadErrs = append(loadErrs, searchLimitErr)
	}

	globalLimit, globalLimitErr := getEnvIntOrDefault("GLOBAL_RATE_LIMIT", k.Int("global_rate_limit"), DefaultGlobalRateLimit)
	if globalLimitErr != nil {
		loadErrs = append(loadErrs, globalLimitErr)
	}

	samplingRate, samplingErr := getEnvFloatOrDefault("TRACING_SAMPLING_RATE", k.Float64("tracing_sampling_rate"), DefaultTracingSamplingRate)
	if samplingErr != nil {
		loadErrs = append(loadErrs, samplingErr)
	}

	attributeTypes := k.Strings("attribute_types")
	if val := os.Getenv("ATTRIBUTE_TYPES"); val != "" {
		// Env var takes precedence over file config, comma-separated
		attributeTypes = splitList(val)
	}
	if len(attributeTypes) == 0 {
		attributeTypes = DefaultAttributeTypes()
	}

	corsOrigins := k.Strings("cors_allowed_origins")
	if val := os.Getenv("CORS_ALLOWED_ORIGINS"); val != "" {
		corsOrigins = splitList(val)
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                port,
		Env:                 getEnvOrDefaultMulti([]string{"EXPERTRANK_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:         getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:            getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		LLMAPIKey:           getEnvOrKoanf("LLM_API_KEY", k, "llm_api_key"),
		LLMModel:            getEnvOrDefault("LLM_MODEL", k.String("llm_model"), DefaultLLMModel),
		LLMBaseURL:          getEnvOrKoanf("LLM_BASE_URL", k, "llm_base_url"),
		AttributeTypes:      attributeTypes,
		CalibrationPath:     getEnvOrKoanf("CALIBRATION_PATH", k, "calibration_path"),
		RateLimitEnabled:    getEnvBool("RATE_LIMIT_ENABLED", k, "rate_limit_enabled", true),
		SearchRateLimit:     searchLimit,
		GlobalRateLimit:     globalLimit,
		CORSAllowedOrigins:  corsOrigins,
		ProfilingEnabled:    getEnvBool("PROFILING_ENABLED", k, "profiling_enabled", false),
		TracingEnabled:      getEnvBool("TRACING_ENABLED", k, "tracing_enabled", false),
		TracingExporterType: getEnvOrDefault("TRACING_EXPORTER_TYPE", k.String("tracing_exporter_type"), "otlp-http"),
		TracingOTLPEndpoint: getEnvOrKoanf("TRACING_OTLP_ENDPOINT", k, "tracing_otlp_endpoint"),
		TracingSamplingRate: samplingRate,
		TracingInsecure:     getEnvBool("TRACING_INSECURE", k, "tracing_insecure", false),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// splitList splits a comma-separated list, trimming whitespace and dropping
// empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvBool returns the environment variable as bool if set, otherwise the
// koanf value, or default. Unrecognized env values fall through to the file
// value or default.
func getEnvBool(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) bool {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	if k.Exists(koanfKey) {
		return k.Bool(koanfKey)
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.LLMAPIKey == "" {
		errs = append(errs, ErrMissingLLMAPIKey)
	}
	if len(c.AttributeTypes) == 0 {
		errs = append(errs, ErrNoAttributeTypes)
	}
	if c.RateLimitEnabled && c.SearchRateLimit <= 0 {
		errs = append(errs, ErrInvalidSearchRateLimit)
	}
	if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
		errs = append(errs, ErrInvalidSamplingRate)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                  fmt.Sprintf("%d", c.Port),
		"env":                   c.Env,
		"database_url":          maskDatabaseURL(c.DatabaseURL),
		"redis_url":             maskDatabaseURL(c.RedisURL),
		"llm_api_key":           maskSecret(c.LLMAPIKey),
		"llm_model":             c.LLMModel,
		"llm_base_url":          c.LLMBaseURL,
		"attribute_types":       strings.Join(c.AttributeTypes, ","),
		"calibration_path":      c.CalibrationPath,
		"rate_limit_enabled":    fmt.Sprintf("%t", c.RateLimitEnabled),
		"search_rate_limit":     fmt.Sprintf("%d", c.SearchRateLimit),
		"global_rate_limit":     fmt.Sprintf("%d", c.GlobalRateLimit),
		"cors_allowed_origins":  strings.Join(c.CORSAllowedOrigins, ","),
		"profiling_enabled":     fmt.Sprintf("%t", c.ProfilingEnabled),
		"tracing_enabled":       fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_exporter_type": c.TracingExporterType,
		"tracing_otlp_endpoint": c.TracingOTLPEndpoint,
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL.
// Supports postgres://, postgresql://, and redis:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	// Look for password pattern: user:password@host
	// Simple approach: find :// and then mask between : and @
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
