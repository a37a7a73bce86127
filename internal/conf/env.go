// env.go - Environment variable configuration and validation for wildwatch
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/logger"
)

// EnvPrefix prefixes every environment variable, e.g. WILDWATCH_REPORTING_USERID.
const EnvPrefix = "WILDWATCH"

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns the explicitly validated environment variables. Every other
// key is reachable through the automatic WILDWATCH_<SECTION>_<KEY> mapping.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"inference.endpoint", "WILDWATCH_INFERENCE_ENDPOINT", validateEnvURL},
		{"inference.timeout", "WILDWATCH_INFERENCE_TIMEOUT", validateEnvDuration},
		{"reporting.endpoint", "WILDWATCH_REPORTING_ENDPOINT", validateEnvURL},
		{"reporting.userid", "WILDWATCH_REPORTING_USERID", nil},
		{"session.sampleinterval", "WILDWATCH_SESSION_SAMPLEINTERVAL", validateEnvDuration},
		{"session.cooldown", "WILDWATCH_SESSION_COOLDOWN", validateEnvDuration},
		{"session.minconfidence", "WILDWATCH_SESSION_MINCONFIDENCE", validateEnvConfidence},
		{"camera.device", "WILDWATCH_CAMERA_DEVICE", nil},
		{"photostore.accesskey", "WILDWATCH_PHOTOSTORE_ACCESSKEY", nil},
		{"photostore.secretkey", "WILDWATCH_PHOTOSTORE_SECRETKEY", nil},
		{"mqtt.password", "WILDWATCH_MQTT_PASSWORD", nil},
		{"sentry.dsn", "WILDWATCH_SENTRY_DSN", nil},
		{"debug", "WILDWATCH_DEBUG", validateEnvBool},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}
		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value: %v", binding.EnvVar, err))
			}
		}
	}

	if len(warnings) > 0 {
		return errors.Newf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - ")).
			Component("config").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// configureEnvironmentVariables maps WILDWATCH_* variables onto config keys.
func configureEnvironmentVariables() error {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	return bindEnvVars()
}

// LoadDotEnv loads variables from .env files that exist. Variables already set in the
// environment win. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return errors.New(err).
			Component("config").
			Category(errors.CategoryConfiguration).
			Context("operation", "load_dotenv").
			Build()
	}
	GetLogger().Debug("loaded .env files", logger.Int("count", len(existing)))
	return nil
}

// Environment variable validation functions

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value %q", value)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid duration %q", value)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", d)
	}
	return nil
}

func validateEnvConfidence(value string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", value)
	}
	if f < 0 || f > 1 {
		return fmt.Errorf("confidence must be between 0 and 1, got %v", f)
	}
	return nil
}

func validateEnvURL(value string) error {
	return checkHTTPURL(strings.TrimSpace(value))
}

func checkHTTPURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL %q has no host", logger.RedactURL(value))
	}
	return nil
}
