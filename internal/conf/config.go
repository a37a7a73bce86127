// config.go: settings for the wildwatch application and functions to load and save them.
package conf

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/wildwatch-go/internal/errors"
	"github.com/tphakala/wildwatch-go/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// InferenceSettings configures the remote detection service.
type InferenceSettings struct {
	Endpoint      string        // multipart POST endpoint returning candidates
	Model         string        // optional model name forwarded to the service
	Timeout       time.Duration // per-request timeout for live frames
	UploadTimeout time.Duration // per-request timeout for uploaded media
}

// ReportingSettings configures the sighting report backend.
type ReportingSettings struct {
	Endpoint string        // JSON POST endpoint for reports
	UserID   string        // reporter identity attached to every report
	Timeout  time.Duration // report submission timeout
}

// SessionSettings tunes the live session.
type SessionSettings struct {
	SampleInterval         time.Duration // time between sampler ticks
	Cooldown               time.Duration // pause after a successful report
	MinConfidence          float64       // floor for the winning candidate, 0.0-1.0
	MinConditionConfidence float64       // condition confidence floor, 0-100, 0 disables
}

// CameraSettings selects and configures the frame source.
type CameraSettings struct {
	Kind         string  // "ffmpeg" or "still"
	Device       string  // /dev/video0, rtsp:// URL, or image path for "still"
	InputFormat  string  // ffmpeg demuxer, empty to probe
	FFmpegPath   string  // path to ffmpeg, empty to search PATH
	Width        int     // frame width after normalisation
	Height       int     // frame height after normalisation
	FrameRate    float64 // frames per second requested from ffmpeg
	Quality      int     // JPEG quality 1-100
	StartTimeout time.Duration
}

// SpeciesSettings configures the species metadata cache.
type SpeciesSettings struct {
	CatalogPath string        // optional YAML catalog preloaded at startup
	CacheTTL    time.Duration // lifetime of species info learned from responses
}

// PhotoStoreSettings configures S3 compatible storage for captured photos.
type PhotoStoreSettings struct {
	Enabled   bool
	Endpoint  string // host:port of the S3 API
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
	PublicURL string // prefix turning object keys into URLs
}

// NotificationSettings configures sighting alerts to administrators.
type NotificationSettings struct {
	Enabled           bool
	URLs              []string // shoutrrr service URLs
	MinUrgency        string   // low, medium or high
	RequestsPerMinute int
	Burst             int
	Timeout           time.Duration
	TitleTemplate     string
	MessageTemplate   string
}

// MQTTSettings contains settings for MQTT integration.
type MQTTSettings struct {
	Enabled     bool   // true to enable MQTT
	Broker      string // MQTT (tcp://host:port)
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string
	QoS         int
	Retain      bool
}

// WebServerSettings configures the control API.
type WebServerSettings struct {
	Enabled bool
	Listen  string // address and port, e.g. 127.0.0.1:8089
	Metrics bool   // expose /metrics
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// Settings contains all configuration options for wildwatch.
type Settings struct {
	Debug bool

	Logging      logger.LoggingConfig
	Inference    InferenceSettings
	Reporting    ReportingSettings
	Session      SessionSettings
	Camera       CameraSettings
	Species      SpeciesSettings
	PhotoStore   PhotoStoreSettings
	Notification NotificationSettings
	MQTT         MQTTSettings
	WebServer    WebServerSettings
	Sentry       SentrySettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads defaults, the configuration file and environment variables. configFile
// may be empty to search the default paths; a missing file leaves the defaults in place.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("config").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper registers defaults and environment bindings and reads the config file.
func initViper(configFile string) error {
	viper.SetConfigType("yaml")
	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		// invalid env values are reported, the config file still loads
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return err
		}
		for _, path := range configPaths {
			viper.AddConfigPath(path)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			GetLogger().Info("no config file found, using defaults and environment")
			return nil
		}
		return errors.New(err).
			Component("config").
			Category(errors.CategoryConfiguration).
			Context("operation", "read_config").
			Context("file", configFile).
			Build()
	}
	GetLogger().Debug("config file loaded", logger.String("path", viper.ConfigFileUsed()))
	return nil
}

// DefaultConfigYAML returns the annotated default configuration file.
func DefaultConfigYAML() ([]byte, error) {
	return fs.ReadFile(configFiles, "config.yaml")
}

// WriteDefaultConfig writes the annotated default configuration to path, creating
// parent directories. Existing files are not overwritten.
func WriteDefaultConfig(path string) error {
	data, err := DefaultConfigYAML()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return errors.Newf("config file already exists: %s", path).
			Component("config").
			Category(errors.CategoryFileIO).
			Build()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(err).
			Component("config").
			Category(errors.CategoryFileIO).
			Context("operation", "create_config_dir").
			Build()
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.New(err).
			Component("config").
			Category(errors.CategoryFileIO).
			Context("operation", "write_default_config").
			Build()
	}
	return nil
}

// GetSettings returns the last loaded settings instance.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath. It overwrites the existing file, not
// preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return errors.New(err).
			Component("config").
			Category(errors.CategoryConfiguration).
			Context("operation", "marshal_yaml").
			Build()
	}

	// temp file plus rename keeps the write atomic
	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return errors.New(err).Component("config").Category(errors.CategoryFileIO).Build()
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return errors.New(err).Component("config").Category(errors.CategoryFileIO).Build()
	}
	if err := tempFile.Close(); err != nil {
		return errors.New(err).Component("config").Category(errors.CategoryFileIO).Build()
	}
	if err := os.Chmod(tempFileName, 0o600); err != nil {
		return errors.New(err).Component("config").Category(errors.CategoryFileIO).Build()
	}
	if err := os.Rename(tempFileName, configPath); err != nil {
		return errors.New(err).
			Component("config").
			Category(errors.CategoryFileIO).
			Context("operation", "replace_config").
			Build()
	}
	return nil
}

// Redacted returns a copy of the settings with secrets masked, suitable for printing.
func (s *Settings) Redacted() Settings {
	c := *s
	mask := func(v string) string {
		if v == "" {
			return ""
		}
		return "[REDACTED]"
	}
	c.PhotoStore.SecretKey = mask(c.PhotoStore.SecretKey)
	c.MQTT.Password = mask(c.MQTT.Password)
	c.Sentry.DSN = mask(c.Sentry.DSN)
	c.Camera.Device = logger.RedactURL(c.Camera.Device)
	if len(s.Notification.URLs) > 0 {
		c.Notification.URLs = make([]string, len(s.Notification.URLs))
		for i, u := range s.Notification.URLs {
			c.Notification.URLs[i] = logger.RedactURL(u)
		}
	}
	return c
}
