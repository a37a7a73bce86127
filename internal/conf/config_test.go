package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/wildwatch-go/internal/errors"
)

// resetViper isolates tests that go through the global viper instance.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	resetViper(t)
	path := writeConfig(t, "reporting:\n  userid: ranger-7\n")

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ranger-7", s.Reporting.UserID)
	assert.Equal(t, 2*time.Second, s.Session.SampleInterval)
	assert.Equal(t, 10*time.Second, s.Session.Cooldown)
	assert.Equal(t, 10*time.Second, s.Inference.Timeout)
	assert.InDelta(t, 0.30, s.Session.MinConfidence, 1e-9)
	assert.Equal(t, "ffmpeg", s.Camera.Kind)
	assert.Equal(t, 1280, s.Camera.Width)
	assert.Equal(t, "info", s.Logging.DefaultLevel)
	require.NotNil(t, s.Logging.Console)
	assert.True(t, s.Logging.Console.Enabled)
	assert.Same(t, s, GetSettings())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	resetViper(t)
	path := writeConfig(t, `
session:
  sampleinterval: 500ms
  cooldown: 1m
  minconfidence: 0.5
camera:
  kind: still
  device: testdata/fox.jpg
notification:
  enabled: true
  urls:
    - logger://
  minurgency: high
`)

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, s.Session.SampleInterval)
	assert.Equal(t, time.Minute, s.Session.Cooldown)
	assert.Equal(t, "still", s.Camera.Kind)
	assert.Equal(t, []string{"logger://"}, s.Notification.URLs)
	assert.Equal(t, "high", s.Notification.MinUrgency)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	resetViper(t)
	path := writeConfig(t, "reporting:\n  userid: from-file\n")
	t.Setenv("WILDWATCH_REPORTING_USERID", "from-env")
	t.Setenv("WILDWATCH_SESSION_COOLDOWN", "45s")
	t.Setenv("WILDWATCH_MQTT_TOPICPREFIX", "yard")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", s.Reporting.UserID)
	assert.Equal(t, 45*time.Second, s.Session.Cooldown)
	assert.Equal(t, "yard", s.MQTT.TopicPrefix)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	resetViper(t)
	path := writeConfig(t, `
inference:
  endpoint: ftp://models.example
session:
  minconfidence: 1.5
camera:
  kind: webcam
  quality: 0
mqtt:
  qos: 3
notification:
  enabled: true
`)

	_, err := Load(path)
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 6)
	assert.Contains(t, err.Error(), "inference.endpoint")
	assert.Contains(t, err.Error(), "session.minconfidence")
	assert.Contains(t, err.Error(), "camera.kind")
	assert.Contains(t, err.Error(), "camera.quality")
	assert.Contains(t, err.Error(), "mqtt.qos")
	assert.Contains(t, err.Error(), "notification.urls")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	resetViper(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestEmbeddedDefaultConfigLoads(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	err := WriteDefaultConfig(path)
	require.Error(t, err, "existing files are kept")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8089", s.WebServer.Listen)
	assert.Equal(t, 24*time.Hour, s.Species.CacheTTL)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	resetViper(t)
	path := writeConfig(t, "reporting:\n  userid: ranger-1\n")
	s, err := Load(path)
	require.NoError(t, err)

	s.Session.Cooldown = 25 * time.Second
	s.MQTT.Enabled = true
	s.MQTT.Broker = "tcp://broker.local:1883"
	require.NoError(t, SaveYAMLConfig(path, s))

	viper.Reset()
	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25*time.Second, reloaded.Session.Cooldown)
	assert.True(t, reloaded.MQTT.Enabled)
	assert.Equal(t, "tcp://broker.local:1883", reloaded.MQTT.Broker)
	assert.Equal(t, "ranger-1", reloaded.Reporting.UserID)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("WILDWATCH_TEST_DOTENV=loaded\nWILDWATCH_TEST_PRESET=file\n"), 0o600))
	t.Setenv("WILDWATCH_TEST_PRESET", "process")
	t.Cleanup(func() { _ = os.Unsetenv("WILDWATCH_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), envFile))
	assert.Equal(t, "loaded", os.Getenv("WILDWATCH_TEST_DOTENV"))
	assert.Equal(t, "process", os.Getenv("WILDWATCH_TEST_PRESET"), "existing variables win")

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "none.env")))
}

func TestBindEnvVarsReportsInvalidValues(t *testing.T) {
	resetViper(t)
	t.Setenv("WILDWATCH_SESSION_MINCONFIDENCE", "1.5")
	t.Setenv("WILDWATCH_INFERENCE_ENDPOINT", "localhost:8000")
	t.Setenv("WILDWATCH_DEBUG", "maybe")

	err := bindEnvVars()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WILDWATCH_SESSION_MINCONFIDENCE")
	assert.Contains(t, err.Error(), "WILDWATCH_INFERENCE_ENDPOINT")
	assert.Contains(t, err.Error(), "WILDWATCH_DEBUG")
}

func TestEnvValidators(t *testing.T) {
	tests := []struct {
		name     string
		validate func(string) error
		value    string
		wantErr  bool
	}{
		{"bool", validateEnvBool, " true ", false},
		{"bool yes", validateEnvBool, "yes", true},
		{"duration", validateEnvDuration, "2s", false},
		{"duration zero", validateEnvDuration, "0s", true},
		{"duration garbage", validateEnvDuration, "soon", true},
		{"confidence", validateEnvConfidence, "0.3", false},
		{"confidence high", validateEnvConfidence, "1.01", true},
		{"url", validateEnvURL, "https://api.example/detect", false},
		{"url scheme", validateEnvURL, "ws://api.example", true},
		{"url host", validateEnvURL, "http:///detect", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.validate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
