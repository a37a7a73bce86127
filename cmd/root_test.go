package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/wildwatch-go/internal/buildinfo"
	"github.com/tphakala/wildwatch-go/internal/conf"
)

func execute(t *testing.T, args ...string) (*conf.Settings, string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	settings := &conf.Settings{}
	root := RootCommand(settings, buildinfo.New("1.2.3", "2026-10-17"))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return settings, out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestVersionFlag(t *testing.T) {
	_, out, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "1.2.3 (built 2026-10-17")
}

func TestConfigInitSkipsLoading(t *testing.T) {
	broken := writeConfig(t, "session: [not a map")
	target := filepath.Join(t.TempDir(), "wildwatch", "config.yaml")

	_, out, err := execute(t, "--config", broken, "config", "init", target)
	require.NoError(t, err)
	assert.Contains(t, out, target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "inference:")

	_, _, err = execute(t, "config", "init", target)
	require.Error(t, err, "existing files are not overwritten")
}

func TestConfigValidate(t *testing.T) {
	path := writeConfig(t, "reporting:\n  userid: ranger-3\n")
	settings, out, err := execute(t, "--config", path, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid ("+path+")")
	assert.Equal(t, "ranger-3", settings.Reporting.UserID)

	bad := writeConfig(t, "session:\n  minconfidence: 2\n")
	_, _, err = execute(t, "--config", bad, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session.minconfidence")
}

func TestConfigShowMasksSecrets(t *testing.T) {
	path := writeConfig(t, "mqtt:\n  password: hunter2\nphotostore:\n  secretkey: s3cr3t\n")
	_, out, err := execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# loaded from "+path)
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "s3cr3t")
}

func TestFlagsOverrideConfigForExecutingCommand(t *testing.T) {
	path := writeConfig(t, "reporting:\n  userid: from-file\n")
	missing := filepath.Join(t.TempDir(), "missing.jpg")

	settings, _, err := execute(t, "--config", path, "detect", "--user", "from-flag", missing)
	require.Error(t, err, "the file does not exist")
	assert.Equal(t, "from-flag", settings.Reporting.UserID)
	assert.False(t, settings.Debug)

	settings, _, err = execute(t, "--config", path, "--debug", "config", "validate")
	require.NoError(t, err)
	assert.Equal(t, "from-file", settings.Reporting.UserID)
	assert.True(t, settings.Debug)
}

func TestNotifyRequiresURLs(t *testing.T) {
	path := writeConfig(t, "notification:\n  enabled: false\n")
	_, _, err := execute(t, "--config", path, "notify")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no notification URLs configured")
}
