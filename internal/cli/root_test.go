package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		out, _, err := executeCommand(t, nil, "--version")
		require.NoError(t, err)

		assert.Contains(t, out, "lineapi version")
		assert.Contains(t, out, GetVersion())
	})

	t.Run("help flag", func(t *testing.T) {
		out, _, err := executeCommand(t, nil, "--help")
		require.NoError(t, err)

		assert.Contains(t, out, "LINE webhook deliveries")
		for _, name := range []string{"serve", "push", "sign", "flex", "configure", "status", "stop", "version"} {
			assert.Contains(t, out, name)
		}
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := GetRootCmd()

		configFlag := cmd.PersistentFlags().Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "", configFlag.DefValue)

		logLevelFlag := cmd.PersistentFlags().Lookup("log-level")
		require.NotNil(t, logLevelFlag)
		assert.Equal(t, "", logLevelFlag.DefValue)
	})

	t.Run("commands exist", func(t *testing.T) {
		cmd := GetRootCmd()
		for _, name := range []string{"serve", "push", "sign", "flex", "configure", "status", "stop", "version"} {
			assert.True(t, hasCommand(cmd, name), "%s command should exist", name)
		}
	})
}

func TestVersionCommand(t *testing.T) {
	out, _, err := executeCommand(t, nil, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "lineapi "+GetVersion()))
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	assert.NotEmpty(t, version)
	assert.True(t, strings.HasPrefix(version, "0."))
}

func TestLoadConfigLogLevelOverride(t *testing.T) {
	isolate(t)
	cfgFile = ""
	logLevel = "debug"
	t.Cleanup(func() { logLevel = "" })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestGetPIDFilePath(t *testing.T) {
	dir := isolate(t)
	path := getPIDFilePath()
	assert.True(t, strings.HasPrefix(path, dir))
	assert.True(t, strings.HasSuffix(path, "lineapi.pid"))
}
