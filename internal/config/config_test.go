package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "gs_", cfg.Control.Prefix)
	assert.Equal(t, 60, cfg.Show.PollAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Show.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.Show.PilotTimeout)
	assert.Equal(t, "memory", cfg.Ledger.Driver)
	assert.Equal(t, 5, cfg.Gateway.AttemptLimit)
	assert.False(t, cfg.SecureCookies)
}

func TestLoad_Layers(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
port: 9000
mode: debug
gateway:
  single_ip: true
  ack_grace: 3s
show:
  name: Bugs
  card_timeout: 45s
obs:
  enabled: true
  address: obs.local:4455
`), 0o600))
	t.Setenv("HOTSEAT_SHOW_NAME", "FromEnv")
	t.Setenv("HOTSEAT_CONTROL_SECRET", "s3cret")

	cfg, err := Load([]string{"--config", file, "--port", "9100"})
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port, "flag wins over file")
	assert.Equal(t, "debug", cfg.Mode)
	assert.True(t, cfg.Gateway.SingleIP)
	assert.Equal(t, 3*time.Second, cfg.Gateway.AckGrace)
	assert.Equal(t, "FromEnv", cfg.Show.Name, "env wins over file")
	assert.Equal(t, 45*time.Second, cfg.Show.CardTimeout)
	assert.Equal(t, "s3cret", cfg.Control.Secret)
	assert.True(t, cfg.OBS.Enabled)
	assert.Equal(t, "obs.local:4455", cfg.OBS.Address)
}

func TestLoad_BadFlag(t *testing.T) {
	_, err := Load([]string{"--no-such-flag"})
	assert.Error(t, err)
}
