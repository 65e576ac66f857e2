package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/arzzra/incallui/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile = ""
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "incallui "+version)
}

func TestConfigCmd_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incallui.yaml")
	data := []byte("sip:\n  contact_user: bob\n  listen_addr: 127.0.0.1:5070\nfeatures:\n  auto_answer: true\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	out, err := execute(t, "--config", path, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "contact_user: bob")
	assert.Contains(t, out, "listen_addr: 127.0.0.1:5070")
	assert.Contains(t, out, "auto_answer: true")
}

func TestConfigCmd_Env(t *testing.T) {
	t.Setenv("INCALLUI_SIP_CONTACT_USER", "carol")
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o600))

	out, err := execute(t, "--config", path, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "contact_user: carol")
}

func TestConfigCmd_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: xml\n"), 0o600))

	_, err := execute(t, "--config", path, "config")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestConfigCmd_MissingFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "config")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Format = "json"
	cfg.Log.Level = "debug"

	var buf bytes.Buffer
	newLogger(cfg, &buf).Debug("hello", "k", "v")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "v", rec["k"])

	buf.Reset()
	cfg.Log.Format = "text"
	cfg.Log.Level = "warn"
	logger := newLogger(cfg, &buf)
	logger.Info("skipped")
	logger.Warn("kept")
	assert.NotContains(t, buf.String(), "skipped")
	assert.Contains(t, buf.String(), "msg=kept")
}
