package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	req.NoError(err)
	req.Equal("data", cfg.DataDir)
	req.Equal("id", cfg.IDColumn)
	req.Equal("phone", cfg.PhoneColumn)
	req.Equal(10*time.Second, cfg.LockTimeout)
	req.Equal(6*time.Hour, cfg.TemplateCacheTTL)
	req.False(cfg.EnableWhatsApp)
	req.Equal(filepath.Join("data", "workbook.db"), cfg.WorkbookPath())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())
	t.Setenv("ID_COLUMN", "學員代號")
	t.Setenv("PHONE_COLUMN", "手機")
	t.Setenv("LOCK_TIMEOUT", "3s")
	t.Setenv("ENABLE_WHATSAPP", "true")

	cfg, err := LoadConfig()
	req.NoError(err)
	req.Equal("學員代號", cfg.IDColumn)
	req.Equal("手機", cfg.PhoneColumn)
	req.Equal(3*time.Second, cfg.LockTimeout)
	req.True(cfg.EnableWhatsApp)
}

func TestLoadConfigRejectsZeroLockTimeout(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LOCK_TIMEOUT", "0s")

	_, err := LoadConfig()
	require.Error(t, err)
}
