package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ltsm-go/ltsmcore/internal/codec"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ltsmd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 4\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":5900", cfg.Listen)
	require.EqualValues(t, 1280, cfg.Desktop.Width)
	require.EqualValues(t, 800, cfg.Desktop.Height)
	require.Equal(t, "ltsm", cfg.DesktopName)
	require.Equal(t, 4, cfg.Workers)
}

func TestLoadParsesFullConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ltsmd.yaml")
	yaml := `
listen: ":5901"
desktop_name: "my-desktop"
desktop:
  width: 1920
  height: 1080
workers: 8
tile_size: 32
codec_priority: ["zrle", "raw"]
security:
  password_file: /etc/ltsmd/passwd
  vencrypt:
    cert_file: /etc/ltsmd/tls.crt
    key_file: /etc/ltsmd/tls.key
  gssapi:
    keytab_file: /etc/ltsmd/ltsmd.keytab
    spn: "ltsmd/host@REALM"
    realm: "REALM"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":5901", cfg.Listen)
	require.EqualValues(t, 1920, cfg.Desktop.Width)
	require.Equal(t, "/etc/ltsmd/passwd", cfg.Security.PasswordFile)
	require.Equal(t, "/etc/ltsmd/tls.crt", cfg.Security.VeNCrypt.CertFile)
	require.Equal(t, "REALM", cfg.Security.GSSAPI.Realm)

	ids, err := cfg.ResolveCodecPriority()
	require.NoError(t, err)
	require.Equal(t, []codec.ID{codec.ZRLE, codec.Raw}, ids)
}

func TestResolveCodecPriorityRejectsUnknownName(t *testing.T) {
	cfg := &Config{CodecPriority: []string{"bogus"}}
	_, err := cfg.ResolveCodecPriority()
	require.Error(t, err)
}

func TestLoadPasswordsSkipsBlankLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passwd")
	require.NoError(t, os.WriteFile(path, []byte("hunter2\n\nswordfish\r\n"), 0o600))

	pws, err := LoadPasswords(path)
	require.NoError(t, err)
	require.Equal(t, []string{"hunter2", "swordfish"}, pws)
}
