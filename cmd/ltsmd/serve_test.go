package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ltsm-go/ltsmcore/config"
	"github.com/ltsm-go/ltsmcore/internal/protocol"
)

func TestBuildAuthenticatorsDefaultsToNone(t *testing.T) {
	auths, err := buildAuthenticators(&config.Config{})
	require.NoError(t, err)
	require.Len(t, auths, 1)
	require.IsType(t, protocol.NoneAuthenticator{}, auths[0])
}

func TestBuildAuthenticatorsWithPasswordFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passwd")
	require.NoError(t, os.WriteFile(path, []byte("hunter2\n"), 0o600))

	cfg := &config.Config{Security: config.Security{PasswordFile: path}}
	auths, err := buildAuthenticators(cfg)
	require.NoError(t, err)
	require.Len(t, auths, 1)
	require.IsType(t, protocol.VNCAuthenticator{}, auths[0])
}

func TestBuildAuthenticatorsWithMissingPasswordFileErrors(t *testing.T) {
	cfg := &config.Config{Security: config.Security{PasswordFile: "/nonexistent/passwd"}}
	_, err := buildAuthenticators(cfg)
	require.Error(t, err)
}
