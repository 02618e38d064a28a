package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/askiada/gdcpq/internal/config"
)

func TestNewCommand(t *testing.T) {
	t.Parallel()

	cmd, err := newCommand("")
	require.NoError(t, err)
	require.NotNil(t, cmd)
}

func TestNewCommandInvalidConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gdcpq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 0\n"), 0o600))

	_, err := newCommand(path)
	require.ErrorIs(t, err, config.ErrInvalid)
}
