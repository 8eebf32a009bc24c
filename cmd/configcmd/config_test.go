package configcmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetPath(t *testing.T) {
	t.Parallel()

	path, err := targetPath([]string{"a.yaml"}, "b.yaml")
	require.NoError(t, err)
	assert.Equal(t, "a.yaml", path)

	path, err = targetPath(nil, "b.yaml")
	require.NoError(t, err)
	assert.Equal(t, "b.yaml", path)
}

func TestInitCommandWritesDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	configFile := ""

	cmd := initCommand(&configFile)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "transport:")

	cmd = initCommand(&configFile)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{path})
	require.Error(t, cmd.Execute(), "existing file needs --force")

	cmd = initCommand(&configFile)
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--force", path})
	require.NoError(t, cmd.Execute())
}
