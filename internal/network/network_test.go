package network

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	n := Default()
	assert.Len(t, n.Groups, 4)
	assert.Contains(t, n.Groups, "Casual users")
	assert.NotEmpty(t, n.Biography)
}

func TestLoadEmptyPathFallsBack(t *testing.T) {
	n, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Groups, n.Groups)
}

func TestLoadOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"biography": "a tiny test network",
		"groups": {"Testers": "people who test things"}
	}`), 0o600))

	n, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "a tiny test network", n.Biography)
	assert.Equal(t, map[string]string{"Testers": "people who test things"}, n.Groups)
}

func TestLoadMissingBiographyKeepsDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"groups": {"Testers": "testing"}}`), 0o600))

	n, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Biography, n.Biography)
}

func TestLoadRejectsEmptyGroups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"biography": "empty"}`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
