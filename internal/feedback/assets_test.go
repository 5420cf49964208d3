package feedback

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAssets(t *testing.T, files ...string) string {
	t.Helper()

	dir := t.TempDir()
	for _, f := range files {
		path := filepath.Join(dir, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
	return dir
}

func TestAssets_Discover(t *testing.T) {
	dir := writeAssets(t,
		"sounds/up.mp3",
		"sounds/toleft.wav",
		"sounds/notes.txt",
		"images/up.png",
		"images/Completed.png",
		"images/Neutral.png",
		"images/big jump.jpg",
	)

	assets := NewAssets(dir)
	require.NoError(t, assets.Discover())

	assert.Equal(t, []string{"toleft", "up"}, assets.Sounds())
	assert.Equal(t, []string{"Completed", "Neutral", "big jump", "up"}, assets.Images())

	path, ok := assets.Sound("up")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "sounds", "up.mp3"), path)

	_, ok = assets.Sound("notes")
	assert.False(t, ok, "non-audio files are ignored")

	_, ok = assets.Image("toleft")
	assert.False(t, ok)

	u, err := assets.ImageURL("big jump")
	require.NoError(t, err)
	assert.Equal(t, "/assets/images/big%20jump.jpg", u)

	_, err = assets.ImageURL("missing")
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestAssets_FirstExtensionWins(t *testing.T) {
	dir := writeAssets(t, "sounds/up.mp3", "sounds/up.wav")

	assets := NewAssets(dir)
	require.NoError(t, assets.Discover())

	path, ok := assets.Sound("up")
	require.True(t, ok)
	assert.Equal(t, "up.mp3", filepath.Base(path))
}

func TestAssets_MissingDirectory(t *testing.T) {
	assets := NewAssets(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, assets.Discover())

	assert.Empty(t, assets.Sounds())
	assert.Empty(t, assets.Images())
}

func TestAssets_Rediscover(t *testing.T) {
	dir := writeAssets(t, "images/up.png")
	assets := NewAssets(dir)
	require.NoError(t, assets.Discover())

	require.NoError(t, os.Remove(filepath.Join(dir, "images", "up.png")))
	require.NoError(t, assets.Discover())

	_, ok := assets.Image("up")
	assert.False(t, ok)
	assert.Equal(t, dir, assets.Dir())
}
