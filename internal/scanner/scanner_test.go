// file: internal/scanner/scanner_test.go
// version: 2.0.0
// guid: 5c1a2b3c-4d5e-6f7a-8b9c-0d1e2f3a4b5c

package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jdfalk/beat-organizer/internal/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var exts = []string{".wav", ".flac", ".mp3"}

func writeTree(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		path := filepath.Join(dir, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
	return dir
}

func TestDiscover_FiltersAndSorts(t *testing.T) {
	dir := writeTree(t,
		"kicks/kick.WAV",
		"kicks/kick.txt",
		"snares/deep/snare.flac",
		"loop.mp3",
		"notes.md",
		".trash/old.wav",
		"kicks/.hidden.wav",
	)

	got, err := Discover(context.Background(), dir, Options{Extensions: exts, Workers: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "kicks", "kick.WAV"),
		filepath.Join(dir, "loop.mp3"),
		filepath.Join(dir, "snares", "deep", "snare.flac"),
	}, got)
}

func TestDiscover_IncludeHidden(t *testing.T) {
	dir := writeTree(t, ".trash/old.wav", "a/.b.wav")
	got, err := Discover(context.Background(), dir, Options{Extensions: exts, IncludeHidden: true})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestDiscover_SingleFile(t *testing.T) {
	dir := writeTree(t, "one.wav", "one.txt")

	got, err := Discover(context.Background(), filepath.Join(dir, "one.wav"), Options{Extensions: exts})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "one.wav")}, got)

	got, err = Discover(context.Background(), filepath.Join(dir, "one.txt"), Options{Extensions: exts})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDiscover_MissingRoot(t *testing.T) {
	_, err := Discover(context.Background(), filepath.Join(t.TempDir(), "nope"), Options{Extensions: exts})
	assert.ErrorIs(t, err, failure.ErrInvalidConfig)
}

func TestDiscover_Canceled(t *testing.T) {
	dir := writeTree(t, "a/1.wav", "b/2.wav")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Discover(ctx, dir, Options{Extensions: exts})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSupported(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"a.wav", true},
		{"A.FLAC", true},
		{"a.wav.bak", false},
		{"noext", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Supported(tt.path, exts))
		})
	}
}
