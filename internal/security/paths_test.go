package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWithin(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sunset.png"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "night"), 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "escape")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "night"), filepath.Join(dir, "dark")))

	root, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"sunset.png", filepath.Join(root, "sunset.png"), true},
		{"night/stars.png", filepath.Join(root, "night", "stars.png"), true},
		{"dark/stars.png", filepath.Join(root, "night", "stars.png"), true},
		{"missing/deeper/file.png", filepath.Join(root, "missing", "deeper", "file.png"), true},
		{"night/../sunset.png", filepath.Join(root, "sunset.png"), true},
		{"../sunset.png", "", false},
		{"night/../../x.png", "", false},
		{"escape/x.png", "", false},
		{"/etc/passwd", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveWithin(dir, tt.name)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrOutsideDir)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveWithinMissingDir(t *testing.T) {
	_, err := ResolveWithin(filepath.Join(t.TempDir(), "nope"), "a.png")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrOutsideDir)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"evening glow":     "evening_glow",
		"../../etc/passwd": "etc_passwd",
		"a  b//c":          "a_b_c",
		"":                 "unknown",
		"...":              "unknown",
		"snap-01.json":     "snap-01.json",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}
