package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	v, sha, built := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = v, sha, built })

	assert.Equal(t, "dev (unknown, built unknown)", String())

	Version, GitSHA, BuildTime = "v0.3.1", "0123456789abcdef0123", "2026-10-01T12:00:00Z"
	assert.Equal(t, "v0.3.1 (0123456789ab, built 2026-10-01T12:00:00Z)", String())
}
