package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	oldV, oldSHA, oldT := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = oldV, oldSHA, oldT })

	Version, GitSHA, BuildTime = "1.2.0", "0123456789abcdef", "2026-01-07T17:31:29Z"
	assert.Equal(t, "depthsync 1.2.0 (0123456789ab, built 2026-01-07T17:31:29Z)", String())
	assert.Equal(t, Info{Version: "1.2.0", GitSHA: "0123456789abcdef", BuildTime: "2026-01-07T17:31:29Z"}, Get())

	GitSHA = "abc"
	assert.Contains(t, String(), "(abc,")
}
