package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoString(t *testing.T) {
	assert.Equal(t, "(devel)", Info{}.String())
	assert.Equal(t, "v1.2.0", Info{Version: "v1.2.0"}.String())
	assert.Equal(t, "(devel) (0123456789ab)", Info{Revision: shorten("0123456789abcdef")}.String())
	assert.Equal(t, "v1.2.0 (abc-dirty)", Info{Version: "v1.2.0", Revision: "abc", Modified: true}.String())
}

func TestDetectDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() { _ = Detect().String() })
}
