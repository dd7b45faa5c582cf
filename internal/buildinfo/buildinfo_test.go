package buildinfo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString_ContainsProgramName(t *testing.T) {
	s := String("listmode-core")
	assert.True(t, strings.HasPrefix(s, "listmode-core - version "))
}

func TestVersionOrUnknown_DefaultsWhenUnset(t *testing.T) {
	old := Version
	defer func() { Version = old }()

	Version = ""
	assert.Equal(t, "unknown", versionOrUnknown())

	Version = "v1.2.3"
	assert.Equal(t, "v1.2.3", versionOrUnknown())
}
