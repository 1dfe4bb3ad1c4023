package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashForLogging(t *testing.T) {
	h := HashForLogging("user@x.com")
	assert.Len(t, h, 8)
	assert.NotContains(t, h, "@")
	assert.Equal(t, h, HashForLogging("user@x.com"), "stable for correlation")
	assert.NotEqual(t, h, HashForLogging("other@x.com"))
	assert.Equal(t, "NONE", HashForLogging(""))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@x.com", NormalizeEmail("  USER@X.com "))
	assert.Equal(t, "", NormalizeEmail("   "))
}
