package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driftlock/driftlock/internal/state"
)

func TestCacheHasAndLen(t *testing.T) {
	c := NewCache(&state.ObjectCache{Files: []string{"a", "b", "a"}})
	assert.True(t, c.Has("a"))
	assert.True(t, c.Has("b"))
	assert.False(t, c.Has("c"))
	assert.Equal(t, 2, c.Len())
}
