package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShardKeyRoundTrip(t *testing.T) {
	for _, component := range []string{"", "A", "A/B", "deep/sub dir"} {
		key := ShardKey(component)
		assert.NotContains(t, key, "/")
		assert.NotContains(t, key, "+")

		back, err := ShardComponent(key)
		require.NoError(t, err)
		assert.Equal(t, component, back)
	}
}

func TestShardKeyRootIsStable(t *testing.T) {
	assert.Equal(t, ShardKey(""), ShardKey(""))
}
