package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndicators(t *testing.T) {
	ind := NewIndicators()

	assert.True(t, ind.Start("client-b", "Bob"))
	assert.False(t, ind.Start("client-b", "Bob"), "duplicate start is a no-op")
	assert.True(t, ind.Start("client-a", "Alice"))

	assert.Equal(t, []Peer{
		{Identity: "client-a", DisplayName: "Alice"},
		{Identity: "client-b", DisplayName: "Bob"},
	}, ind.Active())

	assert.True(t, ind.Stop("client-b"))
	assert.False(t, ind.Stop("client-b"))

	assert.Equal(t, []string{"client-a"}, ind.Clear())
	assert.Empty(t, ind.Active())
}
