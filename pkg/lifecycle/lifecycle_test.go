package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicy_RoundTrip(t *testing.T) {
	for _, p := range []StartPolicy{Eager, Lazy, OnAppLaunch, Manual} {
		got, err := ParsePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := ParsePolicy("sometimes")
	assert.Error(t, err)
}

func TestSelector_Matches(t *testing.T) {
	assert.True(t, All().Matches("clock", Eager))
	assert.True(t, Named("clock").Matches("clock", Lazy))
	assert.False(t, Named("clock").Matches("echo", Lazy))
	assert.True(t, ByPolicy(Lazy).Matches("echo", Lazy))
	assert.False(t, ByPolicy(Lazy).Matches("echo", Eager))
}

func TestControl_String(t *testing.T) {
	assert.Equal(t, "restart policy:manual", Control{Op: OpRestart, Target: ByPolicy(Manual)}.String())
	assert.Equal(t, "stopped", Stopped.String())
}
