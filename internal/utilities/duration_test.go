package utilities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("90")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = ParseDuration(" 1m30s ")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = ParseDuration("")
	assert.Error(t, err)
	_, err = ParseDuration("soon")
	assert.Error(t, err)
}

func TestDurationOrDefault(t *testing.T) {
	assert.Equal(t, time.Minute, DurationOrDefault("", time.Minute))
	assert.Equal(t, time.Minute, DurationOrDefault("bogus", time.Minute))
	assert.Equal(t, time.Minute, DurationOrDefault("-5", time.Minute))
	assert.Equal(t, 5*time.Second, DurationOrDefault("5", time.Minute))
	assert.Equal(t, 250*time.Millisecond, DurationOrDefault("250ms", time.Minute))
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "", MaskToken(""))
	assert.Equal(t, "abcdefgh", MaskToken("abcdefgh"))
	assert.Equal(t, "abcdefgh...", MaskToken("abcdefghi"))
}
