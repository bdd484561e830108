package biz

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensAtThreshold(t *testing.T) {
	br := NewCountryBreaker("ESP", 1, 3)
	br.EnterLevel(1)

	require.NoError(t, br.Failure(errors.New("boom 1"), ""))
	require.NoError(t, br.Failure(errors.New("boom 2"), ""))
	err := br.Failure(errors.New("boom 3"), `{"error":{"code":500}}`)
	require.Error(t, err, "third consecutive failure must trip the breaker")

	var boe *BreakerOpenError
	require.ErrorAs(t, err, &boe)
	assert.Equal(t, "ESP", boe.Country)
	assert.Equal(t, 1, boe.Level)
	assert.Equal(t, 3, boe.Attempts)
	assert.Contains(t, boe.LastErr, "boom 3")
	assert.Contains(t, boe.RawLast, `"code":500`)
	assert.True(t, br.Open())
	assert.Equal(t, 1, br.OpenLevel())
}

func TestBreaker_SuccessResetsStreak(t *testing.T) {
	br := NewCountryBreaker("ESP", 1, 2)
	br.EnterLevel(1)
	require.NoError(t, br.Failure(errors.New("boom"), ""))
	br.Success()
	require.NoError(t, br.Failure(errors.New("boom"), ""))
	assert.False(t, br.Open(), "streak must reset on success")
}

func TestBreaker_LevelChangeResetsStreak(t *testing.T) {
	br := NewCountryBreaker("ESP", 1, 2)
	br.EnterLevel(1)
	require.NoError(t, br.Failure(errors.New("boom"), ""))
	br.EnterLevel(2)
	require.NoError(t, br.Failure(errors.New("boom"), ""))
	assert.False(t, br.Open(), "streak is scoped to the current level")
}

func TestBreaker_BelowMinLevelNeverOpens(t *testing.T) {
	br := NewCountryBreaker("ESP", 2, 1)
	br.EnterLevel(1)
	for i := 0; i < 10; i++ {
		require.NoError(t, br.Failure(errors.New("boom"), ""))
	}
	assert.False(t, br.Open())
	assert.Equal(t, -1, br.OpenLevel())

	br.EnterLevel(2)
	require.Error(t, br.Failure(errors.New("boom"), ""))
	assert.True(t, br.Open())
}

func TestBreaker_OpenIsTerminal(t *testing.T) {
	br := NewCountryBreaker("ESP", 1, 1)
	br.EnterLevel(1)
	first := br.Failure(errors.New("boom"), "")
	require.Error(t, first)

	assert.Same(t, first, br.Check(), "check must fail fast once open")
	br.Success()
	br.EnterLevel(2)
	assert.Error(t, br.Check(), "breaker does not auto-reset")
	assert.Same(t, first, br.Failure(errors.New("later"), ""))
}

func TestBreaker_TruncatesRawPayload(t *testing.T) {
	br := NewCountryBreaker("ESP", 1, 1)
	br.EnterLevel(1)
	err := br.Failure(errors.New("boom"), strings.Repeat("x", 4096))
	var boe *BreakerOpenError
	require.ErrorAs(t, err, &boe)
	assert.True(t, strings.HasSuffix(boe.RawLast, "...(truncated)"))
	assert.LessOrEqual(t, len(boe.RawLast), 512+len("...(truncated)"))
}
