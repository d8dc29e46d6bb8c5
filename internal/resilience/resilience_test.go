package resilience

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("invalid filter")))
	assert.True(t, IsTransient(NewTransientError(eris.New("rate limited"), http.StatusTooManyRequests)))
	assert.True(t, IsTransient(eris.New("read tcp: connection reset by peer")))

	wrapped := eris.Wrap(NewTransientError(eris.New("upstream 503"), 503), "fetch page")
	assert.True(t, IsTransient(wrapped))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 201, 400, 401, 403, 404} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}

func TestDo_RetriesTransientOnly(t *testing.T) {
	fast := Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	calls := 0
	err := Do(context.Background(), fast, func(context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(eris.New("flaky"), 503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = Do(context.Background(), fast, func(context.Context) error {
		calls++
		return eris.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "permanent errors must not be retried")
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	fast := Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	calls := 0
	err := Do(context.Background(), fast, func(context.Context) error {
		calls++
		return NewTransientError(eris.New("still down"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Do(ctx, Policy{Attempts: 10, BaseDelay: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return NewTransientError(eris.New("flaky"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_ReturnsValue(t *testing.T) {
	got, err := DoVal(context.Background(), DefaultPolicy(), func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestBreaker_OpensAfterConsecutiveTransientFailures(t *testing.T) {
	b := NewBreaker(3, time.Minute)
	fail := NewTransientError(eris.New("down"), 503)

	for i := 0; i < 2; i++ {
		require.NoError(t, b.Allow())
		b.Record(fail)
	}
	assert.False(t, b.Open())

	require.NoError(t, b.Allow())
	b.Record(fail)
	assert.True(t, b.Open())
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreaker_PermanentErrorsDoNotTrip(t *testing.T) {
	b := NewBreaker(2, time.Minute)
	for i := 0; i < 5; i++ {
		b.Record(eris.New("404 not found"))
	}
	assert.False(t, b.Open())
}

func TestBreaker_ProbeAfterCooldown(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	now := time.Now()
	b.now = func() time.Time { return now }

	b.Record(NewTransientError(eris.New("down"), 503))
	require.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	now = now.Add(2 * time.Minute)
	require.NoError(t, b.Allow(), "cooldown elapsed, probe admitted")

	b.Record(nil)
	assert.False(t, b.Open())
	require.NoError(t, b.Allow())
}
