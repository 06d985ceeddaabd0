package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClosedAllowsRequests(t *testing.T) {
	b := New(5, time.Minute, 3)
	require.True(t, b.AllowRequest(time.Now()))
	require.Equal(t, Closed, b.State())
}

func TestTripsOpenAtThreshold(t *testing.T) {
	b := New(3, time.Minute, 3)
	now := time.Now()

	b.RecordFailure(1, now)
	b.RecordFailure(2, now)
	require.Equal(t, Closed, b.State())

	b.RecordFailure(3, now)
	require.Equal(t, Open, b.State())
}

func TestOpenDeniesUntilResetTimeoutElapses(t *testing.T) {
	b := New(1, 10*time.Second, 1)
	start := time.Now()
	b.RecordFailure(1, start)
	require.Equal(t, Open, b.State())

	require.False(t, b.AllowRequest(start.Add(5*time.Second)))
	require.Equal(t, Open, b.State())

	require.True(t, b.AllowRequest(start.Add(11*time.Second)))
	require.Equal(t, HalfOpen, b.State())
}

func TestHalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	b := New(1, time.Second, 2)
	start := time.Now()
	b.RecordFailure(1, start)
	b.AllowRequest(start.Add(2 * time.Second))
	require.Equal(t, HalfOpen, b.State())

	b.RecordSuccess()
	require.Equal(t, HalfOpen, b.State())

	b.RecordSuccess()
	require.Equal(t, Closed, b.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := New(1, time.Second, 2)
	start := time.Now()
	b.RecordFailure(1, start)
	b.AllowRequest(start.Add(2 * time.Second))
	require.Equal(t, HalfOpen, b.State())

	b.RecordFailure(99, start.Add(3*time.Second))
	require.Equal(t, Open, b.State())
}

func TestAllowRequestDeniedIncrementsNoStateChangeBeforeTimeout(t *testing.T) {
	b := New(1, time.Minute, 1)
	start := time.Now()
	b.RecordFailure(1, start)

	for i := 0; i < 5; i++ {
		require.False(t, b.AllowRequest(start.Add(time.Duration(i)*time.Second)))
	}
	require.Equal(t, Open, b.State())
}
