package fleetapi

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetTokenCachesUntilSkewWindow(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	var calls int

	m := NewTokenManager(func(ctx context.Context) (string, time.Time, error) {
		calls++
		return "tok-1", now.Add(time.Hour), nil
	})
	m.now = func() time.Time { return now }

	token, err := m.GetToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-1", token)

	token, err = m.GetToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-1", token)
	require.Equal(t, 1, calls)
}

func TestGetTokenRefreshesInsideSkewWindow(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	var calls int

	m := NewTokenManager(func(ctx context.Context) (string, time.Time, error) {
		calls++
		if calls == 1 {
			return "tok-1", now.Add(time.Hour), nil
		}
		return "tok-2", now.Add(2 * time.Hour), nil
	})
	m.now = func() time.Time { return now }

	_, err := m.GetToken(context.Background())
	require.NoError(t, err)

	// Four minutes before expiry is inside the five-minute skew window
	now = now.Add(56 * time.Minute)
	token, err := m.GetToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-2", token)
	require.Equal(t, 2, calls)
}

func TestGetTokenFailureCachesNothing(t *testing.T) {
	authErr := errors.New("provider down")
	var calls int

	m := NewTokenManager(func(ctx context.Context) (string, time.Time, error) {
		calls++
		if calls == 1 {
			return "", time.Time{}, authErr
		}
		return "tok-1", time.Now().Add(time.Hour), nil
	})

	_, err := m.GetToken(context.Background())
	require.ErrorIs(t, err, authErr)

	token, err := m.GetToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-1", token)
	require.Equal(t, 2, calls)
}

func TestInvalidateForcesRefresh(t *testing.T) {
	var calls int
	m := NewTokenManager(func(ctx context.Context) (string, time.Time, error) {
		calls++
		return "tok", time.Now().Add(time.Hour), nil
	})

	_, err := m.GetToken(context.Background())
	require.NoError(t, err)

	m.Invalidate()

	_, err = m.GetToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestConcurrentCallersShareOneRefresh(t *testing.T) {
	var calls int64
	m := NewTokenManager(func(ctx context.Context) (string, time.Time, error) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return "tok", time.Now().Add(time.Hour), nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := m.GetToken(context.Background())
			require.NoError(t, err)
			require.Equal(t, "tok", token)
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), atomic.LoadInt64(&calls))
}
