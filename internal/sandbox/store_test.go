package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birbparty/birb-ads/internal/clock/clocktest"
)

var testStart = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type storeHarness struct {
	store   Store
	advance func(time.Duration)
}

func storeBackends() map[string]func(t *testing.T) storeHarness {
	return map[string]func(t *testing.T) storeHarness{
		"memory": func(t *testing.T) storeHarness {
			fc := clocktest.NewFake(testStart)
			s := NewMemoryStore(fc)
			t.Cleanup(func() { _ = s.Close() })
			return storeHarness{store: s, advance: fc.Advance}
		},
		"redis": func(t *testing.T) storeHarness {
			mr := miniredis.RunT(t)
			s, err := NewRedisStore(context.Background(), RedisConfig{Addr: mr.Addr(), KeyPrefix: "test:"})
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return storeHarness{store: s, advance: mr.FastForward}
		},
	}
}

func testSession(token string) *Session {
	return &Session{
		Token:        token,
		AppKey:       "demo-app-key",
		AppID:        "com.example.game",
		Width:        1080,
		Height:       1920,
		Orientations: []string{orientationPortrait},
		CreatedAt:    testStart,
	}
}

func TestStore_Sessions(t *testing.T) {
	ctx := context.Background()

	for name, newHarness := range storeBackends() {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)

			require.NoError(t, h.store.CreateSession(ctx, testSession("tok-1"), time.Minute))
			require.NoError(t, h.store.CreateSession(ctx, testSession("tok-2"), 10*time.Minute))

			got, err := h.store.GetSession(ctx, "tok-1")
			require.NoError(t, err)
			assert.Equal(t, "com.example.game", got.AppID)
			assert.Equal(t, []string{orientationPortrait}, got.Orientations)
			assert.True(t, testStart.Equal(got.CreatedAt))

			_, err = h.store.GetSession(ctx, "missing")
			assert.ErrorIs(t, err, ErrSessionNotFound)

			n, err := h.store.CountSessions(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			h.advance(time.Minute)

			_, err = h.store.GetSession(ctx, "tok-1")
			assert.ErrorIs(t, err, ErrSessionNotFound)
			_, err = h.store.GetSession(ctx, "tok-2")
			assert.NoError(t, err)

			n, err = h.store.CountSessions(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			assert.NoError(t, h.store.Ping(ctx))
		})
	}
}

func TestStore_CountRequest(t *testing.T) {
	ctx := context.Background()
	window := 10 * time.Second

	for name, newHarness := range storeBackends() {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)

			count, resetIn, err := h.store.CountRequest(ctx, "tok", window)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
			assert.Equal(t, window, resetIn)

			h.advance(4 * time.Second)
			count, resetIn, err = h.store.CountRequest(ctx, "tok", window)
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)
			assert.Equal(t, 6*time.Second, resetIn)

			count, _, err = h.store.CountRequest(ctx, "other", window)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count, "windows are per token")

			h.advance(6 * time.Second)
			count, resetIn, err = h.store.CountRequest(ctx, "tok", window)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count, "a new window starts after reset")
			assert.Equal(t, window, resetIn)
		})
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	fc := clocktest.NewFake(testStart)
	s := NewMemoryStore(fc)

	require.NoError(t, s.CreateSession(ctx, testSession("short"), 30*time.Second))
	require.NoError(t, s.CreateSession(ctx, testSession("long"), time.Hour))
	_, _, err := s.CountRequest(ctx, "short", 10*time.Second)
	require.NoError(t, err)

	sessions, windows := s.size()
	assert.Equal(t, 2, sessions)
	assert.Equal(t, 1, windows)

	fc.Advance(sweepInterval)

	sessions, windows = s.size()
	assert.Equal(t, 1, sessions)
	assert.Equal(t, 0, windows)

	require.NoError(t, s.Close())
	assert.Equal(t, 0, fc.Pending())

	assert.ErrorIs(t, s.Ping(ctx), ErrStoreClosed)
	assert.ErrorIs(t, s.CreateSession(ctx, testSession("late"), time.Hour), ErrStoreClosed)
	_, err = s.GetSession(ctx, "long")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.NoError(t, s.Close())
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(context.Background(), RedisConfig{Addr: addr, DialTimeout: 100 * time.Millisecond})
	assert.Error(t, err)
}
