package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rahul-7375/attendance-cist/geo"
	"github.com/Rahul-7375/attendance-cist/models"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC)}
}

func TestTokenSessionLifecycle(t *testing.T) {
	clock := newFakeClock()
	s := NewTokenSession(clock.now)
	loc := models.Location{Lat: 12.90, Lon: 77.60}

	assert.False(t, s.Active())
	_, err := s.Token()
	assert.ErrorIs(t, err, models.ErrSessionNotActive)

	tok := s.Start(loc)
	assert.True(t, s.Active())
	assert.Equal(t, loc, tok.Location)
	assert.Equal(t, clock.t.UnixMilli(), tok.IssuedAt)
	assert.NotEmpty(t, tok.Nonce)

	s.Stop()
	assert.False(t, s.Active())
	_, err = s.Refresh(loc)
	assert.ErrorIs(t, err, models.ErrSessionNotActive)
}

func TestTokenSessionIssuedAtStrictlyIncreases(t *testing.T) {
	clock := newFakeClock()
	s := NewTokenSession(clock.now)
	tok := s.Start(models.Location{Lat: 12.90, Lon: 77.60})
	last := tok.IssuedAt

	// Frozen clock: refreshes must still move issuedAt forward.
	for i := 0; i < 3; i++ {
		tok, err := s.Refresh(models.Location{Lat: 12.90, Lon: 77.60})
		require.NoError(t, err)
		assert.Greater(t, tok.IssuedAt, last)
		last = tok.IssuedAt
	}

	clock.advance(10 * time.Second)
	tok2, err := s.Refresh(models.Location{Lat: 12.9001, Lon: 77.60})
	require.NoError(t, err)
	assert.Greater(t, tok2.IssuedAt, last)
	assert.Equal(t, models.Location{Lat: 12.9001, Lon: 77.60}, tok2.Location)
}

func TestTokenSessionAnchorIsImmutable(t *testing.T) {
	s := NewTokenSession(nil)
	anchor := models.Location{Lat: 12.90, Lon: 77.60}
	s.Start(anchor)

	_, err := s.Refresh(models.Location{Lat: 12.91, Lon: 77.61})
	require.NoError(t, err)

	got, active := s.Anchor()
	assert.True(t, active)
	assert.Equal(t, anchor, got, "refresh moves the token location, never the anchor")
}

func TestTokenSessionNoncesAreUnique(t *testing.T) {
	s := NewTokenSession(nil)
	s.Start(models.Location{Lat: 12.90, Lon: 77.60})

	a, err := s.Token()
	require.NoError(t, err)
	b, err := s.Token()
	require.NoError(t, err)
	assert.NotEqual(t, a.Nonce, b.Nonce)
}

func TestMonitorTickRefreshesWithinBounds(t *testing.T) {
	clock := newFakeClock()
	s := NewTokenSession(clock.now)
	s.Start(models.Location{Lat: 12.90, Lon: 77.60})

	m := &Monitor{
		Session: s,
		Sample: func(context.Context) (models.Location, error) {
			// a few meters of jitter
			return models.Location{Lat: 12.90001, Lon: 77.60}, nil
		},
		Interval:       10 * time.Second,
		MaxDriftMeters: 100,
	}

	clock.advance(10 * time.Second)
	ev, stop := m.Tick(context.Background())
	assert.False(t, stop)
	require.NotNil(t, ev.Token)
	assert.NoError(t, ev.Err)
	assert.True(t, s.Active())
}

func TestMonitorTickForceStopsOnDrift(t *testing.T) {
	// Presenter starts at (12.90, 77.60); at the next tick the sample comes
	// back ~5.5km away, far past a 100m limit.
	clock := newFakeClock()
	s := NewTokenSession(clock.now)
	s.Start(models.Location{Lat: 12.90, Lon: 77.60})

	m := &Monitor{
		Session: s,
		Sample: func(context.Context) (models.Location, error) {
			return models.Location{Lat: 12.95, Lon: 77.60}, nil
		},
		Interval:       10 * time.Second,
		MaxDriftMeters: 100,
	}

	clock.advance(11 * time.Second)
	ev, stop := m.Tick(context.Background())
	assert.True(t, stop)
	assert.Nil(t, ev.Token)
	assert.ErrorIs(t, ev.Err, models.ErrTooFar)
	assert.False(t, s.Active(), "drift must terminate the session")
}

func TestMonitorTickDriftBoundaryIsWithin(t *testing.T) {
	s := NewTokenSession(nil)
	anchor := models.Location{Lat: 12.90, Lon: 77.60}
	s.Start(anchor)

	moved := models.Location{Lat: 12.90045, Lon: 77.60} // ~50m north
	m := &Monitor{Session: s, Sample: func(context.Context) (models.Location, error) { return moved, nil }}

	// Limit set to the exact sampled distance: non-strict comparison keeps
	// the session alive.
	m.MaxDriftMeters = distance(anchor, moved)
	ev, stop := m.Tick(context.Background())
	assert.False(t, stop)
	assert.NotNil(t, ev.Token)

	// A hair under the distance kills it.
	s.Start(anchor)
	m.MaxDriftMeters = distance(anchor, moved) - 0.001
	ev, stop = m.Tick(context.Background())
	assert.True(t, stop)
	assert.ErrorIs(t, ev.Err, models.ErrTooFar)
}

func TestMonitorTickStopsOnSamplerFailure(t *testing.T) {
	s := NewTokenSession(nil)
	s.Start(models.Location{Lat: 12.90, Lon: 77.60})

	sampleErr := errors.New("location permission denied")
	m := &Monitor{
		Session:        s,
		Sample:         func(context.Context) (models.Location, error) { return models.Location{}, sampleErr },
		MaxDriftMeters: 100,
	}

	ev, stop := m.Tick(context.Background())
	assert.True(t, stop)
	assert.ErrorIs(t, ev.Err, sampleErr)
	assert.False(t, s.Active())
}

func TestMonitorRunCancellation(t *testing.T) {
	s := NewTokenSession(nil)
	s.Start(models.Location{Lat: 12.90, Lon: 77.60})

	m := &Monitor{
		Session: s,
		Sample: func(context.Context) (models.Location, error) {
			return models.Location{Lat: 12.90, Lon: 77.60}, nil
		},
		Interval:       time.Millisecond,
		MaxDriftMeters: 100,
	}

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event)
	done := make(chan struct{})
	go func() {
		m.Run(ctx, events)
		close(done)
	}()

	// Consume a couple of refreshes, then tear down.
	for i := 0; i < 2; i++ {
		ev := <-events
		require.NotNil(t, ev.Token)
	}
	cancel()

	// Run must close the channel and stop the session.
	for range events {
	}
	<-done
	assert.False(t, s.Active())
}

func TestRegistrySingleSessionPerPresenter(t *testing.T) {
	r := NewRegistry()
	_, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Add("p1", cancel))
	assert.ErrorIs(t, r.Add("p1", cancel), models.ErrSessionAlreadyActive)

	assert.True(t, r.Stop("p1"))
	assert.False(t, r.Stop("p1"))
	require.NoError(t, r.Add("p1", cancel))
	r.Remove("p1")
	assert.False(t, r.Stop("p1"))
}

// distance uses the same geo math the monitor uses.
func distance(a, b models.Location) float64 {
	return geo.DistanceMeters(a, b)
}
