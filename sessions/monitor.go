package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rahul-7375/attendance-cist/geo"
	"github.com/Rahul-7375/attendance-cist/models"
)

// LocationSampler reads the device's current position. It fails with a
// permission or unavailable error when the capability is denied.
type LocationSampler func(ctx context.Context) (models.Location, error)

// Event is one outcome of a monitor tick: either a refreshed token or a
// terminal error. A terminal error means the session has been stopped.
type Event struct {
	Token *models.Token
	Err   error
}

// Monitor drives a TokenSession from a fixed-interval ticker, re-sampling
// the presenter's position on every tick. Drift past MaxDriftMeters from
// the anchor force-stops the session: presenting from a stale anchor is
// worse than not presenting at all.
type Monitor struct {
	Session        *TokenSession
	Sample         LocationSampler
	Interval       time.Duration
	MaxDriftMeters float64
}

// Run emits one Event per tick until the session dies or ctx is cancelled.
// It owns the ticker and stops it on exit; it also closes events so the
// consumer's write loop terminates deterministically.
func (m *Monitor) Run(ctx context.Context, events chan<- Event) {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()
	defer close(events)

	for {
		select {
		case <-ctx.Done():
			m.Session.Stop()
			return
		case <-ticker.C:
			ev, stop := m.Tick(ctx)
			select {
			case events <- ev:
			case <-ctx.Done():
				m.Session.Stop()
				return
			}
			if stop {
				return
			}
		}
	}
}

// Tick performs one drift check and refresh. It returns the resulting event
// and whether the session was terminated. Exposed separately so the drift
// policy is testable without real timers.
func (m *Monitor) Tick(ctx context.Context) (Event, bool) {
	anchor, active := m.Session.Anchor()
	if !active {
		return Event{Err: models.ErrSessionNotActive}, true
	}

	loc, err := m.Sample(ctx)
	if err != nil {
		// Fail safe: without a position we cannot prove the anchor still
		// holds, so stop presenting.
		m.Session.Stop()
		return Event{Err: fmt.Errorf("sample presenter location: %w", err)}, true
	}

	dist := geo.DistanceMeters(anchor, loc)
	if dist > m.MaxDriftMeters {
		m.Session.Stop()
		log.Warn().Float64("driftMeters", dist).Msg("presenter drifted past limit, session stopped")
		return Event{Err: fmt.Errorf("presenter drifted %.0fm from session anchor: %w", dist, models.ErrTooFar)}, true
	}

	token, err := m.Session.Refresh(loc)
	if err != nil {
		return Event{Err: err}, true
	}
	return Event{Token: &token}, false
}
