// Package sessions holds the presenter-side half of the verification
// protocol: the rotating token session and the geofence monitor that keeps
// it honest.
package sessions

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rahul-7375/attendance-cist/models"
)

// TokenSession is the presenter's active-session state machine:
// Idle -> Active(anchor, location, issuedAt) -> Idle. The anchor is the
// location recorded at Start and never moves; drift checks compare against
// it, while the emitted token carries the latest refreshed location.
type TokenSession struct {
	mu       sync.Mutex
	active   bool
	anchor   models.Location
	location models.Location
	issuedAt time.Time

	now func() time.Time
}

// NewTokenSession builds an idle session. now is injectable for tests; pass
// nil for the wall clock.
func NewTokenSession(now func() time.Time) *TokenSession {
	if now == nil {
		now = time.Now
	}
	return &TokenSession{now: now}
}

// Start transitions to Active, pins loc as the drift anchor and emits the
// first token.
func (s *TokenSession) Start(loc models.Location) models.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
	s.anchor = loc
	s.location = loc
	s.issuedAt = s.now()
	return s.tokenLocked()
}

// Refresh replaces the token location and bumps issuedAt. issuedAt strictly
// increases on every refresh even under a coarse or frozen clock.
func (s *TokenSession) Refresh(loc models.Location) (models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return models.Token{}, models.ErrSessionNotActive
	}
	s.location = loc
	issued := s.now()
	if !issued.After(s.issuedAt) {
		issued = s.issuedAt.Add(time.Millisecond)
	}
	s.issuedAt = issued
	return s.tokenLocked(), nil
}

// Stop transitions back to Idle. Safe to call repeatedly.
func (s *TokenSession) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
}

// Active reports whether the session is presenting.
func (s *TokenSession) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Anchor returns the location pinned at Start.
func (s *TokenSession) Anchor() (models.Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anchor, s.active
}

// Token emits the current credential with a fresh nonce. The nonce only
// keeps repeated emissions distinct for downstream rendering; the verifier
// ignores it.
func (s *TokenSession) Token() (models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return models.Token{}, models.ErrSessionNotActive
	}
	return s.tokenLocked(), nil
}

func (s *TokenSession) tokenLocked() models.Token {
	return models.Token{
		Location: s.location,
		IssuedAt: s.issuedAt.UnixMilli(),
		Nonce:    uuid.NewString(),
	}
}
