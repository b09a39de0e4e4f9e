// Package verify implements the attendee-side verification pipeline: token
// freshness, distance check, and the confidence-gated biometric decision,
// ending in at most one attendance record write.
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rahul-7375/attendance-cist/geo"
	"github.com/Rahul-7375/attendance-cist/ledger"
	"github.com/Rahul-7375/attendance-cist/models"
	"github.com/Rahul-7375/attendance-cist/schedule"
)

// Matcher is the external biometric inference service. Images travel as
// base64 strings end to end.
type Matcher interface {
	Match(ctx context.Context, reference, live string) (models.VerificationResult, error)
}

// TimetableSource supplies the attendee's timetable for class resolution.
type TimetableSource interface {
	ListByDepartment(ctx context.Context, departmentID string) ([]models.TimetableEntry, error)
}

// State is the attempt's position in the pipeline.
type State int

const (
	StateIdle State = iota
	StateTokenScanned
	StateLocationChecked
	StateAwaitingBiometric
	StateResolved
)

// Verdict is the confidence gate's decision.
type Verdict int

const (
	VerdictAccept Verdict = iota
	VerdictRetry
	VerdictRejectNoMatch
	VerdictRejectLowConfidence
)

// Decide applies the decision policy in order: accept band, retry band
// (only while the single retry is unused), then reject. A failed match is
// always a no-match reject; the retry band exists for genuine matches that
// scored below the accept bar.
func Decide(res models.VerificationResult, retryUsed bool, acceptThreshold, retryThreshold float64) Verdict {
	switch {
	case res.Match && res.Confidence >= acceptThreshold:
		return VerdictAccept
	case res.Match && res.Confidence >= retryThreshold && !retryUsed:
		return VerdictRetry
	case res.Match:
		return VerdictRejectLowConfidence
	default:
		return VerdictRejectNoMatch
	}
}

// Config carries the pipeline's protocol knobs.
type Config struct {
	RefreshInterval   time.Duration
	Grace             time.Duration
	MaxDistanceMeters float64
	AcceptThreshold   float64
	RetryThreshold    float64
}

// Pipeline owns the verification flow for all attendees. It permits one
// in-flight attempt per attendee; a second scan started while one is live
// is rejected, never interleaved.
type Pipeline struct {
	cfg       Config
	matcher   Matcher
	timetable TimetableSource
	engine    schedule.Engine
	ledger    *ledger.Ops
	now       func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewPipeline wires the pipeline. now is injectable for tests; pass nil for
// the wall clock.
func NewPipeline(cfg Config, matcher Matcher, timetable TimetableSource, engine schedule.Engine, led *ledger.Ops, now func() time.Time) *Pipeline {
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		cfg:       cfg,
		matcher:   matcher,
		timetable: timetable,
		engine:    engine,
		ledger:    led,
		now:       now,
		inflight:  make(map[string]struct{}),
	}
}

// Begin opens a verification attempt for the attendee. The caller must
// Close it, success or not, to release the in-flight slot.
func (p *Pipeline) Begin(attendee models.Attendee) (*Attempt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[attendee.ID]; busy {
		return nil, models.ErrVerificationInFlight
	}
	p.inflight[attendee.ID] = struct{}{}
	return &Attempt{p: p, attendee: attendee, state: StateIdle}, nil
}

func (p *Pipeline) release(attendeeID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, attendeeID)
}

// Attempt is one scan's walk through the pipeline. A fresh scan gets a
// fresh attempt, which also resets the retry allowance.
type Attempt struct {
	p         *Pipeline
	attendee  models.Attendee
	state     State
	token     models.Token
	retryUsed bool
	closed    bool
}

// Close releases the attendee's in-flight slot. Idempotent.
func (a *Attempt) Close() {
	if a.closed {
		return
	}
	a.closed = true
	a.p.release(a.attendee.ID)
}

// State returns the attempt's current pipeline state.
func (a *Attempt) State() State { return a.state }

// RetryUsed reports whether the single retry has been consumed.
func (a *Attempt) RetryUsed() bool { return a.retryUsed }

// ScanToken parses the decoded QR payload and checks freshness. The token
// is stale once now - issuedAt exceeds the refresh interval plus grace;
// grace absorbs clock and network skew.
func (a *Attempt) ScanToken(raw string) error {
	if a.state != StateIdle {
		return fmt.Errorf("scan token: attempt already past token stage")
	}
	token, err := ParseToken(raw)
	if err != nil {
		return err
	}
	age := a.p.now().Sub(time.UnixMilli(token.IssuedAt))
	if age > a.p.cfg.RefreshInterval+a.p.cfg.Grace {
		return fmt.Errorf("token is %s old: %w", age, models.ErrTokenExpired)
	}
	a.token = token
	a.state = StateTokenScanned
	return nil
}

// CheckLocation compares the attendee's sampled position against the token
// location. A distance exactly at the limit is accepted.
func (a *Attempt) CheckLocation(loc models.Location) error {
	if a.state != StateTokenScanned {
		return fmt.Errorf("check location: token not scanned")
	}
	if !geo.Within(loc, a.token.Location, a.p.cfg.MaxDistanceMeters) {
		dist := geo.DistanceMeters(loc, a.token.Location)
		return fmt.Errorf("%.0fm from session: %w", dist, models.ErrTooFar)
	}
	a.state = StateLocationChecked
	return nil
}

// Outcome is a settled biometric decision. Reason is set on rejects.
type Outcome struct {
	Verdict    Verdict
	Confidence float64
	Reason     error
	Record     *models.AttendanceRecord
}

// SubmitSample sends a freshly captured face image to the matcher and
// applies the confidence gate. A VerdictRetry outcome consumes the single
// retry regardless of how the recapture goes; the caller re-enters here
// with the new sample. Exactly one record is written, on accept; every
// failure path writes nothing.
func (a *Attempt) SubmitSample(ctx context.Context, live string) (Outcome, error) {
	if a.state != StateLocationChecked && a.state != StateAwaitingBiometric {
		return Outcome{}, fmt.Errorf("submit sample: attempt is not awaiting a capture")
	}
	a.state = StateAwaitingBiometric

	res, err := a.p.matcher.Match(ctx, a.attendee.ReferenceFace, live)
	if err != nil {
		if ctx.Err() != nil {
			// Capture UI was torn down mid-call: discard the result, leave
			// no state behind.
			return Outcome{}, ctx.Err()
		}
		a.state = StateResolved
		return Outcome{}, fmt.Errorf("biometric matcher: %w", err)
	}

	verdict := Decide(res, a.retryUsed, a.p.cfg.AcceptThreshold, a.p.cfg.RetryThreshold)
	switch verdict {
	case VerdictRetry:
		a.retryUsed = true
		return Outcome{Verdict: VerdictRetry, Confidence: res.Confidence}, nil
	case VerdictRejectNoMatch:
		a.state = StateResolved
		return Outcome{Verdict: verdict, Confidence: res.Confidence, Reason: models.ErrNoMatch}, nil
	case VerdictRejectLowConfidence:
		a.state = StateResolved
		return Outcome{Verdict: verdict, Confidence: res.Confidence, Reason: models.ErrLowConfidence}, nil
	}

	record, err := a.resolveAndRecord(ctx)
	a.state = StateResolved
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Verdict: VerdictAccept, Confidence: res.Confidence, Record: record}, nil
}

// resolveAndRecord finds the class in session for the attendee's timetable
// and writes the attendance record.
func (a *Attempt) resolveAndRecord(ctx context.Context) (*models.AttendanceRecord, error) {
	entries, err := a.p.timetable.ListByDepartment(ctx, a.attendee.Department)
	if err != nil {
		return nil, fmt.Errorf("load timetable: %w", err)
	}
	now := a.p.now()
	status := a.p.engine.ComputeStatus(entries, now)
	if status.CurrentID == nil {
		return nil, models.ErrNoActiveClass
	}

	var subject string
	for _, e := range entries {
		if e.ID == *status.CurrentID {
			subject = e.Subject
			break
		}
	}

	record := models.AttendanceRecord{
		ID:           uuid.NewString(),
		AttendeeID:   a.attendee.ID,
		AttendeeName: a.attendee.Name,
		Subject:      subject,
		Date:         now.Format("2006-01-02"),
		Status:       models.StatusPresent,
	}
	if err := a.p.ledger.Insert(ctx, record); err != nil {
		return nil, err
	}
	log.Info().Str("attendee", a.attendee.ID).Str("subject", subject).Msg("attendance marked")
	return &record, nil
}

// ParseToken decodes the QR payload. Missing required fields make the token
// malformed, not zero-valued.
func ParseToken(raw string) (models.Token, error) {
	var wire struct {
		Location *models.Location `json:"location"`
		IssuedAt *int64           `json:"issuedAt"`
		Nonce    string           `json:"nonce"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return models.Token{}, fmt.Errorf("%w: %v", models.ErrMalformedToken, err)
	}
	if wire.Location == nil || wire.IssuedAt == nil {
		return models.Token{}, fmt.Errorf("%w: missing location or issuedAt", models.ErrMalformedToken)
	}
	return models.Token{Location: *wire.Location, IssuedAt: *wire.IssuedAt, Nonce: wire.Nonce}, nil
}

// RejectionMessage renders a user-facing message distinguishing "no match"
// from "matched but below the confidence bar".
func RejectionMessage(o Outcome) string {
	switch {
	case errors.Is(o.Reason, models.ErrNoMatch):
		return "face did not match the stored reference"
	case errors.Is(o.Reason, models.ErrLowConfidence):
		return fmt.Sprintf("face matched but confidence %.2f is below the acceptance bar", o.Confidence)
	default:
		return "verification rejected"
	}
}
