package verify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rahul-7375/attendance-cist/geo"
	"github.com/Rahul-7375/attendance-cist/ledger"
	"github.com/Rahul-7375/attendance-cist/models"
	"github.com/Rahul-7375/attendance-cist/schedule"
	"github.com/Rahul-7375/attendance-cist/store/memory"
)

type scriptedMatcher struct {
	results []models.VerificationResult
	err     error
	calls   int
}

func (m *scriptedMatcher) Match(ctx context.Context, _, _ string) (models.VerificationResult, error) {
	if err := ctx.Err(); err != nil {
		return models.VerificationResult{}, err
	}
	if m.err != nil {
		return models.VerificationResult{}, m.err
	}
	res := m.results[m.calls]
	m.calls++
	return res, nil
}

type staticTimetable struct {
	entries []models.TimetableEntry
	err     error
}

func (s staticTimetable) ListByDepartment(context.Context, string) ([]models.TimetableEntry, error) {
	return s.entries, s.err
}

// Monday 2025-06-16 10:30 UTC, inside the 10:00 physics slot.
var testNow = time.Date(2025, 6, 16, 10, 30, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		RefreshInterval:   10 * time.Second,
		Grace:             1500 * time.Millisecond,
		MaxDistanceMeters: 100,
		AcceptThreshold:   0.90,
		RetryThreshold:    0.75,
	}
}

func testTimetable() staticTimetable {
	return staticTimetable{entries: []models.TimetableEntry{
		{ID: "tt1", Day: "Monday", StartTime: "10:00", Subject: "physics", DurationMinutes: 60, DepartmentID: "cse"},
	}}
}

func testAttendee() models.Attendee {
	return models.Attendee{ID: "a1", Name: "Asha", Department: "cse", ReferenceFace: "ref-b64"}
}

func newTestPipeline(t *testing.T, matcher Matcher, tt TimetableSource) (*Pipeline, *memory.AttendanceStore) {
	t.Helper()
	store := memory.NewAttendanceStore()
	p := NewPipeline(testConfig(), matcher, tt, schedule.NewEngine(60*time.Minute), ledger.New(store, 500), func() time.Time { return testNow })
	return p, store
}

func freshToken(t *testing.T, loc models.Location, issuedAt time.Time) string {
	t.Helper()
	raw, err := json.Marshal(models.Token{Location: loc, IssuedAt: issuedAt.UnixMilli(), Nonce: "n1"})
	require.NoError(t, err)
	return string(raw)
}

func TestDecideTable(t *testing.T) {
	cases := []struct {
		name      string
		match     bool
		conf      float64
		retryUsed bool
		want      Verdict
	}{
		{"high confidence match accepts", true, 0.95, false, VerdictAccept},
		{"mid confidence match offers retry", true, 0.80, false, VerdictRetry},
		{"mid confidence with retry spent rejects", true, 0.80, true, VerdictRejectLowConfidence},
		{"no match never retries", false, 0.99, false, VerdictRejectNoMatch},
		{"accept works even after retry spent", true, 0.95, true, VerdictAccept},
		{"below retry band rejects immediately", true, 0.50, false, VerdictRejectLowConfidence},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(models.VerificationResult{Match: tc.match, Confidence: tc.conf}, tc.retryUsed, 0.90, 0.75)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseToken(t *testing.T) {
	_, err := ParseToken("not json")
	assert.ErrorIs(t, err, models.ErrMalformedToken)

	_, err = ParseToken(`{"issuedAt": 123}`)
	assert.ErrorIs(t, err, models.ErrMalformedToken)

	_, err = ParseToken(`{"location": {"lat": 12.9, "lon": 77.6}}`)
	assert.ErrorIs(t, err, models.ErrMalformedToken)

	tok, err := ParseToken(`{"location": {"lat": 12.9, "lon": 77.6}, "issuedAt": 123}`)
	require.NoError(t, err)
	assert.Equal(t, int64(123), tok.IssuedAt)
	assert.Equal(t, 12.9, tok.Location.Lat)
}

func TestScanTokenFreshnessBoundary(t *testing.T) {
	loc := models.Location{Lat: 12.90, Lon: 77.60}
	p, _ := newTestPipeline(t, &scriptedMatcher{}, testTimetable())

	// exactly refresh + grace old: still fresh
	a, err := p.Begin(testAttendee())
	require.NoError(t, err)
	issued := testNow.Add(-(10*time.Second + 1500*time.Millisecond))
	assert.NoError(t, a.ScanToken(freshToken(t, loc, issued)))
	a.Close()

	// one millisecond past the window: expired
	a, err = p.Begin(testAttendee())
	require.NoError(t, err)
	issued = issued.Add(-time.Millisecond)
	err = a.ScanToken(freshToken(t, loc, issued))
	assert.ErrorIs(t, err, models.ErrTokenExpired)
	a.Close()
}

func TestTokenRoundTripIsImmediateAndZeroDistance(t *testing.T) {
	loc := models.Location{Lat: 12.90, Lon: 77.60}
	p, _ := newTestPipeline(t, &scriptedMatcher{}, testTimetable())

	a, err := p.Begin(testAttendee())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.ScanToken(freshToken(t, loc, testNow)))
	assert.NoError(t, a.CheckLocation(loc), "same location is zero meters away")
	assert.Equal(t, StateLocationChecked, a.State())
}

func TestCheckLocationBoundary(t *testing.T) {
	tokenLoc := models.Location{Lat: 12.90, Lon: 77.60}
	p, _ := newTestPipeline(t, &scriptedMatcher{}, testTimetable())

	// ~5.5km away: rejected
	a, err := p.Begin(testAttendee())
	require.NoError(t, err)
	require.NoError(t, a.ScanToken(freshToken(t, tokenLoc, testNow)))
	err = a.CheckLocation(models.Location{Lat: 12.95, Lon: 77.60})
	assert.ErrorIs(t, err, models.ErrTooFar)
	a.Close()
}

func TestCheckLocationDistanceBoundaryIsWithin(t *testing.T) {
	tokenLoc := models.Location{Lat: 12.90, Lon: 77.60}
	attendeeLoc := models.Location{Lat: 12.9005, Lon: 77.60} // ~55m north
	exact := geo.DistanceMeters(attendeeLoc, tokenLoc)

	begin := func(t *testing.T, maxMeters float64) *Attempt {
		t.Helper()
		cfg := testConfig()
		cfg.MaxDistanceMeters = maxMeters
		p := NewPipeline(cfg, &scriptedMatcher{}, testTimetable(),
			schedule.NewEngine(60*time.Minute), ledger.New(memory.NewAttendanceStore(), 500),
			func() time.Time { return testNow })
		a, err := p.Begin(testAttendee())
		require.NoError(t, err)
		require.NoError(t, a.ScanToken(freshToken(t, tokenLoc, testNow)))
		return a
	}

	// exactly at the limit: accepted
	a := begin(t, exact)
	assert.NoError(t, a.CheckLocation(attendeeLoc))
	a.Close()

	// a millimeter past it: too far
	a = begin(t, exact-0.001)
	err := a.CheckLocation(attendeeLoc)
	assert.ErrorIs(t, err, models.ErrTooFar)
	a.Close()
}

func TestAcceptWritesExactlyOneRecord(t *testing.T) {
	loc := models.Location{Lat: 12.90, Lon: 77.60}
	matcher := &scriptedMatcher{results: []models.VerificationResult{{Match: true, Confidence: 0.95}}}
	p, store := newTestPipeline(t, matcher, testTimetable())

	a, err := p.Begin(testAttendee())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.ScanToken(freshToken(t, loc, testNow)))
	require.NoError(t, a.CheckLocation(loc))

	out, err := a.SubmitSample(context.Background(), "live-b64")
	require.NoError(t, err)
	assert.Equal(t, VerdictAccept, out.Verdict)
	require.NotNil(t, out.Record)
	assert.Equal(t, "physics", out.Record.Subject)
	assert.Equal(t, "2025-06-16", out.Record.Date)
	assert.Equal(t, models.StatusPresent, out.Record.Status)
	assert.Equal(t, "a1", out.Record.AttendeeID)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, StateResolved, a.State())
}

func TestRetryConsumedRegardlessOfOutcome(t *testing.T) {
	loc := models.Location{Lat: 12.90, Lon: 77.60}
	matcher := &scriptedMatcher{results: []models.VerificationResult{
		{Match: true, Confidence: 0.80},
		{Match: true, Confidence: 0.80},
	}}
	p, store := newTestPipeline(t, matcher, testTimetable())

	a, err := p.Begin(testAttendee())
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.ScanToken(freshToken(t, loc, testNow)))
	require.NoError(t, a.CheckLocation(loc))

	out, err := a.SubmitSample(context.Background(), "live-1")
	require.NoError(t, err)
	assert.Equal(t, VerdictRetry, out.Verdict)
	assert.True(t, a.RetryUsed())
	assert.Equal(t, 0, store.Len(), "retry offer writes nothing")

	// The recapture scores in the retry band again, but the retry is spent.
	out, err = a.SubmitSample(context.Background(), "live-2")
	require.NoError(t, err)
	assert.Equal(t, VerdictRejectLowConfidence, out.Verdict)
	assert.ErrorIs(t, out.Reason, models.ErrLowConfidence)
	assert.Equal(t, 0, store.Len(), "no writes on any failure path")
	assert.Equal(t, StateResolved, a.State())
}

func TestRetryThenAccept(t *testing.T) {
	loc := models.Location{Lat: 12.90, Lon: 77.60}
	matcher := &scriptedMatcher{results: []models.VerificationResult{
		{Match: true, Confidence: 0.80},
		{Match: true, Confidence: 0.93},
	}}
	p, store := newTestPipeline(t, matcher, testTimetable())

	a, err := p.Begin(testAttendee())
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.ScanToken(freshToken(t, loc, testNow)))
	require.NoError(t, a.CheckLocation(loc))

	out, err := a.SubmitSample(context.Background(), "live-1")
	require.NoError(t, err)
	require.Equal(t, VerdictRetry, out.Verdict)

	out, err = a.SubmitSample(context.Background(), "live-2")
	require.NoError(t, err)
	assert.Equal(t, VerdictAccept, out.Verdict)
	assert.Equal(t, 1, store.Len())
}

func TestNoMatchRejectsWithoutRetry(t *testing.T) {
	loc := models.Location{Lat: 12.90, Lon: 77.60}
	matcher := &scriptedMatcher{results: []models.VerificationResult{{Match: false, Confidence: 0.99}}}
	p, store := newTestPipeline(t, matcher, testTimetable())

	a, err := p.Begin(testAttendee())
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.ScanToken(freshToken(t, loc, testNow)))
	require.NoError(t, a.CheckLocation(loc))

	out, err := a.SubmitSample(context.Background(), "live-1")
	require.NoError(t, err)
	assert.Equal(t, VerdictRejectNoMatch, out.Verdict)
	assert.ErrorIs(t, out.Reason, models.ErrNoMatch)
	assert.False(t, a.RetryUsed())
	assert.Equal(t, 0, store.Len())
}

func TestNoActiveClassWritesNothing(t *testing.T) {
	loc := models.Location{Lat: 12.90, Lon: 77.60}
	matcher := &scriptedMatcher{results: []models.VerificationResult{{Match: true, Confidence: 0.95}}}
	// Timetable has nothing in session right now.
	tt := staticTimetable{entries: []models.TimetableEntry{
		{ID: "tt1", Day: "Monday", StartTime: "15:00", Subject: "physics", DurationMinutes: 60},
	}}
	p, store := newTestPipeline(t, matcher, tt)

	a, err := p.Begin(testAttendee())
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.ScanToken(freshToken(t, loc, testNow)))
	require.NoError(t, a.CheckLocation(loc))

	_, err = a.SubmitSample(context.Background(), "live-1")
	assert.ErrorIs(t, err, models.ErrNoActiveClass)
	assert.Equal(t, 0, store.Len())
}

func TestSingleInFlightAttemptPerAttendee(t *testing.T) {
	p, _ := newTestPipeline(t, &scriptedMatcher{}, testTimetable())

	a, err := p.Begin(testAttendee())
	require.NoError(t, err)

	_, err = p.Begin(testAttendee())
	assert.ErrorIs(t, err, models.ErrVerificationInFlight)

	// another attendee is unaffected
	other, err := p.Begin(models.Attendee{ID: "a2", Department: "cse"})
	require.NoError(t, err)
	other.Close()

	a.Close()
	a.Close() // idempotent
	b, err := p.Begin(testAttendee())
	require.NoError(t, err)
	b.Close()
}

func TestCancelledCaptureLeavesNoState(t *testing.T) {
	loc := models.Location{Lat: 12.90, Lon: 77.60}
	matcher := &scriptedMatcher{results: []models.VerificationResult{{Match: true, Confidence: 0.95}}}
	p, store := newTestPipeline(t, matcher, testTimetable())

	a, err := p.Begin(testAttendee())
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.ScanToken(freshToken(t, loc, testNow)))
	require.NoError(t, a.CheckLocation(loc))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.SubmitSample(ctx, "live-1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.Len())
}

func TestStepOrderIsEnforced(t *testing.T) {
	loc := models.Location{Lat: 12.90, Lon: 77.60}
	p, _ := newTestPipeline(t, &scriptedMatcher{}, testTimetable())

	a, err := p.Begin(testAttendee())
	require.NoError(t, err)
	defer a.Close()

	assert.Error(t, a.CheckLocation(loc), "location before token")
	_, err = a.SubmitSample(context.Background(), "live")
	assert.Error(t, err, "sample before location")

	require.NoError(t, a.ScanToken(freshToken(t, loc, testNow)))
	assert.Error(t, a.ScanToken(freshToken(t, loc, testNow)), "double scan on one attempt")
}
