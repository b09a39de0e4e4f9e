// Package handlers is the gin/websocket transport over the verification
// protocol.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Rahul-7375/attendance-cist/config"
	"github.com/Rahul-7375/attendance-cist/ledger"
	"github.com/Rahul-7375/attendance-cist/models"
	"github.com/Rahul-7375/attendance-cist/schedule"
	"github.com/Rahul-7375/attendance-cist/sessions"
	"github.com/Rahul-7375/attendance-cist/verify"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "http://localhost:3000" || origin == "https://attendance.cist.edu"
	},
}

// DirectorySource reads presenter and attendee profiles from the external
// identity store.
type DirectorySource interface {
	GetPresenter(ctx context.Context, id string) (models.Presenter, error)
	GetAttendee(ctx context.Context, id string) (models.Attendee, error)
}

// TimetableStore is the external timetable collection.
type TimetableStore interface {
	ListByDepartment(ctx context.Context, departmentID string) ([]models.TimetableEntry, error)
	Create(ctx context.Context, entry models.TimetableEntry) (models.TimetableEntry, error)
	Update(ctx context.Context, entry models.TimetableEntry) error
	Get(ctx context.Context, id string) (models.TimetableEntry, error)
	Delete(ctx context.Context, id string) error
}

// FingerprintValidator is the local device-binding check.
type FingerprintValidator interface {
	ValidateFingerprint(attendeeID, fingerprint string) (bool, error)
	ResetFingerprint(attendeeID string) error
}

// Handlers carries every dependency the routes need, wired once in main.
type Handlers struct {
	Cfg          *config.Config
	Directory    DirectorySource
	Timetable    TimetableStore
	Ledger       *ledger.Ops
	Pipeline     *verify.Pipeline
	Registry     *sessions.Registry
	Engine       schedule.Engine
	Fingerprints FingerprintValidator
	Now          func() time.Time // nil means time.Now
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// errKind names an error for the wire so clients can branch without string
// matching our messages.
func errKind(err error) string {
	switch {
	case errors.Is(err, models.ErrMalformedToken):
		return "MALFORMED_TOKEN"
	case errors.Is(err, models.ErrTokenExpired):
		return "TOKEN_EXPIRED"
	case errors.Is(err, models.ErrTooFar):
		return "TOO_FAR"
	case errors.Is(err, models.ErrNoMatch):
		return "NO_MATCH"
	case errors.Is(err, models.ErrLowConfidence):
		return "LOW_CONFIDENCE"
	case errors.Is(err, models.ErrNoActiveClass):
		return "NO_ACTIVE_CLASS"
	case errors.Is(err, models.ErrPermissionDenied):
		return "PERMISSION_DENIED"
	case errors.Is(err, models.ErrStoreUnavailable):
		return "STORE_UNAVAILABLE"
	case errors.Is(err, models.ErrExternalServiceUnavailable):
		return "EXTERNAL_SERVICE_UNAVAILABLE"
	case errors.Is(err, models.ErrVerificationInFlight):
		return "VERIFICATION_IN_FLIGHT"
	case errors.Is(err, models.ErrSessionAlreadyActive):
		return "SESSION_ALREADY_ACTIVE"
	case errors.Is(err, models.ErrSessionNotActive):
		return "SESSION_NOT_ACTIVE"
	default:
		return "INTERNAL"
	}
}

// feedError reports a store failure scoped to the affected data feed. A
// permission problem on one feed must never read as a global outage.
func feedError(c *gin.Context, feed string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"feed": feed, "kind": errKind(err), "error": err.Error()})
}
