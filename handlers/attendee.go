package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Rahul-7375/attendance-cist/auth"
	"github.com/Rahul-7375/attendance-cist/models"
	"github.com/Rahul-7375/attendance-cist/verify"
)

type resultFrame struct {
	Status     string                   `json:"status"` // ok | retry | error
	Kind       string                   `json:"kind,omitempty"`
	Message    string                   `json:"message,omitempty"`
	Confidence float64                  `json:"confidence,omitempty"`
	Record     *models.AttendanceRecord `json:"record,omitempty"`
}

// AttendeeScan runs verification attempts over a websocket. Each scan
// message is a fresh attempt; a retry offer keeps the attempt open for one
// recapture. Failures keep the connection alive so the attendee can scan
// the next rotation.
func (h *Handlers) AttendeeScan(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to establish websocket connection"})
		return
	}
	defer conn.Close()

	attendeeID := auth.UserID(c)
	serverBefore := time.Now().UnixMilli()

	var init models.InitMessage
	if err := conn.ReadJSON(&init); err != nil {
		log.Error().Err(err).Msg("failed to read scan init message")
		conn.WriteJSON(resultFrame{Status: "error", Kind: "INTERNAL", Message: "failed to read initial data"})
		return
	}
	serverTime := time.Now().UnixMilli()

	// Clock drift and latency are logged for diagnosis; freshness itself is
	// judged purely on server-issued timestamps.
	clientTime, _ := strconv.ParseInt(init.ClientTime, 10, 64)
	log.Info().Str("attendee", attendeeID).
		Int64("clockDriftMs", serverTime-clientTime).
		Int64("latencyMs", serverTime-serverBefore).
		Msg("scan connection established")

	ok, err := h.Fingerprints.ValidateFingerprint(attendeeID, init.BrowserFingerprint)
	if err != nil {
		conn.WriteJSON(resultFrame{Status: "error", Kind: "INTERNAL", Message: "failed to validate device fingerprint"})
		return
	}
	if !ok {
		conn.WriteJSON(resultFrame{Status: "error", Kind: "UNKNOWN_DEVICE", Message: "this device is not enrolled for the attendee"})
		return
	}

	attendee, err := h.Directory.GetAttendee(c.Request.Context(), attendeeID)
	if err != nil {
		conn.WriteJSON(resultFrame{Status: "error", Kind: errKind(err), Message: "failed to load attendee profile"})
		return
	}

	for {
		var scan models.ScanMessage
		if err := conn.ReadJSON(&scan); err != nil {
			log.Info().Str("attendee", attendeeID).Err(err).Msg("scan connection closed")
			return
		}

		done := h.runAttempt(c, conn, attendee, scan)
		if done {
			return
		}
	}
}

// runAttempt walks one scan through the pipeline, handling the single
// inline retry. Returns true once attendance is marked.
func (h *Handlers) runAttempt(c *gin.Context, conn wsConn, attendee models.Attendee, scan models.ScanMessage) bool {
	attempt, err := h.Pipeline.Begin(attendee)
	if err != nil {
		conn.WriteJSON(resultFrame{Status: "error", Kind: errKind(err), Message: err.Error()})
		return false
	}
	defer attempt.Close()

	if err := attempt.ScanToken(scan.Token); err != nil {
		conn.WriteJSON(resultFrame{Status: "error", Kind: errKind(err), Message: err.Error()})
		return false
	}
	if err := attempt.CheckLocation(models.Location{Lat: scan.Lat, Lon: scan.Lon}); err != nil {
		conn.WriteJSON(resultFrame{Status: "error", Kind: errKind(err), Message: err.Error()})
		return false
	}

	live := scan.LiveImage
	for {
		outcome, err := attempt.SubmitSample(c.Request.Context(), live)
		if err != nil {
			conn.WriteJSON(resultFrame{Status: "error", Kind: errKind(err), Message: err.Error()})
			return false
		}

		switch outcome.Verdict {
		case verify.VerdictAccept:
			conn.WriteJSON(resultFrame{Status: "ok", Message: "attendance marked", Confidence: outcome.Confidence, Record: outcome.Record})
			return true
		case verify.VerdictRetry:
			conn.WriteJSON(resultFrame{Status: "retry", Confidence: outcome.Confidence,
				Message: "match confidence was borderline, capture once more"})
			var capture models.CaptureMessage
			if err := conn.ReadJSON(&capture); err != nil {
				log.Info().Str("attendee", attendee.ID).Msg("connection closed during retry capture")
				return true
			}
			live = capture.LiveImage
		default:
			conn.WriteJSON(resultFrame{Status: "error", Kind: errKind(outcome.Reason),
				Message: verify.RejectionMessage(outcome), Confidence: outcome.Confidence})
			return false
		}
	}
}

type wsConn interface {
	ReadJSON(interface{}) error
	WriteJSON(interface{}) error
}

// ResetDevice clears an attendee's device binding. Presenter-initiated.
func (h *Handlers) ResetDevice(c *gin.Context) {
	attendeeID := c.Param("id")
	if err := h.Fingerprints.ResetFingerprint(attendeeID); err != nil {
		feedError(c, "fingerprints", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}
