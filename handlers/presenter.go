package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/Rahul-7375/attendance-cist/auth"
	"github.com/Rahul-7375/attendance-cist/models"
	"github.com/Rahul-7375/attendance-cist/sessions"
)

// tokenFrame is one rotation pushed to the presenter display.
type tokenFrame struct {
	Status    string       `json:"status"`
	Token     models.Token `json:"token"`
	QRPNG     string       `json:"qrPng"` // base64 PNG of the serialized token
	ExpiresAt int64        `json:"expiresAt"`
}

type errorFrame struct {
	Status  string `json:"status"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// PresenterSession runs one presenting session over a websocket. The client
// sends its sampled location as the first frame and keeps streaming
// location updates; the server rotates tokens on a fixed interval and kills
// the session when the presenter drifts from the anchor.
func (h *Handlers) PresenterSession(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to establish websocket connection"})
		return
	}
	defer conn.Close()

	presenterID := auth.UserID(c)

	var start models.StartMessage
	if err := conn.ReadJSON(&start); err != nil {
		log.Error().Err(err).Msg("failed to read session start message")
		return
	}
	anchor := models.Location{Lat: start.Lat, Lon: start.Lon}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	if err := h.Registry.Add(presenterID, cancel); err != nil {
		conn.WriteJSON(errorFrame{Status: "error", Kind: errKind(err), Message: err.Error()})
		return
	}
	defer h.Registry.Remove(presenterID)

	session := sessions.NewTokenSession(nil)
	token := session.Start(anchor)
	if err := h.writeToken(conn, token); err != nil {
		log.Info().Err(err).Str("presenter", presenterID).Msg("presenter disconnected")
		return
	}

	// The client keeps reporting its sampled position; the monitor reads
	// whatever arrived last. A read error means the display is gone, which
	// tears the session down.
	var latest atomic.Value
	latest.Store(anchor)
	go func() {
		defer cancel()
		for {
			var update models.StartMessage
			if err := conn.ReadJSON(&update); err != nil {
				return
			}
			latest.Store(models.Location{Lat: update.Lat, Lon: update.Lon})
		}
	}()

	monitor := &sessions.Monitor{
		Session:        session,
		Sample:         func(context.Context) (models.Location, error) { return latest.Load().(models.Location), nil },
		Interval:       h.Cfg.Protocol.RefreshInterval(),
		MaxDriftMeters: h.Cfg.Protocol.MaxPresenterDriftMeters,
	}
	events := make(chan sessions.Event, 1)
	go monitor.Run(ctx, events)

	for ev := range events {
		if ev.Err != nil {
			conn.WriteJSON(errorFrame{Status: "error", Kind: errKind(ev.Err), Message: ev.Err.Error()})
			return
		}
		if err := h.writeToken(conn, *ev.Token); err != nil {
			log.Info().Err(err).Str("presenter", presenterID).Msg("presenter disconnected")
			return
		}
	}
}

func (h *Handlers) writeToken(conn *websocket.Conn, token models.Token) error {
	payload, err := json.Marshal(token)
	if err != nil {
		return err
	}
	png, err := qrcode.Encode(string(payload), qrcode.Medium, 256)
	if err != nil {
		return err
	}
	return conn.WriteJSON(tokenFrame{
		Status:    "token",
		Token:     token,
		QRPNG:     base64.StdEncoding.EncodeToString(png),
		ExpiresAt: token.IssuedAt + h.Cfg.Protocol.RefreshInterval().Milliseconds() + int64(h.Cfg.Protocol.GraceMillis),
	})
}

// StopSession ends the presenter's running session, if any.
func (h *Handlers) StopSession(c *gin.Context) {
	if h.Registry.Stop(auth.UserID(c)) {
		c.JSON(http.StatusOK, gin.H{"status": "stopped"})
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"kind": errKind(models.ErrSessionNotActive), "error": "no active session"})
}
