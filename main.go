package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Rahul-7375/attendance-cist/auth"
	"github.com/Rahul-7375/attendance-cist/config"
	"github.com/Rahul-7375/attendance-cist/database"
	"github.com/Rahul-7375/attendance-cist/handlers"
	"github.com/Rahul-7375/attendance-cist/ledger"
	"github.com/Rahul-7375/attendance-cist/matcher"
	"github.com/Rahul-7375/attendance-cist/models"
	"github.com/Rahul-7375/attendance-cist/schedule"
	"github.com/Rahul-7375/attendance-cist/sessions"
	"github.com/Rahul-7375/attendance-cist/store"
	"github.com/Rahul-7375/attendance-cist/verify"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(os.Getenv("ATT_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	gin.SetMode(cfg.Server.Mode)

	// local fingerprint database
	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("connect fingerprint database")
	}

	// external document stores
	ctx := context.Background()
	fsClient, err := store.NewClient(ctx, cfg.Firestore)
	if err != nil {
		log.Fatal().Err(err).Msg("connect firestore")
	}
	defer fsClient.Close()

	directory := store.NewDirectory(fsClient)
	timetable := store.NewTimetable(fsClient)
	attendance := store.NewAttendance(fsClient)

	ledgerOps := ledger.New(attendance, cfg.Protocol.PurgeBatchSize)
	engine := schedule.NewEngine(time.Duration(cfg.Protocol.DefaultDurationMinutes) * time.Minute)
	faceMatcher := matcher.NewClient(cfg.Matcher.URL, time.Duration(cfg.Matcher.TimeoutSeconds)*time.Second)

	pipeline := verify.NewPipeline(verify.Config{
		RefreshInterval:   cfg.Protocol.RefreshInterval(),
		Grace:             cfg.Protocol.Grace(),
		MaxDistanceMeters: cfg.Protocol.MaxAttendeeDistanceMeters,
		AcceptThreshold:   cfg.Protocol.AcceptThreshold,
		RetryThreshold:    cfg.Protocol.RetryThreshold,
	}, faceMatcher, timetable, engine, ledgerOps, nil)

	h := &handlers.Handlers{
		Cfg:          cfg,
		Directory:    directory,
		Timetable:    timetable,
		Ledger:       ledgerOps,
		Pipeline:     pipeline,
		Registry:     sessions.NewRegistry(),
		Engine:       engine,
		Fingerprints: db,
	}

	handlers.RegisterValidators()
	router := gin.Default()

	presenter := router.Group("/presenter", auth.Middleware(cfg.JWT.Secret, models.RolePresenter))
	presenter.GET("/session", h.PresenterSession)
	presenter.POST("/session/stop", h.StopSession)
	presenter.GET("/timetable", h.ListTimetable)
	presenter.POST("/timetable", h.CreateTimetableEntry)
	presenter.PUT("/timetable/:id", h.UpdateTimetableEntry)
	presenter.DELETE("/timetable/:id", h.DeleteTimetableEntry)
	presenter.POST("/attendance/override", h.OverrideAttendance)
	presenter.DELETE("/attendance/:id", h.DeleteAttendance)
	presenter.POST("/attendance/delete-many", h.DeleteAttendanceBatch)
	presenter.POST("/attendance/purge", h.PurgeAttendance)
	presenter.POST("/devices/:id/reset", h.ResetDevice)
	presenter.GET("/schedule/status", h.ScheduleStatus)

	attendee := router.Group("/attendee", auth.Middleware(cfg.JWT.Secret, models.RoleAttendee))
	attendee.GET("/scan", h.AttendeeScan)
	attendee.GET("/attendance", h.ListMyAttendance)
	attendee.GET("/schedule/status", h.ScheduleStatus)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	log.Info().Str("addr", addr).Msg("server listening")
	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("run server")
	}
}
