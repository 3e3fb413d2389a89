// Package server exposes the instrument over HTTP so playback can be
// started and stopped from a browser or another process.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"player-piano/calibration"
	"player-piano/config"
	"player-piano/debug"
	"player-piano/player"
)

// Instrument is what the server drives.
type Instrument interface {
	Start(ctx context.Context, song string, tempoOverride uint32) error
	Controller() *player.Controller
	Calibration() calibration.Table
}

// Server is the HTTP control surface
type Server struct {
	cfg    *config.Config
	inst   Instrument
	router *gin.Engine

	// sessions outlive the request that started them
	base context.Context
}

// PlayRequest starts a song
type PlayRequest struct {
	Song          string `json:"song" binding:"required"`
	TempoOverride uint32 `json:"tempo_override"`
}

// New builds the router.
func New(ctx context.Context, cfg *config.Config, inst Instrument) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		cfg:    cfg,
		inst:   inst,
		router: gin.New(),
		base:   ctx,
	}

	s.router.Use(gin.Recovery())
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	api := s.router.Group("/api")
	api.GET("/songs", s.getSongs)
	api.GET("/calibration", s.getCalibration)
	api.POST("/playback/start", s.startPlayback)
	api.POST("/playback/stop", s.stopPlayback)
	api.GET("/playback/status", s.getStatus)

	return s
}

// Handler returns the router for use with net/http.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on cfg.Server.Addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		debug.Logger().Info("control server listening", "addr", s.cfg.Server.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) getSongs(c *gin.Context) {
	songs, err := s.cfg.Songs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"songs": songs,
		"total": len(songs),
	})
}

func (s *Server) getCalibration(c *gin.Context) {
	table := s.inst.Calibration()
	c.JSON(http.StatusOK, gin.H{"minimum_drive": table[:]})
}

func (s *Server) startPlayback(c *gin.Context) {
	var req PlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := s.inst.Start(s.base, req.Song, req.TempoOverride)
	switch {
	case errors.Is(err, player.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "a song is already playing"})
		return
	case errors.Is(err, config.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	debug.Logger().Info("playback started over http", "song", req.Song, "remote", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{
		"message": "playback started",
		"status":  s.inst.Controller().Status(),
	})
}

func (s *Server) stopPlayback(c *gin.Context) {
	ctrl := s.inst.Controller()
	if !ctrl.Playing() {
		c.JSON(http.StatusOK, gin.H{"message": "nothing playing"})
		return
	}

	ctrl.Stop()
	err := ctrl.Wait()
	if err != nil && !player.Stopped(err) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "playback stopped"})
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.inst.Controller().Status())
}
