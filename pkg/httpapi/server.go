// Package httpapi exposes the REST surface for scenarios and game setup and
// the websocket endpoint that carries live games.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cruxhq/crux/pkg/adapters/stt"
	"github.com/cruxhq/crux/pkg/adapters/tts"
	"github.com/cruxhq/crux/pkg/game"
	"github.com/cruxhq/crux/pkg/llm"
	"github.com/cruxhq/crux/pkg/protocol"
	"github.com/cruxhq/crux/pkg/scenario"
	"github.com/cruxhq/crux/pkg/store"
)

// Config holds the HTTP server settings.
type Config struct {
	Addr           string   `mapstructure:"addr"`
	AllowAnyOrigin bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	return c
}

// GameConfig carries the game tuning handed to every new session.
type GameConfig struct {
	CountdownSeconds int    `mapstructure:"countdown_seconds"`
	BreakMarker      string `mapstructure:"break_marker"`
}

// Deps are the collaborators the server hands to each game session.
type Deps struct {
	Store store.Store
	// Transcribers builds a per-session factory for capture windows.
	Transcribers func(sessionID string) stt.Factory
	Synth        tts.Synthesizer
	Generator    llm.ResponseGenerator
	// Scenarios is optional; without it the generate endpoint is absent.
	Scenarios llm.ScenarioGenerator
	Game      GameConfig
	Logger    *slog.Logger
}

// Server is the HTTP and websocket front end.
type Server struct {
	cfg      Config
	deps     Deps
	engine   *gin.Engine
	server   *http.Server
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// New builds a server. Routes are registered up front; Start binds the port.
func New(cfg Config, deps Deps) *Server {
	cfg = cfg.withDefaults()
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With(slog.String("component", "httpapi")),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := engine.Group("/api")
	api.GET("/scenarios", s.listScenarios)
	api.GET("/scenarios/:id", s.getScenario)
	if deps.Scenarios != nil {
		api.POST("/scenarios/generate", s.generateScenario)
	}
	api.POST("/games", s.startGame)

	engine.GET("/ws/game/:session_id", s.handleGame)

	s.engine = engine
	return s
}

// Start serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           s.engine,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.logger.Info("server_listening", slog.String("addr", s.cfg.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) listScenarios(c *gin.Context) {
	scenarios, err := s.deps.Store.ListScenarios(c.Request.Context())
	if err != nil {
		s.logger.Error("list_scenarios_failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list scenarios"})
		return
	}
	c.JSON(http.StatusOK, scenarios)
}

func (s *Server) getScenario(c *gin.Context) {
	sc, err := s.deps.Store.GetScenario(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "scenario not found"})
			return
		}
		s.logger.Error("get_scenario_failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load scenario"})
		return
	}
	c.JSON(http.StatusOK, sc)
}

type generateScenarioRequest struct {
	Description string `json:"description" binding:"required"`
}

func (s *Server) generateScenario(c *gin.Context) {
	var req generateScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "description is required"})
		return
	}
	sc, err := s.deps.Scenarios.GenerateScenario(c.Request.Context(), req.Description)
	if err != nil {
		s.logger.Error("scenario_generation_failed", slog.String("error", err.Error()))
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not generate scenario"})
		return
	}
	if err := s.deps.Store.CreateScenario(c.Request.Context(), sc); err != nil {
		s.logger.Error("scenario_persist_failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save scenario"})
		return
	}
	c.JSON(http.StatusCreated, sc)
}

type startGameRequest struct {
	ScenarioID string `json:"scenario_id" binding:"required"`
	UserID     string `json:"user_id"`
}

func (s *Server) startGame(c *gin.Context) {
	var req startGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scenario_id is required"})
		return
	}
	if req.UserID == "" {
		req.UserID = "anonymous"
	}

	sc, err := s.deps.Store.GetScenario(c.Request.Context(), req.ScenarioID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "scenario not found"})
			return
		}
		s.logger.Error("get_scenario_failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load scenario"})
		return
	}

	record := scenario.NewGameSession(req.UserID, sc)
	if err := s.deps.Store.CreateSession(c.Request.Context(), record); err != nil {
		s.logger.Error("session_persist_failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create game"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id":  record.SessionID.String(),
		"scenario_id": sc.ID,
	})
}

// handleGame upgrades the connection and runs one game session over it. The
// read loop owns the connection lifetime; the session owns the game.
func (s *Server) handleGame(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	record, err := s.deps.Store.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
			return
		}
		s.logger.Error("get_session_failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load game"})
		return
	}
	sc, err := s.deps.Store.GetScenario(c.Request.Context(), record.ScenarioID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "scenario not found"})
		return
	}

	wsRaw, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	conn := newWSConn(wsRaw)

	session := game.NewSession(game.SessionConfig{
		Conn:             conn,
		Record:           &record,
		Scenario:         sc,
		Store:            s.deps.Store,
		Transcribers:     s.deps.Transcribers(sessionID.String()),
		Synth:            s.deps.Synth,
		Generator:        s.deps.Generator,
		BreakMarker:      s.deps.Game.BreakMarker,
		CountdownSeconds: s.deps.Game.CountdownSeconds,
		Logger:           s.deps.Logger,
	})

	ctx := c.Request.Context()
	if err := session.Start(ctx); err != nil {
		s.logger.Error("session_start_failed", slog.String("error", err.Error()))
		_ = conn.Close()
		return
	}

	for {
		msgType, payload, err := wsRaw.ReadMessage()
		if err != nil {
			session.HandleDisconnect()
			_ = conn.Close()
			return
		}
		switch msgType {
		case websocket.TextMessage:
			msg, err := protocol.DecodeClientMessage(payload)
			if err != nil {
				s.logger.Warn("bad_control_frame", slog.String("error", err.Error()))
				continue
			}
			if err := session.HandleControl(ctx, msg); err != nil {
				s.logger.Error("control_handling_failed",
					slog.String("action", msg.Action),
					slog.String("error", err.Error()),
				)
				session.HandleDisconnect()
				_ = conn.Close()
				return
			}
		case websocket.BinaryMessage:
			if err := session.HandleAudio(payload); err != nil {
				s.logger.Warn("audio_handling_failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	originHost := strings.TrimPrefix(origin, "https://")
	originHost = strings.TrimPrefix(originHost, "http://")
	for _, allowed := range s.cfg.AllowedOrigins {
		a := strings.TrimRight(strings.TrimSpace(allowed), "/")
		if a == "" {
			continue
		}
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			if strings.EqualFold(a, origin) {
				return true
			}
			continue
		}
		if strings.EqualFold(a, originHost) {
			return true
		}
	}
	return false
}
