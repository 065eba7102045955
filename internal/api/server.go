package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/acqboard/internal/api/auth"
	"github.com/acqboard/internal/chat"
	"github.com/acqboard/internal/config"
	"github.com/acqboard/internal/content"
	"github.com/acqboard/internal/inbox"
	"github.com/acqboard/internal/ingest"
	"github.com/acqboard/internal/youtube"
)

// Deps carries everything the HTTP layer needs. Optional integrations
// (YouTube sync, media mirroring) may be nil; their endpoints report
// unavailability instead of panicking.
type Deps struct {
	DB       *sql.DB
	Config   *config.Config
	Tokens   *auth.TokenService
	Ingestor *ingest.Ingestor
	Chat     *chat.Orchestrator
	Ideas    *content.Generator
	Inbox    *inbox.Builder
	Syncer   *youtube.Syncer
}

// Server represents the API server.
type Server struct {
	echo *echo.Echo
	deps Deps
	port int
}

func NewServer(port int, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{echo: e, deps: deps, port: port}
	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	v1 := s.echo.Group("/api/v1")

	auth.NewHandlers(s.deps.DB, s.deps.Tokens).Register(v1)

	// Provider-facing webhook endpoints are unauthenticated; the GET
	// challenge carries the shared verify token instead.
	v1.GET("/webhooks/instagram", s.verifyWebhook)
	v1.POST("/webhooks/instagram", s.receiveWebhook)

	// The chat endpoint does its own auth so failures can degrade
	// instead of erroring.
	v1.POST("/ai/chat", s.handleChat)

	authed := v1.Group("", auth.RequireAuth(s.deps.Tokens))
	authed.POST("/workspaces", s.createWorkspace)
	authed.GET("/workspaces", s.listWorkspaces)

	ws := authed.Group("/workspaces/:workspaceId", auth.RequireWorkspace(s.deps.DB))
	ws.POST("/ai/content", s.handleContent)
	ws.GET("/inbox/snapshot", s.getSnapshot)

	ws.GET("/clients", s.listClients)
	ws.POST("/clients", s.createClient)
	ws.PUT("/clients/:id", s.updateClient)
	ws.DELETE("/clients/:id", s.deleteClient)

	ws.GET("/tasks", s.listTasks)
	ws.POST("/tasks", s.createTask)
	ws.PUT("/tasks/:id", s.updateTask)
	ws.DELETE("/tasks/:id", s.deleteTask)

	elevated := ws.Group("", auth.RequireElevated())
	elevated.POST("/invites", s.createInvite)
	elevated.GET("/invites", s.listInvites)
	elevated.POST("/youtube/sync", s.syncYouTube)

	authed.POST("/invites/accept", s.acceptInvite)
}

// Start begins serving and blocks until interrupt, then shuts down
// gracefully.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			s.echo.Logger.Fatal("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
