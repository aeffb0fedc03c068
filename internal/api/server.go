// Package api exposes the inbound webhook over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/pqfbot/internal/bot"
)

// Submitter accepts mention events for asynchronous processing.
type Submitter interface {
	Submit(ev bot.MentionEvent)
}

// Server is the webhook HTTP server.
type Server struct {
	echo *echo.Echo
	port int
}

// NewServer wires the webhook routes onto an echo instance.
func NewServer(port int, signingSecret string, filter *bot.EventFilter, submitter Submitter) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	server := &Server{echo: e, port: port}

	h := &webhookHandler{
		signingSecret: signingSecret,
		filter:        filter,
		submitter:     submitter,
	}
	e.POST("/events", h.handleEvents)
	e.GET("/health", handleHealth)

	return server
}

func handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "pqf-slack-bot",
	})
}

// Start runs the server until an interrupt, then shuts down gracefully.
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
