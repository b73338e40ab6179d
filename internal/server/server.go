package server

import (
	"context"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/bobmcallan/tradewatch/internal/app"
	"github.com/bobmcallan/tradewatch/internal/clients/capitoltrades"
	"github.com/bobmcallan/tradewatch/internal/common"
)

const (
	minWriteTimeout   = 2 * time.Minute
	writeTimeoutSlack = 30 * time.Second
)

// Server hosts the trades API for the presentation layer.
type Server struct {
	app          *app.App
	server       *http.Server
	logger       *common.Logger
	shutdownChan chan struct{}
}

// SetShutdownChannel sets the channel signaled by POST /api/shutdown.
func (s *Server) SetShutdownChannel(ch chan struct{}) {
	s.shutdownChan = ch
}

// NewServer builds the HTTP server around a constructed App.
func NewServer(a *app.App) *Server {
	s := &Server{
		app:    a,
		logger: a.Logger,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.server = &http.Server{
		Addr:              net.JoinHostPort(a.Config.Server.Host, strconv.Itoa(a.Config.Server.Port)),
		Handler:           applyMiddleware(mux, a.Logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout(a.Config),
		IdleTimeout:       60 * time.Second,
		ErrorLog:          log.New(a.Logger.With().Str("component", "http").Logger(), "", 0),
	}

	return s
}

// writeTimeout must outlast a forced refresh that walks every configured
// source to its timeouts and resolves a full page of company names.
func writeTimeout(cfg *common.Config) time.Duration {
	var budget time.Duration
	for _, kind := range cfg.Sources.Order {
		switch kind {
		case common.SourceKindHTML:
			budget += cfg.Sources.HTML.GetProbeTimeout() + cfg.Sources.HTML.GetFetchTimeout()
			lookup := cfg.Clients.TickerLookup
			budget += capitoltrades.MaxSynthesized * (lookup.GetTimeout() + lookup.GetBatchPause())
		case common.SourceKindAPI:
			budget += 2 * cfg.Sources.API.GetTimeout()
		}
	}
	return max(minWriteTimeout, budget+writeTimeoutSlack)
}

// Handler returns the middleware-wrapped mux, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens on the configured address and blocks.
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.server.Addr).
		Dur("write_timeout", s.server.WriteTimeout).
		Msg("Starting trades API server")
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
