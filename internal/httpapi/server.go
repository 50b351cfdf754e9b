// Package httpapi exposes the pairing, app-list, and stream lifecycle
// control plane over HTTP, plus a WebSocket signalling channel that
// negotiates the WebRTC offer/answer/ICE exchange for each browser viewer
// attached to internal/webrtcbridge.
package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/nimbusdeck/moonlight-go/internal/config"
	"github.com/nimbusdeck/moonlight-go/internal/logging"
	"github.com/nimbusdeck/moonlight-go/internal/session"
	"github.com/nimbusdeck/moonlight-go/internal/store"
	"github.com/nimbusdeck/moonlight-go/internal/sunshine"
	"github.com/nimbusdeck/moonlight-go/internal/webrtcbridge"
)

var log = logging.L("httpapi")

// Server is the HTTP+WebSocket control plane for one moonlight-go process.
// It owns the paired-host store and the currently active stream, if any;
// per internal/session's process-wide gate, only one stream can be active
// at a time regardless of how many browsers are watching it.
type Server struct {
	cfg   *config.Config
	store *store.Store

	httpServer *http.Server

	mu     sync.Mutex
	stream *activeStream
}

// activeStream bundles the pieces that come up and go down together when a
// stream starts and stops.
type activeStream struct {
	sess       *session.Session
	bridge     *webrtcbridge.Bridge
	cancel     context.CancelFunc
	hostAddr   store.HostAddress
	dispatcher *sessionInputDispatcher
}

// New builds a Server bound to cfg.ListenAddr, backed by the paired-host
// store at cfg.StoreDirOrDefault().
func New(cfg *config.Config) (*Server, error) {
	st, err := store.Open(cfg.StoreDirOrDefault())
	if err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg, store: st}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	}))

	s.routes(r)

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/hosts", s.handleListHosts)
		r.Delete("/hosts/{id}", s.handleDeleteHost)
		r.Post("/pair", s.handlePair)
		r.Get("/apps", s.handleAppList)
		r.Post("/stream/start", s.handleStreamStart)
		r.Post("/stream/stop", s.handleStreamStop)
		r.Get("/stream/status", s.handleStreamStatus)
	})
	r.Get("/ws", s.handleSignalling)
}

// Run starts serving and blocks until the listener stops or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Shutdown stops the HTTP server and tears down any active stream.
func (s *Server) Shutdown() error {
	s.stopStream()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) clientFor(addr store.HostAddress) (*sunshine.Client, *sunshine.Identity, error) {
	id, err := sunshine.LoadOrCreateIdentity(s.cfg.StoreDirOrDefault())
	if err != nil {
		return nil, nil, err
	}
	return sunshine.NewClient(addr.Hostname, addr.HTTPPort, addr.HTTPSPort, id), id, nil
}
