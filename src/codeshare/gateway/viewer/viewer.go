// Package viewer owns the network side of the daemon: the HTTP listener
// that serves the viewer's static assets, the websocket upgrade, the set of
// connected viewer sessions, and best-effort fan-out delivery to them.
package viewer

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/felixge/httpsnoop"
	"github.com/gofrs/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	tally "github.com/uber-go/tally"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	_configKeyServer = "server"
	_wsPath          = "/ws"
)

// Module is the fx module for this package.
var Module = fx.Provide(New)

// ReceiveHandler is invoked for every inbound frame from any viewer. The
// protocol carries no viewer identity, so no per-session dispatch exists.
type ReceiveHandler func(data []byte)

// Gateway is the broadcast endpoint handed to the editor integration.
// Exactly one is live per process; its lifecycle is explicit so it can be
// started, stopped and faked in isolation.
type Gateway interface {
	// Start binds the listener and begins accepting viewers. Idempotent:
	// starting a running gateway returns the existing address without
	// creating a second listener. A bind failure is returned to the caller
	// and leaves the gateway fully stopped.
	Start(ctx context.Context) (address string, err error)
	// Stop terminates every connected session and closes the listener.
	// Stopping a non-running gateway is a no-op.
	Stop(ctx context.Context) error
	// Broadcast delivers text verbatim to every session currently in the
	// open state. Sessions mid-teardown are skipped, never queued or
	// retried. Calling Broadcast on a stopped gateway is a no-op.
	Broadcast(text string)
	// OnReceiveMessage registers the handler for inbound viewer frames.
	OnReceiveMessage(handler ReceiveHandler)
	// IsRunning reports whether the listener is active.
	IsRunning() bool
	// LocalAddress returns the address a remote viewer on the same network
	// should connect to, or the empty string when stopped.
	LocalAddress() string
}

// Params are inbound parameters to construct the gateway.
type Params struct {
	fx.In

	Config config.Provider
	Logger *zap.SugaredLogger
	Stats  tally.Scope
}

type serverConfig struct {
	Port     int    `yaml:"port"`
	AssetDir string `yaml:"assetDir"`
}

type hub struct {
	logger   *zap.SugaredLogger
	stats    tally.Scope
	port     int
	assetDir string
	upgrader websocket.Upgrader

	mu       sync.Mutex
	running  bool
	address  string
	srv      *http.Server
	sessions map[uuid.UUID]*session
	receive  ReceiveHandler
}

// New constructs the viewer gateway from configuration.
func New(p Params) (Gateway, error) {
	var cfg serverConfig
	if err := p.Config.Get(_configKeyServer).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyServer, err)
	}
	if cfg.Port == 0 {
		cfg.Port = 3000
	}

	return &hub{
		logger:   p.Logger.With("component", "viewer-gateway"),
		stats:    p.Stats.SubScope("viewer"),
		port:     cfg.Port,
		assetDir: cfg.AssetDir,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Viewers connect from arbitrary hosts on the local network.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[uuid.UUID]*session),
	}, nil
}

func (h *hub) Start(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return h.address, nil
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", h.port))
	if err != nil {
		return "", fmt.Errorf("binding viewer listener on port %d: %w", h.port, err)
	}
	boundPort := ln.Addr().(*net.TCPAddr).Port

	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, req)
			h.logger.Infow("handled",
				zap.String("method", req.Method),
				zap.String("url", req.URL.String()),
				zap.Int("status", m.Code),
				zap.Duration("duration", m.Duration))
		})
	})
	r.Path(_wsPath).HandlerFunc(h.handleUpgrade)
	r.PathPrefix("/").HandlerFunc(h.handleAsset)

	h.srv = &http.Server{Handler: r}
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.logger.Errorw("viewer listener stopped", zap.Error(err))
		}
	}(h.srv)

	h.running = true
	h.address = fmt.Sprintf("%s:%d", localIPAddress(), boundPort)
	h.logger.Infow("viewer gateway started", zap.String("address", h.address))
	return h.address, nil
}

func (h *hub) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return nil
	}

	var errs error
	for id, s := range h.sessions {
		s.terminate()
		delete(h.sessions, id)
	}
	h.stats.Gauge("connected_viewers").Update(0)

	if err := h.srv.Close(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("closing viewer listener: %w", err))
	}

	h.srv = nil
	h.running = false
	h.address = ""
	h.logger.Infow("viewer gateway stopped")
	return errs
}

func (h *hub) Broadcast(text string) {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	h.logger.Debugw("broadcasting", zap.Int("viewers", len(sessions)), zap.Int("bytes", len(text)))
	delivered := 0
	for _, s := range sessions {
		if s.deliver(text) {
			delivered++
		}
	}
	h.stats.Counter("messages_broadcast").Inc(1)
	h.stats.Counter("frames_delivered").Inc(int64(delivered))
}

func (h *hub) OnReceiveMessage(handler ReceiveHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.receive = handler
}

func (h *hub) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

func (h *hub) LocalAddress() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.address
}

func (h *hub) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("websocket upgrade failed", zap.Error(err))
		return
	}

	s := newSession(conn, h.logger)

	h.mu.Lock()
	if !h.running {
		// Raced with Stop; refuse the straggler.
		h.mu.Unlock()
		s.terminate()
		return
	}
	h.sessions[s.id] = s
	h.stats.Gauge("connected_viewers").Update(float64(len(h.sessions)))
	h.mu.Unlock()

	h.logger.Infow("viewer connected", zap.Stringer("session", s.id))
	go s.writePump()
	go s.readPump(h.onFrame, func() { h.dropSession(s) })
}

// onFrame forwards an inbound viewer frame to the registered handler.
func (h *hub) onFrame(data []byte) {
	h.mu.Lock()
	handler := h.receive
	h.mu.Unlock()

	if handler != nil {
		handler(data)
	}
}

// dropSession removes a disconnected session. Safe to call for sessions
// already removed by Stop.
func (h *hub) dropSession(s *session) {
	h.mu.Lock()
	if _, ok := h.sessions[s.id]; ok {
		delete(h.sessions, s.id)
		h.stats.Gauge("connected_viewers").Update(float64(len(h.sessions)))
	}
	h.mu.Unlock()

	s.terminate()
	h.logger.Infow("viewer disconnected", zap.Stringer("session", s.id))
}
