// Package gateway exposes the cache to clients: a REST surface over the
// binding views and the mutation API, and a WebSocket channel streaming
// store change events. Connections are gated by an origin allow-list; an
// empty list accepts every origin.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"sigs.k8s.io/controller-runtime/pkg/healthz"

	"github.com/grolu/credcache/internal/credentials"
	"github.com/grolu/credcache/internal/store"
)

// ServerOptions configures the gateway.
type ServerOptions struct {
	// Addr is the listen address. Default ":8085".
	Addr string

	// AllowedOrigins gates WebSocket connections. Empty means every origin
	// is accepted; non-empty means an unlisted origin is rejected before
	// the upgrade, which the client observes as a connect error.
	AllowedOrigins []string

	// Logger for server operations.
	Logger *zap.Logger
}

// Server is the HTTP/WebSocket gateway.
type Server struct {
	logger     *zap.Logger
	store      *store.Store
	manager    *credentials.Manager
	classifier store.Classifier
	opts       ServerOptions
	upgrader   websocket.Upgrader
	httpServer *http.Server
	startTime  time.Time

	mu              sync.RWMutex
	wsClients       map[string]chan []byte
	clientIDCounter int
}

// NewServer creates a gateway over the given store, manager and classifier.
func NewServer(st *store.Store, manager *credentials.Manager, classifier store.Classifier, opts ServerOptions) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8085"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		logger:     opts.Logger.Named("gateway"),
		store:      st,
		manager:    manager,
		classifier: classifier,
		opts:       opts,
		startTime:  time.Now(),
		wsClients:  make(map[string]chan []byte),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.originAllowed}
	return s
}

// originAllowed implements the allow-list contract: no configured origins
// means accept everything, otherwise the declared origin must match exactly.
func (s *Server) originAllowed(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.opts.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// Handler returns the gateway's HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/bindings", s.handleBindings)
	mux.HandleFunc("/api/v1/bindings/", s.handleBindingByKey)
	mux.HandleFunc("/api/v1/secrets/", s.handleGetSecret)
	mux.HandleFunc("/api/v1/workloadidentities/", s.handleGetWorkloadIdentity)
	mux.HandleFunc("/api/v1/quotas/", s.handleGetQuota)
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", http.StripPrefix("/healthz", &healthz.Handler{
		Checks: map[string]healthz.Checker{"ping": healthz.Ping},
	}))
	mux.Handle("/readyz", http.StripPrefix("/readyz", &healthz.Handler{
		Checks: map[string]healthz.Checker{"ping": healthz.Ping},
	}))

	return mux
}

// Start runs the gateway until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting gateway",
		zap.String("addr", s.opts.Addr),
		zap.Strings("allowed_origins", s.opts.AllowedOrigins),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down gateway")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// handleWebSocket upgrades the connection and streams store change events
// until the client goes away. The upgrader rejects disallowed origins with
// 403 before any upgrade happens.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("WebSocket upgrade rejected",
			zap.String("origin", r.Header.Get("Origin")),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	s.clientIDCounter++
	clientID := fmt.Sprintf("client-%d", s.clientIDCounter)
	clientChan := make(chan []byte, 100)
	s.wsClients[clientID] = clientChan
	s.mu.Unlock()

	s.logger.Debug("WebSocket client connected", zap.String("client_id", clientID))

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, clientID)
		close(clientChan)
		s.mu.Unlock()
		conn.Close()
		s.logger.Debug("WebSocket client disconnected", zap.String("client_id", clientID))
	}()

	// Reader goroutine: we never expect client messages, but reading is how
	// close frames are noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case payload, ok := <-clientChan:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

// Broadcast sends a store change event to every connected client. Wired as
// the store's change callback.
func (s *Server) Broadcast(event store.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal broadcast event", zap.Error(err))
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for clientID, ch := range s.wsClients {
		select {
		case ch <- payload:
		default:
			s.logger.Warn("WebSocket client buffer full, dropping event",
				zap.String("client_id", clientID))
		}
	}
}
