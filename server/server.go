// Package server exposes the map data API over HTTP and streams overlay
// mutations to connected browsers over WebSocket. It owns the selection,
// settings, and synchronization engine; browsers are thin renderers.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hydrofabric/basinmap/config"
	"github.com/hydrofabric/basinmap/engine"
	"github.com/hydrofabric/basinmap/errors"
	"github.com/hydrofabric/basinmap/hydrofabric"
	"github.com/hydrofabric/basinmap/jobs"
	"github.com/hydrofabric/basinmap/layers"
	"github.com/hydrofabric/basinmap/selection"
	"github.com/hydrofabric/basinmap/settings"
)

// Server wires the engine, hydrofabric store, and job pool behind the HTTP
// and WebSocket surface.
type Server struct {
	cfg *config.Config
	log *zap.SugaredLogger

	store    *hydrofabric.Store
	fetcher  *hydrofabric.Fetcher
	sel      *selection.State
	settings *settings.Store
	registry *layers.Registry
	surface  *WSSurface
	eng      *engine.Engine
	ctrl     *engine.Controller

	jobStore *jobs.Store
	pool     *jobs.Pool

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	httpServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// New assembles a server from its stores. The job store may be nil when
// serving map data only.
func New(cfg *config.Config, store *hydrofabric.Store, jobStore *jobs.Store, log *zap.SugaredLogger) *Server {
	s := &Server{
		cfg:        cfg,
		log:        log,
		store:      store,
		sel:        selection.NewState(),
		settings:   settings.NewDefaultStore(),
		jobStore:   jobStore,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
	}

	s.surface = NewWSSurface(s)
	s.registry = layers.NewRegistry(s.surface, s.settings, log)
	s.fetcher = hydrofabric.NewFetcher(store, log)
	s.eng = engine.New(s.sel, s.registry, s.fetcher, log)
	s.eng.SetRateLimit(cfg.Engine.FetchesPerSecond, cfg.Engine.FetchBurst)
	s.ctrl = engine.NewController(s.sel, s.eng, s.fetcher, log)

	if cfg.Settings.SyncEnabled && cfg.Settings.SyncURL != "" {
		s.settings.EnableSync(settings.NewHTTPSync(cfg.Settings.SyncURL))
	}

	if jobStore != nil {
		registry := jobs.NewRegistry()
		registry.Register(jobs.NewSubsetHandler(store, cfg.Output.Dir, monitorInterval(cfg), log))
		registry.Register(jobs.NewForcingsHandler(log))
		registry.Register(jobs.NewRealizationHandler(log))
		s.pool = jobs.NewPool(jobStore, registry, jobs.PoolConfig{
			Workers:      cfg.Jobs.Workers,
			PollInterval: 200 * time.Millisecond,
		}, log)
	}

	return s
}

func monitorInterval(cfg *config.Config) time.Duration {
	if !cfg.Jobs.MemoryMonitor {
		return 0
	}
	return time.Duration(cfg.Jobs.MonitorSeconds) * time.Second
}

// Start begins serving and blocks until the listener fails or Shutdown runs.
func (s *Server) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.runHub()

	if s.pool != nil {
		s.pool.Start(s.ctx)
	}

	// Boundary overlays are static; install them once at startup so the
	// first connected browser sees them.
	if err := s.ctrl.LoadBoundaries(s.ctx); err != nil {
		s.log.Warnw("VPU boundaries unavailable", "error", err)
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Infow("Server listening", "addr", addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return errors.Wrap(err, "http server")
}

// Shutdown drains connections, the hub, and the job pool.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Infow("Server shutting down")

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.pool != nil {
		s.pool.Stop()
	}
	s.wg.Wait()
	return errors.Wrap(err, "http shutdown")
}

// runHub owns the client set. All joins, leaves, and broadcasts funnel
// through here so the set needs no external locking.
func (s *Server) runHub() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			s.mu.Lock()
			for client := range s.clients {
				close(client.send)
				delete(s.clients, client)
			}
			s.mu.Unlock()
			return

		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			n := len(s.clients)
			s.mu.Unlock()
			s.log.Infow("Client connected", "client_id", client.id, "clients", n)
			client.sendSnapshot()

		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}
			n := len(s.clients)
			s.mu.Unlock()
			s.log.Infow("Client disconnected", "client_id", client.id, "clients", n)

		case msg := <-s.broadcast:
			s.mu.RLock()
			for client := range s.clients {
				select {
				case client.send <- msg:
				default:
					// Slow client; drop the frame rather than block the hub.
				}
			}
			s.mu.RUnlock()
		}
	}
}

// broadcastMessage queues a frame for every connected client.
func (s *Server) broadcastMessage(msg []byte) {
	select {
	case s.broadcast <- msg:
	default:
		s.log.Warnw("Broadcast queue full, dropping frame")
	}
}

// Controller exposes the interaction controller, for tests.
func (s *Server) Controller() *engine.Controller {
	return s.ctrl
}

// Engine exposes the synchronization engine, for tests and status.
func (s *Server) Engine() *engine.Engine {
	return s.eng
}

// Settings exposes the display settings store.
func (s *Server) Settings() *settings.Store {
	return s.settings
}
