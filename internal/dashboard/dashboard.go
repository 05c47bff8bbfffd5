// Package dashboard serves the valuation web interface: an HTML form and
// report page, a JSON API, a PNG price distribution chart and a WebSocket
// endpoint that answers queries with reports.
//
// A dashboard built without a valuation service runs in offline mode: the
// page shows a banner telling the operator to run the trainer and every
// valuation endpoint answers 503.
package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"autovaluate/internal/storage"
	"autovaluate/internal/valuation"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// MetricsRecorder is the slice of metrics the dashboard reports to.
type MetricsRecorder interface {
	WSClientsSet(n int)
	HTTPRequestInc(route string, code int)
	ChartRendersInc()
	ErrorsInc()
}

// ModelInfo is what /api/model exposes about the loaded artifacts.
type ModelInfo struct {
	Meta    *storage.Metadata  `json:"meta,omitempty"`
	History []storage.Metadata `json:"history,omitempty"`
}

// Dashboard is the HTTP front end over a valuation service.
type Dashboard struct {
	service   *valuation.Service // nil when offline
	model     ModelInfo
	metrics   MetricsRecorder
	server    *http.Server
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex
	isRunning bool
	mu        sync.Mutex
}

// New builds the dashboard and its routes. service may be nil, which puts
// the dashboard in offline mode.
func New(service *valuation.Service, model ModelInfo, metrics MetricsRecorder, port int) *Dashboard {
	d := &Dashboard{
		service:  service,
		model:    model,
		metrics:  metrics,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[*websocket.Conn]bool),
	}

	r := mux.NewRouter()
	r.Use(d.instrument)
	r.HandleFunc("/", d.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/api/options", d.handleOptions).Methods(http.MethodGet)
	r.HandleFunc("/api/valuation", d.handleValuation).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/api/model", d.handleModel).Methods(http.MethodGet)
	r.HandleFunc("/chart.png", d.handleChart).Methods(http.MethodGet)
	r.HandleFunc("/ws", d.handleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/health", d.handleHealth).Methods(http.MethodGet)

	d.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return d
}

// Handler exposes the router, mostly for tests.
func (d *Dashboard) Handler() http.Handler { return d.server.Handler }

// Addr is the listen address.
func (d *Dashboard) Addr() string { return d.server.Addr }

// Offline reports whether the dashboard was started without a model.
func (d *Dashboard) Offline() bool { return d.service == nil }

// Start serves in the background.
func (d *Dashboard) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isRunning {
		return fmt.Errorf("dashboard is already running")
	}

	go func() {
		log.Info().
			Str("address", d.server.Addr).
			Bool("offline", d.Offline()).
			Msg("Starting dashboard server")

		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Dashboard server failed")
		}
	}()

	d.isRunning = true
	return nil
}

// Stop closes WebSocket clients and shuts the server down.
func (d *Dashboard) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isRunning {
		return nil
	}

	d.clientsMu.Lock()
	for client := range d.clients {
		client.Close()
	}
	d.clients = make(map[*websocket.Conn]bool)
	d.clientsMu.Unlock()
	d.setClientGauge(0)

	if err := d.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown dashboard server")
		return err
	}

	d.isRunning = false
	log.Info().Msg("Dashboard stopped")
	return nil
}

func (d *Dashboard) setClientGauge(n int) {
	if d.metrics != nil {
		d.metrics.WSClientsSet(n)
	}
}

func (d *Dashboard) errorsInc() {
	if d.metrics != nil {
		d.metrics.ErrorsInc()
	}
}
