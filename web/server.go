// Package web exposes the emulator over HTTP: start, stop, live course and
// speed changes, and a WebSocket feed of every emitted batch.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Bucknalla/nmea-gps-emulator/gps"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const broadcastBuffer = 16

// Server owns at most one simulator at a time. Each /api/start replaces it.
type Server struct {
	// StaticDir, when set, is served at / for a browser front end
	StaticDir string

	mu         sync.Mutex
	simulator  *gps.Simulator
	lastConfig gps.Config
	output     io.Writer

	upgrader  websocket.Upgrader
	clientsMu sync.Mutex
	clients   map[*websocket.Conn]bool
	broadcast chan gps.NMEAData
}

// NewServer returns a server whose first start uses config. Every simulator
// it creates also writes its batches to output, which may be nil.
func NewServer(config gps.Config, output io.Writer) *Server {
	return &Server{
		lastConfig: config,
		output:     output,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // the API carries no credentials
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan gps.NMEAData, broadcastBuffer),
	}
}

// Attach hands an already created simulator to the server, as the CLI does
// when it starts one before the HTTP listener.
func (s *Server) Attach(sim *gps.Simulator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attach(sim)
}

func (s *Server) attach(sim *gps.Simulator) {
	sim.AddCallback(func(data gps.NMEAData) {
		select {
		case s.broadcast <- data:
		default:
			// feed is behind, skip this batch
		}
	})
	s.simulator = sim
	s.lastConfig = sim.GetStatus().Config
}

// Handler returns the router with every API route registered
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	// full paths on the root router: a subrouter answers a method
	// mismatch with 404 instead of 405
	r.HandleFunc("/api/start", s.handleStartSimulator).Methods("POST")
	r.HandleFunc("/api/stop", s.handleStopSimulator).Methods("POST")
	r.HandleFunc("/api/status", s.handleGetStatus).Methods("GET")
	r.HandleFunc("/api/config", s.handleUpdateConfig).Methods("POST")
	r.HandleFunc("/api/steer", s.handleSteer).Methods("POST")
	r.HandleFunc("/api/ws", s.handleWebSocket)

	r.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if s.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.StaticDir)))
	}
	return r
}

// ListenAndServe serves the API on addr until ctx is cancelled. The running
// simulator, if any, is stopped on the way out.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	go s.broadcastToClients(ctx)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("web: listening on %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := server.Shutdown(shutdownCtx)

	s.mu.Lock()
	s.stopSimulator()
	s.mu.Unlock()

	s.clientsMu.Lock()
	for conn := range s.clients {
		conn.Close()
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	return err
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.mu.Lock()
	sim := s.simulator
	s.mu.Unlock()

	// register and greet under the same lock so the greeting is the first
	// message the client sees
	s.clientsMu.Lock()
	s.clients[conn] = true
	log.Printf("web: client connected, %d total", len(s.clients))
	if sim != nil {
		if err := conn.WriteJSON(map[string]interface{}{
			"type": "status",
			"data": sim.GetStatus(),
		}); err != nil {
			log.Printf("web: sending status: %v", err)
		}
	}
	s.clientsMu.Unlock()

	for {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		log.Printf("web: ignoring client message: %v", msg)
	}

	s.clientsMu.Lock()
	delete(s.clients, conn)
	log.Printf("web: client disconnected, %d total", len(s.clients))
	s.clientsMu.Unlock()
}

func (s *Server) broadcastToClients(ctx context.Context) {
	for {
		var nmeaData gps.NMEAData
		select {
		case <-ctx.Done():
			return
		case nmeaData = <-s.broadcast:
		}

		message := map[string]interface{}{
			"type": "nmea_data",
			"data": nmeaData,
		}

		s.clientsMu.Lock()
		for client := range s.clients {
			if err := client.WriteJSON(message); err != nil {
				log.Printf("web: websocket write error: %v", err)
				client.Close()
				delete(s.clients, client)
			}
		}
		s.clientsMu.Unlock()
	}
}

func (s *Server) handleStartSimulator(w http.ResponseWriter, r *http.Request) {
	// an empty or unreadable body restarts with the last configuration
	var jsonConfig map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&jsonConfig); err != nil && !errors.Is(err, io.EOF) {
		log.Printf("web: ignoring start body: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	config := parseConfig(s.lastConfig, jsonConfig)
	if config.GPXEnabled && config.GPXFile == "" {
		config.GPXFile = fmt.Sprintf("%s.gpx", time.Now().Format("20060102_150405"))
	}

	s.stopSimulator()

	simulator, err := gps.NewSimulator(config)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to create simulator: %v", err)
		return
	}
	if s.output != nil {
		simulator.SetNMEAWriter(s.output)
	}
	s.attach(simulator)
	if err := simulator.Start(); err != nil {
		s.simulator = nil
		writeError(w, http.StatusInternalServerError, "Failed to start simulator: %v", err)
		return
	}

	log.Printf("web: simulator started")

	writeJSON(w, map[string]string{"status": "started"})
}

// stopSimulator must be called with s.mu held
func (s *Server) stopSimulator() {
	if s.simulator == nil {
		return
	}
	if s.simulator.IsRunning() {
		if err := s.simulator.Stop(); err != nil {
			log.Printf("web: stopping simulator: %v", err)
		}
	}
	s.simulator = nil
}

func (s *Server) handleStopSimulator(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.stopSimulator()
	s.mu.Unlock()

	writeJSON(w, map[string]string{"status": "stopped"})
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sim := s.simulator
	s.mu.Unlock()

	if sim == nil {
		writeJSON(w, map[string]interface{}{
			"running": false,
			"message": "No simulator instance",
		})
		return
	}
	writeJSON(w, sim.GetStatus())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var jsonConfig map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&jsonConfig); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	config := parseConfig(s.lastConfig, jsonConfig)
	if err := config.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid config: %v", err)
		return
	}

	if s.simulator != nil && s.simulator.IsRunning() {
		if err := s.simulator.UpdateConfig(config); err != nil {
			writeError(w, http.StatusBadRequest, "Failed to update config: %v", err)
			return
		}
	}
	s.lastConfig = config

	writeJSON(w, map[string]string{"status": "updated"})
}

type steerRequest struct {
	Course float64 `json:"course"`
	Speed  float64 `json:"speed"`
}

func (s *Server) handleSteer(w http.ResponseWriter, r *http.Request) {
	var req steerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.simulator == nil {
		writeError(w, http.StatusConflict, "%v", gps.ErrSimulatorNotRunning)
		return
	}
	if err := s.simulator.Steer(req.Course, req.Speed); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to steer: %v", err)
		return
	}
	s.lastConfig.Course, s.lastConfig.Speed = req.Course, req.Speed

	writeJSON(w, map[string]string{"status": "steering"})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("web: %s", msg)
	http.Error(w, msg, code)
}
