package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"straddle-bot-go/internal/delta"
	"straddle-bot-go/internal/engine"
	"straddle-bot-go/internal/models"
)

// Server is the HTTP control surface for the engine: REST commands, the
// websocket event stream and the metrics endpoint.
type Server struct {
	server  *http.Server
	engine  *engine.Engine
	gateway delta.Gateway
	hub     *hub
	logger  *zap.Logger

	cancelSub func()
}

// NewServer wires the routes and the websocket hub.
func NewServer(port int, eng *engine.Engine, gateway delta.Gateway, logger *zap.Logger) *Server {
	s := &Server{
		engine:  eng,
		gateway: gateway,
		hub:     newHub(eng, logger),
		logger:  logger.Named("web"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/trading/trades", s.handleTrades)
	mux.HandleFunc("/api/trading/start", s.handleStart)
	mux.HandleFunc("/api/trading/stop", s.handleStop)
	mux.HandleFunc("/api/trading/square-off/", s.handleSquareOff) // trailing slash matches /square-off/{id}
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/wallet/balance", s.handleWalletBalance)
	mux.HandleFunc("/api/positions", s.handlePositions)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.hub.handleWS)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	return s
}

// Start runs the HTTP server in a new goroutine and begins relaying
// engine events to websocket clients.
func (s *Server) Start() {
	events, cancel := s.engine.Subscribe()
	s.cancelSub = cancel
	go s.hub.run(events)

	s.logger.Info("Starting web server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("Web server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping web server...")
	if s.cancelSub != nil {
		s.cancelSub()
	}
	return s.server.Shutdown(ctx)
}

type commandResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, commandResponse{Success: false, Error: err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]models.Trade{
		"active": s.engine.ActiveTrades(),
		"all":    s.engine.AllTrades(),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	s.engine.Start()
	s.writeJSON(w, http.StatusOK, commandResponse{Success: true, Message: "Trading bot started"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	s.engine.Stop()
	s.writeJSON(w, http.StatusOK, commandResponse{Success: true, Message: "Trading bot stopped"})
}

// handleSquareOff serves POST /api/trading/square-off/all and
// POST /api/trading/square-off/{tradeId}.
func (s *Server) handleSquareOff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	target := strings.TrimPrefix(r.URL.Path, "/api/trading/square-off/")
	if target == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("trade id required"))
		return
	}

	if target == "all" {
		if err := s.engine.SquareOffAll(models.StatusClosedKilled); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		s.writeJSON(w, http.StatusOK, commandResponse{Success: true, Message: "All positions squared off"})
		return
	}

	if err := s.engine.SquareOffTradeByID(target, models.StatusClosedManual); err != nil {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, http.StatusOK, commandResponse{Success: true, Message: "Trade squared off"})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, s.engine.Config())
	case http.MethodPut:
		var patch models.BotConfigPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("malformed config payload: %w", err))
			return
		}
		if _, err := s.engine.UpdateConfig(patch); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		s.writeJSON(w, http.StatusOK, commandResponse{Success: true, Message: "Configuration updated"})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
	}
}

func (s *Server) handleWalletBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := s.gateway.GetWalletBalance()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, balance)
}

// handlePositions relays the raw exchange positions, which may include
// positions opened outside the bot.
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.gateway.GetPositions()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if positions == nil {
		positions = []delta.Position{}
	}
	s.writeJSON(w, http.StatusOK, positions)
}
