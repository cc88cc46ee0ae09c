package web

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"straddle-bot-go/internal/engine"
	"straddle-bot-go/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard may be served from a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// snapshot is the full state sent to every newly connected observer.
type snapshot struct {
	Trades    []models.Trade   `json:"trades"`
	Config    models.BotConfig `json:"config"`
	IsRunning bool             `json:"isRunning"`
}

// hub broadcasts engine events to all connected websocket clients.
type hub struct {
	logger *zap.Logger
	engine *engine.Engine

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newHub(eng *engine.Engine, logger *zap.Logger) *hub {
	return &hub{
		logger:  logger.Named("ws-hub"),
		engine:  eng,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// run drains the engine's event stream and relays each event verbatim.
// Returns when the subscription is cancelled.
func (h *hub) run(events <-chan engine.Event) {
	for ev := range events {
		h.broadcast(ev)
	}
}

func (h *hub) broadcast(ev engine.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(ev); err != nil {
			h.logger.Debug("Dropping websocket client", zap.Error(err))
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// handleWS upgrades the connection, sends the initial snapshot and keeps
// the client registered until it disconnects.
func (h *hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	initial := engine.Event{
		Type: "INITIAL_STATE",
		Data: snapshot{
			Trades:    h.engine.AllTrades(),
			Config:    h.engine.Config(),
			IsRunning: h.engine.IsRunning(),
		},
	}
	if err := conn.WriteJSON(initial); err != nil {
		conn.Close()
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("Websocket client connected")

	// Reader loop exists only to detect disconnects; clients don't send
	// commands over the socket.
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			conn.Close()
			h.logger.Info("Websocket client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
