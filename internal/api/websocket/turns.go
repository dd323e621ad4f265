package websocket

import (
	"context"
	"net/http"

	"github.com/parleychat/parley/internal/domain/events"
	"github.com/parleychat/parley/internal/domain/services"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// TurnHub pushes recomputed turns to subscribed clients whenever a model
// task advances, finishes, or reconciliation rewrites history.
type TurnHub struct {
	chatService services.ChatService
	logger      *zap.Logger

	connections map[string][]*websocket.Conn
	register    chan registration
	unregister  chan registration
	notify      chan string
	unsubscribe func()
}

type registration struct {
	ChatID string
	conn   *websocket.Conn
}

func NewTurnHub(chatService services.ChatService, logger *zap.Logger) *TurnHub {
	return &TurnHub{
		chatService: chatService,
		logger:      logger,
		connections: make(map[string][]*websocket.Conn),
		register:    make(chan registration),
		unregister:  make(chan registration),
		notify:      make(chan string, 64),
	}
}

func (h *TurnHub) Run() {
	h.unsubscribe = events.SubscribeToTurnsChangedEvents(func(data events.TurnsChangedEventData) {
		select {
		case h.notify <- data.ChatID:
		default:
			// A full queue means a broadcast for this chat is already
			// pending; turns are recomputed from snapshots, so one push
			// covers any number of coalesced changes.
		}
	})

	for {
		select {
		case reg := <-h.register:
			h.connections[reg.ChatID] = append(h.connections[reg.ChatID], reg.conn)
		case unreg := <-h.unregister:
			if conns, ok := h.connections[unreg.ChatID]; ok {
				for i, conn := range conns {
					if conn == unreg.conn {
						h.connections[unreg.ChatID] = append(conns[:i], conns[i+1:]...)
						break
					}
				}
				if len(h.connections[unreg.ChatID]) == 0 {
					delete(h.connections, unreg.ChatID)
				}
			}
		case chatID := <-h.notify:
			h.broadcast(chatID)
		}
	}
}

func (h *TurnHub) broadcast(chatID string) {
	conns, ok := h.connections[chatID]
	if !ok {
		return
	}
	turns := h.chatService.GetTurns(context.Background(), chatID)
	for _, conn := range conns {
		if err := conn.WriteJSON(turns); err != nil {
			h.logger.Warn("Websocket write failed", zap.String("chat_id", chatID), zap.Error(err))
			go func(c *websocket.Conn) { h.unregister <- registration{chatID, c} }(conn)
		}
	}
}

// TurnsHandler upgrades the connection and keeps it subscribed to one chat's
// turn updates until the client goes away.
func TurnsHandler(hub *TurnHub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID := r.URL.Query().Get("chat_id")
		if chatID == "" {
			http.Error(w, "Missing chat_id", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("Websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		hub.register <- registration{chatID, conn}
		defer func() {
			hub.unregister <- registration{chatID, conn}
		}()

		// Reads only keep the connection alive; clients drive submissions
		// through the HTTP API.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}
}
