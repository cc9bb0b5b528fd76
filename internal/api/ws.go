// internal/api/ws.go
package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/rovshanmuradov/solana-market-nexus/internal/events"
	"go.uber.org/zap"
)

const (
	clientSendBuffer = 64
	defaultWriteWait = 10 * time.Second
)

// ClientGauge получает текущее число подключенных клиентов.
type ClientGauge interface {
	SetWebsocketClients(n int)
}

type wsClient struct {
	conn   net.Conn
	userID string
	send   chan []byte
	once   sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}

// Hub рассылает события шины подключенным websocket-клиентам.
// Рыночные события получают все, пользовательские - только владелец.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*wsClient]struct{}
	gauge     ClientGauge
	writeWait time.Duration
	logger    *zap.Logger
}

// NewHub создает хаб; gauge может быть nil.
func NewHub(gauge ClientGauge, logger *zap.Logger) *Hub {
	return &Hub{
		clients:   make(map[*wsClient]struct{}),
		gauge:     gauge,
		writeWait: defaultWriteWait,
		logger:    logger.Named("ws_hub"),
	}
}

// Handle реализует events.Handler.
func (h *Hub) Handle(_ context.Context, event events.Event) error {
	payload, err := events.Marshal(event)
	if err != nil {
		return err
	}

	owner := event.UserID()
	var slow []*wsClient

	h.mu.RLock()
	for c := range h.clients {
		if owner != "" && owner != c.userID {
			continue
		}
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("Dropping slow websocket client", zap.String("user_id", c.userID))
		h.unregister(c)
	}
	return nil
}

// ServeWS апгрейдит соединение и держит его до отключения клиента.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	c := &wsClient{conn: conn, userID: userID, send: make(chan []byte, clientSendBuffer)}
	h.register(c)

	go h.writeLoop(c)
	go h.readLoop(c)
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.reportClients(n)
	h.logger.Debug("Websocket client connected", zap.String("user_id", c.userID), zap.Int("clients", n))
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.close()
		h.reportClients(n)
		h.logger.Debug("Websocket client disconnected", zap.String("user_id", c.userID), zap.Int("clients", n))
	}
}

func (h *Hub) reportClients(n int) {
	if h.gauge != nil {
		h.gauge.SetWebsocketClients(n)
	}
}

func (h *Hub) writeLoop(c *wsClient) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err := wsutil.WriteServerText(c.conn, msg); err != nil {
			h.logger.Debug("Websocket write failed", zap.Error(err))
			h.unregister(c)
			return
		}
	}
}

// readLoop отвечает на служебные фреймы и ловит отключение клиента.
// Данные от клиента игнорируются.
func (h *Hub) readLoop(c *wsClient) {
	defer h.unregister(c)
	for {
		if _, _, err := wsutil.ReadClientData(c.conn); err != nil {
			return
		}
	}
}

// Clients возвращает число подключенных клиентов.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close отключает всех клиентов.
func (h *Hub) Close() error {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	h.reportClients(0)
	return nil
}
