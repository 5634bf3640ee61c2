package web

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Uranury/envnode/sensors"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	id   string
	conn *websocket.Conn
	// gorilla connections allow one concurrent writer
	wmu sync.Mutex
}

// Hub broadcasts every stored reading to the connected websocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*client
	log     logrus.FieldLogger
}

func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{clients: make(map[string]*client), log: log}
}

func (h *Hub) Name() string { return "websocket" }

// Store sends data to every client. Clients that fail the write are dropped.
func (h *Hub) Store(data *sensors.SensorData) error {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.wmu.Lock()
		err := c.conn.WriteJSON(data)
		c.wmu.Unlock()
		if err != nil {
			h.log.WithError(err).WithField("client", c.id).Warn("websocket write error")
			h.remove(c)
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and keeps the client registered until it
// disconnects.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade error")
		return
	}
	cl := &client{id: uuid.NewString(), conn: conn}

	h.mu.Lock()
	h.clients[cl.id] = cl
	n := len(h.clients)
	h.mu.Unlock()
	h.log.WithField("client", cl.id).Infof("client connected, total clients: %d", n)

	defer h.remove(cl)

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		c.conn.Close()
		h.log.WithField("client", c.id).Infof("client disconnected, total clients: %d", n)
	}
}

// Close disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()
	for _, c := range clients {
		c.conn.Close()
	}
	return nil
}
