package ws

import (
	"net/http"
	"time"

	"github.com/bakehouse/api/internal/auth"
	"github.com/bakehouse/api/internal/enum"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeTimeout  = 10 * time.Second
	idleTimeout   = 60 * time.Second
	pingInterval  = 50 * time.Second // below idleTimeout
	maxInboundMsg = 512
	sendQueueSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is not checked; the token query parameter authenticates.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Client is one dashboard or distributor connection subscribed to a room.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	room string
	send chan []byte
}

// listen drains inbound frames until the peer goes away. Subscribers only
// receive; anything they send is discarded.
func (c *Client) listen() {
	defer c.conn.Close()
	defer c.hub.leave(c)

	c.conn.SetReadLimit(maxInboundMsg)
	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	}
	_ = extend("")
	c.conn.SetPongHandler(extend)

	for {
		_, _, err := c.conn.ReadMessage()
		if err == nil {
			continue
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			log.Warn().Err(err).Str("room", c.room).Msg("websocket read")
		}
		return
	}
}

// deliver writes queued events, one frame each, and keeps the connection
// alive with pings. It stops when the hub closes the send queue.
func (c *Client) deliver() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	defer c.conn.Close()

	for {
		var (
			kind int
			data []byte
		)
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(writeTimeout))
				return
			}
			kind, data = websocket.TextMessage, msg
		case <-ping.C:
			kind = websocket.PingMessage
		}

		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(kind, data); err != nil {
			log.Debug().Err(err).Str("room", c.room).Msg("websocket write")
			return
		}
	}
}

// roomFor picks the room a user subscribes to from their role.
func roomFor(claims *auth.Claims) string {
	if claims.Role == enum.UserRoleDistributor {
		return DistributorRoom(claims.UserID)
	}
	return DashboardRoom
}

// ServeWS upgrades GET /ws/orders?token=JWT and subscribes the caller to
// the room of their role.
func ServeWS(hub *Hub, jwtSecret string, w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	claims, err := auth.ValidateToken(jwtSecret, token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade")
		return
	}

	c := &Client{hub: hub, conn: conn, room: roomFor(claims), send: make(chan []byte, sendQueueSize)}
	if !hub.join(c) {
		conn.Close()
		return
	}
	go c.deliver()
	go c.listen()
}
