package notify

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeTimeout = 10 * time.Second
	pingTimeout  = 30 * time.Second
	readTimeout  = 2 * pingTimeout
)

// syncMessage is the only frame the server ever sends. It carries no data;
// the client reacts by pulling the diff.
var syncMessage = []byte(`{"type":"sync"}`)

// Conn is one live websocket subscription of a device. Wakes are coalesced
// through a single-slot channel, so a connection that has not drained its
// previous signal does not queue further ones.
type Conn struct {
	log      *zap.Logger
	ws       *websocket.Conn
	deviceID string

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewConn wraps an upgraded websocket connection for the given device.
func NewConn(log *zap.Logger, ws *websocket.Conn, deviceID string) *Conn {
	return &Conn{
		log:      log,
		ws:       ws,
		deviceID: deviceID,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// DeviceID identifies the device behind this connection.
func (c *Conn) DeviceID() string { return c.deviceID }

// Wake signals the connection without blocking. A pending signal absorbs
// further ones until the write pump delivers it.
func (c *Conn) Wake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Run drives the read and write pumps until the peer disconnects or the
// context is cancelled. It blocks; the caller owns registration around it.
func (c *Conn) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go c.readPump()
	c.writePump(ctx)

	cancel()
	c.ws.Close()
	<-c.done
}

// readPump drains incoming frames. Clients never send meaningful data here;
// reading keeps pong handling alive and detects disconnects.
func (c *Conn) readPump() {
	defer close(c.done)
	defer c.cancel()

	c.ws.SetReadLimit(512)
	c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("websocket read", zap.String("deviceId", c.deviceID), zap.Error(err))
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(readTimeout))
	}
}

func (c *Conn) writePump(ctx context.Context) {
	ping := time.NewTicker(pingTimeout)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return

		case <-c.wake:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, syncMessage); err != nil {
				return
			}

		case <-ping.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
