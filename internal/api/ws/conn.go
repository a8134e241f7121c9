package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/aptools/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	bufferSize     = 64
)

// Conn is a message link over a websocket. Send never blocks.
type Conn struct {
	ws     *websocket.Conn
	out    chan protocol.Message
	in     chan protocol.Message
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func newConn(ws *websocket.Conn, logger *zap.Logger) *Conn {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Conn{
		ws:     ws,
		out:    make(chan protocol.Message, bufferSize),
		in:     make(chan protocol.Message, bufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go c.writePump()
	go c.readPump()
	return c
}

// Send queues msg for writing.
func (c *Conn) Send(msg protocol.Message) error {
	select {
	case <-c.done:
		return protocol.ErrPortClosed
	default:
	}

	select {
	case c.out <- msg:
		return nil
	default:
		return protocol.ErrPortFull
	}
}

// Messages returns inbound messages. It is closed when the link fails.
func (c *Conn) Messages() <-chan protocol.Message {
	return c.in
}

// Done is closed once the link is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close shuts the link down.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) readPump() {
	defer close(c.in)
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			c.logger.Debug("Dropped undecodable frame", zap.Error(err))
			continue
		}

		select {
		case c.in <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.out:
			data, err := protocol.Encode(msg)
			if err != nil {
				c.logger.Debug("Dropped unencodable message", zap.Error(err))
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Debug("WebSocket write error", zap.Error(err))
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
