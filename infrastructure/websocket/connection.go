// Package websocket carries chat sessions over gorilla websocket connections
// and exposes the HTTP surface of the chat server.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"duo-chat/domain/event"
	"duo-chat/errors"

	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type ConnectionConfig struct {
	BufferSize     int
	MaxMessageSize int64
	RateBurst      int
	RateInterval   time.Duration
}

type frame struct {
	in  event.Inbound
	err error
}

// Connection adapts one websocket to contract.Connection.
// A read pump decodes client frames, a write pump owns every write to the socket.
type Connection struct {
	id        string
	token     string
	ws        *gorilla.Conn
	send      chan []byte
	inbound   chan frame
	done      chan struct{}
	closeOnce sync.Once
	limiter   *rateLimiter
	log       *slog.Logger
}

func NewConnection(ws *gorilla.Conn, token string, cfg ConnectionConfig, log *slog.Logger) *Connection {
	ws.SetReadLimit(cfg.MaxMessageSize)
	id := uuid.NewString()
	c := &Connection{
		id:      id,
		token:   token,
		ws:      ws,
		send:    make(chan []byte, cfg.BufferSize),
		inbound: make(chan frame),
		done:    make(chan struct{}),
		limiter: newRateLimiter(cfg.RateBurst, cfg.RateInterval),
		log:     log.With("conn_id", id, "addr", ws.RemoteAddr().String()),
	}
	go c.readPump()
	go c.writePump()
	return c
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) Token() string {
	return c.token
}

// Consume queues the frame for the write pump. A full buffer blocks until ctx ends.
func (c *Connection) Consume(ctx context.Context, e event.Outbound) error {
	data, err := e.Encode()
	if err != nil {
		return fmt.Errorf("encoding %q: %w", e.Name, err)
	}
	select {
	case <-c.done:
		return fmt.Errorf("%w: connection closed", errors.ErrTransportFailure)
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return fmt.Errorf("%w: connection closed", errors.ErrTransportFailure)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", errors.ErrTransportFailure, ctx.Err())
	}
}

// Next returns the next client frame. A frame that is not a valid envelope
// yields ErrInvalidPayload and the connection stays usable.
func (c *Connection) Next(ctx context.Context) (event.Inbound, error) {
	select {
	case f, ok := <-c.inbound:
		if !ok {
			return event.Inbound{}, fmt.Errorf("%w: connection closed", errors.ErrTransportFailure)
		}
		return f.in, f.err
	case <-ctx.Done():
		return event.Inbound{}, ctx.Err()
	}
}

// Close flushes queued frames, sends a close frame and releases the socket. Safe to call many times.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *Connection) readPump() {
	defer close(c.inbound)
	defer func() { _ = c.Close() }()

	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if !c.limiter.allow() {
			c.log.Warn("Rate limit exceeded, discarding frame")
			continue
		}

		f := frame{}
		var envelope event.Envelope
		switch err := json.Unmarshal(raw, &envelope); {
		case err != nil:
			f.err = fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
		case envelope.Event == "":
			f.err = fmt.Errorf("%w: missing event name", errors.ErrInvalidPayload)
		default:
			f.in = event.Inbound{Name: envelope.Event, Data: envelope.Data}
		}

		select {
		case c.inbound <- f:
		case <-c.done:
			return
		}
	}
}

func (c *Connection) logReadError(err error) {
	switch {
	case errors.Is(err, gorilla.ErrReadLimit):
		c.log.Warn("Frame exceeded maximum size", "error", err)
	case gorilla.IsUnexpectedCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway, gorilla.CloseNoStatusReceived):
		c.log.Warn("Unexpected websocket close", "error", err)
	default:
		c.log.Debug("Websocket closed", "error", err)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case data := <-c.send:
			if err := c.write(gorilla.TextMessage, data); err != nil {
				c.log.Debug("Write failed", "error", err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(gorilla.PingMessage, nil); err != nil {
				c.log.Debug("Ping failed", "error", err)
				_ = c.Close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.write(gorilla.CloseMessage, gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes what was queued before Close, so a final notice reaches the client.
func (c *Connection) flush() {
	for {
		select {
		case data := <-c.send:
			if err := c.write(gorilla.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, data)
}
