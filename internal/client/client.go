// Package client is a Go client for the signaling server: it dials the
// websocket, encodes messages with the negotiated codec and routes replies.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/infinitybuddha29/caller/internal/signaling"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Options configures Dial.
type Options struct {
	// URL of the websocket endpoint, e.g. ws://localhost:8080/ws.
	URL string

	// Subprotocol selects the wire codec. Empty means JSON.
	Subprotocol string

	// Resolver resolves the server host. Nil uses the system resolver only.
	Resolver *Resolver

	Logger *slog.Logger
}

// Client manages the websocket connection to the signaling server.
type Client struct {
	conn  *websocket.Conn
	codec signaling.Codec
	log   *slog.Logger

	incoming chan *signaling.Message
	outgoing chan *signaling.Message
	done     chan struct{}

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

// Dial connects to the signaling server and starts the read and write pumps.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, WrapError("connect", ErrInvalidURL, err.Error())
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, WrapError("connect", ErrInvalidURL, fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}

	subprotocol := opts.Subprotocol
	if subprotocol == "" {
		subprotocol = signaling.SubprotocolJSON
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	resolver := opts.Resolver
	if resolver == nil {
		resolver = &Resolver{}
	}

	dialer := websocket.Dialer{
		NetDialContext:   resolver.DialContext,
		HandshakeTimeout: 10 * time.Second,
		Subprotocols:     []string{subprotocol},
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, WrapError("connect", err, u.Host)
	}

	c := &Client{
		conn:     conn,
		codec:    signaling.CodecForSubprotocol(conn.Subprotocol()),
		log:      logger,
		incoming: make(chan *signaling.Message, 16),
		outgoing: make(chan *signaling.Message, 16),
		done:     make(chan struct{}),
	}

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return c, nil
}

// Codec returns the codec negotiated with the server.
func (c *Client) Codec() signaling.Codec {
	return c.codec
}

// readPump reads messages from the websocket connection.
func (c *Client) readPump() {
	defer func() {
		c.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		frameType, data, err := c.conn.ReadMessage()
		if err != nil {
			if !errors.Is(err, websocket.ErrCloseSent) && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.setErr(err)
			}
			return
		}

		codec, ok := signaling.CodecForFrame(frameType)
		if !ok {
			continue
		}
		var msg signaling.Message
		if err := codec.Unmarshal(data, &msg); err != nil {
			c.log.Debug("dropping undecodable message", "err", err)
			continue
		}

		select {
		case c.incoming <- &msg:
		case <-c.done:
			return
		}
	}
}

// writePump writes messages to the websocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outgoing:
			data, err := c.codec.Marshal(msg)
			if err != nil {
				c.log.Debug("encode failed", "type", msg.Type, "err", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(c.codec.FrameType(), data); err != nil {
				c.setErr(err)
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send queues msg for delivery. It fails once the client is closed.
func (c *Client) Send(msg *signaling.Message) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Join asks the server to place this client in roomID.
func (c *Client) Join(roomID string) error {
	if roomID == "" {
		return NewError("join", errors.New("room id is required"))
	}
	return c.Send(signaling.JoinMessage(roomID))
}

// Incoming returns the channel of messages from the server. It is closed when
// the connection ends.
func (c *Client) Incoming() <-chan *signaling.Message {
	return c.incoming
}

// Done is closed once the client shuts down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Client) setErr(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}

// Close closes the websocket connection. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
