package server

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/infinitybuddha29/caller/internal/metrics"
	"github.com/infinitybuddha29/caller/internal/signaling"
)

// ClientOptions holds per-connection timing and buffer limits.
type ClientOptions struct {
	// Time allowed to write a message to the peer.
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration

	// Send pings to peer with this period. Must be less than PongWait.
	PingPeriod time.Duration

	// Maximum message size allowed from peer.
	MaxMessageBytes int64

	// Capacity of the outbound queue.
	SendBuffer int
}

// Client is a wrapper for a single websocket connection (a participant). It
// implements signaling.Participant.
type Client struct {
	id    string
	conn  *websocket.Conn
	coord *signaling.Coordinator
	codec signaling.Codec
	opts  ClientOptions
	log   *slog.Logger

	metrics *metrics.Metrics

	// send is the outbound queue drained by WritePump.
	send chan *signaling.Message

	// done is closed once the connection is shutting down.
	done      chan struct{}
	closeOnce sync.Once
	alive     atomic.Bool

	// onClose runs after the coordinator has processed Leave.
	onClose func(*Client)
}

func newClient(id string, conn *websocket.Conn, coord *signaling.Coordinator, opts ClientOptions, logger *slog.Logger, m *metrics.Metrics) *Client {
	c := &Client{
		id:      id,
		conn:    conn,
		coord:   coord,
		codec:   signaling.CodecForSubprotocol(conn.Subprotocol()),
		opts:    opts,
		log:     logger.With("participant", id),
		metrics: m,
		send:    make(chan *signaling.Message, opts.SendBuffer),
		done:    make(chan struct{}),
	}
	c.alive.Store(true)
	return c
}

// ID returns the participant ID assigned on connect.
func (c *Client) ID() string { return c.id }

// Alive reports whether the connection is still open.
func (c *Client) Alive() bool { return c.alive.Load() }

// Send queues msg for the write pump without blocking.
func (c *Client) Send(msg *signaling.Message) error {
	if !c.alive.Load() {
		return signaling.ErrClosed
	}
	select {
	case <-c.done:
		return signaling.ErrClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return signaling.ErrSendBufferFull
	}
}

// Close shuts the connection down. The coordinator sees exactly one Leave no
// matter how many times or from where Close is called.
func (c *Client) Close() {
	c.shutdown()
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.alive.Store(false)
		c.coord.Leave(c)
		close(c.done)
		c.metrics.Inc(metrics.EventConnectionClosed)
		c.log.Debug("client disconnected")
		if c.onClose != nil {
			c.onClose(c)
		}
	})
}

// ReadPump pumps messages from the websocket connection to the coordinator.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.shutdown()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	for {
		frameType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("read failed", "err", err)
			}
			return
		}

		codec, ok := signaling.CodecForFrame(frameType)
		if !ok {
			continue
		}

		var msg signaling.Message
		if err := codec.Unmarshal(data, &msg); err != nil {
			c.metrics.Inc(metrics.EventMalformed)
			c.log.Warn("malformed message dropped", "codec", codec.Name(), "bytes", len(data), "err", err)
			continue
		}

		// Messages from a single connection are handled in arrival order,
		// which keeps each sender's relayed messages in order.
		c.coord.Handle(c, &msg)
	}
}

// WritePump pumps messages from the send queue to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)

	defer func() {
		ticker.Stop()
		c.shutdown()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			data, err := c.codec.Marshal(msg)
			if err != nil {
				c.log.Error("encode message", "type", msg.Type, "err", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(c.codec.FrameType(), data); err != nil {
				c.log.Debug("write failed", "type", msg.Type, "err", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
