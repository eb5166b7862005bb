package commands

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/infinitybuddha29/caller/internal/client"
	"github.com/infinitybuddha29/caller/internal/peer"
	"github.com/infinitybuddha29/caller/internal/signaling"
)

const waitingStatus = "Waiting for a peer..."

// signalConn is the part of the signaling client a call drives.
type signalConn interface {
	peer.Signaler
	Done() <-chan struct{}
	Err() error
}

// call follows one room membership: it builds a peer session on every
// ready, feeds it signals and tears it down when the peer leaves.
type call struct {
	roomID  string
	sig     signalConn
	handler *client.Handler
	view    chatView
	peerCfg peer.Config
	log     *slog.Logger

	// newSession is peer.NewSession, replaced in tests.
	newSession func(cfg peer.Config, s peer.Signaler, initiator bool) (session, error)

	mu      sync.Mutex
	current session
}

// session is the slice of *peer.Session a call uses.
type session interface {
	Start() error
	HandleSignal(msg *signaling.Message) error
	SendText(text string) error
	Messages() <-chan peer.ChatMessage
	Opened() <-chan struct{}
	Failed() <-chan struct{}
	Close() error
}

func newPeerSession(cfg peer.Config, s peer.Signaler, initiator bool) (session, error) {
	return peer.NewSession(cfg, s, initiator)
}

// sendText is the chat view's send callback.
func (c *call) sendText(text string) error {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s == nil {
		return peer.ErrChannelNotOpen
	}
	return s.SendText(text)
}

func (c *call) active() session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *call) setSession(s session) {
	c.mu.Lock()
	old := c.current
	c.current = s
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

// run drives the call until the user quits, ctx ends or signaling is lost.
func (c *call) run(ctx context.Context) error {
	defer c.setSession(nil)

	c.view.SetStatus(waitingStatus)

	var (
		messages <-chan peer.ChatMessage
		opened   <-chan struct{}
		failed   <-chan struct{}
	)
	watch := func(s session) {
		messages, opened, failed = nil, nil, nil
		if s != nil {
			messages, opened, failed = s.Messages(), s.Opened(), s.Failed()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-c.view.Done():
			return nil

		case <-c.sig.Done():
			return c.signalingLost()

		case roomID, ok := <-c.handler.RoomFull:
			if !ok {
				return c.signalingLost()
			}
			return client.WrapError("join", client.ErrRoomFull, roomID)

		case isInitiator, ok := <-c.handler.Ready:
			if !ok {
				return c.signalingLost()
			}
			s, err := c.startSession(isInitiator)
			if err != nil {
				return err
			}
			watch(s)

		case msg, ok := <-c.handler.Signal:
			if !ok {
				return c.signalingLost()
			}
			s := c.active()
			if s == nil {
				c.log.Debug("signal without session", "type", msg.Type)
				continue
			}
			if err := s.HandleSignal(msg); err != nil {
				c.log.Warn("handle signal", "type", msg.Type, "err", err)
				c.view.AddSystem("signaling error: " + err.Error())
			}

		case userID, ok := <-c.handler.PeerLeft:
			if !ok {
				return c.signalingLost()
			}
			c.log.Info("peer left", "room", c.roomID, "userId", userID)
			c.setSession(nil)
			watch(nil)
			c.view.SetConnected(false)
			c.view.AddSystem("peer left the room")
			c.view.SetStatus(waitingStatus)

		case m := <-messages:
			c.view.AddIncoming(m.Text, time.UnixMilli(m.SentAt))

		case <-opened:
			opened = nil
			c.view.SetConnected(true)
			c.view.SetStatus("Connected, chat is end-to-end over WebRTC")

		case <-failed:
			failed = nil
			c.view.SetConnected(false)
			c.view.AddSystem("peer connection lost")
			c.view.SetStatus(waitingStatus)
		}
	}
}

func (c *call) startSession(isInitiator bool) (session, error) {
	c.setSession(nil)

	s, err := c.newSession(c.peerCfg, c.sig, isInitiator)
	if err != nil {
		return nil, client.NewError("create peer connection", err)
	}
	c.setSession(s)

	c.log.Info("paired", "room", c.roomID, "initiator", isInitiator)
	c.view.AddSystem("peer joined, connecting...")
	c.view.SetStatus("Negotiating connection...")

	if err := s.Start(); err != nil {
		return nil, client.NewError("start call", err)
	}
	return s, nil
}

func (c *call) signalingLost() error {
	err := c.sig.Err()
	if err == nil {
		err = client.ErrClosed
	}
	if errors.Is(err, client.ErrClosed) {
		return client.NewError("signaling", err)
	}
	return client.WrapError("signaling", client.ErrClosed, err.Error())
}
