// Package peer runs the WebRTC side of a call: it builds the peer
// connection, exchanges SDP and ICE through the signaling server and carries
// a text chat over a data channel.
package peer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/transport/v3"
	"github.com/pion/webrtc/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/infinitybuddha29/caller/internal/signaling"
)

// ChatLabel is the label of the data channel the initiator opens.
const ChatLabel = "chat"

var (
	ErrChannelNotOpen   = errors.New("chat channel not open")
	ErrUnexpectedSignal = errors.New("unexpected signal")
)

// Signaler delivers signaling messages to the remote peer.
type Signaler interface {
	Send(msg *signaling.Message) error
}

// Config selects ICE servers and transport policy.
type Config struct {
	STUNServers []string
	TURNServers []string
	TURNUser    string
	TURNPass    string

	// ForceRelay restricts ICE to relay candidates when TURN is configured.
	ForceRelay bool

	// DetectRelay applies ShouldForceRelay when TURN is configured.
	DetectRelay bool

	// IncludeLoopback gathers loopback candidates, for same-host calls.
	IncludeLoopback bool

	// Net replaces the host network stack, e.g. with a vnet in tests.
	Net transport.Net

	Logger *slog.Logger
}

// ChatMessage travels over the data channel as MessagePack.
type ChatMessage struct {
	Text   string `msgpack:"text"`
	SentAt int64  `msgpack:"sentAt"` // unix milliseconds
}

// NewPeerConnection builds a peer connection from cfg.
func NewPeerConnection(cfg Config) (*webrtc.PeerConnection, error) {
	var iceServers []webrtc.ICEServer
	if len(cfg.STUNServers) > 0 {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: cfg.STUNServers})
	}
	if len(cfg.TURNServers) > 0 {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       cfg.TURNServers,
			Username:   cfg.TURNUser,
			Credential: cfg.TURNPass,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if len(cfg.TURNServers) > 0 && (cfg.ForceRelay || (cfg.DetectRelay && ShouldForceRelay())) {
		policy = webrtc.ICETransportPolicyRelay
	}

	media := &webrtc.MediaEngine{}
	if err := media.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	interceptors := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(media, interceptors); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	var se webrtc.SettingEngine
	if cfg.IncludeLoopback {
		se.SetIncludeLoopbackCandidate(true)
	}
	if cfg.Net != nil {
		se.SetNet(cfg.Net)
	}
	if cfg.Logger != nil {
		se.LoggerFactory = newLoggerFactory(cfg.Logger)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(media),
		webrtc.WithInterceptorRegistry(interceptors),
		webrtc.WithSettingEngine(se),
	)

	pc, err := api.NewPeerConnection(webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return pc, nil
}

// Session is one side of a call. The initiator opens the chat channel and
// sends the offer; the other side answers.
type Session struct {
	pc        *webrtc.PeerConnection
	signaler  Signaler
	initiator bool
	log       *slog.Logger

	mu        sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit
	dc        *webrtc.DataChannel

	messages chan ChatMessage

	opened   chan struct{}
	openOnce sync.Once
	failed   chan struct{}
	failOnce sync.Once
}

// NewSession creates a peer connection and wires its callbacks. Nothing is
// sent until Start.
func NewSession(cfg Config, signaler Signaler, initiator bool) (*Session, error) {
	pc, err := NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Session{
		pc:        pc,
		signaler:  signaler,
		initiator: initiator,
		log:       logger.With("initiator", initiator),
		messages:  make(chan ChatMessage, 64),
		opened:    make(chan struct{}),
		failed:    make(chan struct{}),
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		candidate, err := toMap(c.ToJSON())
		if err != nil {
			s.log.Warn("encode ice candidate", "err", err)
			return
		}
		msg := signaling.NewMessage(signaling.TypeICECandidate, map[string]any{signaling.FieldCandidate: candidate})
		if err := s.signaler.Send(msg); err != nil {
			s.log.Debug("send ice candidate", "err", err)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.log.Debug("peer connection state", "state", state.String())
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			s.failOnce.Do(func() { close(s.failed) })
		}
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != ChatLabel {
			return
		}
		s.attach(dc)
	})

	return s, nil
}

// Start opens the chat channel and sends the offer when this side is the
// initiator. The answering side only waits for the offer.
func (s *Session) Start() error {
	if !s.initiator {
		return nil
	}

	ordered := true
	dc, err := s.pc.CreateDataChannel(ChatLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return fmt.Errorf("create data channel: %w", err)
	}
	s.attach(dc)

	offer, err := s.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	return s.sendDescription(signaling.TypeOffer, s.pc.LocalDescription())
}

// HandleSignal applies an offer, answer or ICE candidate from the remote
// peer. Candidates that arrive before the remote description are held back
// and applied once it is set.
func (s *Session) HandleSignal(msg *signaling.Message) error {
	switch msg.Type {
	case signaling.TypeOffer:
		if s.initiator {
			return fmt.Errorf("%w: offer sent to initiator", ErrUnexpectedSignal)
		}
		desc, err := parseDescription(msg, webrtc.SDPTypeOffer)
		if err != nil {
			return err
		}
		if err := s.setRemote(desc); err != nil {
			return err
		}
		answer, err := s.pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("create answer: %w", err)
		}
		if err := s.pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("set local description: %w", err)
		}
		return s.sendDescription(signaling.TypeAnswer, s.pc.LocalDescription())

	case signaling.TypeAnswer:
		if !s.initiator {
			return fmt.Errorf("%w: answer sent to non-initiator", ErrUnexpectedSignal)
		}
		desc, err := parseDescription(msg, webrtc.SDPTypeAnswer)
		if err != nil {
			return err
		}
		return s.setRemote(desc)

	case signaling.TypeICECandidate:
		candidate, err := parseCandidate(msg)
		if err != nil {
			return err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.remoteSet {
			s.pending = append(s.pending, candidate)
			return nil
		}
		if err := s.pc.AddICECandidate(candidate); err != nil {
			return fmt.Errorf("add ice candidate: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedSignal, msg.Type)
	}
}

func (s *Session) setRemote(desc webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	s.remoteSet = true

	for _, c := range s.pending {
		if err := s.pc.AddICECandidate(c); err != nil {
			s.log.Warn("add buffered ice candidate", "err", err)
		}
	}
	s.pending = nil
	return nil
}

func (s *Session) sendDescription(typ string, desc *webrtc.SessionDescription) error {
	if desc == nil {
		return errors.New("local description not set")
	}
	payload := map[string]any{"type": desc.Type.String(), "sdp": desc.SDP}
	return s.signaler.Send(signaling.NewMessage(typ, map[string]any{signaling.FieldSDP: payload}))
}

func (s *Session) attach(dc *webrtc.DataChannel) {
	s.mu.Lock()
	s.dc = dc
	s.mu.Unlock()

	dc.OnOpen(func() {
		s.log.Debug("chat channel open")
		s.openOnce.Do(func() { close(s.opened) })
	})
	dc.OnMessage(func(raw webrtc.DataChannelMessage) {
		var msg ChatMessage
		if err := msgpack.Unmarshal(raw.Data, &msg); err != nil {
			s.log.Debug("undecodable chat message", "err", err)
			return
		}
		select {
		case s.messages <- msg:
		default:
			s.log.Warn("chat message dropped, reader too slow")
		}
	})
}

// SendText sends a chat line to the remote peer.
func (s *Session) SendText(text string) error {
	s.mu.Lock()
	dc := s.dc
	s.mu.Unlock()

	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrChannelNotOpen
	}
	data, err := msgpack.Marshal(&ChatMessage{Text: text, SentAt: time.Now().UnixMilli()})
	if err != nil {
		return err
	}
	return dc.Send(data)
}

// Messages returns chat messages received from the remote peer.
func (s *Session) Messages() <-chan ChatMessage { return s.messages }

// Opened is closed once the chat channel is open.
func (s *Session) Opened() <-chan struct{} { return s.opened }

// Failed is closed when the peer connection fails or closes.
func (s *Session) Failed() <-chan struct{} { return s.failed }

// Close tears down the peer connection.
func (s *Session) Close() error {
	return s.pc.Close()
}

// parseDescription accepts the sdp field either as a bare SDP string or as a
// {type, sdp} object.
func parseDescription(msg *signaling.Message, want webrtc.SDPType) (webrtc.SessionDescription, error) {
	raw, ok := msg.Field(signaling.FieldSDP)
	if !ok {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %s without sdp", ErrUnexpectedSignal, msg.Type)
	}

	switch v := raw.(type) {
	case string:
		return webrtc.SessionDescription{Type: want, SDP: v}, nil
	case map[string]any:
		sdp, _ := v["sdp"].(string)
		if sdp == "" {
			return webrtc.SessionDescription{}, fmt.Errorf("%w: empty sdp", ErrUnexpectedSignal)
		}
		if typ, _ := v["type"].(string); typ != "" && webrtc.NewSDPType(typ) != want {
			return webrtc.SessionDescription{}, fmt.Errorf("%w: sdp type %q in %s", ErrUnexpectedSignal, typ, msg.Type)
		}
		return webrtc.SessionDescription{Type: want, SDP: sdp}, nil
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("%w: sdp has type %T", ErrUnexpectedSignal, raw)
	}
}

// parseCandidate accepts the candidate field as an RTCIceCandidateInit-shaped
// object or as a bare candidate string.
func parseCandidate(msg *signaling.Message) (webrtc.ICECandidateInit, error) {
	raw, ok := msg.Field(signaling.FieldCandidate)
	if !ok {
		return webrtc.ICECandidateInit{}, fmt.Errorf("%w: ice-candidate without candidate", ErrUnexpectedSignal)
	}
	if s, ok := raw.(string); ok {
		return webrtc.ICECandidateInit{Candidate: s}, nil
	}

	// Round-trip through JSON so numbers decoded from either codec land in
	// the typed fields.
	data, err := json.Marshal(raw)
	if err != nil {
		return webrtc.ICECandidateInit{}, fmt.Errorf("encode candidate: %w", err)
	}
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(data, &init); err != nil {
		return webrtc.ICECandidateInit{}, fmt.Errorf("parse ice candidate: %w", err)
	}
	return init, nil
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
