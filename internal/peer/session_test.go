package peer

import (
	"bytes"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/vnet"

	"github.com/infinitybuddha29/caller/internal/signaling"
)

// recorder is a Signaler that keeps every message and optionally forwards
// it to another session.
type recorder struct {
	mu      sync.Mutex
	msgs    []*signaling.Message
	forward func(*signaling.Message)
}

func (r *recorder) Send(msg *signaling.Message) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	fwd := r.forward
	r.mu.Unlock()
	if fwd != nil {
		fwd(msg)
	}
	return nil
}

func (r *recorder) first(typ string) *signaling.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.Type == typ {
			return m
		}
	}
	return nil
}

func newSession(t *testing.T, sig Signaler, initiator bool) *Session {
	t.Helper()
	return newSessionWith(t, Config{IncludeLoopback: true}, sig, initiator)
}

func newSessionWith(t *testing.T, cfg Config, sig Signaler, initiator bool) *Session {
	t.Helper()
	s, err := NewSession(cfg, sig, initiator)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func hostCandidate() *signaling.Message {
	return signaling.NewMessage(signaling.TypeICECandidate, map[string]any{
		signaling.FieldCandidate: map[string]any{
			"candidate":     "candidate:1 1 udp 2130706431 192.0.2.10 50000 typ host",
			"sdpMid":        "0",
			"sdpMLineIndex": float64(0),
		},
	})
}

func TestSession_OfferAnswerAndCandidateBuffering(t *testing.T) {
	offerer := &recorder{}
	a := newSession(t, offerer, true)

	answerer := &recorder{}
	b := newSession(t, answerer, false)

	// A candidate racing ahead of the offer is held back.
	if err := b.HandleSignal(hostCandidate()); err != nil {
		t.Fatalf("early candidate: %v", err)
	}
	b.mu.Lock()
	pending := len(b.pending)
	b.mu.Unlock()
	if pending != 1 {
		t.Fatalf("pending = %d, want 1", pending)
	}

	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	offer := offerer.first(signaling.TypeOffer)
	if offer == nil {
		t.Fatal("initiator sent no offer")
	}
	desc, ok := offer.Fields[signaling.FieldSDP].(map[string]any)
	if !ok || desc["type"] != "offer" || desc["sdp"] == "" {
		t.Fatalf("offer sdp = %#v", offer.Fields[signaling.FieldSDP])
	}

	if err := b.HandleSignal(offer); err != nil {
		t.Fatalf("handle offer: %v", err)
	}
	b.mu.Lock()
	pending, remoteSet := len(b.pending), b.remoteSet
	b.mu.Unlock()
	if !remoteSet || pending != 0 {
		t.Fatalf("after offer: remoteSet=%v pending=%d", remoteSet, pending)
	}

	answer := answerer.first(signaling.TypeAnswer)
	if answer == nil {
		t.Fatal("non-initiator sent no answer")
	}
	if err := a.HandleSignal(answer); err != nil {
		t.Fatalf("handle answer: %v", err)
	}

	// Once the remote description is set candidates apply immediately.
	if err := b.HandleSignal(hostCandidate()); err != nil {
		t.Fatalf("late candidate: %v", err)
	}
}

func TestSession_StartIsNoopForAnsweringSide(t *testing.T) {
	rec := &recorder{}
	s := newSession(t, rec, false)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(rec.msgs) != 0 {
		t.Fatalf("answering side sent %d messages before any offer", len(rec.msgs))
	}
	if err := s.SendText("hi"); !errors.Is(err, ErrChannelNotOpen) {
		t.Fatalf("SendText before open = %v, want ErrChannelNotOpen", err)
	}
}

func TestSession_RejectsMisdirectedSignals(t *testing.T) {
	initiator := newSession(t, &recorder{}, true)
	answerer := newSession(t, &recorder{}, false)

	tests := []struct {
		name string
		s    *Session
		msg  *signaling.Message
	}{
		{"offer to initiator", initiator, signaling.NewMessage(signaling.TypeOffer, map[string]any{"sdp": "v=0"})},
		{"answer to answerer", answerer, signaling.NewMessage(signaling.TypeAnswer, map[string]any{"sdp": "v=0"})},
		{"missing sdp", answerer, signaling.NewMessage(signaling.TypeOffer, nil)},
		{"wrong sdp type", answerer, signaling.NewMessage(signaling.TypeOffer, map[string]any{"sdp": map[string]any{"type": "answer", "sdp": "v=0"}})},
		{"missing candidate", answerer, signaling.NewMessage(signaling.TypeICECandidate, nil)},
		{"not a signal", answerer, signaling.Ready(true)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.s.HandleSignal(tt.msg); !errors.Is(err, ErrUnexpectedSignal) {
				t.Fatalf("err = %v, want ErrUnexpectedSignal", err)
			}
		})
	}
}

func TestParseCandidate_AcceptsStringAndObject(t *testing.T) {
	got, err := parseCandidate(signaling.NewMessage(signaling.TypeICECandidate, map[string]any{"candidate": "candidate:x"}))
	if err != nil || got.Candidate != "candidate:x" {
		t.Fatalf("string form = %+v, %v", got, err)
	}

	// MessagePack decodes small integers as int8.
	got, err = parseCandidate(signaling.NewMessage(signaling.TypeICECandidate, map[string]any{
		"candidate": map[string]any{"candidate": "candidate:y", "sdpMid": "0", "sdpMLineIndex": int8(0)},
	}))
	if err != nil {
		t.Fatalf("object form: %v", err)
	}
	if got.Candidate != "candidate:y" || got.SDPMid == nil || *got.SDPMid != "0" || got.SDPMLineIndex == nil || *got.SDPMLineIndex != 0 {
		t.Fatalf("object form = %+v", got)
	}
}

func TestSession_ChatOverLoopback(t *testing.T) {
	if testing.Short() {
		t.Skip("opens real ICE sockets")
	}

	toB := &recorder{}
	toA := &recorder{}
	a := newSession(t, toB, true)
	b := newSession(t, toA, false)
	runChat(t, a, b, toA, toB)
}

func TestSession_ChatOverVirtualNetwork(t *testing.T) {
	router, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          "10.0.0.0/24",
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	t.Cleanup(func() { _ = router.Stop() })

	netA, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.1"}})
	if err != nil {
		t.Fatalf("new net A: %v", err)
	}
	netB, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.2"}})
	if err != nil {
		t.Fatalf("new net B: %v", err)
	}
	for _, n := range []*vnet.Net{netA, netB} {
		if err := router.AddNet(n); err != nil {
			t.Fatalf("add net: %v", err)
		}
	}
	if err := router.Start(); err != nil {
		t.Fatalf("start router: %v", err)
	}

	toB := &recorder{}
	toA := &recorder{}
	a := newSessionWith(t, Config{Net: netA}, toB, true)
	b := newSessionWith(t, Config{Net: netB}, toA, false)
	runChat(t, a, b, toA, toB)
}

// runChat connects a (initiator) and b through the two recorders and checks
// that a chat line crosses the data channel.
func runChat(t *testing.T, a, b *Session, toA, toB *recorder) {
	t.Helper()

	deliver := func(dst **Session) func(*signaling.Message) {
		return func(msg *signaling.Message) {
			// Errors after the test ends come from closed sessions.
			go func() { _ = (*dst).HandleSignal(msg) }()
		}
	}
	toB.mu.Lock()
	toB.forward = deliver(&b)
	toB.mu.Unlock()
	toA.mu.Lock()
	toA.forward = deliver(&a)
	toA.mu.Unlock()

	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for _, s := range []*Session{a, b} {
		select {
		case <-s.Opened():
		case <-time.After(15 * time.Second):
			t.Fatal("chat channel never opened")
		}
	}

	if err := a.SendText("hello from a"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	select {
	case msg := <-b.Messages():
		if msg.Text != "hello from a" || msg.SentAt == 0 {
			t.Fatalf("b got %+v", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("b never received the chat message")
	}
}

func TestLooksLikeTunnel(t *testing.T) {
	for name, want := range map[string]bool{
		"wg0":            true,
		"tun0":           true,
		"utun3":          true,
		"CloudflareWARP": true,
		"eth0":           false,
		"en0":            false,
	} {
		if got := looksLikeTunnel(name); got != want {
			t.Errorf("looksLikeTunnel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestInCGNAT(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"100.64.0.1", true},
		{"100.127.255.254", true},
		{"100.128.0.1", false},
		{"192.168.1.10", false},
	}
	for _, tt := range tests {
		addr := &net.IPNet{IP: net.ParseIP(tt.ip), Mask: net.CIDRMask(32, 32)}
		if got := inCGNAT(addr); got != tt.want {
			t.Errorf("inCGNAT(%s) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

func TestLoggerFactoryUsesSlog(t *testing.T) {
	var buf bytes.Buffer
	f := newLoggerFactory(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	l := f.NewLogger("ice")
	l.Tracef("hidden %d", 1)
	l.Warnf("candidate %s failed", "host")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("trace logged at debug level: %q", out)
	}
	for _, want := range []string{"level=WARN", "scope=ice", "component=pion", "candidate host failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}
