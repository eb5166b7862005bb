package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/infinitybuddha29/caller/internal/server"
	"github.com/infinitybuddha29/caller/internal/signaling"
)

func startServer(t *testing.T) (string, *signaling.Coordinator) {
	t.Helper()
	coord := signaling.NewCoordinator(nil, signaling.Options{GracePeriod: time.Minute})
	srv := server.New(coord, server.Options{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws", coord
}

func connect(t *testing.T, url, subprotocol string) (*Client, *Handler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, Options{URL: url, Subprotocol: subprotocol})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(c.Close)
	h := NewHandler(c)
	go h.Start()
	return c, h
}

func waitReady(t *testing.T, h *Handler) bool {
	t.Helper()
	select {
	case v, ok := <-h.Ready:
		if !ok {
			t.Fatal("ready channel closed")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ready")
	}
	return false
}

func waitMembers(t *testing.T, coord *signaling.Coordinator, roomID string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(coord.Registry().Snapshot(roomID)) != n {
		if time.Now().After(deadline) {
			t.Fatalf("room %q never reached %d members", roomID, n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClient_PairAndExchangeSignals(t *testing.T) {
	url, coord := startServer(t)

	a, ha := connect(t, url, signaling.SubprotocolJSON)
	b, hb := connect(t, url, signaling.SubprotocolMsgPack)

	if b.Codec() != signaling.MsgPack {
		t.Fatalf("codec = %s, want msgpack", b.Codec().Name())
	}

	if err := a.Join("room-1"); err != nil {
		t.Fatalf("a.Join: %v", err)
	}
	waitMembers(t, coord, "room-1", 1)
	if err := b.Join("room-1"); err != nil {
		t.Fatalf("b.Join: %v", err)
	}

	if !waitReady(t, ha) {
		t.Fatal("a should be the initiator")
	}
	if waitReady(t, hb) {
		t.Fatal("b should not be the initiator")
	}

	offer := signaling.NewMessage(signaling.TypeOffer, map[string]any{"sdp": "v=0"})
	if err := a.Send(offer); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case got := <-hb.Signal:
		if got.Type != signaling.TypeOffer || got.Fields["sdp"] != "v=0" {
			t.Fatalf("b got %s", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for offer")
	}

	a.Close()
	select {
	case id := <-hb.PeerLeft:
		if id == "" {
			t.Fatal("participant-left without userId")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for participant-left")
	}
}

func TestClient_RoomFull(t *testing.T) {
	url, coord := startServer(t)

	a, ha := connect(t, url, "")
	b, hb := connect(t, url, "")
	a.Join("busy")
	waitMembers(t, coord, "busy", 1)
	b.Join("busy")
	waitReady(t, ha)
	waitReady(t, hb)

	c, hc := connect(t, url, "")
	c.Join("busy")
	select {
	case roomID := <-hc.RoomFull:
		if roomID != "busy" {
			t.Fatalf("room-full for %q, want busy", roomID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for room-full")
	}
}

func TestClient_SendAfterClose(t *testing.T) {
	url, _ := startServer(t)
	c, h := connect(t, url, "")
	c.Close()
	c.Close()

	if err := c.Send(signaling.JoinMessage("x")); !errors.Is(err, ErrClosed) {
		t.Fatalf("Send after Close = %v, want ErrClosed", err)
	}

	select {
	case _, ok := <-h.Ready:
		if ok {
			t.Fatal("unexpected ready")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler channels not closed after Close")
	}
}

func TestClient_JoinRequiresRoomID(t *testing.T) {
	url, _ := startServer(t)
	c, _ := connect(t, url, "")
	var cerr *Error
	if err := c.Join(""); !errors.As(err, &cerr) || cerr.Op != "join" {
		t.Fatalf("Join(\"\") = %v, want *Error with op join", err)
	}
}

func TestDial_Errors(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want error
	}{
		{name: "bad scheme", url: "ftp://localhost/ws", want: ErrInvalidURL},
		{name: "unparsable", url: "://nope", want: ErrInvalidURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Dial(context.Background(), Options{URL: tt.url})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestResolver_IPLiteral(t *testing.T) {
	r := &Resolver{}
	ip, err := r.Lookup(context.Background(), "127.0.0.1")
	if err != nil || ip != "127.0.0.1" {
		t.Fatalf("Lookup = %q, %v", ip, err)
	}
}

func TestPreferIPv4(t *testing.T) {
	got, err := preferIPv4([]string{"::1", "10.0.0.7"})
	if err != nil || got != "10.0.0.7" {
		t.Fatalf("preferIPv4 = %q, %v", got, err)
	}
	if _, err := preferIPv4(nil); err == nil {
		t.Fatal("expected error for empty list")
	}
}
