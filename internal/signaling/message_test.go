package signaling

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/gorilla/websocket"
)

func TestMessage_JSONIsFlat(t *testing.T) {
	data, err := json.Marshal(Ready(true))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["type"] != "ready" || got["isInitiator"] != true || len(got) != 2 {
		t.Fatalf("encoded=%s, want {type:ready,isInitiator:true}", data)
	}
}

func TestMessage_DecodeKeepsOpaquePayload(t *testing.T) {
	in := `{"type":"ice-candidate","candidate":{"candidate":"candidate:1 1 UDP 2122252543 192.0.2.3 54400 typ host","sdpMid":"0","sdpMLineIndex":0}}`

	var msg Message
	if err := JSON.Unmarshal([]byte(in), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != TypeICECandidate || !msg.IsSignal() {
		t.Fatalf("type=%q, want ice-candidate", msg.Type)
	}
	if _, ok := msg.Fields[FieldType]; ok {
		t.Fatal("type leaked into Fields")
	}

	out, err := JSON.Marshal(&msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var want, got any
	_ = json.Unmarshal([]byte(in), &want)
	_ = json.Unmarshal(out, &got)
	if !jsonEqual(want, got) {
		t.Fatalf("relayed=%s, want %s", out, in)
	}
}

func TestMessage_DecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{name: "missing type", in: `{"roomId":"abc"}`, want: ErrMissingType},
		{name: "empty type", in: `{"type":""}`, want: ErrMissingType},
		{name: "numeric type", in: `{"type":7}`, want: ErrInvalidType},
		{name: "null", in: `null`, want: ErrMissingType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg Message
			err := JSON.Unmarshal([]byte(tt.in), &msg)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err=%v, want %v", err, tt.want)
			}
		})
	}

	var msg Message
	if err := JSON.Unmarshal([]byte(`{not json`), &msg); err == nil {
		t.Fatal("expected syntax error")
	}
}

func TestMsgPack_CarriesSameMessage(t *testing.T) {
	in := NewMessage(TypeOffer, map[string]any{
		FieldSDP: map[string]any{"type": "offer", "sdp": "v=0"},
	})

	data, err := MsgPack.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Message
	if err := MsgPack.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Type != TypeOffer {
		t.Fatalf("type=%q, want offer", out.Type)
	}
	sdp, ok := out.Fields[FieldSDP].(map[string]any)
	if !ok || sdp["sdp"] != "v=0" || sdp["type"] != "offer" {
		t.Fatalf("sdp=%#v", out.Fields[FieldSDP])
	}

	// A JSON peer receives the same object.
	text, err := JSON.Marshal(&out)
	if err != nil {
		t.Fatalf("json marshal: %v", err)
	}
	var back Message
	if err := JSON.Unmarshal(text, &back); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if back.Type != TypeOffer {
		t.Fatalf("json type=%q", back.Type)
	}
}

func TestCodecSelection(t *testing.T) {
	if CodecForSubprotocol("") != JSON || CodecForSubprotocol("nope") != JSON {
		t.Fatal("unknown subprotocol must fall back to JSON")
	}
	if CodecForSubprotocol(SubprotocolMsgPack) != MsgPack {
		t.Fatal("msgpack subprotocol not selected")
	}

	if c, ok := CodecForFrame(websocket.TextMessage); !ok || c != JSON {
		t.Fatal("text frames must decode as JSON")
	}
	if c, ok := CodecForFrame(websocket.BinaryMessage); !ok || c != MsgPack {
		t.Fatal("binary frames must decode as MessagePack")
	}
	if _, ok := CodecForFrame(websocket.PingMessage); ok {
		t.Fatal("control frames have no codec")
	}
}

func jsonEqual(a, b any) bool {
	x, _ := json.Marshal(a)
	y, _ := json.Marshal(b)
	return string(x) == string(y)
}
