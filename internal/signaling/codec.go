package signaling

import (
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// WebSocket subprotocols selecting the outbound codec.
const (
	SubprotocolJSON    = "caller.json"
	SubprotocolMsgPack = "caller.msgpack"
)

// Subprotocols lists every supported subprotocol in server preference order.
var Subprotocols = []string{SubprotocolJSON, SubprotocolMsgPack}

// Codec converts messages to and from one kind of WebSocket frame.
type Codec interface {
	Name() string
	FrameType() int
	Marshal(msg *Message) ([]byte, error)
	Unmarshal(data []byte, msg *Message) error
}

var (
	// JSON carries messages in text frames.
	JSON Codec = jsonCodec{}

	// MsgPack carries messages in binary frames.
	MsgPack Codec = msgpackCodec{}
)

type jsonCodec struct{}

func (jsonCodec) Name() string   { return SubprotocolJSON }
func (jsonCodec) FrameType() int { return websocket.TextMessage }

func (jsonCodec) Marshal(msg *Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg *Message) error {
	return json.Unmarshal(data, msg)
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string   { return SubprotocolMsgPack }
func (msgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (msgpackCodec) Marshal(msg *Message) ([]byte, error) {
	return msgpack.Marshal(msg)
}

func (msgpackCodec) Unmarshal(data []byte, msg *Message) error {
	return msgpack.Unmarshal(data, msg)
}

// CodecForSubprotocol returns the codec negotiated for a connection. An empty
// or unknown subprotocol falls back to JSON.
func CodecForSubprotocol(subprotocol string) Codec {
	if subprotocol == SubprotocolMsgPack {
		return MsgPack
	}
	return JSON
}

// CodecForFrame returns the codec able to decode an inbound frame type.
func CodecForFrame(frameType int) (Codec, bool) {
	switch frameType {
	case websocket.TextMessage:
		return JSON, true
	case websocket.BinaryMessage:
		return MsgPack, true
	}
	return nil, false
}
