package signaling

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Message type constants.
const (
	TypeJoin         = "join"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"

	TypeReady           = "ready"
	TypeParticipantLeft = "participant-left"
	TypeRoomFull        = "room-full"
)

// Well-known field names.
const (
	FieldType        = "type"
	FieldRoomID      = "roomId"
	FieldIsInitiator = "isInitiator"
	FieldUserID      = "userId"
	FieldSDP         = "sdp"
	FieldCandidate   = "candidate"
)

var (
	ErrMissingType = errors.New("message has no type")
	ErrInvalidType = errors.New("message type is not a string")
)

// Message is a single signaling frame, flat on the wire: {"type": ..., ...fields}.
//
// Fields holds every key except "type". For offer, answer and ice-candidate
// the coordinator never looks inside it.
type Message struct {
	Type   string
	Fields map[string]any
}

// NewMessage builds a message of the given type carrying fields.
func NewMessage(typ string, fields map[string]any) *Message {
	return &Message{Type: typ, Fields: fields}
}

// JoinMessage is the client request to enter roomID.
func JoinMessage(roomID string) *Message {
	return NewMessage(TypeJoin, map[string]any{FieldRoomID: roomID})
}

// Ready tells a participant that pairing completed and which role it has.
func Ready(isInitiator bool) *Message {
	return NewMessage(TypeReady, map[string]any{FieldIsInitiator: isInitiator})
}

// ParticipantLeft tells the remaining peer that userID disconnected.
func ParticipantLeft(userID string) *Message {
	return NewMessage(TypeParticipantLeft, map[string]any{FieldUserID: userID})
}

// RoomFull refuses a join into a room that already holds two live peers.
func RoomFull(roomID string) *Message {
	return NewMessage(TypeRoomFull, map[string]any{FieldRoomID: roomID})
}

// IsSignal reports whether the message is one of the relayed signaling types.
func (m *Message) IsSignal() bool {
	switch m.Type {
	case TypeOffer, TypeAnswer, TypeICECandidate:
		return true
	}
	return false
}

// RoomID returns the roomId field, or "" when absent or not a string.
func (m *Message) RoomID() string {
	return m.stringField(FieldRoomID)
}

// UserID returns the userId field of a participant-left message.
func (m *Message) UserID() string {
	return m.stringField(FieldUserID)
}

// IsInitiator returns the role carried by a ready message.
func (m *Message) IsInitiator() (isInitiator, ok bool) {
	if m.Fields == nil {
		return false, false
	}
	isInitiator, ok = m.Fields[FieldIsInitiator].(bool)
	return isInitiator, ok
}

// Field returns the raw value stored under key.
func (m *Message) Field(key string) (any, bool) {
	if m.Fields == nil {
		return nil, false
	}
	v, ok := m.Fields[key]
	return v, ok
}

func (m *Message) stringField(key string) string {
	if m.Fields == nil {
		return ""
	}
	s, _ := m.Fields[key].(string)
	return s
}

func (m *Message) flatten() map[string]any {
	out := make(map[string]any, len(m.Fields)+1)
	for k, v := range m.Fields {
		out[k] = v
	}
	out[FieldType] = m.Type
	return out
}

func (m *Message) fromMap(raw map[string]any) error {
	t, ok := raw[FieldType]
	if !ok {
		return ErrMissingType
	}
	typ, ok := t.(string)
	if !ok {
		return ErrInvalidType
	}
	if typ == "" {
		return ErrMissingType
	}
	delete(raw, FieldType)

	m.Type = typ
	m.Fields = raw
	return nil
}

// MarshalJSON writes the message as a flat JSON object.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.flatten())
}

// UnmarshalJSON reads a flat JSON object.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return ErrMissingType
	}
	return m.fromMap(raw)
}

// EncodeMsgpack writes the message as a flat MessagePack map.
func (m *Message) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(m.flatten())
}

// DecodeMsgpack reads a flat MessagePack map.
func (m *Message) DecodeMsgpack(dec *msgpack.Decoder) error {
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		return ErrMissingType
	}
	return m.fromMap(raw)
}

func (m *Message) String() string {
	return fmt.Sprintf("%s%v", m.Type, m.Fields)
}
