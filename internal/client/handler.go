package client

import (
	"github.com/infinitybuddha29/caller/internal/signaling"
)

// Handler routes incoming signaling messages to typed channels.
type Handler struct {
	client *Client

	// Ready carries the isInitiator flag of each ready message.
	Ready chan bool

	// Signal carries offer, answer and ice-candidate messages.
	Signal chan *signaling.Message

	// PeerLeft carries the userId of a participant that left.
	PeerLeft chan string

	// RoomFull carries the roomId of a refused join.
	RoomFull chan string
}

// NewHandler creates a new message handler.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:   client,
		Ready:    make(chan bool, 4),
		Signal:   make(chan *signaling.Message, 64),
		PeerLeft: make(chan string, 4),
		RoomFull: make(chan string, 1),
	}
}

// Start listens to incoming messages and routes them until the connection
// closes, then closes every channel.
func (h *Handler) Start() {
	defer h.close()

	for msg := range h.client.Incoming() {
		switch msg.Type {
		case signaling.TypeReady:
			isInitiator, _ := msg.IsInitiator()
			h.deliverReady(isInitiator)

		case signaling.TypeOffer, signaling.TypeAnswer, signaling.TypeICECandidate:
			select {
			case h.Signal <- msg:
			case <-h.client.Done():
				return
			}

		case signaling.TypeParticipantLeft:
			select {
			case h.PeerLeft <- msg.UserID():
			case <-h.client.Done():
				return
			}

		case signaling.TypeRoomFull:
			select {
			case h.RoomFull <- msg.RoomID():
			default:
			}

		default:
			h.client.log.Debug("ignoring message", "type", msg.Type)
		}
	}
}

func (h *Handler) deliverReady(isInitiator bool) {
	select {
	case h.Ready <- isInitiator:
	case <-h.client.Done():
	}
}

func (h *Handler) close() {
	close(h.Ready)
	close(h.Signal)
	close(h.PeerLeft)
	close(h.RoomFull)
}
