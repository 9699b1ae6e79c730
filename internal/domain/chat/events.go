package chat

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"noe/internal/domain/user"
)

// Event names exchanged over the realtime channel.
const (
	EventJoinChat     = "joinChat"
	EventNewMessage   = "newMessage"
	EventUnreadUpdate = "unreadUpdate"
)

var validate = validator.New()

// JoinChat announces presence; ChatID is set when a conversation is opened.
type JoinChat struct {
	UserID user.ID        `json:"userId"`
	ChatID ConversationID `json:"chatId,omitempty"`
}

// UnreadUpdate is sent by the server when a conversation's unread count changed.
type UnreadUpdate struct {
	ChatID ConversationID `json:"chatId" validate:"required"`
}

type newMessageShape struct {
	ID         MessageID      `validate:"required"`
	ChatID     ConversationID `validate:"required"`
	SenderID   user.ID        `validate:"required"`
	ProposalID *ProposalID    `validate:"omitempty,min=1"`
}

// DecodeNewMessage parses and validates a newMessage payload.
func DecodeNewMessage(raw json.RawMessage) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	shape := newMessageShape{ID: msg.ID, ChatID: msg.ChatID, SenderID: msg.Sender.ID}
	if msg.Proposal != nil {
		shape.ProposalID = &msg.Proposal.ID
	}
	if err := validate.Struct(shape); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return msg, nil
}

// DecodeUnreadUpdate parses and validates an unreadUpdate payload.
func DecodeUnreadUpdate(raw json.RawMessage) (UnreadUpdate, error) {
	var evt UnreadUpdate
	if err := json.Unmarshal(raw, &evt); err != nil {
		return UnreadUpdate{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if err := validate.Struct(evt); err != nil {
		return UnreadUpdate{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return evt, nil
}
