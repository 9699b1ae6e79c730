package api

import (
	"context"
	"net/http"

	"noe/internal/domain/chat"
	"noe/internal/domain/user"
)

type startChatRequest struct {
	UserID  user.ID `json:"userId"`
	RouteID string  `json:"routeId"`
}

type startChatResponse struct {
	Chat chat.Conversation `json:"chat"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// StartChat opens (or reuses, server side) a conversation with the
// transporter about a route.
func (c *Client) StartChat(ctx context.Context, transporterID user.ID, routeID string) (chat.Conversation, error) {
	var out startChatResponse
	err := c.do(ctx, request{
		op:     "start chat",
		method: http.MethodPost,
		path:   "/chats/start",
		body:   startChatRequest{UserID: transporterID, RouteID: routeID},
		want:   http.StatusCreated,
	}, &out)
	return out.Chat, err
}

func (c *Client) ListChats(ctx context.Context) ([]chat.Conversation, error) {
	var out []chat.Conversation
	err := c.do(ctx, request{op: "list chats", method: http.MethodGet, path: "/chats", want: http.StatusOK}, &out)
	return out, err
}

func (c *Client) ListMessages(ctx context.Context, id chat.ConversationID) ([]chat.Message, error) {
	var out []chat.Message
	err := c.do(ctx, request{op: "list messages", method: http.MethodGet, path: "/chats/" + pathID(string(id)) + "/messages", want: http.StatusOK}, &out)
	for i := range out {
		if out[i].ChatID == "" {
			out[i].ChatID = id
		}
	}
	return out, err
}

// SendMessage posts text and returns the server-confirmed message.
func (c *Client) SendMessage(ctx context.Context, id chat.ConversationID, text string) (chat.Message, error) {
	var out chat.Message
	err := c.do(ctx, request{
		op:     "send message",
		method: http.MethodPost,
		path:   "/chats/" + pathID(string(id)) + "/messages",
		body:   sendMessageRequest{Text: text},
		want:   http.StatusCreated,
	}, &out)
	if err == nil && out.ChatID == "" {
		out.ChatID = id
	}
	return out, err
}

func (c *Client) MarkRead(ctx context.Context, id chat.ConversationID) error {
	return c.do(ctx, request{op: "mark read", method: http.MethodPost, path: "/chats/" + pathID(string(id)) + "/read", want: http.StatusCreated}, nil)
}
