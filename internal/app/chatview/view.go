package chatview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"noe/internal/app/policies"
	"noe/internal/domain/chat"
	"noe/internal/domain/user"
	"noe/internal/infra/obs"
)

var ErrNoActiveConversation = errors.New("chatview: no active conversation")

// API is the REST surface used by the view.
type API interface {
	ListChats(ctx context.Context) ([]chat.Conversation, error)
	ListMessages(ctx context.Context, id chat.ConversationID) ([]chat.Message, error)
	SendMessage(ctx context.Context, id chat.ConversationID, text string) (chat.Message, error)
	MarkRead(ctx context.Context, id chat.ConversationID) error
	StartChat(ctx context.Context, transporterID user.ID, routeID string) (chat.Conversation, error)
}

type Store interface {
	Apply(reducers ...chat.Reducer) chat.State
	Snapshot() chat.State
}

// Activator switches the conversation the realtime layer treats as active.
type Activator interface {
	SetActive(id chat.ConversationID)
}

// Layout is the pane arrangement: compact screens show either the list or the
// open conversation, wide screens show both.
type Layout string

const (
	LayoutSplit  Layout = "split"
	LayoutList   Layout = "list"
	LayoutDetail Layout = "detail"
)

type View struct {
	api       API
	store     Store
	activator Activator
	notifier  policies.Notifier
	logger    *slog.Logger
	compact   bool

	mu     sync.Mutex
	draft  string
	layout Layout
}

type Options struct {
	Compact bool
	Logger  *slog.Logger
}

func New(api API, store Store, activator Activator, notifier policies.Notifier, opts Options) (*View, error) {
	if api == nil || store == nil {
		return nil, errors.New("chatview: api and store required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = obs.Discard()
	}
	if notifier == nil {
		notifier = policies.NotifierFunc(func(context.Context, policies.Notification) error { return nil })
	}
	v := &View{
		api:       api,
		store:     store,
		activator: activator,
		notifier:  notifier,
		logger:    logger,
		compact:   opts.Compact,
		layout:    LayoutSplit,
	}
	if opts.Compact {
		v.layout = LayoutList
	}
	return v, nil
}

// Load fetches the conversation list into the cache.
func (v *View) Load(ctx context.Context) error {
	list, err := v.api.ListChats(ctx)
	if err != nil {
		return fmt.Errorf("chatview: load conversations: %w", err)
	}
	v.store.Apply(chat.UpsertConversations(list))
	return nil
}

// Resync refetches the list and the active history after a reconnect.
func (v *View) Resync(ctx context.Context) error {
	if err := v.Load(ctx); err != nil {
		return err
	}
	if active := v.Active(); active != "" {
		return v.loadHistory(ctx, active)
	}
	return nil
}

func (v *View) Conversations() []chat.Conversation {
	return v.store.Snapshot().Conversations()
}

func (v *View) Messages(id chat.ConversationID) []chat.Message {
	return v.store.Snapshot().Messages(id)
}

func (v *View) Active() chat.ConversationID {
	return v.store.Snapshot().Active()
}

// Select opens a conversation: it becomes active, its unread count is zeroed
// locally right away and server-side, and its history is loaded.
func (v *View) Select(ctx context.Context, id chat.ConversationID) error {
	if _, ok := v.store.Snapshot().Conversation(id); !ok {
		v.notify(ctx, policies.NewNotification(policies.KindError, "Conversa não encontrada", ""))
		return chat.ErrConversationNotFound
	}
	v.activate(id)
	v.store.Apply(chat.ZeroUnread(id))
	if v.compact {
		v.setLayout(LayoutDetail)
	}
	if err := v.api.MarkRead(ctx, id); err != nil {
		v.logger.Warn("mark read failed", "chat_id", id, "error", err)
	}
	return v.loadHistory(ctx, id)
}

// Back returns compact layouts to the conversation list.
func (v *View) Back() {
	if v.compact {
		v.setLayout(LayoutList)
	}
}

// Open selects the conversation with transporterID about routeID, starting it
// first when none exists yet.
func (v *View) Open(ctx context.Context, routeID string, transporterID user.ID) (chat.Conversation, error) {
	for _, c := range v.store.Snapshot().Conversations() {
		if c.OtherUser.ID == transporterID && c.Route.ID == routeID {
			return c, v.Select(ctx, c.ID)
		}
	}
	c, err := v.api.StartChat(ctx, transporterID, routeID)
	if err != nil {
		v.notify(ctx, policies.NewNotification(policies.KindError, "Erro ao iniciar chat", ""))
		return chat.Conversation{}, fmt.Errorf("chatview: start chat: %w", err)
	}
	v.store.Apply(chat.UpsertConversations([]chat.Conversation{c}))
	return c, v.Select(ctx, c.ID)
}

// Send posts text to the active conversation. Blank text is ignored. The
// draft is cleared before the request and the message only appears once the
// server confirms it.
func (v *View) Send(ctx context.Context, text string) (chat.Message, error) {
	if strings.TrimSpace(text) == "" {
		return chat.Message{}, chat.ErrEmptyMessage
	}
	active := v.Active()
	if active == "" {
		return chat.Message{}, ErrNoActiveConversation
	}
	v.SetDraft("")

	msg, err := v.api.SendMessage(ctx, active, text)
	if err != nil {
		v.notify(ctx, policies.NewNotification(policies.KindError, "Erro ao enviar mensagem", ""))
		return chat.Message{}, fmt.Errorf("chatview: send: %w", err)
	}
	if msg.ChatID == "" {
		msg.ChatID = active
	}
	v.store.Apply(chat.AppendMessage(active, msg), chat.RecordLastMessage(active, msg))
	return msg, nil
}

// Receive appends a realtime message of the active conversation.
func (v *View) Receive(msg chat.Message) {
	v.store.Apply(chat.AppendMessage(msg.ChatID, msg))
}

func (v *View) Draft() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.draft
}

func (v *View) SetDraft(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.draft = text
}

func (v *View) Layout() Layout {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.layout
}

func (v *View) setLayout(l Layout) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.layout = l
}

func (v *View) activate(id chat.ConversationID) {
	if v.activator != nil {
		v.activator.SetActive(id)
		return
	}
	v.store.Apply(chat.Activate(id))
}

// loadHistory replaces the cached history with the server's, keeping live
// messages that arrived while the request was in flight.
func (v *View) loadHistory(ctx context.Context, id chat.ConversationID) error {
	history, err := v.api.ListMessages(ctx, id)
	if err != nil {
		return fmt.Errorf("chatview: load messages: %w", err)
	}
	v.store.Apply(func(s chat.State) chat.State {
		merged := append(append([]chat.Message(nil), history...), s.Messages(id)...)
		return chat.ReplaceMessages(id, merged)(s)
	})
	return nil
}

func (v *View) notify(ctx context.Context, n policies.Notification) {
	if err := v.notifier.Notify(ctx, n); err != nil {
		v.logger.Warn("notification failed", "title", n.Title, "error", err)
	}
}
