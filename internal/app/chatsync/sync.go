package chatsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"noe/internal/app/policies"
	"noe/internal/domain/chat"
	"noe/internal/domain/user"
	"noe/internal/infra/obs"
	"noe/internal/infra/socket"
)

const (
	openChatLabel = "Abrir Chat"
	// notifyQueue bounds the notifications waiting for a slow notifier.
	notifyQueue = 64
)

// Socket is the part of the event channel the synchronizer uses.
type Socket interface {
	Connect(ctx context.Context)
	Emit(event string, payload any)
	On(event string, handler socket.Handler) socket.Subscription
	Off(sub socket.Subscription)
}

// Store holds the chat cache shared with the views.
type Store interface {
	Apply(reducers ...chat.Reducer) chat.State
	Snapshot() chat.State
}

// Hooks are optional callbacks. They run on the socket goroutine.
type Hooks struct {
	// OnActiveMessage receives new messages of the active conversation.
	OnActiveMessage func(msg chat.Message)
	// OnUnreadUpdate runs when another conversation's unread count changed.
	OnUnreadUpdate func(id chat.ConversationID)
	// OnResync runs after every reconnect; the server does not replay missed events.
	OnResync func()
}

// Sync keeps the chat cache in step with realtime events for one user.
type Sync struct {
	socket   Socket
	store    Store
	notifier policies.Notifier
	logger   *slog.Logger
	me       user.ID

	mu       sync.Mutex
	hooks    Hooks
	ctx      context.Context
	subs     []socket.Subscription
	connects int
	pending  chan policies.Notification
	quit     chan struct{}
}

func New(sock Socket, store Store, notifier policies.Notifier, me user.ID, logger *slog.Logger) (*Sync, error) {
	if sock == nil || store == nil {
		return nil, errors.New("chatsync: socket and store required")
	}
	if me == "" {
		return nil, user.ErrIDRequired
	}
	if logger == nil {
		logger = obs.Discard()
	}
	if notifier == nil {
		notifier = policies.NotifierFunc(func(context.Context, policies.Notification) error { return nil })
	}
	return &Sync{socket: sock, store: store, notifier: notifier, me: me, logger: logger}, nil
}

// SetHooks replaces the callbacks. Safe to call at any time.
func (s *Sync) SetHooks(h Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = h
}

// Start connects the socket, announces presence and registers one persistent
// subscription per event. Notifications are delivered on a separate goroutine
// so a slow notifier never holds up the socket. Calling Start twice is a no-op.
func (s *Sync) Start(ctx context.Context) {
	s.mu.Lock()
	if s.subs != nil {
		s.mu.Unlock()
		return
	}
	s.ctx = context.WithoutCancel(ctx)
	s.connects = 0
	s.pending = make(chan policies.Notification, notifyQueue)
	s.quit = make(chan struct{})
	go s.deliver(s.ctx, s.pending, s.quit)
	s.subs = []socket.Subscription{
		s.socket.On(socket.EventConnect, s.handleConnect),
		s.socket.On(chat.EventNewMessage, s.handleNewMessage),
		s.socket.On(chat.EventUnreadUpdate, s.handleUnreadUpdate),
	}
	s.mu.Unlock()

	s.socket.Connect(ctx)
	s.socket.Emit(chat.EventJoinChat, chat.JoinChat{UserID: s.me})
}

// Stop unregisters every subscription and discards queued notifications.
// The socket itself stays open.
func (s *Sync) Stop() {
	s.mu.Lock()
	subs, quit := s.subs, s.quit
	s.subs, s.pending, s.quit = nil, nil, nil
	s.mu.Unlock()
	for _, sub := range subs {
		s.socket.Off(sub)
	}
	if quit != nil {
		close(quit)
	}
}

// SetActive switches the active conversation; an empty id clears it.
func (s *Sync) SetActive(id chat.ConversationID) {
	s.store.Apply(chat.Activate(id))
	if id != "" {
		s.socket.Emit(chat.EventJoinChat, chat.JoinChat{UserID: s.me, ChatID: id})
	}
}

func (s *Sync) handleConnect(json.RawMessage) {
	s.mu.Lock()
	s.connects++
	reconnect := s.connects > 1
	resync := s.hooks.OnResync
	s.mu.Unlock()

	join := chat.JoinChat{UserID: s.me}
	s.socket.Emit(chat.EventJoinChat, join)
	if active := s.store.Snapshot().Active(); active != "" {
		join.ChatID = active
		s.socket.Emit(chat.EventJoinChat, join)
	}
	if reconnect && resync != nil {
		resync()
	}
}

func (s *Sync) handleNewMessage(raw json.RawMessage) {
	msg, err := chat.DecodeNewMessage(raw)
	if err != nil {
		s.logger.Warn("newMessage dropped", "error", err)
		return
	}
	state := s.store.Apply(chat.RecordLastMessage(msg.ChatID, msg))
	active := state.Active()

	s.mu.Lock()
	onActive := s.hooks.OnActiveMessage
	pending := s.pending
	s.mu.Unlock()

	if msg.ChatID == active && onActive != nil {
		onActive(msg)
	}
	if msg.Sender.ID == s.me || msg.ChatID == active {
		return
	}
	if pending == nil {
		return
	}
	n := policies.NewNotification(policies.KindMessage, fmt.Sprintf("%s te enviou uma mensagem", senderName(state, msg)), chat.PreviewText(msg))
	n.Action = &policies.Action{Label: openChatLabel, ConversationID: msg.ChatID}
	select {
	case pending <- n:
	default:
		s.logger.Warn("notification queue full, dropped", "chat_id", msg.ChatID)
	}
}

func (s *Sync) deliver(ctx context.Context, pending <-chan policies.Notification, quit <-chan struct{}) {
	for {
		select {
		case <-quit:
			return
		case n := <-pending:
			if err := s.notifier.Notify(ctx, n); err != nil {
				chatID := chat.ConversationID("")
				if n.Action != nil {
					chatID = n.Action.ConversationID
				}
				s.logger.Warn("notification failed", "chat_id", chatID, "error", err)
			}
		}
	}
}

func (s *Sync) handleUnreadUpdate(raw json.RawMessage) {
	evt, err := chat.DecodeUnreadUpdate(raw)
	if err != nil {
		s.logger.Warn("unreadUpdate dropped", "error", err)
		return
	}
	if evt.ChatID == s.store.Snapshot().Active() {
		return
	}
	s.mu.Lock()
	hook := s.hooks.OnUnreadUpdate
	s.mu.Unlock()
	if hook != nil {
		hook(evt.ChatID)
	}
}

func senderName(state chat.State, msg chat.Message) string {
	if msg.Sender.Name != "" {
		return msg.Sender.Name
	}
	if c, ok := state.Conversation(msg.ChatID); ok && c.OtherUser.Name != "" {
		return c.OtherUser.Name
	}
	return "Alguém"
}
