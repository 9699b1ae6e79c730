package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"noe/internal/app/chatsync"
	"noe/internal/app/chatview"
	"noe/internal/app/policies"
	"noe/internal/app/proposals"
	"noe/internal/app/services/auth"
	"noe/internal/domain/chat"
	"noe/internal/domain/user"
	"noe/internal/infra/api"
	"noe/internal/infra/obs"
)

var ErrSocketOffline = errors.New("agent: realtime channel offline")

// Client is the REST surface needed by a signed-in workspace.
type Client interface {
	chatview.API
	proposals.API
}

type Socket interface {
	chatsync.Socket
	Close() error
	Connected() bool
}

type Cache interface {
	chatsync.Store
	Reset()
}

// Workspace groups the services bound to one signed-in user.
type Workspace struct {
	User      user.User
	Sync      *chatsync.Sync
	View      *chatview.View
	Proposals *proposals.Service
}

// Agent owns the session lifecycle and the workspace built for it.
type Agent struct {
	Auth            *auth.Service
	Client          Client
	Socket          Socket
	Cache           Cache
	Notifier        policies.Notifier
	Logger          *slog.Logger
	Compact         bool
	CheckoutBaseURL string

	mu     sync.Mutex
	ws     *Workspace
	cancel context.CancelFunc
}

func (a *Agent) Login(ctx context.Context, email, password string) (*Workspace, error) {
	sess, err := a.Auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return a.Begin(ctx, sess)
}

func (a *Agent) Register(ctx context.Context, params api.RegisterParams) (*Workspace, error) {
	sess, err := a.Auth.Register(ctx, params)
	if err != nil {
		return nil, err
	}
	return a.Begin(ctx, sess)
}

// Restore resumes a stored session, if any.
func (a *Agent) Restore(ctx context.Context) (*Workspace, error) {
	sess, err := a.Auth.Restore(ctx)
	if err != nil {
		return nil, err
	}
	return a.Begin(ctx, sess)
}

func (a *Agent) Logout(ctx context.Context) error {
	a.End()
	return a.Auth.Logout(ctx)
}

// Begin builds the workspace for sess, starts realtime sync and loads the
// conversation list. An existing workspace for the same user is reused.
// The list is loaded outside the lock, so Workspace answers during a login.
func (a *Agent) Begin(ctx context.Context, sess *user.Session) (*Workspace, error) {
	ws, bg, err := a.start(ctx, sess)
	if err != nil || bg == nil {
		return ws, err
	}
	loadCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(bg, cancel)
	defer stop()
	if err := ws.View.Load(loadCtx); err != nil && bg.Err() == nil {
		a.logger().Warn("initial conversation load failed", "error", err)
	}
	return ws, nil
}

// start installs a new workspace and returns the context bound to its
// lifetime. A reused workspace comes back with a nil context.
func (a *Agent) start(ctx context.Context, sess *user.Session) (*Workspace, context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ws != nil && a.ws.User.ID == sess.User.ID {
		return a.ws, nil, nil
	}
	a.endLocked()

	logger := a.logger()
	me := sess.User.ID
	syncer, err := chatsync.New(a.Socket, a.Cache, a.Notifier, me, logger)
	if err != nil {
		return nil, nil, err
	}
	view, err := chatview.New(a.Client, a.Cache, syncer, a.Notifier, chatview.Options{Compact: a.Compact, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	props, err := proposals.NewService(a.Client, a.Cache, a.Notifier, me, proposals.Options{CheckoutBaseURL: a.CheckoutBaseURL, Logger: logger})
	if err != nil {
		return nil, nil, err
	}

	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	syncer.SetHooks(chatsync.Hooks{
		OnActiveMessage: view.Receive,
		OnUnreadUpdate: func(id chat.ConversationID) {
			go a.background(bg, "refresh conversations", view.Load)
		},
		OnResync: func() {
			go a.background(bg, "resync", view.Resync)
		},
	})
	syncer.Start(bg)

	a.ws = &Workspace{User: sess.User, Sync: syncer, View: view, Proposals: props}
	a.cancel = cancel
	logger.Info("workspace started", "user_id", me, "role", sess.User.Role)
	return a.ws, bg, nil
}

// End stops realtime sync and drops cached chat data.
func (a *Agent) End() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.endLocked()
}

func (a *Agent) endLocked() {
	if a.ws == nil {
		return
	}
	a.ws.Sync.Stop()
	a.cancel()
	if err := a.Socket.Close(); err != nil {
		a.logger().Warn("socket close failed", "error", err)
	}
	a.Cache.Reset()
	a.logger().Info("workspace stopped", "user_id", a.ws.User.ID)
	a.ws, a.cancel = nil, nil
}

// Workspace returns the current workspace. An expired session ends it.
func (a *Agent) Workspace() (*Workspace, error) {
	if _, ok := a.Auth.Current(); !ok {
		a.End()
		return nil, user.ErrNotAuthenticated
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ws == nil {
		return nil, user.ErrNotAuthenticated
	}
	return a.ws, nil
}

// Ready reports whether a user is signed in and the realtime channel is up.
func (a *Agent) Ready() error {
	if _, err := a.Workspace(); err != nil {
		return err
	}
	if !a.Socket.Connected() {
		return ErrSocketOffline
	}
	return nil
}

func (a *Agent) background(ctx context.Context, op string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil && ctx.Err() == nil {
		a.logger().Warn(fmt.Sprintf("%s failed", op), "error", err)
	}
}

func (a *Agent) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return obs.Discard()
}
