package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"noe/internal/app/agent"
	"noe/internal/app/outbox"
	"noe/internal/app/services/auth"
	"noe/internal/domain/user"
	"noe/internal/infra/api"
	"noe/internal/infra/broker/kafka"
	"noe/internal/infra/config"
	mongodb "noe/internal/infra/db/mongo"
	"noe/internal/infra/face"
	ginserver "noe/internal/infra/http/gin"
	"noe/internal/infra/notify"
	"noe/internal/infra/obs"
	outboxstore "noe/internal/infra/outbox"
	"noe/internal/infra/session"
	"noe/internal/infra/socket"
	"noe/internal/infra/storage/memory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger(os.Getenv("APP_ENV")).Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.close(logger)

	app.signIn(ctx, cfg, logger)

	if app.relay != nil {
		go func() {
			if err := app.relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox relay stopped", "error", err)
			}
		}()
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Checks: app.checks}, app.handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	agent    *agent.Agent
	relay    *outbox.Relay
	checks   []obs.Check
	handlers ginserver.Handlers
	closers  []func(context.Context) error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{}

	var db *mongodriver.Database
	if cfg.MongoURI != "" {
		client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		app.closers = append(app.closers, client.Close)
		app.checks = append(app.checks, obs.Check{Name: "mongo", Run: client.Ping})
		db = client.DB
	}

	sessions, err := buildSessionStore(ctx, cfg, db)
	if err != nil {
		return nil, err
	}
	authSvc := &auth.Service{Sessions: sessions, Logger: logger}

	client, err := api.NewClient(api.Config{BaseURL: cfg.APIBaseURL, Timeout: cfg.APITimeout}, authSvc, logger)
	if err != nil {
		return nil, err
	}
	authSvc.API = client

	if cfg.FaceDetectKey != "" || cfg.FaceVerifyKey != "" {
		faces, err := face.NewClient(face.Config{BaseURL: cfg.FaceBaseURL, DetectKey: cfg.FaceDetectKey, VerifyKey: cfg.FaceVerifyKey})
		if err != nil {
			return nil, err
		}
		authSvc.Faces = faces
	} else {
		logger.Info("face verification disabled")
	}

	sock, err := socket.New(socket.Config{
		URL:            cfg.SocketURL,
		ReconnectDelay: cfg.SocketReconnectDelay,
		PingInterval:   cfg.SocketPingInterval,
		PongTimeout:    cfg.SocketPongTimeout,
		Header: func() http.Header {
			h := http.Header{}
			if token := authSvc.Token(); token != "" {
				h.Set("Authorization", "Bearer "+token)
			}
			return h
		},
	}, logger)
	if err != nil {
		return nil, err
	}

	inbox := notify.NewInbox(0)
	notifiers := notify.Multi{notify.LogNotifier{Logger: logger}, inbox}
	if len(cfg.KafkaBrokers) > 0 {
		push, err := buildPushNotifier(ctx, cfg, db, authSvc, logger, app)
		if err != nil {
			return nil, err
		}
		if push != nil {
			notifiers = append(notifiers, push)
		}
	}

	app.agent = &agent.Agent{
		Auth:            authSvc,
		Client:          client,
		Socket:          sock,
		Cache:           memory.NewChatCache(),
		Notifier:        notifiers,
		Logger:          logger,
		Compact:         cfg.CompactLayout,
		CheckoutBaseURL: cfg.CheckoutBaseURL,
	}
	app.checks = append(app.checks, obs.Check{Name: "workspace", Run: func(context.Context) error { return app.agent.Ready() }})
	app.closers = append(app.closers, func(context.Context) error {
		app.agent.End()
		return nil
	})

	app.handlers = ginserver.Handlers{
		Session:        ginserver.SessionHandler{Agent: app.agent, Profiles: authSvc, Logger: logger},
		Chat:           ginserver.ChatHandler{Workspaces: app.agent, Logger: logger},
		Proposal:       ginserver.ProposalHandler{Workspaces: app.agent, Logger: logger},
		Notification:   ginserver.NotificationHandler{Inbox: inbox, Workspaces: app.agent, Logger: logger},
		Catalog:        ginserver.CatalogHandler{API: client, Workspaces: app.agent, Logger: logger},
		Identity:       ginserver.IdentityHandler{Faces: authSvc, Logger: logger},
		RequireSession: ginserver.RequireSession(app.agent, logger),
	}
	return app, nil
}

// buildPushNotifier returns nil when the brokers cannot be reached, leaving
// the log and inbox notifiers in place.
func buildPushNotifier(ctx context.Context, cfg config.Config, db *mongodriver.Database, authSvc *auth.Service, logger *slog.Logger, app *application) (*notify.KafkaNotifier, error) {
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
	if err != nil {
		logger.Warn("kafka unavailable, push notifications disabled", "brokers", cfg.KafkaBrokers, "error", err)
		return nil, nil
	}
	app.closers = append(app.closers, func(context.Context) error { return producer.Close() })
	push, err := notify.NewKafkaNotifier(producer, cfg.KafkaNotifyTopic, func() string {
		if sess, ok := authSvc.Current(); ok {
			return string(sess.User.ID)
		}
		return ""
	})
	if err != nil {
		return nil, err
	}
	if db == nil {
		return push, nil
	}
	parked, err := outboxstore.NewStore(ctx, db)
	if err != nil {
		return nil, err
	}
	push.WithOutbox(parked)
	app.relay = &outbox.Relay{
		Store:     parked,
		Publisher: producer,
		Backoff:   []time.Duration{time.Second, 5 * time.Second, 30 * time.Second, 2 * time.Minute},
		Logger:    logger,
	}
	return push, nil
}

func buildSessionStore(ctx context.Context, cfg config.Config, db *mongodriver.Database) (auth.SessionStore, error) {
	if cfg.SessionBackend != "mongo" {
		store, err := session.NewFileStore(cfg.SessionPath, cfg.SessionPassphrase)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	if db == nil {
		return nil, errors.New("mongo session store: MONGO_URI not set")
	}
	store, err := mongodb.NewSessionStore(ctx, db, cfg.SessionProfile)
	if err != nil {
		return nil, fmt.Errorf("mongo session store: %w", err)
	}
	return store, nil
}

// signIn resumes the stored session or logs in with the configured
// credentials. Failing both leaves the API waiting for POST /session.
func (a *application) signIn(ctx context.Context, cfg config.Config, logger *slog.Logger) {
	ws, err := a.agent.Restore(ctx)
	if err == nil {
		logger.Info("session restored", "user_id", ws.User.ID)
		return
	}
	if !errors.Is(err, user.ErrNotAuthenticated) {
		logger.Warn("session restore failed", "error", err)
	}
	if cfg.Email == "" || cfg.Password == "" {
		logger.Info("no stored session, waiting for login")
		return
	}
	ws, err = a.agent.Login(ctx, cfg.Email, cfg.Password)
	if err != nil {
		logger.Warn("login with configured credentials failed", "error", err)
		return
	}
	logger.Info("logged in", "user_id", ws.User.ID)
}

func (a *application) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			logger.Warn("shutdown step failed", "error", err)
		}
	}
}
