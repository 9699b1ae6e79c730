package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noe/internal/infra/config"
	"noe/internal/infra/notify"
	"noe/internal/infra/obs"
)

func TestUnreachableKafkaFallsBackToLocalNotifiers(t *testing.T) {
	cfg := config.Config{
		APIBaseURL:       "http://127.0.0.1:1",
		APITimeout:       time.Second,
		SocketURL:        "ws://127.0.0.1:1/ws",
		SessionBackend:   "file",
		SessionPath:      filepath.Join(t.TempDir(), "session.json"),
		KafkaBrokers:     []string{"127.0.0.1:1"},
		KafkaNotifyTopic: "noe.notifications.v1",
	}

	app, err := buildApplication(context.Background(), cfg, obs.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { app.close(obs.Discard()) })

	assert.Nil(t, app.relay)
	notifiers, ok := app.agent.Notifier.(notify.Multi)
	require.True(t, ok)
	assert.Len(t, notifiers, 2)
}
