package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates agent configuration values loaded from environment variables.
type Config struct {
	Env                  string
	HTTPAddr             string
	APIBaseURL           string
	APITimeout           time.Duration
	SocketURL            string
	SocketReconnectDelay time.Duration
	SocketPingInterval   time.Duration
	SocketPongTimeout    time.Duration
	SessionBackend       string
	SessionPath          string
	SessionPassphrase    string
	SessionProfile       string
	MongoURI             string
	MongoDB              string
	KafkaBrokers         []string
	KafkaNotifyTopic     string
	FaceBaseURL          string
	FaceDetectKey        string
	FaceVerifyKey        string
	CheckoutBaseURL      string
	Email                string
	Password             string
	CompactLayout        bool
}

// Load reads an optional .env file and parses configuration from the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Env:               getEnv("APP_ENV", "dev"),
		HTTPAddr:          getEnv("HTTP_ADDR", "127.0.0.1:7450"),
		APIBaseURL:        strings.TrimRight(getEnv("API_BASE_URL", "https://noe-api-yv4w.onrender.com"), "/"),
		SocketURL:         getEnv("SOCKET_URL", "ws://localhost:3000/ws"),
		SessionBackend:    strings.ToLower(getEnv("SESSION_BACKEND", "file")),
		SessionPath:       getEnv("SESSION_PATH", defaultSessionPath()),
		SessionPassphrase: os.Getenv("SESSION_PASSPHRASE"),
		SessionProfile:    getEnv("SESSION_PROFILE", "default"),
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDB:           getEnv("MONGO_DB", "noe"),
		KafkaNotifyTopic:  getEnv("KAFKA_NOTIFY_TOPIC", "noe.notifications.v1"),
		FaceBaseURL:       getEnv("FACE_BASE_URL", "http://localhost:8000"),
		FaceDetectKey:     os.Getenv("FACE_DETECT_KEY"),
		FaceVerifyKey:     os.Getenv("FACE_VERIFY_KEY"),
		CheckoutBaseURL:   getEnv("CHECKOUT_BASE_URL", "https://checkout.stripe.com/c/pay"),
		Email:             os.Getenv("NOE_EMAIL"),
		Password:          os.Getenv("NOE_PASSWORD"),
	}
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	apiTimeout, err := parseDurationEnv("API_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.APITimeout = apiTimeout

	reconnect, err := parseDurationEnv("SOCKET_RECONNECT_DELAY", time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.SocketReconnectDelay = reconnect

	if cfg.SocketPingInterval, err = parseDurationEnv("SOCKET_PING_INTERVAL", 25*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SocketPongTimeout, err = parseDurationEnv("SOCKET_PONG_TIMEOUT", 20*time.Second); err != nil {
		return Config{}, err
	}

	compact, err := parseBoolEnv("COMPACT_LAYOUT", false)
	if err != nil {
		return Config{}, err
	}
	cfg.CompactLayout = compact

	switch cfg.SessionBackend {
	case "file":
	case "mongo":
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGO_URI is required when SESSION_BACKEND=mongo")
		}
	default:
		return Config{}, fmt.Errorf("invalid SESSION_BACKEND %q", cfg.SessionBackend)
	}
	if cfg.APIBaseURL == "" {
		return Config{}, fmt.Errorf("API_BASE_URL is required")
	}
	return cfg, nil
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".noe-session.json"
	}
	return dir + string(os.PathSeparator) + "noe" + string(os.PathSeparator) + "session.json"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
