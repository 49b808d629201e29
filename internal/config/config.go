package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"

	EventsNone  = "none"
	EventsNATS  = "nats"
	EventsKafka = "kafka"
)

type Config struct {
	Env      string
	Addr     string
	LogLevel string

	Store      string
	DBDSN      string
	MongoURI   string
	MongoDB    string
	MongoUseTx bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Events       string
	NATSURL      string
	KafkaBrokers []string
	EventsTopic  string

	FCMProjectID   string
	FCMCredentials string

	TokenSecret    string
	TokenTTL       time.Duration
	GoogleClientID string
	AppleServiceID string

	CursorSecret string
	PageSize     int
}

func Load() (Config, error) {
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:            getenv("APP_ENV"),
		Addr:           getenv("APP_ADDR"),
		LogLevel:       getenv("APP_LOG_LEVEL"),
		Store:          strings.ToLower(strings.TrimSpace(getenv("APP_STORE"))),
		DBDSN:          getenv("APP_DB_DSN"),
		MongoURI:       getenv("APP_MONGO_URI"),
		MongoDB:        getenv("APP_MONGO_DB"),
		RedisAddr:      getenv("APP_REDIS_ADDR"),
		RedisPassword:  getenv("APP_REDIS_PASSWORD"),
		Events:         strings.ToLower(strings.TrimSpace(getenv("APP_EVENTS"))),
		NATSURL:        getenv("APP_NATS_URL"),
		KafkaBrokers:   parseCSV(getenv("APP_KAFKA_BROKERS")),
		EventsTopic:    getenv("APP_EVENTS_TOPIC"),
		FCMProjectID:   getenv("APP_FCM_PROJECT_ID"),
		FCMCredentials: getenv("APP_FCM_CREDENTIALS"),
		TokenSecret:    getenv("APP_TOKEN_SECRET"),
		GoogleClientID: getenv("APP_GOOGLE_CLIENT_ID"),
		AppleServiceID: getenv("APP_APPLE_SERVICE_ID"),
		CursorSecret:   getenv("APP_CURSOR_SECRET"),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if cfg.Store == "" {
		cfg.Store = StorePostgres
	}
	if cfg.MongoDB == "" {
		cfg.MongoDB = "facbbok"
	}
	if cfg.Events == "" {
		cfg.Events = EventsNone
	}
	if cfg.EventsTopic == "" {
		cfg.EventsTopic = "facbbok.events"
	}
	if cfg.CursorSecret == "" {
		cfg.CursorSecret = cfg.TokenSecret
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	var err error
	if cfg.MongoUseTx, err = parseBool(getenv("APP_MONGO_TX")); err != nil {
		return Config{}, fmt.Errorf("APP_MONGO_TX: %w", err)
	}
	if raw := getenv("APP_REDIS_DB"); raw != "" {
		if cfg.RedisDB, err = strconv.Atoi(raw); err != nil || cfg.RedisDB < 0 {
			return Config{}, errors.New("APP_REDIS_DB: must be a non-negative integer")
		}
	}
	if raw := getenv("APP_PAGE_SIZE"); raw != "" {
		if cfg.PageSize, err = strconv.Atoi(raw); err != nil || cfg.PageSize < 1 {
			return Config{}, errors.New("APP_PAGE_SIZE: must be a positive integer")
		}
	}

	ttlRaw := getenv("APP_TOKEN_TTL")
	if ttlRaw == "" {
		cfg.TokenTTL = 30 * 24 * time.Hour
	} else {
		ttl, err := time.ParseDuration(ttlRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_TOKEN_TTL: %w", err)
		}
		if ttl <= 0 {
			return Config{}, errors.New("APP_TOKEN_TTL: must be > 0")
		}
		cfg.TokenTTL = ttl
	}

	switch cfg.Store {
	case StorePostgres:
		if cfg.IsProd() && cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required in prod")
		}
	case StoreMongo:
		if cfg.MongoURI == "" {
			return Config{}, errors.New("APP_MONGO_URI: required when APP_STORE=mongo")
		}
	default:
		return Config{}, errors.New("APP_STORE: must be one of postgres, mongo")
	}

	switch cfg.Events {
	case EventsNone:
	case EventsNATS:
		if cfg.NATSURL == "" {
			return Config{}, errors.New("APP_NATS_URL: required when APP_EVENTS=nats")
		}
	case EventsKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return Config{}, errors.New("APP_KAFKA_BROKERS: required when APP_EVENTS=kafka")
		}
	default:
		return Config{}, errors.New("APP_EVENTS: must be one of none, nats, kafka")
	}

	if cfg.IsProd() {
		if len(cfg.TokenSecret) < 32 {
			return Config{}, errors.New("APP_TOKEN_SECRET: must be at least 32 bytes in prod")
		}
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

// PushEnabled reports whether FCM credentials were configured.
func (c Config) PushEnabled() bool { return strings.TrimSpace(c.FCMCredentials) != "" }

func parseBool(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

func parseCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
