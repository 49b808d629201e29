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

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Up-to-code/facbbok2/internal/auth"
	"github.com/Up-to-code/facbbok2/internal/config"
	"github.com/Up-to-code/facbbok2/internal/cursor"
	"github.com/Up-to-code/facbbok2/internal/events"
	"github.com/Up-to-code/facbbok2/internal/httpapi"
	"github.com/Up-to-code/facbbok2/internal/notifications"
	"github.com/Up-to-code/facbbok2/internal/service"
	"github.com/Up-to-code/facbbok2/internal/store/mongodb"
	"github.com/Up-to-code/facbbok2/internal/store/postgres"
	redisstore "github.com/Up-to-code/facbbok2/internal/store/redis"
)

const devTokenSecret = "facbbok-dev-only-token-secret-change-me"

// stores is the set of persistence backends the services run on.
type stores struct {
	users         service.UsersStore
	directory     service.UsersDirectoryStore
	relationships service.RelationshipsStore
	notifications service.NotificationsStore
	tokens        service.NotificationTokensStore
	posts         service.PostsStore
	ping          func(context.Context) error
	close         func()
}

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file read before the environment")
	migrate := pflag.Bool("migrate", true, "apply the postgres schema or mongo indexes on start")
	pflag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *migrate); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, migrate bool) error {
	st, err := openStores(ctx, cfg, logger, migrate)
	if err != nil {
		return err
	}
	defer st.close()

	var badges service.BadgeCounter
	if cfg.RedisAddr != "" {
		rdb, err := redisstore.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		badges = redisstore.NewBadgeStore(rdb, "facbbok:badge")
		logger.Info("badge counts enabled", "redis_addr", cfg.RedisAddr)
	}

	pub, err := openPublisher(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := pub.Close(); err != nil {
			logger.Warn("events: close failed", "err", err)
		}
	}()

	var sender service.PushSender
	if cfg.PushEnabled() {
		fcm, err := notifications.NewFCMSender(ctx, cfg.FCMProjectID, cfg.FCMCredentials)
		if err != nil {
			return err
		}
		sender = fcm
		logger.Info("push enabled")
	} else {
		logger.Info("push disabled", "reason", "APP_FCM_CREDENTIALS not set")
	}

	tokenSecret := cfg.TokenSecret
	if tokenSecret == "" {
		logger.Warn("APP_TOKEN_SECRET not set, using the development secret")
		tokenSecret = devTokenSecret
	}
	cursorSecret := cfg.CursorSecret
	if cursorSecret == "" {
		cursorSecret = tokenSecret
	}
	cursors := cursor.NewCodec([]byte(cursorSecret))
	clock := service.NewClock(nil)

	notificationsSvc := &service.NotificationService{
		Notifications: st.notifications,
		Tokens:        st.tokens,
		Users:         st.users,
		Sender:        sender,
		Badges:        badges,
		Cursors:       cursors,
		PageSize:      cfg.PageSize,
		Clock:         clock,
		Logger:        logger,
	}

	friendsSvc := &service.FriendsService{
		Users:         st.users,
		Relationships: st.relationships,
		Badges:        badges,
		Notifier:      notificationsSvc,
		Events:        pub,
		Clock:         clock,
		Logger:        logger,
	}
	notificationsSvc.Requests = friendsSvc

	apiRouter := httpapi.NewRouter(httpapi.RouterOpts{
		Logger: logger,
		IsProd: cfg.IsProd(),
		Ping:   st.ping,
		Auth: &service.AuthService{
			Users:          st.users,
			Tokens:         auth.NewTokenIssuer([]byte(tokenSecret), cfg.TokenTTL),
			Clock:          clock,
			GoogleClientID: cfg.GoogleClientID,
			AppleServiceID: cfg.AppleServiceID,
		},
		Users: &service.UsersService{
			Store:    st.directory,
			Cursors:  cursors,
			PageSize: cfg.PageSize,
		},
		Friends:       friendsSvc,
		Notifications: notificationsSvc,
		Feed: &service.FeedService{
			Posts:    st.posts,
			Events:   pub,
			Cursors:  cursors,
			PageSize: cfg.PageSize,
			Clock:    clock,
			Logger:   logger,
		},
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiRouter,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr, "store", cfg.Store, "events", cfg.Events)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger, migrate bool) (stores, error) {
	switch cfg.Store {
	case config.StoreMongo:
		cli, err := mongodb.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return stores{}, err
		}
		st := mongodb.New(cli.Database(cfg.MongoDB), cfg.MongoUseTx)
		if migrate {
			if err := st.EnsureIndexes(ctx); err != nil {
				_ = cli.Disconnect(context.Background())
				return stores{}, err
			}
		}
		logger.Info("store ready", "store", "mongo", "db", cfg.MongoDB, "tx", cfg.MongoUseTx)
		return stores{
			users:         st,
			directory:     st,
			relationships: st,
			notifications: st,
			tokens:        st,
			posts:         st,
			ping:          st.Ping,
			close:         func() { _ = cli.Disconnect(context.Background()) },
		}, nil

	default:
		if cfg.DBDSN == "" {
			return stores{}, errors.New("APP_DB_DSN: required for the postgres store")
		}
		pool, err := postgres.Open(ctx, cfg.DBDSN)
		if err != nil {
			return stores{}, err
		}
		if migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return stores{}, err
			}
		}
		logger.Info("store ready", "store", "postgres")
		users := postgres.NewUsersStore(pool)
		return stores{
			users:         users,
			directory:     users,
			relationships: postgres.NewFriendshipsStore(pool),
			notifications: postgres.NewNotificationsStore(pool),
			tokens:        postgres.NewNotificationTokensStore(pool),
			posts:         postgres.NewPostsStore(pool),
			ping:          pool.Ping,
			close:         pool.Close,
		}, nil
	}
}

func openPublisher(cfg config.Config) (events.Publisher, error) {
	switch cfg.Events {
	case config.EventsNATS:
		pub, err := events.NewNATSPublisher(events.NATSConfig{
			URL:           cfg.NATSURL,
			Name:          "facbbok",
			SubjectPrefix: cfg.EventsTopic,
		})
		if err != nil {
			return nil, fmt.Errorf("events: %w", err)
		}
		return pub, nil
	case config.EventsKafka:
		pub, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.EventsTopic,
			ClientID: "facbbok",
		})
		if err != nil {
			return nil, fmt.Errorf("events: %w", err)
		}
		return pub, nil
	default:
		return events.Nop(), nil
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
