package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Up-to-code/facbbok2/internal/service"
)

type RouterOpts struct {
	Logger *slog.Logger
	IsProd bool

	// Ping reports whether the backing store is reachable.
	Ping func(context.Context) error

	Auth          *service.AuthService
	Users         *service.UsersService
	Friends       *service.FriendsService
	Notifications *service.NotificationService
	Feed          *service.FeedService
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	api := &api{
		logger:           logger,
		isProd:           opts.IsProd,
		ping:             opts.Ping,
		authSvc:          opts.Auth,
		usersSvc:         opts.Users,
		friendsSvc:       opts.Friends,
		notificationsSvc: opts.Notifications,
		feedSvc:          opts.Feed,
	}

	publicMux := http.NewServeMux()
	apiMux := http.NewServeMux()

	publicMux.HandleFunc("GET /healthz", api.handleHealthz)

	if api.authSvc == nil {
		apiMux.HandleFunc("POST /v1/auth/google", handleNotImplemented)
		apiMux.HandleFunc("POST /v1/auth/apple", handleNotImplemented)
		apiMux.HandleFunc("GET /v1/users/me", handleNotImplemented)
	} else {
		apiMux.HandleFunc("POST /v1/auth/google", api.handleAuthLoginGoogle)
		apiMux.HandleFunc("POST /v1/auth/apple", api.handleAuthLoginApple)
		apiMux.HandleFunc("GET /v1/users/me", api.requireAuth(api.handleUsersMe))

		if api.usersSvc != nil {
			apiMux.HandleFunc("GET /v1/users", api.requireAuth(api.handleUsersList))
			apiMux.HandleFunc("GET /v1/users/{id}", api.requireAuth(api.handleUsersGet))
		}

		if api.friendsSvc != nil {
			apiMux.HandleFunc("GET /v1/friends", api.requireAuth(api.handleFriendsList))
			apiMux.HandleFunc("GET /v1/users/{id}/friends", api.requireAuth(api.handleUserFriendsList))
			apiMux.HandleFunc("DELETE /v1/friends/{id}", api.requireAuth(api.handleFriendsRemove))
			apiMux.HandleFunc("POST /v1/friends/requests", api.requireAuth(api.handleFriendsCreateRequest))
			apiMux.HandleFunc("GET /v1/friends/requests/{id}", api.requireAuth(api.handleFriendsGetRequest))
			apiMux.HandleFunc("POST /v1/friends/requests/{id}/accept", api.requireAuth(api.handleFriendsAccept))
			apiMux.HandleFunc("POST /v1/friends/requests/{id}/reject", api.requireAuth(api.handleFriendsReject))
		}

		if api.notificationsSvc != nil {
			apiMux.HandleFunc("GET /v1/notifications", api.requireAuth(api.handleNotificationsList))
			apiMux.HandleFunc("PATCH /v1/notifications/{id}", api.requireAuth(api.handleNotificationsResolve))
			apiMux.HandleFunc("POST /v1/notifications/badge/clear", api.requireAuth(api.handleNotificationsBadgeClear))
			apiMux.HandleFunc("POST /v1/notifications/token", api.requireAuth(api.handleNotificationsTokenUpsert))
			apiMux.HandleFunc("DELETE /v1/notifications/token", api.requireAuth(api.handleNotificationsTokenDelete))
		}

		if api.feedSvc != nil {
			apiMux.HandleFunc("POST /v1/posts", api.requireAuth(api.handlePostsCreate))
			apiMux.HandleFunc("GET /v1/feed", api.requireAuth(api.handleFeed))
			apiMux.HandleFunc("GET /v1/posts/{id}", api.requireAuth(api.handlePostsGet))
			apiMux.HandleFunc("GET /v1/posts/{id}/liked", api.requireAuth(api.handlePostsLiked))
			apiMux.HandleFunc("PUT /v1/posts/{id}/like", api.requireAuth(api.handlePostsLike))
			apiMux.HandleFunc("DELETE /v1/posts/{id}/like", api.requireAuth(api.handlePostsUnlike))
		}
	}

	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, pattern := apiMux.Handler(r)
		if pattern == "" {
			handleV1NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") || r.URL.Path == "/v1" {
			apiHandler.ServeHTTP(w, r)
			return
		}
		publicMux.ServeHTTP(w, r)
	})

	var h http.Handler = root
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func handleNotImplemented(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotImplemented, "not_implemented", "not implemented")
}

func handleV1NotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}

type api struct {
	logger *slog.Logger
	isProd bool

	ping func(context.Context) error

	authSvc          *service.AuthService
	usersSvc         *service.UsersService
	friendsSvc       *service.FriendsService
	notificationsSvc *service.NotificationService
	feedSvc          *service.FeedService
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.ping(ctx); err != nil {
			a.logger.Warn("healthz: store ping failed", "err", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
