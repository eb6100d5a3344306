package http

import (
	"log/slog"
	"net/http"
	"strings"
)

type RouterConfig struct {
	Auth          *AuthHandler
	Accounts      *AccountHandler
	Events        *EventHandler
	Feedback      *FeedbackHandler
	Notifications *NotificationHandler
	Chat          *ChatHandler
	// Sessions guards every route except sign-in, registration, feedback
	// submission, health and metrics.
	Sessions   SessionValidator
	Metrics    http.Handler
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	requireSession := RequireSession(cfg.Sessions, cfg.Logger)
	authed := func(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		requireSession(next).ServeHTTP(w, r)
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		newResponder(cfg.Logger).writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Metrics != nil {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Metrics.ServeHTTP(w, r)
		})
	}

	if cfg.Auth != nil {
		mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.CreateSession(w, r)
		})
		mux.HandleFunc("/sessions/federated", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.CreateFederatedSession(w, r)
		})
		mux.HandleFunc("/sessions/current", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			authed(w, r, cfg.Auth.DeleteCurrentSession)
		})
	}

	if cfg.Accounts != nil || cfg.Auth != nil {
		mux.HandleFunc("/accounts", func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodPost && cfg.Auth != nil:
				cfg.Auth.Register(w, r)
			case r.Method == http.MethodGet && cfg.Accounts != nil:
				authed(w, r, cfg.Accounts.List)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
	}

	if cfg.Accounts != nil {
		mux.HandleFunc("/accounts/me", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			authed(w, r, cfg.Accounts.Me)
		})
		mux.HandleFunc("/accounts/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/accounts/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			ctx := ContextWithResourceID(r.Context(), id)
			r = r.WithContext(ctx)
			switch r.Method {
			case http.MethodGet:
				authed(w, r, cfg.Accounts.Get)
			case http.MethodPatch:
				authed(w, r, cfg.Accounts.Update)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPatch)
			}
		})
	}

	if cfg.Events != nil {
		mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				authed(w, r, cfg.Events.List)
			case http.MethodPost:
				authed(w, r, cfg.Events.Create)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/events/stream", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			authed(w, r, cfg.Events.Stream)
		})
		mux.HandleFunc("/events/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/events/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			ctx := ContextWithResourceID(r.Context(), id)
			r = r.WithContext(ctx)
			switch r.Method {
			case http.MethodGet:
				authed(w, r, cfg.Events.Get)
			case http.MethodPatch:
				authed(w, r, cfg.Events.Update)
			case http.MethodDelete:
				authed(w, r, cfg.Events.Delete)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
			}
		})
		mux.HandleFunc("/calendar/month", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			authed(w, r, cfg.Events.Month)
		})
	}

	if cfg.Feedback != nil {
		mux.HandleFunc("/feedback", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				cfg.Feedback.Submit(w, r)
			case http.MethodGet:
				authed(w, r, cfg.Feedback.List)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
	}

	if cfg.Notifications != nil {
		mux.HandleFunc("/notifications", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost:
				authed(w, r, cfg.Notifications.Broadcast)
			case http.MethodGet:
				authed(w, r, cfg.Notifications.List)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
	}

	if cfg.Chat != nil {
		mux.HandleFunc("/chat/messages", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			authed(w, r, cfg.Chat.Send)
		})
		mux.HandleFunc("/chat/conversation", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			authed(w, r, cfg.Chat.Clear)
		})
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
