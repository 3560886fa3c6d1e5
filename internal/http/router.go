package http

import (
	"log/slog"
	"net/http"
	"time"
)

// Route binds a method and pattern to a handler. Routes that are not
// Public pass the AuthGate first.
type Route struct {
	Method  string
	Pattern string
	Public  bool
	Handler http.HandlerFunc
}

// RouterConfig collects the handlers served by the router. Nil handlers
// leave their routes out. Without a Gate every non-public route is denied.
type RouterConfig struct {
	Gate    *AuthGate
	Auth    *AuthHandler
	Events  *EventHandler
	Uploads *UploadHandler

	// Files serves stored uploads under FilesPrefix, e.g. "/uploads/".
	Files       http.Handler
	FilesPrefix string
	// Static serves the web client. LoginPage is its public login page.
	Static    http.Handler
	LoginPage string

	Logger     *slog.Logger
	Now        func() time.Time
	Middleware []func(http.Handler) http.Handler
}

// Routes returns the route table for cfg.
func Routes(cfg RouterConfig) []Route {
	var routes []Route
	add := func(method, pattern string, public bool, handler http.HandlerFunc) {
		routes = append(routes, Route{Method: method, Pattern: pattern, Public: public, Handler: handler})
	}

	if cfg.Auth != nil {
		add(http.MethodPost, "/api/login", true, cfg.Auth.Login)
		add(http.MethodGet, "/api/check_session", true, cfg.Auth.CheckSession)
		add(http.MethodPost, "/api/logout", false, cfg.Auth.Logout)
	}

	if h := cfg.Events; h != nil {
		add(http.MethodGet, "/api/events", false, h.List)
		add(http.MethodGet, "/api/events/{$}", false, h.List)
		add(http.MethodPost, "/api/events", false, h.Create)
		add(http.MethodPost, "/api/events/{$}", false, h.Create)
		add(http.MethodGet, "/api/events/today", false, h.Today)
		add(http.MethodGet, "/api/events/upcoming", false, h.Upcoming)
		add(http.MethodGet, "/api/events/export", false, h.Export)
		add(http.MethodGet, "/api/events/{id}", false, h.Get)
		add(http.MethodPut, "/api/events/{id}", false, h.Update)
		add(http.MethodDelete, "/api/events/{id}", false, h.Delete)
	}

	if h := cfg.Uploads; h != nil {
		add(http.MethodGet, "/api/uploads", false, h.List)
		add(http.MethodGet, "/api/uploads/{$}", false, h.List)
		add(http.MethodDelete, "/api/uploads/{name}", false, h.Delete)
		add(http.MethodPost, "/api/upload", false, h.Upload)
		add(http.MethodPost, "/api/upload/{$}", false, h.Upload)
		add(http.MethodPost, "/api/upload_base64", false, h.UploadBase64)
		add(http.MethodPost, "/api/upload_base64/{$}", false, h.UploadBase64)
	}

	if cfg.Files != nil && cfg.FilesPrefix != "" {
		add(http.MethodGet, cfg.FilesPrefix, false, http.StripPrefix(cfg.FilesPrefix, cfg.Files).ServeHTTP)
	}

	if cfg.Static != nil {
		if cfg.LoginPage != "" {
			add(http.MethodGet, cfg.LoginPage, true, cfg.Static.ServeHTTP)
		}
		add(http.MethodGet, "/", false, cfg.Static.ServeHTTP)
	}

	return routes
}

// NewRouter registers the route table on a ServeMux. Requests that match no
// route, including a known path with another method, get a 404 envelope.
func NewRouter(cfg RouterConfig) http.Handler {
	responder := newResponder(cfg.Logger, cfg.Now)
	invalidPath := func(w http.ResponseWriter, r *http.Request) {
		responder.fail(r.Context(), w, http.StatusNotFound, msgInvalidPath)
	}

	gate := cfg.Gate
	if gate == nil {
		gate = NewAuthGate(nil, nil, cfg.LoginPage, cfg.Logger)
	}

	mux := http.NewServeMux()
	for _, route := range Routes(cfg) {
		var handler http.Handler = route.Handler
		if !route.Public {
			handler = gate.RequireAuth(handler)
		}
		mux.Handle(route.Method+" "+route.Pattern, handler)
	}
	// Unknown API paths must not fall through to the static catch-all.
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		mux.HandleFunc(method+" "+apiPathPrefix, invalidPath)
	}

	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, pattern := mux.Handler(r); pattern == "" {
			invalidPath(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}
	return handler
}
