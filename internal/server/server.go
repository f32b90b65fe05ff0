// Package server exposes the resource engine and account operations over
// HTTP with JSON bodies and a session cookie.
package server

import (
	"net/http"
	"time"

	"cfs-go/internal/auth"
	"cfs-go/internal/cfs"
	"cfs-go/internal/staging"
)

// Options tunes the HTTP surface. Zero values select defaults.
type Options struct {
	CookieName           string
	SecureCookie         bool
	MaxConcurrentUploads int
}

// Server holds shared dependencies for all HTTP handlers.
type Server struct {
	resources *cfs.ResourceService
	auth      *auth.Service
	spool     *staging.Spool
	limiter   *UploadLimiter
	logger    cfs.Logger
	ids       cfs.IDGenerator
	opts      Options
}

// New registers all routes and returns the root http.Handler.
//
// Middleware stack (outer → inner):
//
//	requestLog → ServeMux → requireSession → UploadLimiter → handler
//
// Resource paths are accepted either as a ?path= query parameter or as the
// trailing URL path.
func New(resources *cfs.ResourceService, authSvc *auth.Service, spool *staging.Spool, logger cfs.Logger, ids cfs.IDGenerator, opts Options) http.Handler {
	if opts.CookieName == "" {
		opts.CookieName = "CFS_SESSION"
	}
	s := &Server{
		resources: resources,
		auth:      authSvc,
		spool:     spool,
		limiter:   NewUploadLimiter(opts.MaxConcurrentUploads),
		logger:    logger,
		ids:       ids,
		opts:      opts,
	}

	session := s.requireSession
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/sign-up", s.signUp)
	mux.HandleFunc("POST /api/auth/sign-in", s.signIn)
	mux.Handle("POST /api/auth/sign-out", session(http.HandlerFunc(s.signOut)))
	mux.Handle("GET /api/user/me", session(http.HandlerFunc(s.me)))

	for _, p := range []string{"/api/directory", "/api/directory/{path...}"} {
		mux.Handle("POST "+p, session(http.HandlerFunc(s.createDirectory)))
		mux.Handle("GET "+p, session(http.HandlerFunc(s.listDirectory)))
		mux.Handle("DELETE "+p, session(http.HandlerFunc(s.deleteResource)))
	}
	for _, p := range []string{"/api/resource", "/api/resource/{path...}"} {
		mux.Handle("GET "+p, session(http.HandlerFunc(s.resourceInfo)))
		mux.Handle("DELETE "+p, session(http.HandlerFunc(s.deleteResource)))
		mux.Handle("POST "+p, session(s.limiter.Limit(http.HandlerFunc(s.upload))))
	}
	for _, p := range []string{"/api/resource/download", "/api/resource/download/{path...}"} {
		mux.Handle("GET "+p, session(http.HandlerFunc(s.download)))
	}
	mux.Handle("GET /api/resource/move", session(http.HandlerFunc(s.move)))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return requestLog(logger, ids)(mux)
}

// pathParam returns the resource path from the URL path or the query.
func pathParam(r *http.Request) string {
	if p := r.PathValue("path"); p != "" {
		return p
	}
	return r.URL.Query().Get("path")
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
