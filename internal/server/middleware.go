package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"cfs-go/internal/cfs"
	"cfs-go/internal/model"
)

type contextKey int

const (
	userKey contextKey = iota
	requestIDKey
)

// userFrom returns the authenticated user stored by requireSession.
func userFrom(ctx context.Context) *model.User {
	u, _ := ctx.Value(userKey).(*model.User)
	return u
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// responseRecorder captures the status code and byte count for the access
// log.
type responseRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *responseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// requestLog tags every request with an id (X-Request-ID, generated when
// absent) and writes one access log line when it completes.
func requestLog(logger cfs.Logger, ids cfs.IDGenerator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = ids.New()
			}
			w.Header().Set("X-Request-ID", id)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey, id))

			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("http",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"response_bytes", rec.written,
				"remote_addr", r.RemoteAddr,
				"request_id", id,
			)
		})
	}
}

// requireSession resolves the session cookie to a user and stores it in
// the request context. Requests without a valid session get 401.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if c, err := r.Cookie(s.opts.CookieName); err == nil {
			token = c.Value
		}
		user, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

// UploadLimiter caps concurrent uploads with a non-blocking channel
// semaphore. A request that finds every slot taken gets 503 and
// Retry-After instead of queueing.
type UploadLimiter struct {
	sem chan struct{}
}

// DefaultUploadConcurrency applies when the configured limit is not positive.
const DefaultUploadConcurrency = 8

func NewUploadLimiter(maxConcurrent int) *UploadLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultUploadConcurrency
	}
	return &UploadLimiter{sem: make(chan struct{}, maxConcurrent)}
}

func (l *UploadLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case l.sem <- struct{}{}:
			defer func() { <-l.sem }()
			next.ServeHTTP(w, r)
		default:
			w.Header().Set("Retry-After", retryAfterSeconds)
			w.Header().Set("X-Active-Uploads", strconv.Itoa(len(l.sem)))
			writeMessage(w, http.StatusServiceUnavailable, "too many concurrent uploads")
		}
	})
}

// Active returns the number of upload slots in use.
func (l *UploadLimiter) Active() int { return len(l.sem) }
