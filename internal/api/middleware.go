// internal/api/middleware.go
package api

import (
	"context"
	"errors"
	"math"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codr1/Shuttlers/internal/api/apiutil"
	"github.com/codr1/Shuttlers/internal/api/authz"
	"github.com/codr1/Shuttlers/internal/models"
	"github.com/codr1/Shuttlers/internal/ratelimit"
)

type Middleware func(http.Handler) http.Handler

func ChainMiddleware(h http.Handler, middleware ...Middleware) http.Handler {
	for _, m := range middleware {
		h = m(h)
	}
	return h
}

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create response wrapper to capture status code
		wrapped := wrapResponseWriter(w)

		next.ServeHTTP(wrapped, r)
		log.Ctx(r.Context()).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	})
}

func WithRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger := log.Ctx(r.Context())
				// Log the full stack trace
				stack := debug.Stack()
				logger.Error().
					Interface("error", err).
					Str("stack", string(stack)).
					Msg("Panic recovered")

				apiutil.WriteError(w, r, errors.New("panic"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()

		// Create a logger with the request ID
		logger := log.With().Str("request_id", requestID).Logger()

		// Add both the request ID and logger to context
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		ctx = logger.WithContext(ctx)

		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authenticator resolves a bearer token to a roster entry.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Participant, error)
}

// WithAuth resolves "Authorization: Bearer <token>" into the request's user.
// Requests without the header pass through anonymously; a bad token is
// rejected and counted against the client IP when limiter is set.
func WithAuth(auth Authenticator, limiter *ratelimit.Limiter, trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			logger := log.Ctx(r.Context())
			ip := ratelimit.GetClientIP(r, trustProxy)
			if limiter != nil {
				if result := limiter.CheckAuth(ip); !result.Allowed {
					ratelimit.LogRateLimitExceeded(r.Context(), "auth", "", ip, result.Reason)
					writeTooManyRequests(w, r, result.RetryAfter)
					return
				}
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			var (
				participant models.Participant
				err         error
			)
			if !ok || strings.TrimSpace(token) == "" {
				err = authz.ErrUnauthenticated
			} else {
				participant, err = auth.Authenticate(r.Context(), strings.TrimSpace(token))
			}
			if err != nil {
				logger.Warn().Err(err).Str("ip", ip).Msg("Rejected bearer token")
				if limiter != nil && limiter.RecordAuthFailure(ip) {
					ratelimit.LogRateLimitExceeded(r.Context(), "auth", "", ip, "lockout_started")
				}
				apiutil.WriteError(w, r, authz.ErrUnauthenticated)
				return
			}

			user := authz.NewAuthUser(participant)
			ctx := authz.ContextWithUser(r.Context(), user)
			ctx = logger.With().Int64("user_id", user.ID).Logger().WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithRateLimit throttles state-changing requests per authenticated participant.
func WithRateLimit(limiter *ratelimit.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := authz.UserFromContext(r.Context())
			if limiter == nil || user == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			subject := strconv.FormatInt(user.ID, 10)
			if result := limiter.AllowWrite(subject); !result.Allowed {
				ratelimit.LogRateLimitExceeded(r.Context(), "write", subject, ratelimit.GetClientIP(r, false), result.Reason)
				writeTooManyRequests(w, r, result.RetryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeTooManyRequests(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	apiutil.WriteError(w, r, apiutil.HandlerError{
		Status:  http.StatusTooManyRequests,
		Code:    "rate_limited",
		Message: "Too many requests",
	})
}

// responseWriter wrapper to capture status code
type responseWriter struct {
	http.ResponseWriter
	status int
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
