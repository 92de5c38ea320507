package api

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"arc-backend/internal/auth"
	"arc-backend/internal/logger"
	"arc-backend/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"
)

// RequestObserver records one finished HTTP request.
type RequestObserver interface {
	ObserveRequest(route, method string, code int)
}

// --- JWT Middleware ---

// JwtAuthMiddleware verifies the session token from the Authorization header.
// If valid, it injects the session id into the request context.
func JwtAuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	log := logger.Component("auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "Authorization header required")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				httputil.RespondError(w, http.StatusUnauthorized, "Malformed Authorization header (Expected: Bearer <token>)")
				return
			}

			claims, err := auth.ParseSessionToken(parts[1], jwtSecret)
			if err != nil {
				log.Debug().Err(err).Msg("rejected session token")
				switch {
				case errors.Is(err, jwt.ErrTokenExpired):
					httputil.RespondError(w, http.StatusUnauthorized, "Token has expired")
				case errors.Is(err, jwt.ErrTokenMalformed):
					httputil.RespondError(w, http.StatusUnauthorized, "Malformed token")
				default:
					httputil.RespondError(w, http.StatusUnauthorized, "Invalid token")
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithSessionID(r.Context(), claims.SessionID)))
		})
	}
}

// RequestLogger logs each request with zerolog and reports it to obs, labelled by the
// matched chi route pattern so ids in paths don't explode cardinality.
func RequestLogger(obs RequestObserver) func(http.Handler) http.Handler {
	log := logger.Component("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				route := "unmatched"
				if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
					route = rctx.RoutePattern()
				}
				if obs != nil {
					obs.ObserveRequest(route, r.Method, status)
				}
				log.Info().
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("route", route).
					Int("status", status).
					Int("bytes", ww.BytesWritten()).
					Dur("elapsed", time.Since(start)).
					Msg("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// limiterIdleTTL is how long an IP's bucket survives without requests.
const limiterIdleTTL = 10 * time.Minute

type ipLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// UnlockLimiter throttles unlock attempts per client IP with a token bucket.
type UnlockLimiter struct {
	perMinute int
	burst     int
	onLimit   func(clientIP string)
	now       func() time.Time

	mu        sync.Mutex
	limiters  map[string]*ipLimiter
	lastSweep time.Time
}

// NewUnlockLimiter allows perMinute attempts per IP with the given burst.
// perMinute <= 0 disables limiting. onLimit may be nil.
func NewUnlockLimiter(perMinute, burst int, onLimit func(clientIP string)) *UnlockLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &UnlockLimiter{
		perMinute: perMinute,
		burst:     burst,
		onLimit:   onLimit,
		now:       time.Now,
		limiters:  make(map[string]*ipLimiter),
	}
}

func (l *UnlockLimiter) limiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= limiterIdleTTL {
		for k, v := range l.limiters {
			if now.Sub(v.lastSeen) >= limiterIdleTTL {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}

	entry, ok := l.limiters[ip]
	if !ok {
		entry = &ipLimiter{lim: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.lim
}

// tracked reports how many IPs currently hold a bucket.
func (l *UnlockLimiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// Middleware rejects requests over the limit with 429.
func (l *UnlockLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.perMinute <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ip := httputil.ClientIP(r)
		if !l.limiter(ip).Allow() {
			if l.onLimit != nil {
				l.onLimit(ip)
			}
			w.Header().Set("Retry-After", "60")
			httputil.RespondError(w, http.StatusTooManyRequests, "Too many unlock attempts")
			return
		}
		next.ServeHTTP(w, r)
	})
}
