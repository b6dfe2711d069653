package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pkordes/rideshare-ledger/internal/auth"
)

// NewSlogLogger returns a middleware that logs each request as a structured
// line via log: method, path, status, duration, chi's request ID and, when
// the request was authenticated, the caller's user ID.
//
// Wire it after chimiddleware.RequestID and before NewAuthenticator.
func NewSlogLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			holder := &callerHolder{}
			r = r.WithContext(withCallerHolder(r.Context(), holder))

			next.ServeHTTP(ww, r)

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chimiddleware.GetReqID(r.Context()),
			}
			if holder.set {
				args = append(args, "user_id", holder.id.UserID.String())
			}
			log.InfoContext(r.Context(), "request", args...)
		})
	}
}

type callerHolder struct {
	id  auth.Identity
	set bool
}

type callerHolderKey struct{}

func withCallerHolder(ctx context.Context, h *callerHolder) context.Context {
	return context.WithValue(ctx, callerHolderKey{}, h)
}

// recordCaller lets the authenticator report the verified identity back to
// the request logger wrapping it.
func recordCaller(ctx context.Context, id auth.Identity) {
	if h, ok := ctx.Value(callerHolderKey{}).(*callerHolder); ok {
		h.id = id
		h.set = true
	}
}
