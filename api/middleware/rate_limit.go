package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/digitalhandshake/dhs-backend/api/responses"
	pkgerrors "github.com/digitalhandshake/dhs-backend/pkg/errors"
	"github.com/digitalhandshake/dhs-backend/pkg/logger"
)

const (
	defaultAPIRateLimit  = int64(120)
	defaultAPIRateWindow = time.Minute
)

type windowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimit throttles authenticated traffic per account. Unauthenticated
// requests fall back to the client IP.
func RateLimit(store windowLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			subject := AccountFromContext(ctx)
			if subject == "" {
				subject = clientIP(r)
			}
			scope := fmt.Sprintf("api:%s", subject)

			allowed, count, err := store.FixedWindowAllow(ctx, scope, defaultAPIRateLimit, defaultAPIRateWindow)
			if err != nil {
				// Redis being down should not take the API with it.
				if logg != nil {
					logg.Error(ctx, "rate limiter unavailable", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{"subject": subject, "attempts": count})
					logg.Warn(logCtx, "api.rate_limit.blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
