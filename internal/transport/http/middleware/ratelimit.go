package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"staffappraisal/internal/transport/http/api"
)

// RateLimit allows perMinute requests per caller, keyed by user when
// authenticated and by client address otherwise.
func RateLimit(perMinute int) func(http.Handler) http.Handler {
	instance := limiter.New(memory.NewStore(), limiter.Rate{Period: time.Minute, Limit: int64(perMinute)})
	mw := stdlib.NewMiddleware(instance,
		stdlib.WithKeyGetter(actorOrIPKey),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			slog.Warn("rate limit exceeded",
				"key", actorOrIPKey(r),
				"path", r.URL.Path,
				"method", r.Method,
				"limit", perMinute,
			)
			api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			slog.Error("rate limiter failed", "err", err)
			api.Fail(w, http.StatusInternalServerError, "rate_limit_error", "rate limiter unavailable", GetRequestID(r.Context()))
		}),
	)
	return mw.Handler
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return "ip:" + ClientIP(r)
}
