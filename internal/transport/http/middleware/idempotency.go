package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"staffappraisal/internal/platform/cache"
	"staffappraisal/internal/transport/http/api"
)

const IdempotencyHeader = "Idempotency-Key"

type IdempotencyStore interface {
	Check(ctx context.Context, key, requestHash string) (cache.StoredResponse, bool, error)
	Save(ctx context.Context, key string, resp cache.StoredResponse) error
}

type bufferedWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) WriteHeader(code int) {
	b.status = code
	b.ResponseWriter.WriteHeader(code)
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.body.Write(p)
	return b.ResponseWriter.Write(p)
}

// Idempotent replays the stored response when a request is retried with the
// same Idempotency-Key and body. Requests without the header, or arriving
// while the store is unreachable, run normally.
func Idempotent(store IdempotencyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if store == nil || key == "" {
				next.ServeHTTP(w, r)
				return
			}
			requestID := GetRequestID(r.Context())
			if len(key) > 200 {
				api.Fail(w, http.StatusBadRequest, "invalid_idempotency_key", "idempotency key too long", requestID)
				return
			}

			raw, err := io.ReadAll(r.Body)
			if err != nil {
				api.Fail(w, http.StatusBadRequest, "invalid_body", "could not read request body", requestID)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(raw))

			scoped := idempotencyScope(r) + ":" + key
			hash := cache.RequestHash(append([]byte(r.Method+" "+r.URL.Path+"\n"), raw...))

			stored, found, err := store.Check(r.Context(), scoped, hash)
			switch {
			case errors.Is(err, cache.ErrIdempotencyConflict):
				api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different request", requestID)
				return
			case err != nil:
				slog.Warn("idempotency check failed", "err", err, "requestId", requestID)
				next.ServeHTTP(w, r)
				return
			case found:
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(stored.Status)
				_, _ = w.Write(stored.Body)
				return
			}

			buffered := &bufferedWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(buffered, r)
			if buffered.status < 200 || buffered.status >= 300 {
				return
			}
			if err := store.Save(r.Context(), scoped, cache.StoredResponse{
				RequestHash: hash,
				Status:      buffered.status,
				Body:        buffered.body.Bytes(),
			}); err != nil {
				slog.Warn("idempotency save failed", "err", err, "requestId", requestID)
			}
		})
	}
}

func idempotencyScope(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok {
		return user.UserID
	}
	return "anon:" + ClientIP(r)
}
