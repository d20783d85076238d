package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/campusmart/campusmart-backend/api/responses"
	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
	"github.com/campusmart/campusmart-backend/pkg/logger"
	pkgredis "github.com/campusmart/campusmart-backend/pkg/redis"
)

const (
	IdempotencyHeader    = "Idempotency-Key"
	maxIdempotencyKeyLen = 128
	replayHeader         = "Idempotent-Replayed"
)

type responseStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// storedResponse is the Redis value for one key. It is written as pending
// before the handler runs and replaced with the captured response after.
type storedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency makes a mutating route safe to retry. Requests without an
// Idempotency-Key pass straight through. The first request with a given key
// runs the handler and its response is kept for ttl.
// Repeats with the same body replay that response; a different body or a
// repeat while the first is still running is a 409. Server errors are not
// kept so the client can retry them.
func Idempotency(store responseStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			header := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(header) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long (max 128 chars)"))
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			hash := hex.EncodeToString(sum[:])
			key := store.IdempotencyKey(UserIDFromContext(ctx)+":"+r.Method+":"+r.URL.Path, header)

			reserved, err := reserve(ctx, store, key, hash, ttl)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store unavailable"))
				return
			}
			if !reserved {
				replayOrReject(ctx, logg, w, store, key, hash)
				return
			}

			capture := &responseCapture{statusRecorder: statusRecorder{ResponseWriter: w}}
			next.ServeHTTP(capture, r)

			// the client may have gone away; the outcome still has to be recorded
			saveCtx := context.WithoutCancel(ctx)
			status := capture.code()
			if status >= http.StatusInternalServerError {
				if err := store.Del(saveCtx, key); err != nil && logg != nil {
					logg.Error(ctx, "failed to release idempotency key", err)
				}
				return
			}
			record, _ := json.Marshal(storedResponse{
				RequestHash: hash,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err := store.Set(saveCtx, key, string(record), ttl); err != nil && logg != nil {
				logg.Error(ctx, "failed to store idempotent response", err)
			}
		})
	}
}

func reserve(ctx context.Context, store responseStore, key, hash string, ttl time.Duration) (bool, error) {
	pending, _ := json.Marshal(storedResponse{Pending: true, RequestHash: hash})
	return store.SetNX(ctx, key, string(pending), ttl)
}

func replayOrReject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, store responseStore, key, hash string) {
	raw, err := store.Get(ctx, key)
	if err != nil && !pkgredis.IsNil(err) {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store unavailable"))
		return
	}
	var stored storedResponse
	if raw == "" || json.Unmarshal([]byte(raw), &stored) != nil {
		// expired or released between the reserve and the read
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request state changed, retry"))
		return
	}
	switch {
	case stored.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "Idempotency-Key already used with a different body"))
	case stored.Pending:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this Idempotency-Key is still running"))
	default:
		if stored.ContentType != "" {
			w.Header().Set("Content-Type", stored.ContentType)
		}
		w.Header().Set(replayHeader, "true")
		w.WriteHeader(stored.Status)
		_, _ = w.Write(stored.Body)
	}
}

type responseCapture struct {
	statusRecorder
	body bytes.Buffer
}

func (c *responseCapture) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.statusRecorder.Write(b)
}
