package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/order-refunds/api/responses"
	pkgerrors "github.com/angelmondragon/order-refunds/pkg/errors"
	"github.com/angelmondragon/order-refunds/pkg/logger"
	pkgredis "github.com/angelmondragon/order-refunds/pkg/redis"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"

	updateReplayTTL = 24 * time.Hour
	createReplayTTL = 7 * 24 * time.Hour
	// inFlightTTL bounds how long a crashed request blocks its key.
	inFlightTTL = 2 * time.Minute

	maxIdempotencyKeyLen = 255
)

// replayPolicy decides which refund writes are deduplicated and for how long.
type replayPolicy struct {
	method string
	route  string
	prefix bool
	ttl    time.Duration
}

func (p replayPolicy) matches(method, route string) bool {
	if p.method != method {
		return false
	}
	if p.prefix {
		return strings.HasPrefix(route, p.route)
	}
	return route == p.route
}

var replayPolicies = []replayPolicy{
	{method: http.MethodPost, route: "/api/v1/refunds", ttl: createReplayTTL},
	{method: http.MethodPut, route: "/api/v1/refunds/", prefix: true, ttl: updateReplayTTL},
}

// storedResponse is what a completed refund write leaves behind. A record
// with InFlight set marks a request still being processed.
type storedResponse struct {
	InFlight    bool   `json:"in_flight,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency replays the first response for a repeated Idempotency-Key on
// refund creates and updates. Keys are scoped per caller and path, and a
// reused key with a different body is rejected.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := replayTTL(r.Method, matchedRoute(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if clientKey == "" || len(clientKey) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required").
					WithDetails(map[string]any{"header": IdempotencyKeyHeader, "maxLength": maxIdempotencyKeyLen}))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := requestFingerprint(r.Method, body)
			key := store.IdempotencyKey(callerScope(r), clientKey)

			prior, err := loadStoredResponse(ctx, store, key)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if prior != nil {
				replayOrReject(ctx, logg, w, prior, fingerprint)
				return
			}

			marker, _ := json.Marshal(storedResponse{InFlight: true, Fingerprint: fingerprint})
			claimed, err := store.SetNX(ctx, key, string(marker), inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				responses.WriteError(ctx, logg, w, inFlightError())
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			// Server failures free the key so the client can retry.
			if capture.statusCode() >= http.StatusInternalServerError {
				if err := store.Del(context.WithoutCancel(ctx), key); err != nil {
					logIdempotencyFailure(ctx, logg, "release idempotency key", err)
				}
				return
			}

			payload, err := json.Marshal(storedResponse{
				Fingerprint: fingerprint,
				Status:      capture.statusCode(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err == nil {
				err = store.Set(context.WithoutCancel(ctx), key, string(payload), ttl)
			}
			if err != nil {
				logIdempotencyFailure(ctx, logg, "persist idempotent response", err)
			}
		})
	}
}

func loadStoredResponse(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func replayOrReject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, prior *storedResponse, fingerprint string) {
	switch {
	case prior.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case prior.InFlight:
		responses.WriteError(ctx, logg, w, inFlightError())
	default:
		if prior.ContentType != "" {
			w.Header().Set("Content-Type", prior.ContentType)
		}
		w.Header().Set(ReplayedHeader, "true")
		w.WriteHeader(prior.Status)
		_, _ = w.Write(prior.Body)
	}
}

func inFlightError() error {
	return pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still in progress").
		WithDetails(map[string]any{"retryAfterSeconds": int(inFlightTTL.Seconds())})
}

func callerScope(r *http.Request) string {
	return strings.Join([]string{UserIDFromContext(r.Context()), r.Method, r.URL.Path}, "|")
}

func requestFingerprint(method string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write(bytes.TrimSpace(body))
	return hex.EncodeToString(h.Sum(nil))
}

// matchedRoute prefers the chi pattern; subrouter middleware only sees a
// trailing wildcard, in which case the raw path is used.
func matchedRoute(r *http.Request) string {
	route := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" && !strings.HasSuffix(pattern, "*") {
			route = pattern
		}
	}
	if len(route) > 1 {
		route = strings.TrimSuffix(route, "/")
	}
	return route
}

func replayTTL(method, route string) (time.Duration, bool) {
	for _, policy := range replayPolicies {
		if policy.matches(method, route) {
			return policy.ttl, true
		}
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func logIdempotencyFailure(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "step", "idempotency"), msg, err)
}
