package middleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/order-refunds/api/responses"
	pkgerrors "github.com/angelmondragon/order-refunds/pkg/errors"
	"github.com/angelmondragon/order-refunds/pkg/logger"
)

type counterStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// RateLimitPolicy is a fixed window budget per client IP and per user.
// A zero limit turns that counter off.
type RateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	actorLimit int
}

func NewRateLimitPolicy(name string, window time.Duration, ipLimit, actorLimit int) RateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "api"
	}
	return RateLimitPolicy{name: name, window: window, ipLimit: ipLimit, actorLimit: actorLimit}
}

type budget struct {
	scope string
	who   string
	limit int
}

func (p RateLimitPolicy) budgets(r *http.Request) []budget {
	var out []budget
	if ip := clientIP(r); p.ipLimit > 0 && ip != "" {
		out = append(out, budget{"ip", ip, p.ipLimit})
	}
	if user := UserIDFromContext(r.Context()); p.actorLimit > 0 && user != "" {
		out = append(out, budget{"user", user, p.actorLimit})
	}
	return out
}

func (p RateLimitPolicy) counterKey(b budget) string {
	return "rl:" + b.scope + ":" + p.name + ":" + b.who
}

// RateLimit counts each request against the policy's budgets and answers
// 429 with Retry-After once one is spent. Place it after Auth so the user
// budget applies.
func RateLimit(policy RateLimitPolicy, store counterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || policy.window <= 0 || (policy.ipLimit <= 0 && policy.actorLimit <= 0) {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			for _, b := range policy.budgets(r) {
				used, err := store.IncrWithTTL(ctx, policy.counterKey(b), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limit counter"))
					return
				}
				if used <= int64(b.limit) {
					continue
				}
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"policy":      policy.name,
						"scope":       b.scope,
						"scope_value": b.who,
						"attempts":    used,
						"limit":       b.limit,
					}), "rate_limit.blocked")
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(policy.window.Round(time.Second).Seconds())))
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many refund saves, retry later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP trusts the first X-Forwarded-For hop; the API runs behind a
// load balancer that sets it.
func clientIP(r *http.Request) string {
	if first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
