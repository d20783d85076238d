package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campusmart/campusmart-backend/api/responses"
	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
	"github.com/campusmart/campusmart-backend/pkg/logger"
)

const maxRateLimitBody = 64 << 10

type windowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateKey derives the counter subject for a request. An empty key skips the rule.
type RateKey func(r *http.Request, body []byte) string

// RateRule caps requests per subject within the policy window.
type RateRule struct {
	Scope     string
	Limit     int
	Key       RateKey
	ReadsBody bool
}

// RatePolicy groups rules sharing one fixed window, e.g. login by IP and by email.
type RatePolicy struct {
	Name   string
	Window time.Duration
	Rules  []RateRule
}

func (p RatePolicy) active() []RateRule {
	if p.Window <= 0 {
		return nil
	}
	var rules []RateRule
	for _, rule := range p.Rules {
		if rule.Limit > 0 && rule.Key != nil {
			rules = append(rules, rule)
		}
	}
	return rules
}

// RateLimit rejects requests once any rule's counter passes its limit.
// A nil limiter or a policy without active rules leaves the route open.
func RateLimit(policy RatePolicy, limiter windowLimiter, logg *logger.Logger) func(http.Handler) http.Handler {
	rules := policy.active()
	return func(next http.Handler) http.Handler {
		if limiter == nil || len(rules) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			body, err := bufferBody(r, rules)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
				return
			}
			for _, rule := range rules {
				subject := rule.Key(r, body)
				if subject == "" {
					continue
				}
				scope := policy.Name + ":" + rule.Scope + ":" + subject
				allowed, count, err := limiter.FixedWindowAllow(ctx, scope, int64(rule.Limit), policy.Window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable"))
					return
				}
				if !allowed {
					if logg != nil {
						logg.Warn(logg.WithFields(ctx, map[string]any{
							"policy":   policy.Name,
							"rule":     rule.Scope,
							"attempts": count,
							"limit":    rule.Limit,
						}), "rate limit tripped")
					}
					w.Header().Set("Retry-After", strconv.Itoa(int(policy.Window.Seconds())))
					responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bufferBody(r *http.Request, rules []RateRule) ([]byte, error) {
	for _, rule := range rules {
		if !rule.ReadsBody {
			continue
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRateLimitBody))
		if err != nil {
			return nil, err
		}
		// unread bytes past the cap still reach the handler
		r.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(body), r.Body), r.Body}
		return body, nil
	}
	return nil, nil
}

// ByClientIP keys on the caller address.
func ByClientIP(r *http.Request, _ []byte) string {
	return ClientIP(r)
}

// ByEmail keys on a hash of the JSON body's email field so raw addresses never reach Redis.
func ByEmail(_ *http.Request, body []byte) string {
	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(body, &payload) != nil {
		return ""
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:12])
}

// ByUserAndParam keys on the authenticated user plus a route parameter.
func ByUserAndParam(param string) RateKey {
	return func(r *http.Request, _ []byte) string {
		userID := UserIDFromContext(r.Context())
		value := chi.URLParam(r, param)
		if userID == "" || value == "" {
			return ""
		}
		return userID + ":" + value
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the socket peer.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
