package redis

import "strings"

const keyNamespace = "cm"

const (
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
	sessionPrefix     = "session"
	chatPrefix        = "chat"
	lockPrefix        = "lock"
)

// key joins the non-empty parts under the cm namespace, e.g.
// cm:session:access:<jti>.
func key(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return key(idempotencyPrefix, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return key(rateLimitPrefix, scope)
}

func (c *Client) AccessSessionKey(accessID string) string {
	return key(sessionPrefix, "access", accessID)
}

func (c *Client) LockKey(name string) string {
	return key(lockPrefix, name)
}

func (c *Client) ChatKey(userID, sessionID string) string {
	return key(chatPrefix, userID, sessionID)
}
