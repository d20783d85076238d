package middleware

import (
	"net/http"
	"strings"

	"github.com/campusmart/campusmart-backend/api/responses"
	pkgAuth "github.com/campusmart/campusmart-backend/pkg/auth"
	"github.com/campusmart/campusmart-backend/pkg/auth/session"
	"github.com/campusmart/campusmart-backend/pkg/config"
	pkgerrors "github.com/campusmart/campusmart-backend/pkg/errors"
	"github.com/campusmart/campusmart-backend/pkg/logger"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. A bare token without the scheme is accepted too.
func BearerToken(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, rest, ok := strings.Cut(raw, " "); ok && strings.EqualFold(scheme, "bearer") {
		raw = strings.TrimSpace(rest)
	}
	if raw == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return raw, nil
}

// Auth admits requests carrying a valid access token whose session is still
// live. sessions may be nil, in which case only the token is checked.
func Auth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := authenticate(r, cfg, sessions)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			ctx := withPrincipal(r.Context(), p)
			if logg != nil {
				ctx = logg.WithUserID(ctx, p.UserID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, cfg config.JWTConfig, sessions session.AccessSessionChecker) (Principal, error) {
	token, err := BearerToken(r)
	if err != nil {
		return Principal{}, err
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	if err != nil {
		return Principal{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	if claims.ID == "" {
		return Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	if sessions != nil {
		live, err := sessions.HasSession(r.Context(), claims.ID)
		if err != nil {
			return Principal{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
		}
		if !live {
			return Principal{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
		}
	}
	return Principal{UserID: claims.UserID, SessionID: claims.ID}, nil
}
