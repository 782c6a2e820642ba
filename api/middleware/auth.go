package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/angelmondragon/settlement-backend/api/responses"
	"github.com/angelmondragon/settlement-backend/pkg/auth"
	"github.com/angelmondragon/settlement-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

// Auth requires a bearer access token and puts the caller's user id and email
// on the request context. A bare token without a scheme is accepted; any scheme
// other than Bearer is treated as missing credentials.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	tokens, cfgErr := auth.NewTokens(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if cfgErr != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, cfgErr, "auth misconfigured"))
				return
			}

			raw := bearerToken(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			claims, err := tokens.Parse(raw)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, auth.ErrTokenExpired) {
					msg = "token expired"
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg))
				return
			}

			userID := claims.UserID.String()
			ctx = WithUserID(ctx, userID)
			if claims.Email != "" {
				ctx = WithEmail(ctx, claims.Email)
			}
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	scheme, rest, ok := strings.Cut(header, " ")
	switch {
	case !ok:
		return header
	case strings.EqualFold(scheme, "Bearer"):
		return strings.TrimSpace(rest)
	default:
		return ""
	}
}
