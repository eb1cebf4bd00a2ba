package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/angelmondragon/order-refunds/api/responses"
	"github.com/angelmondragon/order-refunds/pkg/auth"
	"github.com/angelmondragon/order-refunds/pkg/config"
	pkgerrors "github.com/angelmondragon/order-refunds/pkg/errors"
	"github.com/angelmondragon/order-refunds/pkg/logger"
)

// Auth requires a bearer token signed with cfg and puts the staff member it
// names on the request context.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	verifier, cfgErr := auth.NewVerifier(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfgErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, cfgErr, "auth misconfigured"))
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				reason := "invalid"
				if errors.Is(err, auth.ErrTokenExpired) {
					reason = "expired"
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "token rejected").
					WithDetails(map[string]any{"reason": reason}))
				return
			}

			userID := claims.UserID.String()
			ctx := withStaff(r.Context(), staff{
				userID:      userID,
				permissions: claims.Permissions,
				tokenID:     claims.ID,
			})
			if logg != nil {
				ctx = logg.WithActorID(ctx, userID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequirePermission answers 403 unless Auth granted permission.
func RequirePermission(permission string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if HasPermission(r.Context(), permission) {
				next.ServeHTTP(w, r)
				return
			}
			if logg != nil {
				logg.Warn(logg.WithField(r.Context(), "permission", permission), "permission denied")
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "permission required").
				WithDetails(map[string]any{"permission": permission}))
		})
	}
}
