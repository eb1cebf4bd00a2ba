package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/order-refunds/pkg/auth"
	"github.com/angelmondragon/order-refunds/pkg/config"
)

const refundPermission = "commerce-refundPayment"

var staffJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func signFor(t *testing.T, cfg config.JWTConfig, issued time.Time, userID uuid.UUID, permissions ...string) string {
	t.Helper()
	token, err := auth.Sign(cfg, issued, auth.Grant{UserID: userID, Permissions: permissions, TokenID: "jti-1"})
	require.NoError(t, err)
	return token
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func serveWithAuth(h http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/1/refunds", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func errorDetails(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body.Error.Details
}

func TestAuthRejectsBadCredentials(t *testing.T) {
	h := Auth(staffJWT, nil)(okHandler())
	valid := signFor(t, staffJWT, time.Now(), uuid.New())

	cases := map[string]string{
		"missing":      "",
		"no scheme":    valid,
		"basic":        "Basic " + valid,
		"empty bearer": "Bearer ",
		"garbage":      "Bearer not-a-jwt",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, serveWithAuth(h, header).Code)
		})
	}
}

func TestAuthReportsExpiredTokens(t *testing.T) {
	h := Auth(staffJWT, nil)(okHandler())
	stale := signFor(t, staffJWT, time.Now().Add(-2*time.Hour), uuid.New(), refundPermission)

	resp := serveWithAuth(h, "Bearer "+stale)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "expired", errorDetails(t, resp)["reason"])
}

func TestAuthSeedsContext(t *testing.T) {
	userID := uuid.New()
	var seen struct {
		user, token string
		granted     bool
	}
	h := Auth(staffJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.user = UserIDFromContext(r.Context())
		seen.token = TokenIDFromContext(r.Context())
		seen.granted = HasPermission(r.Context(), refundPermission)
		w.WriteHeader(http.StatusOK)
	}))

	resp := serveWithAuth(h, "bearer "+signFor(t, staffJWT, time.Now(), userID, refundPermission))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, userID.String(), seen.user)
	assert.Equal(t, "jti-1", seen.token)
	assert.True(t, seen.granted)
}

func TestAuthMisconfiguredFailsClosed(t *testing.T) {
	h := Auth(config.JWTConfig{Issuer: "issuer"}, nil)(okHandler())
	resp := serveWithAuth(h, "Bearer "+signFor(t, staffJWT, time.Now(), uuid.New()))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestRequirePermission(t *testing.T) {
	h := Auth(staffJWT, nil)(RequirePermission(refundPermission, nil)(okHandler()))

	tests := []struct {
		name        string
		permissions []string
		want        int
	}{
		{"granted", []string{"commerce-manageOrders", refundPermission}, http.StatusOK},
		{"missing", []string{"commerce-manageOrders"}, http.StatusForbidden},
		{"none", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := serveWithAuth(h, "Bearer "+signFor(t, staffJWT, time.Now(), uuid.New(), tt.permissions...))
			assert.Equal(t, tt.want, resp.Code)
			if tt.want == http.StatusForbidden {
				assert.Equal(t, refundPermission, errorDetails(t, resp)["permission"])
			}
		})
	}
}
