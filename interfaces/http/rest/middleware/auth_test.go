package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"valuetree/pkg/auth"
	pkgerrors "valuetree/pkg/errors"
)

const testSecret = "test-secret"

func newAuthStack(t *testing.T, opts AuthOptions) http.Handler {
	t.Helper()
	if opts.Validator == nil {
		v, err := auth.NewJWTValidator(auth.JWTConfig{SecretKey: testSecret, Issuer: "valuetree"})
		require.NoError(t, err)
		opts.Validator = v
	}
	errHandler := pkgerrors.NewErrorHandler(zap.NewNop(), false)

	return Authenticate(opts, errHandler, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := auth.GetUserFromContext(r.Context())
		require.NoError(t, err)
		_, _ = w.Write([]byte(user.UserID))
	}))
}

func issueToken(t *testing.T) string {
	t.Helper()
	gen, err := auth.NewJWTGenerator(testSecret, "valuetree", nil, time.Hour)
	require.NoError(t, err)
	token, err := gen.GenerateToken("user-1", "u@example.com", []string{"user"})
	require.NoError(t, err)
	return token
}

func TestAuthenticate_BearerToken(t *testing.T) {
	handler := newAuthStack(t, AuthOptions{})

	req := httptest.NewRequest(http.MethodGet, "/api/projects/car", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())
}

func TestAuthenticate_CookieToken(t *testing.T) {
	handler := newAuthStack(t, AuthOptions{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: issueToken(t)})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticate_Rejections(t *testing.T) {
	handler := newAuthStack(t, AuthOptions{})

	tests := []struct {
		name   string
		header string
	}{
		{"missing token", ""},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
		})
	}
}

func TestAuthenticate_GatewayHeaders(t *testing.T) {
	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-API-Gateway-Authorized", "true")
		r.Header.Set("X-User-ID", "gw-user")
		return r
	}

	t.Run("trusted behind the gateway", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newAuthStack(t, AuthOptions{TrustGateway: true}).ServeHTTP(rec, req())
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "gw-user", rec.Body.String())
	})

	t.Run("ignored otherwise", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newAuthStack(t, AuthOptions{}).ServeHTTP(rec, req())
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAuthenticate_RateLimits(t *testing.T) {
	handler := newAuthStack(t, AuthOptions{IPLimiter: auth.NewIPRateLimiter(2)})
	token := issueToken(t)

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRequireRole(t *testing.T) {
	errHandler := pkgerrors.NewErrorHandler(zap.NewNop(), false)
	handler := RequireRole(errHandler, "admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	ctx := auth.SetUserInContext(httptest.NewRequest(http.MethodGet, "/", nil).Context(), &auth.UserContext{UserID: "u", Roles: []string{"user"}})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("X-Real-IP", "203.0.113.8")
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.RemoteAddr = "192.0.2.9"
	assert.Equal(t, "192.0.2.9", getClientIP(req))
}

func TestAuthenticate_RotatedForwardedForSharesLimit(t *testing.T) {
	// Arrange
	handler := newAuthStack(t, AuthOptions{IPLimiter: auth.NewIPRateLimiter(1)})
	token := issueToken(t)
	send := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Forwarded-For", forwarded)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// Act
	first := send("203.0.113.1")
	second := send("203.0.113.2")

	// Assert
	assert.Equal(t, http.StatusOK, first)
	assert.Equal(t, http.StatusTooManyRequests, second)
}
