package middleware

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"valuetree/pkg/auth"
	pkgerrors "valuetree/pkg/errors"

	"go.uber.org/zap"
)

// AuthOptions configures Authenticate
type AuthOptions struct {
	Validator *auth.JWTValidator

	// TrustGateway accepts the user headers set by the Lambda adapter after
	// API Gateway has validated the token
	TrustGateway bool

	IPLimiter   auth.RateLimiter
	UserLimiter auth.RateLimiter
}

// Authenticate validates bearer tokens and stores the caller in the context
func Authenticate(opts AuthOptions, errHandler *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)
			if !allow(r, opts.IPLimiter, clientIP, logger) {
				errHandler.Handle(w, r, pkgerrors.NewRateLimitedError("rate limit exceeded"))
				return
			}

			user, err := identify(r, opts)
			if err != nil {
				logger.Warn("Authentication failed",
					zap.Error(err),
					zap.String("ip", clientIP),
					zap.String("path", r.URL.Path),
				)
				errHandler.Handle(w, r, pkgerrors.NewUnauthorizedError(unauthorizedMessage(err)))
				return
			}

			if !allow(r, opts.UserLimiter, user.UserID, logger) {
				errHandler.Handle(w, r, pkgerrors.NewRateLimitedError("user rate limit exceeded"))
				return
			}

			logger.Debug("Request authenticated",
				zap.String("user_id", user.UserID),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
			)

			next.ServeHTTP(w, r.WithContext(auth.SetUserInContext(r.Context(), user)))
		})
	}
}

// RequireRole rejects callers holding none of roles
func RequireRole(errHandler *pkgerrors.ErrorHandler, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := auth.GetUserFromContext(r.Context())
			if err != nil {
				errHandler.Handle(w, r, pkgerrors.NewUnauthorizedError(""))
				return
			}
			if !user.HasRole(roles...) {
				errHandler.Handle(w, r, pkgerrors.NewForbiddenError("insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func identify(r *http.Request, opts AuthOptions) (*auth.UserContext, error) {
	if opts.TrustGateway && r.Header.Get("X-API-Gateway-Authorized") == "true" {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			return nil, errors.New("missing user context from API Gateway")
		}
		roles := []string{"authenticated"}
		if raw := r.Header.Get("X-User-Roles"); raw != "" {
			roles = strings.Split(raw, ",")
		}
		return &auth.UserContext{UserID: userID, Email: r.Header.Get("X-User-Email"), Roles: roles}, nil
	}

	if opts.Validator == nil {
		return nil, auth.ErrMissingToken
	}

	token := extractToken(r)
	if token == "" {
		return nil, auth.ErrMissingToken
	}

	claims, err := opts.Validator.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return &auth.UserContext{UserID: claims.UserID, Email: claims.Email, Roles: claims.Roles}, nil
}

func unauthorizedMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken):
		return "missing authentication token"
	case errors.Is(err, auth.ErrExpiredToken):
		return "token has expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "invalid token signature"
	default:
		return "invalid token"
	}
}

func allow(r *http.Request, limiter auth.RateLimiter, key string, logger *zap.Logger) bool {
	if limiter == nil {
		return true
	}
	ok, err := limiter.Allow(r.Context(), key)
	if err != nil {
		logger.Error("Rate limiter error", zap.Error(err))
		return true
	}
	return ok
}

// extractToken reads the bearer token from the Authorization header or the
// auth_token cookie
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return header
	}

	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// getClientIP keys on the connection address; forwarding headers are
// resolved into RemoteAddr by the router's RealIP middleware
func getClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
