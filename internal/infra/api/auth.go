package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"rankblaze-entitlements/internal/infra/logging"
)

// ===== Session/JWT primitives =====

type AuthConfig struct {
	HMACSecret   []byte
	UserSecret   []byte // storefront-signed user tokens
	APIKey       string
	CookieName   string
	CookieDomain string
	SecureCookie bool
	TTL          time.Duration
}

type AuthManager struct{ cfg AuthConfig }

func NewAuthManager(apiKey, secret string, secure bool, domain string, ttl time.Duration) *AuthManager {
	return &AuthManager{cfg: AuthConfig{
		HMACSecret:   []byte(secret),
		APIKey:       apiKey,
		CookieName:   "admin_session",
		CookieDomain: domain, // "" keeps the cookie host-only
		SecureCookie: secure,
		TTL:          ttl,
	}}
}

// WithUserSecret enables storefront user tokens on this manager.
func (a *AuthManager) WithUserSecret(secret string) *AuthManager {
	a.cfg.UserSecret = []byte(secret)
	return a
}

type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// UserClaims identify a storefront user. Subject is the user id.
type UserClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// CheckAPIKey compares in constant time. An unset key never matches.
func (a *AuthManager) CheckAPIKey(key string) bool {
	if a.cfg.APIKey == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(a.cfg.APIKey)) == 1
}

// Mint issues an admin session token and sets it as a cookie.
func (a *AuthManager) Mint(w http.ResponseWriter) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.TTL)),
			Subject:   "admin",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.cfg.HMACSecret)
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    signed,
		Path:     "/",
		Domain:   a.cfg.CookieDomain,
		MaxAge:   int(a.cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	return signed, nil
}

func (a *AuthManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   a.cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*AdminClaims, error) {
	// Authorization: Bearer <jwt>
	if hdr := r.Header.Get("Authorization"); hdr != "" {
		if strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
			return a.parse(strings.TrimSpace(hdr[7:]))
		}
	}
	if c, err := r.Cookie(a.cfg.CookieName); err == nil {
		return a.parse(c.Value)
	}
	return nil, errors.New("missing token")
}

func (a *AuthManager) parse(tok string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.cfg.HMACSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid || claims.Role != "admin" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// RequireAdmin rejects requests without a valid admin session.
func (a *AuthManager) RequireAdmin(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(a.cfg.HMACSecret) == 0 {
				logging.With(r.Context(), logger).Error().Msg("admin jwt secret is not configured")
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			if _, err := a.ParseFromRequest(r); err != nil {
				logging.With(r.Context(), logger).Warn().Str("path", r.URL.Path).Msg("admin auth rejected")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ===== Storefront users =====

type userIDKey struct{}

// UserIDFrom returns the authenticated user id set by RequireUser.
func UserIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey{}).(string)
	return v, ok && v != ""
}

// MintUser signs a user token the way the storefront does. Used by dev tooling.
func (a *AuthManager) MintUser(userID string, ttl time.Duration) (string, error) {
	if len(a.cfg.UserSecret) == 0 || userID == "" {
		return "", errors.New("user tokens are not configured")
	}
	now := time.Now()
	claims := UserClaims{
		Role: "user",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   userID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.cfg.UserSecret)
}

// ParseUser reads a bearer user token. Admin sessions are not user identities.
func (a *AuthManager) ParseUser(r *http.Request) (string, error) {
	hdr := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
		return "", errors.New("missing token")
	}
	claims := &UserClaims{}
	tkn, err := jwt.ParseWithClaims(strings.TrimSpace(hdr[7:]), claims, func(t *jwt.Token) (any, error) {
		return a.cfg.UserSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tkn.Valid || claims.Subject == "" || claims.Role == "admin" {
		return "", errors.New("invalid token")
	}
	return claims.Subject, nil
}

// RequireUser rejects requests without a valid storefront user token and puts
// the user id on the request context.
func (a *AuthManager) RequireUser(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(a.cfg.UserSecret) == 0 {
				logging.With(r.Context(), logger).Error().Msg("user jwt secret is not configured")
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			userID, err := a.ParseUser(r)
			if err != nil {
				logging.With(r.Context(), logger).Warn().Str("path", r.URL.Path).Msg("user auth rejected")
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), userIDKey{}, userID)
			next.ServeHTTP(w, r.WithContext(logging.WithUserID(ctx, userID)))
		})
	}
}
