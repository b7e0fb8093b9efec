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

	"salon-billing/internal/config"
	"salon-billing/internal/infra/logging"
	"salon-billing/internal/infra/metrics"
	red "salon-billing/internal/infra/redis"
)

const (
	authAPIKey = "api_key"
	authJWT    = "jwt"
	authNone   = "none"

	adminRole = "admin"
	issuer    = "salon-billing"
)

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthManager accepts either the static admin API key or an HS256 admin JWT,
// both as "Authorization: Bearer <value>".
type AuthManager struct {
	apiKey []byte
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthManager(cfg config.AdminConfig) *AuthManager {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AuthManager{
		apiKey: []byte(cfg.APIKey),
		secret: []byte(cfg.JWTSecret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Mint signs an admin token for subject.
func (a *AuthManager) Mint(subject string) (string, time.Time, error) {
	if len(a.secret) == 0 {
		return "", time.Time{}, errors.New("jwt secret not configured")
	}
	if subject == "" {
		subject = adminRole
	}
	now := a.now()
	exp := now.Add(a.ttl)
	claims := AdminClaims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Authenticate returns the caller subject and the method that accepted it.
func (a *AuthManager) Authenticate(r *http.Request) (subject, method string, err error) {
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return "", authNone, errMissingToken
	}
	tok := strings.TrimSpace(hdr[7:])
	if tok == "" {
		return "", authNone, errMissingToken
	}
	if len(a.apiKey) > 0 && subtle.ConstantTimeCompare([]byte(tok), a.apiKey) == 1 {
		return authAPIKey, authAPIKey, nil
	}
	if len(a.secret) == 0 {
		return "", authNone, errInvalidToken
	}
	claims, err := a.parse(tok)
	if err != nil {
		return "", authJWT, err
	}
	return claims.Subject, authJWT, nil
}

func (a *AuthManager) parse(tok string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !tkn.Valid || claims.Role != adminRole {
		return nil, errInvalidToken
	}
	return claims, nil
}

// RouteLimiter is the fixed-window limiter guarding admin routes.
type RouteLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit caps requests per subject and route. Limiter errors let the request through.
type RateLimit struct {
	Limiter RouteLimiter
	Limit   int
	Window  time.Duration
}

type subjectKey struct{}

func subjectFrom(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}

// AdminGuard authenticates the caller and applies the optional rate limit.
func AdminGuard(auth *AuthManager, rl *RateLimit, logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, method, err := auth.Authenticate(r)
			if err != nil {
				metrics.IncAdminRequest(method, "unauthorized")
				l := logging.With(r.Context(), logger)
				l.Warn().Str("path", r.URL.Path).Str("auth", method).Err(err).Msg("admin request rejected")
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if rl != nil && rl.Limiter != nil && rl.Limit > 0 {
				ok, lerr := rl.Limiter.Allow(r.Context(), red.AdminRouteKey(subject, r.URL.Path), rl.Limit, rl.Window)
				if lerr != nil {
					l := logging.With(r.Context(), logger)
					l.Warn().Err(lerr).Msg("rate limiter unavailable")
				} else if !ok {
					metrics.IncAdminRequest(method, "limited")
					writeError(w, http.StatusTooManyRequests, "too many requests")
					return
				}
			}
			metrics.IncAdminRequest(method, "authorized")
			ctx := context.WithValue(r.Context(), subjectKey{}, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
