package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

type contextKey string

const principalKey contextKey = "principal"

// Claims carried by the clinic backend's access tokens.
type Claims struct {
	jwt.RegisteredClaims
	Name     string   `json:"name"`
	ClinicID string   `json:"clinic_id"`
	Roles    []string `json:"roles"`
}

// Principal is the explicit application context for one operator: who they
// are, what they may do, and the token forwarded to the backend.
type Principal struct {
	UserID    string
	Name      string
	ClinicID  string
	Roles     []string
	Token     string
	ExpiresAt time.Time
}

// HasRole reports whether the principal holds any of the roles. Admins hold all.
func (p *Principal) HasRole(roles ...string) bool {
	if p == nil {
		return false
	}
	for _, has := range p.Roles {
		if has == RoleAdmin {
			return true
		}
		for _, want := range roles {
			if has == want {
				return true
			}
		}
	}
	return false
}

type Config struct {
	// SigningKey verifies HS256 tokens. When empty the token is only decoded;
	// the backend stays the authority on its signature.
	SigningKey []byte
	// DevToken, when set, is used for requests without an Authorization
	// header and yields an admin principal.
	DevToken string
}

// ParseToken turns a bearer token into a Principal.
func ParseToken(tokenStr string, signingKey []byte) (*Principal, error) {
	if tokenStr == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{}

	if len(signingKey) > 0 {
		_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			return signingKey, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return nil, ErrTokenExpired
			}
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
			return nil, ErrTokenExpired
		}
	}

	p := &Principal{
		UserID:   claims.Subject,
		Name:     claims.Name,
		ClinicID: claims.ClinicID,
		Roles:    claims.Roles,
		Token:    tokenStr,
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

// Middleware resolves the Principal from the Authorization header and stores
// it on the request context.
func Middleware(cfg Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" && cfg.DevToken != "" {
				p := &Principal{UserID: "dev-user", Name: "Desenvolvimento", Roles: []string{RoleAdmin}, Token: cfg.DevToken}
				c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
				return next(c)
			}
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			p, err := ParseToken(strings.TrimSpace(parts[1]), cfg.SigningKey)
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
			return next(c)
		}
	}
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// TokenFromContext returns the bearer token of the request principal, if any.
func TokenFromContext(ctx context.Context) string {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.Token
	}
	return ""
}
