package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"reportd/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Rights gate the mutating and download routes.
const (
	RightRunReports        = "reports.run"
	RightManageDefinitions = "definitions.manage"
	RightManageExtracts    = "extracts.manage"
	RightUploadRegisters   = "registers.upload"
)

// Claims carries the caller identity and granted rights.
type Claims struct {
	Rights []string `json:"rights"`
	jwt.RegisteredClaims
}

// HasRight reports whether the claims grant a right.
func (c *Claims) HasRight(right string) bool {
	for _, r := range c.Rights {
		if r == right {
			return true
		}
	}
	return false
}

// Middleware validates bearer tokens and enforces rights per route group.
type Middleware struct {
	enabled bool
	secret  []byte
	issuer  string
	logger  *logrus.Logger
}

// NewMiddleware builds the auth middleware from configuration.
func NewMiddleware(cfg config.Config, logger *logrus.Logger) *Middleware {
	return &Middleware{
		enabled: cfg.Auth.Enabled,
		secret:  []byte(cfg.Auth.Secret),
		issuer:  cfg.Auth.Issuer,
		logger:  logger,
	}
}

// Require returns an echo middleware that demands a valid token carrying the
// given right. When auth is disabled the middleware passes everything through.
func (m *Middleware) Require(right string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !m.enabled {
				return next(c)
			}

			claims, err := m.parse(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				m.logger.WithError(err).Debug("Rejected bearer token")
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "Invalid or missing token",
				})
			}

			if !claims.HasRight(right) {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error": fmt.Sprintf("Missing right: %s", right),
				})
			}

			c.Set("user", claims.Subject)
			return next(c)
		}
	}
}

// parse validates the Authorization header and returns the claims.
func (m *Middleware) parse(header string) (*Claims, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return nil, fmt.Errorf("missing bearer token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, prefix), claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secret, nil
		},
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}
	return claims, nil
}

// UserFromContext returns the authenticated subject, or "anonymous".
func UserFromContext(c echo.Context) string {
	if user, ok := c.Get("user").(string); ok && user != "" {
		return user
	}
	return "anonymous"
}

// Sign issues a token with the given subject and rights. Used by tests and
// the operator CLI.
func Sign(secret []byte, issuer, subject string, rights []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Rights: rights,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
