// Package auth issues and checks the signed web session established after a
// successful code verification. The session is an HS256 JWT carried in an
// HttpOnly cookie.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tbourn/go-telegram-otp/internal/clock"
)

// Gin context keys set by RequireSession.
const (
	CtxUserID   = "userID"
	CtxUsername = "username"
)

const defaultIssuer = "go-telegram-otp"

var (
	ErrMissingSecret = errors.New("session secret is empty")
	ErrNoSession     = errors.New("no session")
)

// Claims carried by a session token. Subject is the account ID.
type Claims struct {
	Username string `json:"usr"`
	jwt.RegisteredClaims
}

// Sessions signs, parses and transports session tokens.
type Sessions struct {
	Secret     []byte
	TTL        time.Duration
	CookieName string
	Secure     bool
	Clock      clock.Clock
}

// NewSessions returns a Sessions with defaults for empty fields.
func NewSessions(secret string, ttl time.Duration, cookie string, secure bool, clk clock.Clock) *Sessions {
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	if cookie == "" {
		cookie = "otp_session"
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Sessions{Secret: []byte(secret), TTL: ttl, CookieName: cookie, Secure: secure, Clock: clk}
}

// Issue signs a token for the account and returns it with its expiry.
func (s *Sessions) Issue(accountID, username string) (string, time.Time, error) {
	if len(s.Secret) == 0 {
		return "", time.Time{}, ErrMissingSecret
	}
	if accountID == "" {
		return "", time.Time{}, errors.New("missing account id")
	}
	jti := make([]byte, 16)
	if _, err := rand.Read(jti); err != nil {
		return "", time.Time{}, err
	}

	now := s.Clock.Now()
	exp := now.Add(s.TTL)
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    defaultIssuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        hex.EncodeToString(jti),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	return signed, exp, err
}

// Parse validates a token and returns its claims.
func (s *Sessions) Parse(token string) (*Claims, error) {
	if len(s.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(defaultIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.Clock.Now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// SetCookie writes the session cookie.
func (s *Sessions) SetCookie(c *gin.Context, token string, exp time.Time) {
	maxAge := int(exp.Sub(s.Clock.Now()) / time.Second)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.CookieName, token, maxAge, "/", "", s.Secure, true)
}

// ClearCookie expires the session cookie.
func (s *Sessions) ClearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.CookieName, "", -1, "/", "", s.Secure, true)
}

// FromRequest returns the claims of the request's session cookie.
func (s *Sessions) FromRequest(c *gin.Context) (*Claims, error) {
	raw, err := c.Cookie(s.CookieName)
	if err != nil || raw == "" {
		return nil, ErrNoSession
	}
	return s.Parse(raw)
}

// RequireSession rejects requests without a valid session cookie with 401.
// On success the account ID and username are stored on the context.
func (s *Sessions) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := s.FromRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "unauthorized",
				"message":    "login required",
			})
			return
		}
		c.Set(CtxUserID, claims.Subject)
		c.Set(CtxUsername, claims.Username)
		c.Next()
	}
}
