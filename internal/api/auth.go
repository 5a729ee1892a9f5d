package api

import (
	stderrors "errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/victornm/hotcold/internal/errors"
)

const (
	RoleAdmin = "admin"

	ctxPlayer = "player"
)

type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Auth checks HS256 bearer tokens. The subject is the player, admins carry the admin role.
type Auth struct {
	secret []byte
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

func (a *Auth) Sign(player, role string, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   player,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Auth) verify(token string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, stderrors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || claims.Subject == "" {
		return nil, stderrors.New("invalid claims")
	}

	return claims, nil
}

// Player authenticates the request and stores the player in the gin context.
func (a *Auth) Player(c *gin.Context) {
	raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || raw == "" {
		abort(c, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("missing bearer token")))
		return
	}

	claims, err := a.verify(raw)
	if err != nil {
		var msg string
		switch {
		case stderrors.Is(err, jwt.ErrTokenExpired):
			msg = "token expired"
		default:
			msg = "invalid token"
		}
		abort(c, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("%s", msg), errors.WithCause(err)))
		return
	}

	c.Set(ctxPlayer, claims.Subject)
	c.Set("role", claims.Role)
	c.Next()
}

// Admin must run after Player.
func (a *Auth) Admin(c *gin.Context) {
	if c.GetString("role") != RoleAdmin {
		abort(c, errors.New(errors.CodePermissionDenied, errors.WithMessagef("admin role required")))
		return
	}

	c.Next()
}

func player(c *gin.Context) string {
	return c.GetString(ctxPlayer)
}
