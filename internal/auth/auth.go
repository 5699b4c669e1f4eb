package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

const (
	ctxUserID   = "user_id"
	ctxUserName = "user_name"
)

// AnonymousPrefix marks ids of callers without a token. Token subjects never
// carry it, so an anonymous caller cannot act as a signed-in user.
const AnonymousPrefix = "anon:"

type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the caller as far as rooms are concerned.
type Identity struct {
	UserID    string
	Name      string
	Anonymous bool
}

// Verifier resolves callers from HS256 bearer tokens. With anonymous access
// enabled, a request without a token gets a client supplied or random id.
type Verifier struct {
	secret         []byte
	allowAnonymous bool
	newID          func() string
}

func NewVerifier(secret string, allowAnonymous bool) *Verifier {
	return &Verifier{secret: []byte(secret), allowAnonymous: allowAnonymous, newID: uuid.NewString}
}

// IssueToken signs a token for userID. Used by the token command and tests.
func (v *Verifier) IssueToken(userID, name string, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	if strings.HasPrefix(userID, AnonymousPrefix) {
		return "", fmt.Errorf("user id must not start with %q", AnonymousPrefix)
	}
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func (v *Verifier) ParseToken(tokenString string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, fmt.Errorf("%w: jwt secret is not configured", ErrInvalidToken)
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: no user id", ErrInvalidToken)
	}
	if strings.HasPrefix(claims.UserID, AnonymousPrefix) {
		return nil, fmt.Errorf("%w: reserved user id", ErrInvalidToken)
	}
	return claims, nil
}

// Identify resolves the caller of an HTTP or websocket upgrade request. The
// token comes from the Authorization header or, for browsers that cannot set
// headers on websockets, the token query parameter.
func (v *Verifier) Identify(r *http.Request) (Identity, error) {
	token, err := bearerToken(r)
	if err != nil {
		return Identity{}, err
	}
	if token != "" {
		claims, err := v.ParseToken(token)
		if err != nil {
			return Identity{}, err
		}
		return Identity{UserID: claims.UserID, Name: claims.Name}, nil
	}
	if !v.allowAnonymous {
		return Identity{}, ErrMissingToken
	}
	q := r.URL.Query()
	id := q.Get("client_id")
	if id == "" {
		id = v.newID()
	}
	return Identity{UserID: AnonymousPrefix + id, Name: q.Get("name"), Anonymous: true}, nil
}

func bearerToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", fmt.Errorf("%w: invalid authorization header format", ErrInvalidToken)
		}
		return parts[1], nil
	}
	return r.URL.Query().Get("token"), nil
}

// Middleware identifies the caller and stores it on the gin context.
func (v *Verifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := v.Identify(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": err.Error(),
			})
			return
		}
		c.Set(ctxUserID, id.UserID)
		c.Set(ctxUserName, id.Name)
		c.Next()
	}
}

// FromContext returns the identity stored by Middleware.
func FromContext(c *gin.Context) (Identity, bool) {
	userID := c.GetString(ctxUserID)
	if userID == "" {
		return Identity{}, false
	}
	return Identity{UserID: userID, Name: c.GetString(ctxUserName)}, true
}
