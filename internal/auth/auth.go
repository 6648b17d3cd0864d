// Package auth decides whether the caller of an operator action holds the
// capability it needs.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/vasilisp/autopost/internal/errs"
	"github.com/vasilisp/autopost/internal/logger"
	"github.com/vasilisp/autopost/internal/util"
)

// ManageOptions is required by every content operation.
const ManageOptions = "manage_options"

const forbiddenMessage = "Sorry, you are not allowed to do that."

type Gate interface {
	RequireCapability(ctx context.Context, capability string) error
}

type Principal struct {
	UserID       uint
	Capabilities []string
}

func (p *Principal) Can(capability string) bool {
	return p != nil && slices.Contains(p.Capabilities, capability)
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal attached to ctx, or nil.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// UserID is the attached principal's user id, or 0.
func UserID(ctx context.Context) uint {
	if p := FromContext(ctx); p != nil {
		return p.UserID
	}
	return 0
}

type Claims struct {
	Caps []string `json:"caps"`
	jwt.RegisteredClaims
}

// JWTGate trusts HS256 tokens signed with its secret.
type JWTGate struct {
	secret []byte
	log    *logger.Logger
}

func NewJWTGate(secret string, log *logger.Logger) *JWTGate {
	util.Assert(secret != "", "NewJWTGate empty secret")

	return &JWTGate{
		secret: []byte(secret),
		log:    logger.OrNop(log).With("service", "JWTGate"),
	}
}

// Mint signs a token for userID. ttl <= 0 means no expiry.
func (g *JWTGate) Mint(userID uint, caps []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Caps: caps,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  strconv.FormatUint(uint64(userID), 10),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(g.secret)
}

func (g *JWTGate) Parse(tokenString string) (*Principal, error) {
	parsedToken, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return g.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := parsedToken.Claims.(*Claims)
	if !ok || !parsedToken.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return nil, fmt.Errorf("invalid user id in token: %q", claims.Subject)
	}
	return &Principal{UserID: uint(userID), Capabilities: claims.Caps}, nil
}

func (g *JWTGate) RequireCapability(ctx context.Context, capability string) error {
	p := FromContext(ctx)
	if !p.Can(capability) {
		g.log.Warn("capability denied", "user_id", UserID(ctx), "capability", capability)
		return errs.Forbidden(forbiddenMessage)
	}
	return nil
}

// Middleware authenticates the bearer token and attaches its principal to
// the request context. Requests without a valid token are rejected with 401.
func (g *JWTGate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}
		p, err := g.Parse(tokenString)
		if err != nil {
			g.log.Debug("token rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}
		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}

// LocalGate allows everything. It serves the CLI, where the operator is the
// process owner.
type LocalGate struct{}

func (LocalGate) RequireCapability(context.Context, string) error {
	return nil
}

// Local is the principal the CLI acts as.
func Local(userID uint) *Principal {
	return &Principal{UserID: userID, Capabilities: []string{ManageOptions}}
}
