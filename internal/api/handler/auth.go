package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"safecase/backend/internal/config"
	"safecase/backend/internal/ledger"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const callerKey = "safecase_caller"

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the caller's identity in the anon_id claim.
type Claims struct {
	AnonID string `json:"anon_id"`
	jwt.RegisteredClaims
}

// TokenService issues and checks HS256 identity tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for identity.
func (t *TokenService) Issue(identity ledger.Identity) (string, error) {
	now := t.now()
	claims := Claims{
		AnonID: string(identity),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    config.TokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Validate returns the identity a token was issued for.
func (t *TokenService) Validate(tokenString string) (ledger.Identity, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (interface{}, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(config.TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.AnonID == "" {
		return "", ErrInvalidToken
	}
	return ledger.Identity(claims.AnonID), nil
}

// GetAnonID mints a fresh anonymous identity and its token.
func (h *Handler) GetAnonID(c *gin.Context) {
	anonID := uuid.NewString()

	token, err := h.Tokens.Issue(ledger.Identity(anonID))
	if err != nil {
		h.logger.Error("failed to sign token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "anon_id": anonID})
}

// RequireIdentity authenticates the Bearer token and stores the caller.
func (h *Handler) RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}
		identity, err := h.Tokens.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}
		c.Set(callerKey, identity)
		c.Next()
	}
}

// Caller returns the authenticated identity of the request.
func Caller(c *gin.Context) ledger.Identity {
	if v, ok := c.Get(callerKey); ok {
		if id, ok := v.(ledger.Identity); ok {
			return id
		}
	}
	return ""
}

func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}
