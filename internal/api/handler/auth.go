package handler

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RoleAdmin       = "admin"
	RoleParticipant = "participant"

	issuer     = "strangerchat"
	subjectKey = "subject"
)

// Claims are the JWT claims of both admin and participant tokens. The
// participant id is carried in the subject.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for subject with the given role.
func IssueToken(secret []byte, subject int64, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(subject, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates tokenString and returns its claims and subject id.
func ParseToken(secret []byte, tokenString string) (*Claims, int64, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, 0, err
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return nil, 0, fmt.Errorf("invalid subject %q", claims.Subject)
	}
	return claims, id, nil
}

// authenticate requires a valid token of the given role and stores its
// subject in the context. Browsers cannot set headers on a WebSocket
// handshake, so the token may also come as the "token" query parameter.
func (h *Handler) authenticate(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token missing"})
			return
		}
		claims, id, err := ParseToken(h.secret, tokenString)
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}
		if claims.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Wrong token role"})
			return
		}
		c.Set(subjectKey, id)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Query("token")
}

func subject(c *gin.Context) int64 {
	return c.GetInt64(subjectKey)
}

// GetAnonID issues a token for a new anonymous WebSocket participant.
func (h *Handler) GetAnonID(c *gin.Context) {
	id := anonymousID(uuid.New())
	token, err := IssueToken(h.secret, id, RoleParticipant, h.tokenTTL)
	if err != nil {
		h.logger.Error("failed to issue participant token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "participant_id": id})
}

// anonymousID maps a random UUID into the negative id space, which Telegram
// user ids never use.
func anonymousID(u uuid.UUID) int64 {
	v := int64(binary.BigEndian.Uint64(u[:8]) & math.MaxInt64)
	if v == 0 {
		v = 1
	}
	return -v
}
