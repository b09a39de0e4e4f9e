// Package auth verifies bearer tokens issued by the external identity
// service and scopes routes by role. Token issuance is not our business.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Rahul-7375/attendance-cist/models"
)

const (
	ContextUserID = "userID"
	ContextRole   = "role"
)

// Claims is the token payload the identity service signs for us.
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Middleware rejects requests without a valid bearer token for the given
// role and stashes the verified identity in the gin context.
func Middleware(secret string, role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw := strings.TrimPrefix(header, "Bearer ")
		if raw == "" || raw == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if claims.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "wrong role for this route"})
			return
		}

		c.Set(ContextUserID, claims.Subject)
		c.Set(ContextRole, string(claims.Role))
		c.Next()
	}
}

// UserID reads the verified subject out of the gin context.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
