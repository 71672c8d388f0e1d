package middleware

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/umsys/user-management/shared/cqrs"
	"github.com/umsys/user-management/shared/models"
)

var (
	jwtSecretMu  sync.RWMutex
	jwtSecretVal []byte
)

// InitJWTSecret installs the HMAC key used to verify bearer tokens. It must be
// called before the router serves traffic.
func InitJWTSecret(secret string) {
	if secret == "" {
		panic("JWT secret is empty")
	}
	jwtSecretMu.Lock()
	jwtSecretVal = []byte(secret)
	jwtSecretMu.Unlock()
}

func jwtSecret() []byte {
	jwtSecretMu.RLock()
	defer jwtSecretMu.RUnlock()
	return jwtSecretVal
}

type Claims struct {
	UserID string      `json:"userId"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"message": "Authorization header required",
			})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"message": "Invalid authorization header format",
			})
			c.Abort()
			return
		}

		tokenString := parts[1]
		claims := &Claims{}

		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
			return jwtSecret(), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))

		if err != nil || !token.Valid || claims.UserID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"message": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set("userId", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("role", string(claims.Role))
		c.Next()
	}
}

// AdminOnly rejects callers whose token does not carry the ADMIN role.
// It must run after AuthMiddleware.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.JSON(http.StatusForbidden, gin.H{
				"message": "Admin privileges required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("userId")
	if !exists {
		return "", false
	}
	return userID.(string), true
}

func IsAdmin(c *gin.Context) bool {
	return c.GetString("role") == string(models.RoleAdmin)
}

// GetActor builds the caller identity passed to command and query services.
func GetActor(c *gin.Context) cqrs.Actor {
	userID, _ := GetUserID(c)
	return cqrs.Actor{UserID: userID, Admin: IsAdmin(c)}
}
