package middlewares

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"urbancare-be/lifecycle"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
)

// extractToken pulls the JWT from the Authorization header or, failing that,
// the auth cookie set at login.
func extractToken(c *gin.Context) string {
	authHeader := c.Request.Header.Get("Authorization")
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return authHeader[7:]
		}
		return authHeader
	}
	if cookie, err := c.Cookie("auth_token"); err == nil {
		return cookie
	}
	return ""
}

// parseClaims validates the token and returns the user id and role claims.
func parseClaims(tokenString string) (string, lifecycle.Role, error) {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return "", "", fmt.Errorf("JWT secret not configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", "", fmt.Errorf("token missing user_id claim")
	}

	rawRole, _ := claims["role"].(string)
	role, err := lifecycle.ParseRole(rawRole)
	if err != nil {
		// Tokens minted before roles existed default to citizen.
		role = lifecycle.RoleCitizen
	}

	return userID, role, nil
}

// AuthMiddleware requires a valid token and populates user_id and role.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "No authorization token provided"})
			c.Abort()
			return
		}

		userID, role, err := parseClaims(tokenString)
		if err != nil {
			log.Printf("Token validation failed: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization token"})
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Set("role", string(role))
		c.Next()
	}
}

// OptionalAuthMiddleware populates user_id and role when a valid token is
// present but lets anonymous requests through. Public listings use it to mark
// which issues the caller has upvoted.
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := extractToken(c); tokenString != "" {
			if userID, role, err := parseClaims(tokenString); err == nil {
				c.Set("user_id", userID)
				c.Set("role", string(role))
			}
		}
		c.Next()
	}
}

// RequireRole gates a route on one or more roles. It runs after
// AuthMiddleware.
func RequireRole(roles ...lifecycle.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawRole, ok := c.Get("role")
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "No role claim present"})
			c.Abort()
			return
		}
		current := lifecycle.Role(rawRole.(string))
		for _, r := range roles {
			if current == r {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient role for this operation"})
		c.Abort()
	}
}
