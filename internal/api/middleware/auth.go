package middleware

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Fariz36/print-arkav/internal/db"
)

const tokenIssuer = "print-arkav"

type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

type AuthMiddleware struct {
	users  *db.UserOperations
	secret []byte
	ttl    time.Duration
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func NewAuthMiddleware(users *db.UserOperations, secret string, ttl time.Duration) (*AuthMiddleware, error) {
	a := &AuthMiddleware{users: users, ttl: ttl}

	if secret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate auth secret: %w", err)
		}
		a.secret = key
		log.Printf("auth: no secret configured, generated a random one; tokens will not survive a restart")
	} else {
		a.secret = []byte(secret)
	}

	return a, nil
}

func (a *AuthMiddleware) generateToken(username string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Issuer:    tokenIssuer,
		},
		Username: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthMiddleware) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

func (a *AuthMiddleware) LoginHandler(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	username := strings.TrimSpace(req.Username)

	user, err := a.users.GetUserByUsername(c.Request.Context(), username)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := a.generateToken(user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":           true,
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(a.ttl.Seconds()),
		"username":     user.Username,
	})
}

func (a *AuthMiddleware) MeHandler(c *gin.Context) {
	username := c.GetString("username")

	team := username
	if user, err := a.users.GetUserByUsername(c.Request.Context(), username); err == nil {
		team = user.Team()
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"username":  username,
		"team_name": team,
	})
}

func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := a.validateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}

// RequireAgent guards the device-agent endpoints with the shared static
// token. An empty configured token means the deployment cannot serve agents
// at all, which is reported as a server error rather than a rejection.
func RequireAgent(agentToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if agentToken == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "agent token is not configured"})
			return
		}

		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		if token != agentToken {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer token"})
			return
		}

		c.Next()
	}
}
