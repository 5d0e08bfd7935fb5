package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/Fariz36/print-arkav/internal/api/handlers"
	"github.com/Fariz36/print-arkav/internal/api/middleware"
	"github.com/Fariz36/print-arkav/internal/config"
	"github.com/Fariz36/print-arkav/internal/db"
	"github.com/Fariz36/print-arkav/internal/queue"
)

// NewRouter wires the HTTP surface: the open health endpoint, JWT-guarded
// team endpoints, and the static-token agent endpoints.
func NewRouter(cfg *config.Config, users *db.UserOperations, q *queue.Queue) (*gin.Engine, error) {
	auth, err := middleware.NewAuthMiddleware(users, cfg.Auth.Secret, cfg.Auth.TokenTTL.Std())
	if err != nil {
		return nil, fmt.Errorf("failed to init auth middleware: %w", err)
	}

	r := gin.Default()

	handlers.NewHealthHandler().RegisterRoutes(r)

	api := r.Group("/api")
	api.POST("/auth/login", auth.LoginHandler)

	user := api.Group("")
	user.Use(auth.RequireAuth())
	user.GET("/auth/me", auth.MeHandler)
	handlers.NewJobHandler(q, users).RegisterRoutes(user)

	agent := api.Group("/agent")
	agent.Use(middleware.RequireAgent(cfg.Auth.AgentToken))
	handlers.NewAgentHandler(q).RegisterRoutes(agent)

	return r, nil
}
