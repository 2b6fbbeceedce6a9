// README: HTTP router registration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"chauffeur/internal/http/handlers"
	"chauffeur/internal/http/middleware"
	"chauffeur/internal/infra"
)

func NewRouter(rides *handlers.RideHandler, verifier infra.TokenVerifier, log *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery())
	if log != nil {
		r.Use(middleware.Logging(log))
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(verifier))
	api.POST("/rides", rides.Create)
	api.GET("/rides/:id", rides.Get)
	api.POST("/rides/:id/accept", rides.Accept)
	api.POST("/rides/:id/start", rides.Start)
	api.POST("/rides/:id/complete", rides.Complete)
	api.POST("/rides/:id/cancel", rides.Cancel)
	api.POST("/rides/:id/no-show", rides.NoShow)
	api.POST("/rides/:id/delay", rides.Delay)

	return r
}
