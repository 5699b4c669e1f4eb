package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"quizroom-service/internal/app"
	"quizroom-service/internal/auth"
)

// ReadinessCheck probes one dependency.
type ReadinessCheck func(ctx context.Context) error

type RouterConfig struct {
	Coordinator *app.Coordinator
	Verifier    *auth.Verifier
	Logger      *slog.Logger
	// Checks are reported by /readyz, keyed by dependency name.
	Checks map[string]ReadinessCheck
}

// NewRouter wires health probes, the websocket endpoint and the session API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/readyz", readyHandler(cfg.Checks))

	ws := NewWSHandler(cfg.Coordinator, cfg.Verifier, cfg.Logger)
	router.GET("/ws", gin.WrapF(ws.ServeWS))

	sessions := NewSessionHandler(cfg.Coordinator, cfg.Logger)
	api := router.Group("/api", cfg.Verifier.Middleware())
	{
		api.POST("/sessions", sessions.Create)
		api.GET("/sessions/:id", sessions.Get)
		api.DELETE("/sessions/:id", sessions.Cancel)
		api.GET("/sessions/:id/results", sessions.Results)
		api.GET("/quizzes/:quizId/session", sessions.ByQuiz)
		api.GET("/quizzes/:quizId/results", sessions.History)
		api.GET("/rooms/:code", sessions.ByCode)
	}
	return router
}

func readyHandler(checks map[string]ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				report[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": report})
	}
}

// writeError answers a plain net/http request before the websocket upgrade.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}
