package handler

import (
	"net/http"

	"github.com/arnavshah/limits-settings-go/pkg/app"
	"github.com/arnavshah/limits-settings-go/pkg/config"
	"github.com/arnavshah/limits-settings-go/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var r http.Handler

func init() {
	config.LoadEnv()

	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}

	cfg.Server.Release = true

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("could not start", zap.Error(err))
		r = unavailable()
		return
	}
	r = a.Router
}

func unavailable() http.Handler {
	e := gin.New()
	e.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable", "code": "internal"})
	})
	return e
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, req *http.Request) {
	r.ServeHTTP(w, req)
}
