package bootstrap

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cipherstudio/ide-backend/config"
	"github.com/cipherstudio/ide-backend/internal/api/http/middleware"
	"github.com/cipherstudio/ide-backend/internal/api/http/routes"
	"github.com/cipherstudio/ide-backend/internal/projects/repository"
	"github.com/cipherstudio/ide-backend/internal/projects/service"
)

type RouterDeps struct {
	Config *config.Config
	Store  repository.Store
	Logger *zap.Logger
}

func BuildRouter(dep RouterDeps) (*gin.Engine, error) {
	cfg := dep.Config
	SetGinMode(cfg.App.Environment)

	r := gin.New()
	// ClientIP keys the rate limiter; forwarding headers only count from
	// listed proxies, and with none listed the socket address is used.
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}
	r.Use(middleware.Recovery(dep.Logger))
	r.Use(middleware.RequestIDMiddleware(dep.Logger.Named("http")))
	r.Use(middleware.SecurityHeaders())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.Server.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	routes.RegisterAPI(r, routes.APIDeps{
		Projects:    service.NewProjectService(dep.Store, dep.Logger),
		Limiter:     middleware.NewRateLimiter(cfg.RateLimit.Window, cfg.RateLimit.Max),
		Logger:      dep.Logger,
		Environment: cfg.App.Environment,
		Version:     cfg.App.Version,
	})

	r.NoRoute(middleware.NotFound)

	return r, nil
}
