package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	httpapi "github.com/cipherstudio/ide-backend/internal/api/http"
	"github.com/cipherstudio/ide-backend/internal/api/http/middleware"
	projectshttp "github.com/cipherstudio/ide-backend/internal/projects/http"
	"github.com/cipherstudio/ide-backend/internal/projects/service"
)

type APIDeps struct {
	Projects    *service.ProjectService
	Limiter     *middleware.RateLimiter
	Logger      *zap.Logger
	Environment string
	Version     string
}

// RegisterAPI mounts everything under /api. The rate limiter guards the whole
// group, health included.
func RegisterAPI(r *gin.Engine, dep APIDeps) {
	api := r.Group("/api")
	if dep.Limiter != nil {
		api.Use(dep.Limiter.Middleware(dep.Logger))
	}

	httpapi.NewHealthHandler(dep.Environment, dep.Version, dep.Projects).RegisterRoutes(api)

	projectsHandler := projectshttp.New(dep.Projects)
	projectsHandler.Register(api.Group("/projects"))
}
