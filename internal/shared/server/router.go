package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/documents"
	"docvault-backend/internal/ingestion"
	"docvault-backend/internal/shared/config"
	"docvault-backend/internal/shared/metrics"
	"docvault-backend/internal/shared/server/middleware"
	"docvault-backend/internal/shared/server/respond"
	localstore "docvault-backend/internal/shared/storage/object/local"
	"docvault-backend/internal/users"
)

// RouterDeps carries the wired handlers the router mounts.
type RouterDeps struct {
	Config           config.Config
	DocumentHandler  *documents.Handler
	IngestionHandler *ingestion.Handler
	UserHandler      *users.Handler

	// LocalStore, when set, enables the signed file-link routes backing
	// the local object store.
	LocalStore *localstore.Store
}

// Routes that must stay reachable without a bearer token: signup, login,
// the processor's status webhook and signed file links. The webhook rule is
// method-exact so the authenticated GET /ingestion/status/:status listing
// stays behind auth.
var publicRoutes = []middleware.SkipRule{
	{Method: http.MethodPost, Path: "/api/v1/users/register"},
	{Method: http.MethodPost, Path: "/api/v1/users/login"},
	{Method: http.MethodPost, Path: "/api/v1/ingestion/status"},
	{Method: http.MethodGet, Path: "/api/v1/files/", Prefix: true},
	{Method: http.MethodGet, Path: "/api/v1/health"},
	{Method: http.MethodGet, Path: "/metrics"},
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env != "dev" && deps.Config.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(publicRoutes...),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})

	if deps.UserHandler != nil {
		deps.UserHandler.RegisterRoutes(api)
	}
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(api)
	}
	if deps.IngestionHandler != nil {
		deps.IngestionHandler.RegisterRoutes(api)
	}
	if deps.LocalStore != nil {
		registerFileRoutes(api, deps.LocalStore)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
