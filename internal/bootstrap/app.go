package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"docvault-backend/internal/documents"
	"docvault-backend/internal/ingestion"
	"docvault-backend/internal/queue"
	"docvault-backend/internal/shared/config"
	"docvault-backend/internal/shared/server"
	"docvault-backend/internal/shared/server/middleware"
	"docvault-backend/internal/shared/storage/db"
	"docvault-backend/internal/shared/storage/object"
	localstore "docvault-backend/internal/shared/storage/object/local"
	s3store "docvault-backend/internal/shared/storage/object/s3"
	"docvault-backend/internal/users"
)

// App holds the wired application.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.Store
	Events queue.Publisher

	DocumentsRepo documents.Repo
	UsersRepo     users.Repo

	DocumentsService *documents.Service
	IngestionService *ingestion.Service
	UsersService     *users.Service

	DocumentsHandler *documents.Handler
	IngestionHandler *ingestion.Handler
	UsersHandler     *users.Handler
}

// Build prepares all dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, localFiles, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	events, err := buildEvents(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Events: events,
	}

	if sqlDB != nil {
		app.DocumentsRepo = &documents.PGRepo{DB: sqlDB}
		app.UsersRepo = &users.PGRepo{DB: sqlDB}
	} else {
		app.DocumentsRepo = documents.NewMemoryRepo()
		app.UsersRepo = users.NewMemoryRepo()
	}

	app.DocumentsService = &documents.Service{
		Repo:         app.DocumentsRepo,
		Store:        store,
		DocPrefix:    cfg.DocPrefix,
		SignedURLTTL: cfg.SignedURLTTL,
	}
	app.IngestionService = &ingestion.Service{
		Docs:        app.DocumentsService,
		Processor:   ingestion.NewProcessorClient(cfg.ProcessorBaseURL),
		Events:      events,
		CallbackURL: cfg.CallbackURL,
	}
	app.UsersService = &users.Service{Repo: app.UsersRepo}

	app.DocumentsHandler = documents.NewHandler(app.DocumentsService, cfg.MaxUploadBytes)
	app.IngestionHandler = ingestion.NewHandler(app.IngestionService, cfg.WebhookToken, middleware.NewRateLimiter(nil))
	app.UsersHandler = users.NewHandler(app.UsersService)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           cfg,
		DocumentHandler:  app.DocumentsHandler,
		IngestionHandler: app.IngestionHandler,
		UserHandler:      app.UsersHandler,
		LocalStore:       localFiles,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

// buildStore returns the object store and, for the local adapter, the store
// handle the file-serving routes need.
func buildStore(ctx context.Context, cfg config.Config) (object.Store, *localstore.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.AWSRegion) == "" || strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, nil, fmt.Errorf("OBJECT_STORE=s3 requires AWS_REGION and S3_BUCKET")
		}
		store, err := s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		local := localstore.New(cfg.LocalStoreDir, cfg.PublicBaseURL+"/api/v1/files", localSecret(cfg))
		return local, local, nil
	}
}

func buildEvents(ctx context.Context, cfg config.Config) (queue.Publisher, error) {
	if strings.TrimSpace(cfg.EventQueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSPublisher(ctx, cfg.AWSRegion, cfg.EventQueueURL)
}

// localSecret derives the signing secret for local file links. Tokens only
// need to be stable within one deployment.
func localSecret(cfg config.Config) []byte {
	seed := cfg.WebhookToken
	if seed == "" {
		seed = "docvault-local-" + cfg.Env
	}
	return []byte(seed)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
