package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"legaldoc-backend/internal/account"
	"legaldoc-backend/internal/analyses"
	authsvc "legaldoc-backend/internal/auth"
	"legaldoc-backend/internal/documents"
	"legaldoc-backend/internal/llm"
	"legaldoc-backend/internal/llm/gemini"
	"legaldoc-backend/internal/llm/openai"
	"legaldoc-backend/internal/shared/auth"
	"legaldoc-backend/internal/shared/config"
	"legaldoc-backend/internal/shared/server"
	"legaldoc-backend/internal/shared/storage/db"
	"legaldoc-backend/internal/shared/storage/object"
	localstore "legaldoc-backend/internal/shared/storage/object/local"
	s3store "legaldoc-backend/internal/shared/storage/object/s3"
	"legaldoc-backend/internal/shared/telemetry"
	"legaldoc-backend/internal/templates"
	"legaldoc-backend/internal/users"
)

// App holds shared dependencies.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Store    object.ObjectStore
	LLM      llm.Client
	Issuer   *auth.Issuer
	Denylist auth.Denylist

	DocumentsRepo documents.DocumentsRepo
	AnalysesRepo  analyses.Repo
	UsersRepo     users.Repo
	TemplatesRepo templates.Repo

	DocumentsService *documents.Service
	AnalysesService  *analyses.Service
	TemplatesService *templates.Service
	UsersService     *users.Service
	AuthService      *authsvc.Service
	AccountService   *account.Service

	closers []func() error
}

// Option adjusts Build.
type Option func(*buildOptions)

type buildOptions struct {
	llm   llm.Client
	store object.ObjectStore
}

// WithLLM replaces the configured model provider.
func WithLLM(client llm.Client) Option {
	return func(o *buildOptions) { o.llm = client }
}

// WithStore replaces the configured object store.
func WithStore(store object.ObjectStore) Option {
	return func(o *buildOptions) { o.store = store }
}

// Build prepares dependencies and the router.
func Build(cfg config.Config, opts ...Option) (*App, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	app := &App{Config: cfg}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB
	if sqlDB != nil {
		app.closers = append(app.closers, sqlDB.Close)
	}

	app.Store = o.store
	if app.Store == nil {
		if app.Store, err = buildStore(ctx, cfg); err != nil {
			return nil, err
		}
	}

	app.LLM = o.llm
	if app.LLM == nil {
		if app.LLM, err = app.buildLLM(ctx); err != nil {
			return nil, err
		}
	}

	if app.Issuer, err = auth.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL(), cfg.Env == "production"); err != nil {
		return nil, err
	}
	if app.Denylist, err = app.buildDenylist(ctx); err != nil {
		return nil, err
	}

	app.buildServices()

	google := authsvc.NewGoogleService(
		app.AuthService,
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.GoogleRedirectURL,
		cfg.UIRedirectURL,
	)
	app.Router = server.NewRouter(server.RouterDeps{
		Config:   cfg,
		DB:       app.DB,
		Issuer:   app.Issuer,
		Denylist: app.Denylist,
		Users:    app.UsersService,
		Handlers: []server.RouteRegistrar{
			authsvc.NewHandler(app.AuthService),
			google,
			users.NewHandler(app.UsersService),
			account.NewHandler(app.AccountService, app.Denylist),
			documents.NewHandler(app.DocumentsService),
			analyses.NewHandler(app.AnalysesService),
			templates.NewHandler(app.TemplatesService),
		},
	})
	return app, nil
}

// Close releases connections opened by Build.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() || cfg.Env == "test" {
			telemetry.Info("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultLambdaOptions()))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	}
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "database connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, s3store.Options{
			Region:          cfg.AWSRegion,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			KMSKeyID:        cfg.SSEKMSKeyID,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func (a *App) buildLLM(ctx context.Context) (llm.Client, error) {
	cfg := a.Config
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			break
		}
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, cfg.AITimeout())
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			break
		}
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel, cfg.AITimeout())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return client, nil
	}
	telemetry.Warn("bootstrap.llm_not_configured", map[string]any{"provider": cfg.LLMProvider})
	return llm.PlaceholderClient{}, nil
}

func (a *App) buildDenylist(ctx context.Context) (auth.Denylist, error) {
	cfg := a.Config
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return auth.NewMemoryDenylist(), nil
	}
	client, err := auth.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.redis_unavailable", map[string]any{"addr": cfg.RedisAddr, "error": err.Error()})
			return auth.NewMemoryDenylist(), nil
		}
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	return auth.NewRedisDenylist(client), nil
}

func (a *App) buildServices() {
	if a.DB != nil {
		a.DocumentsRepo = &documents.PGRepo{DB: a.DB}
		a.AnalysesRepo = &analyses.PGRepo{DB: a.DB}
		a.UsersRepo = &users.PGRepo{DB: a.DB}
		a.TemplatesRepo = &templates.PGRepo{DB: a.DB}
	} else {
		a.DocumentsRepo = documents.NewMemoryRepo()
		a.AnalysesRepo = analyses.NewMemoryRepo()
		a.UsersRepo = users.NewMemoryRepo()
		a.TemplatesRepo = templates.NewMemoryRepo(templates.Seed())
	}

	a.UsersService = users.NewService(a.UsersRepo)
	a.UsersService.CountDocuments = func(ctx context.Context, userID string) (int, error) {
		_, total, err := a.DocumentsRepo.List(ctx, userID, documents.ListFilter{Limit: 1})
		return total, err
	}
	a.UsersService.CountAnalyses = a.AnalysesRepo.CountByUser

	a.DocumentsService = &documents.Service{
		Store:           a.Store,
		Repo:            a.DocumentsRepo,
		Dependents:      a.AnalysesRepo,
		Usage:           a.UsersService,
		StorageProvider: a.Config.ObjectStoreType,
		MaxFileSize:     a.Config.MaxFileSizeBytes(),
		MaxPages:        a.Config.MaxDocumentPages,
		RetentionDays:   a.Config.DocumentRetentionDays,
	}

	a.TemplatesService = templates.NewService(a.TemplatesRepo)

	a.AnalysesService = &analyses.Service{
		Repo:      a.AnalysesRepo,
		Documents: a.DocumentsService,
		Templates: a.TemplatesService,
		LLM:       a.LLM,
		Usage:     a.UsersService,
		Model:     a.Config.LLMModel,
		Timeout:   a.Config.AITimeout(),
	}

	a.AuthService = &authsvc.Service{
		Users:    a.UsersService,
		Issuer:   a.Issuer,
		Denylist: a.Denylist,
	}
	a.AccountService = account.NewService(a.DocumentsRepo, a.AnalysesRepo, a.UsersRepo, a.Store)
}
