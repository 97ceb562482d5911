package app

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/blog-backend/internal/api"
	"github.com/nekogravitycat/blog-backend/internal/auth"
	"github.com/nekogravitycat/blog-backend/internal/config"
	"github.com/nekogravitycat/blog-backend/internal/generation"
	"github.com/nekogravitycat/blog-backend/internal/metrics"
	"github.com/nekogravitycat/blog-backend/internal/pkg/ratelimit"
	"github.com/nekogravitycat/blog-backend/internal/pkg/storage"
	"github.com/nekogravitycat/blog-backend/internal/post"
	"github.com/nekogravitycat/blog-backend/internal/user"
)

// Container holds the initialized components that are needed externally.
type Container struct {
	Router     *gin.Engine
	JWTManager *auth.JWTManager
	Metrics    *metrics.ServerMetrics
	// Scheduler is nil when content generation is disabled.
	Scheduler *generation.Scheduler
}

// NewContainer initializes all modules and returns the container. ctx bounds
// background work started here, such as rate limiter cleanup.
func NewContainer(ctx context.Context, cfg *config.Config, log *slog.Logger, pool *pgxpool.Pool) (*Container, error) {
	// Init Components
	passwordHasher := auth.NewBcryptPasswordHasher(cfg.BcryptCost)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTokenTTL)
	serverMetrics := metrics.New()

	store, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// User Module
	userRepo := user.NewPgxRepository(pool)
	userService := user.NewService(userRepo, passwordHasher)

	// Post Module
	postRepo := post.NewPgxRepository(pool)
	postService := post.NewService(postRepo, store, storage.NewImageProcessor())

	// Generation Module
	var (
		generationService *generation.Service
		scheduler         *generation.Scheduler
	)
	if cfg.GenerationEnabled() {
		generationService, scheduler, err = newGeneration(ctx, cfg, log, postService, userService, serverMetrics)
		if err != nil {
			return nil, err
		}
	} else {
		log.Warn("content generation disabled: GEMINI_API_KEY is not set")
	}

	limitLog := log.With("component", "ratelimit")
	limiter := ratelimit.New(ctx,
		ratelimit.WithWindow(cfg.RateLimitMax, cfg.RateLimitWindow),
		ratelimit.WithOnFirstDenied(func(ip string) {
			limitLog.Warn("client rate limited", "client_ip", ip)
		}),
		ratelimit.WithOnDenied(func(string) {
			serverMetrics.IncRateLimitDenied()
		}),
	)

	// API Router Config
	routerParams := api.Config{
		Development:    cfg.IsDevelopment(),
		CORSOrigins:    cfg.CORSOrigins,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         log,
		Metrics:        serverMetrics,
		Limiter:        limiter,
		DB:             pool,
		UserService:    userService,
		PostService:    postService,
		JWTManager:     jwtManager,
	}
	if generationService != nil {
		routerParams.Generator = generationService
	}

	// Router
	router := api.NewRouter(routerParams)

	return &Container{
		Router:     router,
		JWTManager: jwtManager,
		Metrics:    serverMetrics,
		Scheduler:  scheduler,
	}, nil
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case config.StorageS3:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		s3Store, err := storage.NewS3Storage(awsCfg, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return nil, err
		}
		return s3Store, nil
	default:
		local, err := storage.NewLocalStorage(cfg.StorageLocalPath)
		if err != nil {
			return nil, err
		}
		return local, nil
	}
}

func newGeneration(
	ctx context.Context,
	cfg *config.Config,
	log *slog.Logger,
	posts post.Service,
	users user.Service,
	observer generation.Observer,
) (*generation.Service, *generation.Scheduler, error) {
	generator, err := generation.NewGeminiGenerator(ctx, log.With("component", "gemini"), generation.GeminiConfig{
		APIKey:     cfg.GeminiAPIKey,
		Model:      cfg.GeminiModel,
		MaxRetries: 3,
	})
	if err != nil {
		return nil, nil, err
	}

	svc, err := generation.NewService(generator, posts, users, observer, cfg.GenerationTopics, cfg.GenerationAuthorEmail)
	if err != nil {
		return nil, nil, err
	}

	scheduler, err := generation.NewScheduler(cfg.PostsGenerationSchedule, svc, cfg.GenerationTimeout, log)
	if err != nil {
		return nil, nil, err
	}
	return svc, scheduler, nil
}
