package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/n1-ro/recoverpro/internal/app"
	"github.com/n1-ro/recoverpro/internal/config"
	"github.com/n1-ro/recoverpro/internal/infra/memory"
	"github.com/n1-ro/recoverpro/internal/infra/postgres"
	redisinfra "github.com/n1-ro/recoverpro/internal/infra/redis"
	"github.com/n1-ro/recoverpro/internal/infra/storage"
	transport "github.com/n1-ro/recoverpro/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment portal server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	// The in-memory store backs every concern Postgres is not configured
	// for; it is the whole persistence layer in local development.
	memStore := memory.NewStore()

	var (
		profiles  app.ProfileStore    = memStore
		scenarios app.ScenarioStore   = memStore
		responses app.ResponseStore   = memStore
		ratings   app.RatingStore     = memStore
		resets    app.ResetTokenStore = memStore
		loader    memory.ScenarioLoader
	)
	loader = memStore
	if pool != nil {
		pgStore := postgres.NewStore(pool)
		profiles = pgStore
		scenarios = pgStore
		responses = pgStore
		ratings = pgStore
		loader = pgStore
	}

	scenarioTTL := config.TTLDuration(cfg.Assessment.ScenarioTTL, 5*time.Minute)
	var scenarioCache app.ScenarioSource
	var invalidate func(ctx context.Context)
	if redisClient != nil {
		cache := redisinfra.NewScenarioCache(redisClient, loader, scenarioTTL)
		scenarioCache = cache
		invalidate = cache.Invalidate
	} else {
		cache := memory.NewScenarioCache(loader, scenarioTTL)
		scenarioCache = cache
		invalidate = func(context.Context) { cache.Invalidate() }
	}

	var captures app.CaptureStore
	if redisClient != nil {
		captures = redisinfra.NewCaptureStore(redisClient, redisTTL)
	} else {
		captures = memory.NewCaptureStore()
	}
	if redisClient != nil {
		resets = redisinfra.NewResetTokenStore(redisClient)
	}

	var objects app.ObjectStore
	if cfg.Storage.Endpoint != "" {
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return err
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return err
		}
		objects = client
	} else {
		log.Warn("object storage not configured, recordings are kept in memory")
		objects = memory.NewObjectStore()
	}

	secret := cfg.Auth.Secret
	if secret == "" {
		log.Warn("auth secret not configured, using development default")
		secret = "recoverpro-dev-secret"
	}
	auth := transport.NewAuthenticator(secret)
	tokenTTL := config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour)
	resetTTL := config.TTLDuration(cfg.Auth.ResetTTL, time.Hour)

	authSvc := app.NewAuthService(profiles, resets, auth.Sign, tokenTTL, resetTTL)
	assessment := app.NewAssessmentService(profiles, scenarioCache, responses, objects, captures, log)
	review := app.NewReviewService(profiles, responses, ratings, objects, log)
	scenarioSvc := app.NewScenarioService(scenarios)
	scenarioSvc.InvalidateWith(invalidate)
	captureHandler := transport.NewCaptureHandler(captures, log)

	api := transport.NewAPI(auth, authSvc, assessment, review, scenarioSvc, captureHandler, log)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      api.Routes(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("starting assessment portal", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
