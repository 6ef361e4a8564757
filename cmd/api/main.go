package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	_ "github.com/redmonkez12/users-auth-api/docs" // Swagger docs
	"github.com/redmonkez12/users-auth-api/internal/auth"
	"github.com/redmonkez12/users-auth-api/internal/avatar"
	"github.com/redmonkez12/users-auth-api/internal/config"
	"github.com/redmonkez12/users-auth-api/internal/database"
	"github.com/redmonkez12/users-auth-api/internal/email"
	httpServer "github.com/redmonkez12/users-auth-api/internal/http"
	"github.com/redmonkez12/users-auth-api/internal/logging"
	"github.com/redmonkez12/users-auth-api/internal/ratelimit"
	"github.com/redmonkez12/users-auth-api/internal/user"
)

// @title           Users Auth API
// @version         1.0
// @description     User accounts with email verification, bearer token sessions, subscriptions and avatars.

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:3000
// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the token.

func main() {
	rootCmd := &cobra.Command{
		Use:   "api",
		Short: "Users auth REST API",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the users table or collection indexes",
		RunE:  runMigrate,
	}

	rootCmd.AddCommand(serveCmd, migrateCmd)

	// Running without a subcommand starts the server
	rootCmd.RunE = serveCmd.RunE

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// storeHandle is an opened user store plus what it needs on shutdown and migration
type storeHandle struct {
	store   user.Store
	migrate func(ctx context.Context) error
	close   func() error
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (*storeHandle, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("failed to ping mongo: %w", err)
		}

		repo := user.NewMongoRepository(client.Database(cfg.MongoDB))
		return &storeHandle{
			store:   repo,
			migrate: repo.EnsureIndexes,
			close:   func() error { return client.Disconnect(context.Background()) },
		}, nil

	default:
		db, err := database.OpenPostgres(ctx, cfg.ConnectionString())
		if err != nil {
			return nil, err
		}
		return &storeHandle{
			store:   user.NewRepository(db),
			migrate: func(ctx context.Context) error { return database.Migrate(ctx, db) },
			close:   db.Close,
		}, nil
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.NewLogger(cfg.Server.IsDevelopment())

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	handle, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer handle.close()

	if err := handle.migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("migration complete", "driver", cfg.Database.Driver)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"db_driver", cfg.Database.Driver,
		"token_format", cfg.Auth.TokenFormat,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	handle, err := openStore(startCtx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer handle.close()

	for _, dir := range []string{cfg.Avatar.Dir, cfg.Avatar.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	var limiter auth.RateLimiter = ratelimit.Nop{}
	if cfg.Redis.Enabled {
		redisClient, err := initRedis(startCtx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		defer redisClient.Close()
		limiter = ratelimit.NewLimiter(redisClient, ratelimit.DefaultRules)
	}

	tokens, err := newTokenService(cfg.Auth)
	if err != nil {
		return err
	}

	authService := auth.NewService(
		handle.store,
		auth.NewArgon2Hasher(auth.DefaultArgon2Params),
		tokens,
		email.NewService(cfg.Email),
		logger,
		cfg.Auth.TokenTTL,
	)
	userService := user.NewService(handle.store, avatar.NewProcessor(cfg.Avatar.Dir), logger)

	router := httpServer.NewRouter(cfg, httpServer.Handlers{
		Auth:           auth.NewHandler(authService, limiter, logger),
		AuthMiddleware: auth.NewMiddleware(authService),
		User:           user.NewHandler(userService, cfg.Avatar.TempDir, cfg.Avatar.MaxBytes),
	}, logger)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

func newTokenService(cfg config.AuthConfig) (auth.TokenService, error) {
	if cfg.TokenFormat == config.TokenFormatPaseto {
		svc, err := auth.NewPasetoService(cfg.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PASETO service: %w", err)
		}
		return svc, nil
	}

	svc, err := auth.NewJWTService(cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	return svc, nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
