package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HammerMeetNail/lingopair/internal/config"
	"github.com/HammerMeetNail/lingopair/internal/database"
	"github.com/HammerMeetNail/lingopair/internal/handlers"
	"github.com/HammerMeetNail/lingopair/internal/logging"
	"github.com/HammerMeetNail/lingopair/internal/middleware"
	"github.com/HammerMeetNail/lingopair/internal/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

// backend is the storage selected by STORE_DRIVER.
type backend struct {
	users  services.UserDirectory
	store  services.RelationshipStore
	health handlers.Pinger
	close  func()
}

func run() error {
	logger := logging.New()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Server.Debug {
		logger.SetLevel(logging.LevelDebug)
		logging.SetDefaultLevel(logging.LevelDebug)
		logger.Debug("Debug logging enabled", map[string]interface{}{"env": cfg.Server.Environment})
	}

	logger.Info("Starting LingoPair server...", map[string]interface{}{"store": cfg.Store.Driver})

	store, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	relationshipService := services.NewRelationshipService(store.users, store.store)

	var redisDB *database.RedisDB
	if cfg.Redis.Enabled {
		logger.Info("Connecting to Redis", map[string]interface{}{"addr": cfg.Redis.Addr()})
		redisDB, err = database.NewRedisDB(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer func() { _ = redisDB.Close() }()
		logger.Info("Connected to Redis")

		relationshipService.SetNotifier(services.NewRedisNotifier(services.NewRedisAdapter(redisDB.Client)))
	}

	tokenIssuer := services.NewStreamTokenIssuer(cfg.Chat.APIKey, cfg.Chat.APISecret)
	if cfg.Chat.APISecret == "" {
		logger.Warn("STREAM_SECRET_KEY not set; chat tokens are disabled")
	}
	chatService := services.NewChatService(tokenIssuer, relationshipService)

	healthDeps := map[string]handlers.Pinger{cfg.Store.Driver: store.health}
	if redisDB != nil {
		healthDeps["redis"] = redisDB
	}
	healthHandler := handlers.NewHealthHandler(healthDeps)
	relationshipHandler := handlers.NewRelationshipHandler(relationshipService)
	chatHandler := handlers.NewChatHandler(chatService, tokenIssuer.APIKey())

	authMiddleware := middleware.NewAuthMiddleware(store.users, cfg.Auth.JWTSecret, cfg.Auth.CookieName)
	requestLogger := middleware.NewRequestLogger(logger)
	requireUser := authMiddleware.RequireUser

	var limiterBackend middleware.Evaler
	if redisDB != nil {
		limiterBackend = redisDB.Client
	}
	friendRequestLimiter := middleware.NewRateLimiter(limiterBackend, cfg.RateLimit.FriendRequests, cfg.RateLimit.Window, "ratelimit:friend-requests:", func(r *http.Request) string {
		if user := handlers.GetUserFromContext(r.Context()); user != nil {
			return user.ID.String()
		}
		return ""
	}, true)

	mux := http.NewServeMux()

	// Health endpoints (no auth)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /ready", healthHandler.Ready)
	mux.HandleFunc("GET /live", healthHandler.Live)

	// Relationship endpoints
	mux.Handle("GET /api/users", requireUser(http.HandlerFunc(relationshipHandler.Recommended)))
	mux.Handle("GET /api/users/friends", requireUser(http.HandlerFunc(relationshipHandler.Friends)))
	mux.Handle("POST /api/users/friend-request/{id}", requireUser(friendRequestLimiter.Middleware(http.HandlerFunc(relationshipHandler.SendRequest))))
	mux.Handle("PUT /api/users/friend-request/{id}/accept", requireUser(http.HandlerFunc(relationshipHandler.AcceptRequest)))
	mux.Handle("PUT /api/users/friend-request/{id}/decline", requireUser(http.HandlerFunc(relationshipHandler.DeclineRequest)))
	mux.Handle("DELETE /api/users/friend-request/{id}", requireUser(http.HandlerFunc(relationshipHandler.CancelRequest)))
	mux.Handle("GET /api/users/friend-requests", requireUser(http.HandlerFunc(relationshipHandler.FriendRequests)))
	mux.Handle("GET /api/users/outgoing-friend-requests", requireUser(http.HandlerFunc(relationshipHandler.OutgoingRequests)))

	// Chat endpoints
	mux.Handle("GET /api/chat/token", requireUser(http.HandlerFunc(chatHandler.Token)))
	mux.Handle("GET /api/chat/channels/{id}", requireUser(http.HandlerFunc(chatHandler.Channel)))

	// Build middleware chain (order matters: outermost first)
	var handler http.Handler = mux
	handler = authMiddleware.Authenticate(handler)
	handler = requestLogger.Apply(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{
		"addr": addr,
	})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}

func openBackend(cfg *config.Config, logger *logging.Logger) (*backend, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return openPostgres(cfg, logger)
	case "mongo":
		return openMongo(cfg, logger)
	case "memory":
		logger.Warn("Using in-memory store; data is lost on restart")
		mem := services.NewMemoryStore()
		return &backend{users: mem, store: mem, close: func() {}}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func openPostgres(cfg *config.Config, logger *logging.Logger) (*backend, error) {
	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(cfg.Database.DSN(), database.PoolSettings{
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	logger.Info("Connected to PostgreSQL")

	logger.Info("Running database migrations...", map[string]interface{}{"dir": cfg.Store.MigrationsDir})
	migrator, err := database.NewMigrator(cfg.Database.DSN(), cfg.Store.MigrationsDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if version, dirty, err := migrator.Version(); err == nil {
		logger.Info("Migrations completed", map[string]interface{}{"version": version, "dirty": dirty})
	}
	_ = migrator.Close()

	adapter := services.NewPoolAdapter(db.Pool)
	return &backend{
		users:  services.NewPostgresUserDirectory(adapter),
		store:  services.NewPostgresRelationshipStore(adapter),
		health: db,
		close:  db.Close,
	}, nil
}

func openMongo(cfg *config.Config, logger *logging.Logger) (*backend, error) {
	logger.Info("Connecting to MongoDB", map[string]interface{}{"database": cfg.Mongo.Database})
	mdb, err := database.NewMongoDB(cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	logger.Info("Connected to MongoDB")

	closeMongo := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mdb.Close(ctx); err != nil {
			logger.Warn("Closing MongoDB failed", map[string]interface{}{"error": err.Error()})
		}
	}

	store := services.NewMongoStore(mdb.Client, mdb.Database)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.EnsureIndexes(ctx); err != nil {
		closeMongo()
		return nil, fmt.Errorf("ensuring mongo indexes: %w", err)
	}

	return &backend{users: store, store: store, health: mdb, close: closeMongo}, nil
}
