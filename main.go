package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"player-progression/cache"
	"player-progression/config"
	"player-progression/handlers"
	"player-progression/middleware"
	"player-progression/services"
	"player-progression/store"
	"player-progression/utils"
	"player-progression/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// backend is everything main wires a store into.
type backend interface {
	services.StatsStore
	services.LeaderboardStore
	services.ScoreSource
	workers.ProfileSink
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore := openStore(ctx, cfg)
	defer closeStore()

	var statsCache cache.Cache = cache.NewMemory()
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal("failed to connect to redis: ", err)
		}
		defer rc.Close()
		statsCache = rc
		log.Println("✅ Redis stats cache connected")
	} else {
		log.Println("⚠️  REDIS_URL not set, using in-process stats cache")
	}

	statsService := services.NewStatsService(st, statsCache, services.NewAchievementEngine(cfg.GameTitles))
	leaderboardService := services.NewLeaderboardService(st)

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
		Immutable: true,
	})
	app.Use(recover.New())
	app.Use(logger.New())

	handlers.SetupHealthRoute(app)

	// 🔐❗ Everything past this point must come through the gateway
	app.Use(middleware.GatewayAuthMiddleware(cfg.GameServiceToken))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,OPTIONS,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-Device-ID, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	var streamAuth fiber.Handler
	if cfg.AuthServiceURL != "" {
		authClient := services.NewAuthServiceClient(cfg.AuthServiceURL, cfg.GameServiceToken)
		streamAuth = middleware.SSEAuthMiddleware(authClient)
		log.Println("✅ SSE stream authenticated via auth service")
	}
	handlers.SetupStatsRoutes(app, statsService, leaderboardService, streamAuth)

	if cfg.SyncServiceURL != "" {
		workers.NewProfileSyncWorker(st, cfg.SyncServiceURL, cfg.GameServiceToken).Start(ctx)
	} else {
		log.Println("⚠️  SYNC_SERVICE_URL not set, leaderboard names fall back to user ids")
	}

	if cfg.R2.Enabled() {
		r2, err := utils.NewR2Client(ctx, cfg.R2)
		if err != nil {
			log.Fatal("failed to initialize R2 client: ", err)
		}
		archiver := services.NewScoreArchiver(st, r2, time.Now().UTC().Add(-cfg.ArchiveInterval))
		scheduler, err := services.StartArchiveScheduler(ctx, archiver, cfg.ArchiveInterval)
		if err != nil {
			log.Fatal("failed to start archive scheduler: ", err)
		}
		defer scheduler.Shutdown()
		log.Printf("✅ Score archive every %s", cfg.ArchiveInterval)
	} else {
		log.Println("⚠️  R2 credentials not set, score archive disabled")
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
			stop()
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s (store=%s)", cfg.Port, cfg.StoreBackend)
	log.Printf("✅ CORS configured for origins: %s", strings.Join(cfg.AllowedOrigins, ","))

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (backend, func()) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		m, err := store.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			log.Fatal("failed to connect to mongo: ", err)
		}
		log.Printf("✅ Mongo store connected (db=%s)", cfg.MongoDatabase)
		return m, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = m.Close(shutdownCtx)
		}

	case config.BackendMemory:
		log.Println("⚠️  Using in-memory store, data is lost on restart")
		return store.NewMemory(), func() {}

	default:
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
		if err != nil {
			log.Fatal("failed to connect to database: ", err)
		}
		g := store.NewGorm(db)
		if err := g.Migrate(); err != nil {
			log.Fatal("failed to migrate database: ", err)
		}
		log.Println("✅ Postgres store connected")
		return g, func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
	}
}
