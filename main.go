// Package main provides the entry point for the chat sequencer service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/amirphl/chat-sequencer/app/handlers"
	"github.com/amirphl/chat-sequencer/app/middleware"
	"github.com/amirphl/chat-sequencer/app/router"
	"github.com/amirphl/chat-sequencer/app/scheduler"
	"github.com/amirphl/chat-sequencer/app/services"
	businessflow "github.com/amirphl/chat-sequencer/business_flow"
	"github.com/amirphl/chat-sequencer/config"
	"github.com/amirphl/chat-sequencer/repository"
)

// Application represents the main application structure
type Application struct {
	router  router.Router
	closers []func() error
	// stopFuncs run in order once the server has drained
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logWriter, err := services.NewLogWriter(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	log.SetOutput(logWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.LUTC)
	log.Printf("Starting chat sequencer %s (%s) in %s", cfg.Deployment.Version, cfg.Deployment.CommitHash, cfg.Deployment.Environment)

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		serverErr <- app.router.Start(address)
	}()

	select {
	case <-sigChan:
		log.Println("Shutting down gracefully...")
	case err := <-serverErr:
		log.Printf("Server stopped unexpectedly: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := app.router.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
		// the final reconciliation pass runs after in-flight requests have drained
		for _, fn := range app.stopFuncs {
			fn()
		}
		for _, closeFn := range app.closers {
			if err := closeFn(); err != nil {
				log.Printf("Error closing resource: %v", err)
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(cfg.Server.ShutdownTimeout):
		log.Printf("Shutdown did not finish within %s", cfg.Server.ShutdownTimeout)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logLevel string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	gormLogLevel := services.GormLogLevel(logLevel, cfg.SlowQueryLog)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(log.New(log.Writer(), "gorm ", log.LstdFlags|log.LUTC), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormLogLevel,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache connects Redis when it is the configured provider; nil means the in-memory store
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis so connectivity loss shows up in the logs
// before requests start failing. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	app := &Application{}

	db, err := initializeDatabase(cfg.Database, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, sqlDB.Close)

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	checks := map[string]handlers.HealthCheck{
		"postgres": sqlDB.PingContext,
	}

	var store services.CounterStore
	if rc != nil {
		store = services.NewRedisCounterStore(rc, cfg.Cache.RedisPrefix)
		app.stopFuncs = append(app.stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.CleanupInterval))
		app.closers = append(app.closers, rc.Close)
		checks["redis"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
	} else {
		log.Println("Using the in-memory counter store; counters are lost on restart")
		store = services.NewMemoryCounterStore()
	}

	publisher, err := services.NewEventPublisher(cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event publisher: %w", err)
	}
	app.closers = append(app.closers, publisher.Close)
	log.Printf("Event publisher initialized with driver %q", cfg.Broker.Driver)

	tokenService, err := services.NewTokenService(cfg.JWT.SecretKey, cfg.JWT.Issuer, cfg.JWT.Audience)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	appRepo := repository.NewApplicationRepository(db)
	chatRepo := repository.NewChatRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	tracker := businessflow.NewChangeTracker(store)
	allocator := businessflow.NewSequenceAllocator(store, tracker, cfg.Sequencer.CounterTimeout)

	chatFlow := businessflow.NewChatFlow(allocator, appRepo, chatRepo, publisher, cfg.Sequencer.PublishMustSucceed)
	messageFlow := businessflow.NewMessageFlow(allocator, chatRepo, messageRepo, publisher, cfg.Sequencer.PublishMustSucceed)
	reconcileFlow := businessflow.NewReconciliationFlow(store, tracker, appRepo, chatRepo, cfg.Reconcile.BatchSize)

	app.router = router.NewFiberRouter(router.Handlers{
		Chat:      handlers.NewChatHandler(chatFlow),
		Message:   handlers.NewMessageHandler(messageFlow),
		Reconcile: handlers.NewReconcileHandler(reconcileFlow),
		Health:    handlers.NewHealthHandler(cfg.Deployment.Version, cfg.Deployment.Environment, checks),
		Auth:      middleware.NewAuthMiddleware(tokenService),
	}, cfg.Server, cfg.Metrics, log.Default())

	if cfg.Reconcile.Enabled {
		s := scheduler.NewReconciliationScheduler(reconcileFlow, log.New(log.Writer(), "reconcile ", log.LstdFlags|log.Lmicroseconds|log.LUTC), cfg.Reconcile.Interval)
		app.stopFuncs = append(app.stopFuncs, s.Start(context.Background()))
		log.Printf("Reconciliation scheduler started (interval=%s, batch=%d)", cfg.Reconcile.Interval, cfg.Reconcile.BatchSize)
	}

	return app, nil
}
