package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Aidin1998/pincex_points/api"
	"github.com/Aidin1998/pincex_points/internal/config"
	"github.com/Aidin1998/pincex_points/internal/database"
	"github.com/Aidin1998/pincex_points/internal/point"
	"github.com/Aidin1998/pincex_points/internal/point/events"
	"github.com/Aidin1998/pincex_points/internal/point/lockregistry"
	"github.com/Aidin1998/pincex_points/internal/point/store"
	"github.com/Aidin1998/pincex_points/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	var paths []string
	if *configPath != "" {
		paths = append(paths, *configPath)
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Storage.Backend == config.BackendRedis || cfg.Events.RedisStream != "" {
		redisClient, err = database.NewRedisClient(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
	}

	balances, histories, err := openStores(cfg, redisClient)
	if err != nil {
		zapLogger.Fatal("Failed to open point storage",
			zap.String("backend", cfg.Storage.Backend),
			zap.Error(err),
		)
	}

	policy, err := lockregistry.ParsePolicy(cfg.Points.LockEviction)
	if err != nil {
		zapLogger.Fatal("Invalid lock eviction policy", zap.Error(err))
	}
	locks := lockregistry.New(
		lockregistry.WithThreshold(cfg.Points.RegistryThreshold),
		lockregistry.WithPolicy(policy),
	)

	opts := []point.Option{
		point.WithLockTimeout(cfg.Points.LockTimeout),
		point.WithPreCheck(cfg.Points.PreCheck),
	}

	dest := events.Destinations{
		KafkaBrokers: cfg.Events.KafkaBrokers,
		KafkaTopic:   cfg.Events.KafkaTopic,
		RedisStream:  cfg.Events.RedisStream,
	}
	if redisClient != nil {
		dest.Redis = redisClient
	}
	publishers := events.NewPublishers(dest, zapLogger)
	if len(publishers) > 0 {
		eventPublisher := events.NewEventPublisher(publishers, zapLogger)
		defer eventPublisher.Close()
		opts = append(opts,
			point.WithPublisher(eventPublisher),
			point.WithPublishTimeout(cfg.Events.PublishTimeout),
		)
	}

	pointService := point.NewService(zapLogger, balances, histories, locks, opts...)

	zapLogger.Info("Starting pointd",
		zap.String("backend", cfg.Storage.Backend),
		zap.String("lock_eviction", string(policy)),
		zap.Duration("lock_timeout", cfg.Points.LockTimeout),
		zap.Int("registry_threshold", cfg.Points.RegistryThreshold),
		zap.Int("publishers", len(publishers)),
	)

	server := api.NewServer(zapLogger, pointService)
	if err := server.Serve(ctx, cfg.Server); err != nil {
		zapLogger.Fatal("API server failed", zap.Error(err))
	}
	zapLogger.Info("pointd stopped")
}

func openStores(cfg *config.Config, redisClient *redis.Client) (store.BalanceStore, store.HistoryStore, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		db, err := database.NewPostgresDB(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
		if err != nil {
			return nil, nil, err
		}
		return gormStores(db)
	case config.BackendSQLite:
		db, err := database.NewSQLiteDB(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return gormStores(db)
	case config.BackendRedis:
		return store.NewRedisBalanceStore(redisClient), store.NewRedisHistoryStore(redisClient), nil
	default:
		var memOpts []store.MemoryOption
		if cfg.Points.StoreLatencyMax > 0 {
			memOpts = append(memOpts, store.WithLatency(cfg.Points.StoreLatencyMin, cfg.Points.StoreLatencyMax))
		}
		return store.NewMemoryBalanceStore(memOpts...), store.NewMemoryHistoryStore(memOpts...), nil
	}
}

func gormStores(db *gorm.DB) (store.BalanceStore, store.HistoryStore, error) {
	if err := store.AutoMigrate(db); err != nil {
		return nil, nil, err
	}
	return store.NewGormBalanceStore(db), store.NewGormHistoryStore(db), nil
}

