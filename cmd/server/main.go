package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"mak3-crm/internal/config"
	"mak3-crm/internal/database"
	"mak3-crm/internal/search"
	"mak3-crm/internal/server"
	"mak3-crm/internal/services"
	"mak3-crm/internal/storage"
)

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	db, err := database.Open(cfg.DBDSN, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	if err := database.SeedAdmin(db, cfg.AdminEmail, cfg.AdminPassword, log); err != nil {
		log.Error("admin seed failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// кэш данных пользователя; без Redis работаем напрямую с БД
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, actor cache disabled", "error", err)
			rdb = nil
		}
	}

	var files storage.Storage
	var local *storage.LocalStorage
	if cfg.UseS3Storage {
		s3store, err := storage.NewS3Storage(ctx, storage.S3Config{
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicURL:       cfg.S3PublicURL,
		})
		if err != nil {
			log.Error("failed to init S3 storage", "error", err)
			os.Exit(1)
		}
		files = s3store
		log.Info("using S3 storage", "bucket", cfg.S3Bucket)
	} else {
		local, err = storage.NewLocalStorage(cfg.LocalStoragePath)
		if err != nil {
			log.Error("failed to init local storage", "error", err)
			os.Exit(1)
		}
		files = local
		log.Info("using local storage", "dir", cfg.LocalStoragePath)
	}

	var indexer search.Indexer = search.NoopIndexer{}
	if len(cfg.ElasticAddrs) > 0 {
		es, err := search.NewElasticIndexer(search.ElasticConfig{
			Addresses: cfg.ElasticAddrs,
			Username:  cfg.ElasticUsername,
			Password:  cfg.ElasticPassword,
		})
		if err != nil {
			log.Warn("elasticsearch disabled", "error", err)
		} else if err := es.EnsureIndex(ctx); err != nil {
			log.Warn("elasticsearch disabled", "error", err)
		} else {
			indexer = es
			log.Info("elasticsearch index ready")
		}
	}

	contacts := services.NewContactService(db, files, indexer, log)
	deals := services.NewDealService(db, files, log)
	pipelines := services.NewPipelineService(db, log)
	importer := services.NewImportService(db, log)

	r := server.NewRouter(server.Deps{
		Config:    cfg,
		DB:        db,
		Redis:     rdb,
		Contacts:  contacts,
		Deals:     deals,
		Pipelines: pipelines,
		Importer:  importer,
		Local:     local,
		Log:       log,
	})

	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Info("starting server", "addr", addr)
	if err := r.Run(addr); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
