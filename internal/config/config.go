package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN      string
	ServerPort string
	JWTSecret  string

	RedisAddr string // пусто — кэш отключён

	// файловое хранилище
	UseS3Storage      bool
	S3Region          string
	S3Endpoint        string
	S3Bucket          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PublicURL       string
	LocalStoragePath  string

	// поисковый индекс (опционально)
	ElasticAddrs    []string
	ElasticUsername string
	ElasticPassword string

	AdminEmail    string
	AdminPassword string
}

func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		DBDSN:      os.Getenv("DB_DSN"),
		ServerPort: os.Getenv("SERVER_PORT"),
		JWTSecret:  os.Getenv("JWT_SECRET"),

		RedisAddr: os.Getenv("REDIS_ADDR"),

		UseS3Storage:      os.Getenv("USE_S3_STORAGE") == "true",
		S3Region:          os.Getenv("S3_REGION"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3Bucket:          os.Getenv("S3_BUCKET_NAME"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3PublicURL:       os.Getenv("S3_PUBLIC_URL"),
		LocalStoragePath:  os.Getenv("LOCAL_STORAGE_PATH"),

		ElasticUsername: os.Getenv("ELASTICSEARCH_USERNAME"),
		ElasticPassword: os.Getenv("ELASTICSEARCH_PASSWORD"),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}

	if nodes := os.Getenv("ELASTICSEARCH_NODE"); nodes != "" {
		cfg.ElasticAddrs = strings.Split(nodes, ",")
	}

	if cfg.DBDSN == "" {
		log.Fatal("DB_DSN is not set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.UseS3Storage && cfg.S3Region == "" {
		cfg.S3Region = "ru-central1"
	}
	if cfg.LocalStoragePath == "" {
		cfg.LocalStoragePath = "./uploads"
	}

	return cfg
}
