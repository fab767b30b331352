package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"player-progression/utils"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

type Config struct {
	Port             string
	StoreBackend     string
	DatabaseURL      string
	MongoURI         string
	MongoDatabase    string
	RedisURL         string
	GameServiceToken string
	AllowedOrigins   []string
	AuthServiceURL   string
	SyncServiceURL   string
	R2               utils.R2Config
	ArchiveInterval  time.Duration
	GameTitles       map[string]string
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "5200"),
		StoreBackend:     strings.ToLower(getEnv("STORE_BACKEND", BackendPostgres)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:    getEnv("MONGO_DATABASE", "player_progression"),
		RedisURL:         os.Getenv("REDIS_URL"),
		GameServiceToken: os.Getenv("GAME_SERVICE_TOKEN"),
		AuthServiceURL:   os.Getenv("AUTH_SERVICE_URL"),
		SyncServiceURL:   os.Getenv("SYNC_SERVICE_URL"),
		R2: utils.R2Config{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
			CDNBaseURL:      os.Getenv("CDN_BASE_URL"),
		},
	}

	if cfg.GameServiceToken == "" {
		return nil, fmt.Errorf("GAME_SERVICE_TOKEN is not set")
	}

	switch cfg.StoreBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the %s backend", BackendPostgres)
		}
	case BackendMongo, BackendMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("invalid PORT %q: %w", cfg.Port, err)
	}

	origins := getEnv("ALLOWED_ORIGINS", "http://localhost:3000")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	interval, err := time.ParseDuration(getEnv("ARCHIVE_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid ARCHIVE_INTERVAL: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("ARCHIVE_INTERVAL must be positive, got %s", interval)
	}
	cfg.ArchiveInterval = interval

	titles, err := parseGameTitles(os.Getenv("GAME_TITLES"))
	if err != nil {
		return nil, err
	}
	cfg.GameTitles = titles

	return cfg, nil
}

// parseGameTitles reads "key=Title,key2=Other Title". Entries extend the
// built-in titles, replacing any with the same key. An empty value yields
// nil so the built-in titles apply.
func parseGameTitles(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	titles := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, title, ok := strings.Cut(pair, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		title = strings.TrimSpace(title)
		if !ok || key == "" || title == "" {
			return nil, fmt.Errorf("invalid GAME_TITLES entry %q, want key=Title", pair)
		}
		titles[key] = title
	}
	return titles, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
