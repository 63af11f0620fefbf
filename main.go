package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskfolio-api/api"
	"taskfolio-api/notify"
	"taskfolio-api/session"
	"taskfolio-api/storage"
)

func main() {
	_ = godotenv.Load()

	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()

	adapter, reminderSink := buildAdapter(logger)

	var redisClient *redis.Client
	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		redisClient = redis.NewClient(parseRedisOptions(redisConn))
		cacheTTL := envDuration("CACHE_TTL", time.Hour)
		adapter = storage.NewCache(adapter, redisClient, cacheTTL)
	}

	var deduper api.Deduper
	if redisClient != nil {
		deduper = api.NewRedisDeduper(redisClient, envDuration("DEDUPER_TTL", 24*time.Hour))
	}

	flusher := session.NewFlusher(adapter, logger, session.FlusherConfig{
		Workers:     envInt("FLUSH_WORKERS", 8),
		Buffer:      envInt("FLUSH_BUFFER", 1024),
		SaveTimeout: envDuration("FLUSH_TIMEOUT", 30*time.Second),
	})
	defer flusher.Close()

	manager := session.NewManager(adapter, flusher, logger)

	var reminders api.Reminders
	if reminderSink != nil {
		reminders = notify.NewService(reminderSink, logger, envDuration("REMINDER_WINDOW", 24*time.Hour))
	}

	auth := buildAuth()

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Idempotency-Key"},
	}))

	api.Register(e, manager, auth, deduper, reminders, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

// buildAdapter selects the persistence backend: a local sqlite file when
// SQLITE_PATH is set, otherwise Azure Tables. Only the hosted backend
// carries a reminder queue.
func buildAdapter(logger *log.Logger) (storage.Adapter, notify.QueueSink) {
	if path := os.Getenv("SQLITE_PATH"); path != "" {
		db, err := storage.NewSQLite(path)
		if err != nil {
			log.Fatalf("sqlite: %v", err)
		}
		logger.WithField("path", path).Info("using local sqlite storage")
		return db, nil
	}

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	tableName := os.Getenv("COLLECTIONS_TABLE")
	if connStr == "" || tableName == "" {
		log.Fatal("missing storage config: set SQLITE_PATH or STORAGE_CONNECTION_STRING and COLLECTIONS_TABLE")
	}
	tables, err := storage.NewTables(connStr, tableName, os.Getenv("REMINDER_QUEUE"))
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	if os.Getenv("REMINDER_QUEUE") == "" {
		return tables, nil
	}
	return tables, tables
}

func buildAuth() *api.Auth {
	if os.Getenv("AUTH_TEST_MODE") == "1" {
		secret := os.Getenv("TEST_JWT_SECRET")
		if secret == "" {
			log.Fatal("TEST_JWT_SECRET must be set when AUTH_TEST_MODE=1")
		}
		return api.NewTestAuth([]byte(secret))
	}
	jwtAudience := os.Getenv("AUTH0_AUDIENCE")
	domain := os.Getenv("AUTH0_DOMAIN")
	if jwtAudience == "" || domain == "" {
		log.Fatal("missing Auth0 config")
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		log.Fatalf("jwks: %v", err)
	}
	return api.NewAuth(jwks, jwtAudience, "https://"+domain+"/")
}

// parseRedisOptions accepts either a redis URL or the comma-separated
// host,password=...,ssl=true form some managed caches hand out.
func parseRedisOptions(redisConn string) *redis.Options {
	opts, err := redis.ParseURL(redisConn)
	if err == nil {
		return opts
	}
	parts := strings.Split(redisConn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Fatalf("invalid %s: %q", name, v)
	}
	return n
}

func envDuration(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Fatalf("invalid %s: %q", name, v)
	}
	return d
}
