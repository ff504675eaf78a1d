package app

import (
	"database/sql"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/grvbrk/vidmetrics_server/internal/handlers"
	"github.com/grvbrk/vidmetrics_server/internal/llm"
	"github.com/grvbrk/vidmetrics_server/internal/middlewares"
	"github.com/grvbrk/vidmetrics_server/internal/nlq"
	"github.com/grvbrk/vidmetrics_server/internal/store"
	"github.com/grvbrk/vidmetrics_server/migrations"
	"github.com/redis/go-redis/v9"
)

type Application struct {
	Logger            *log.Logger
	RedisClient       *redis.Client
	db                *sql.DB
	MiddlewareHandler *middlewares.MiddlewareHandler
	AskHandler        *handlers.AskHandler
}

// NewApplication wires every dependency explicitly: store, oracle client,
// pipeline, handlers. A missing connection string or API key is a fatal
// configuration fault here, not a per-request error.
func NewApplication() (*Application, error) {
	logger := log.New(os.Stdout, "LOGGING: ", log.Ldate|log.Ltime)

	pgDB, err := store.ConnectPGDB()
	if err != nil {
		logger.Println("Error connecting to db")
		return nil, err
	}

	err = store.MigrateFS(pgDB, migrations.FS, ".")
	if err != nil {
		logger.Println("PANIC: Postgresql migration failed, exiting...")
		return nil, err
	}

	logger.Println("Database migrated...")

	oracle, err := llm.NewOpenRouterClient(llm.OpenRouterConfig{
		APIKey:  os.Getenv("OPENROUTER_API_KEY"),
		BaseURL: os.Getenv("OPENROUTER_BASE_URL"),
		Model:   os.Getenv("LLM_MODEL"),
		Timeout: envDuration("LLM_TIMEOUT", 30*time.Second),
	})
	if err != nil {
		logger.Println("Error configuring the LLM oracle")
		return nil, err
	}

	scalarStore := store.NewPostgresScalarStore(pgDB, envDuration("QUERY_TIMEOUT", 15*time.Second))
	synthesizer := nlq.NewSynthesizer(oracle, logger)
	pipeline := nlq.NewPipeline(synthesizer, scalarStore, logger)

	redisClient, err := store.ConnectRedis()
	if err != nil {
		logger.Println("Error connecting to redis, answer cache disabled:", err)
		redisClient = nil
	}

	var answerCache *store.RedisAnswerCache
	if redisClient != nil {
		answerCache = store.NewRedisAnswerCache(redisClient)
	}

	askHandler := handlers.NewAskHandler(pipeline, answerCache, logger)
	middlewareHandler := middlewares.NewMiddlewareHandler(logger)

	app := &Application{
		Logger:            logger,
		RedisClient:       redisClient,
		db:                pgDB,
		MiddlewareHandler: middlewareHandler,
		AskHandler:        askHandler,
	}

	return app, nil
}

// envDuration reads a timeout in seconds from the environment.
func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
