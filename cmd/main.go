package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/Vovarama1992/waterdrop-support-agent/internal/ai"
	"github.com/Vovarama1992/waterdrop-support-agent/internal/config"
	"github.com/Vovarama1992/waterdrop-support-agent/internal/dialogue"
	"github.com/Vovarama1992/waterdrop-support-agent/internal/knowledge"
	"github.com/Vovarama1992/waterdrop-support-agent/internal/metrics"
	"github.com/Vovarama1992/waterdrop-support-agent/internal/migration"
	"github.com/Vovarama1992/waterdrop-support-agent/internal/support"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	var repo support.Repo
	if cfg.Database.URL != "" {
		db, err := openDB(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		repo = support.NewRepo(db)
	} else {
		logger.Warn("database.url not set, transcripts are not archived")
	}

	// --- AI ---
	aiClient, err := ai.NewOpenAIClient(cfg.OpenAI, logger)
	if err != nil {
		return fmt.Errorf("openai client: %w", err)
	}
	generator := support.NewLLMGenerator(aiClient, ai.NewTiktoken(aiClient.Model()), cfg.OpenAI.MaxHistoryTokens, logger)

	// --- Knowledge base ---
	var retriever knowledge.Retriever
	if cfg.RetrievalEnabled() {
		retriever = knowledge.NewQdrantRetriever(cfg.Qdrant, aiClient, logger)
		if cfg.Redis.Addr != "" {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer rdb.Close()

			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := rdb.Ping(pingCtx).Err()
			cancel()
			if err != nil {
				logger.Warn("redis unavailable, search cache disabled", zap.Error(err))
			} else {
				retriever = knowledge.NewCachedRetriever(retriever, rdb, cfg.Redis, logger)
			}
		}
	} else {
		logger.Warn("qdrant.base_url not set, knowledge retrieval disabled")
	}

	// --- Support module wiring ---
	collector := metrics.NewCollector("waterdrop", prometheus.DefaultRegisterer)
	classifier := dialogue.KeywordClassifier{}

	svc := support.NewService(cfg.Support, support.Deps{
		Engine:    dialogue.NewEngine(cfg.Policy, classifier),
		Tracker:   dialogue.NewTracker(classifier),
		Retriever: retriever,
		Generator: generator,
		Repo:      repo,
		Outbound:  support.NewOutbound(cfg.Handoff, logger),
		Recorder:  collector,
		Logger:    logger,
	})

	// --- Router ---
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	r.Use(collector.Middleware)

	support.RegisterRoutes(r, support.NewHandler(svc, logger))

	// --- health ---
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})
	if cfg.Server.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		// end live sessions first so open sockets unblock
		svc.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if cfg.AutoMigrate {
		if err := migrate(cfg, logger); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

// migrate runs on its own handle: closing the migrator closes the database.
func migrate(cfg config.DatabaseConfig, logger *zap.Logger) error {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return fmt.Errorf("db open error: %w", err)
	}
	defer db.Close()

	m, err := migration.New(db, cfg.MigrationsTable, logger)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
