package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"llm_proxy/cache"
	"llm_proxy/cache/gormstore"
	"llm_proxy/cache/memory"
	qdrantstore "llm_proxy/cache/qdrant"
	"llm_proxy/config"
	"llm_proxy/cost"
	"llm_proxy/embedding"
	openaiembedding "llm_proxy/embedding/openai"
	embeddingredis "llm_proxy/embedding/redis"
	"llm_proxy/project"
	"llm_proxy/proxy"
	"llm_proxy/requestlog"
	"llm_proxy/server"
	"llm_proxy/upstream"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.NewExample().Fatal("fail to load config", zap.Error(err))
	}

	logger, err := newLogger(cfg.Server.LogLevel)
	if err != nil {
		zap.NewExample().Fatal("fail to build logger", zap.Error(err))
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("proxy exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return err
	}

	requestLog, err := requestlog.NewGormLog(db)
	if err != nil {
		return err
	}
	registry, err := project.NewGormRegistry(db)
	if err != nil {
		return err
	}

	store, err := buildStore(cfg, db, logger)
	if err != nil {
		return err
	}

	embedder := buildEmbedder(cfg, logger)

	costs := cost.NewTable()
	if cfg.Cost.TablePath != "" {
		costs, err = cost.Load(cfg.Cost.TablePath)
		if err != nil {
			return err
		}
	}

	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(collectors.NewGoCollector())

	orch := proxy.New(
		embedder,
		store,
		costs,
		requestLog,
		upstream.New(cfg.Upstream.Timeout),
		registry,
		proxy.Options{
			Threshold:      cfg.Cache.SimilarityThreshold,
			EmbeddingModel: cfg.Embedding.Model,
			Coalesce:       cfg.Proxy.CoalesceRequests,
		},
		logger,
		proxy.NewMetrics(metricsRegistry),
	)

	// SIGHUP swaps the cost table in place
	if cfg.Cost.TablePath != "" {
		go reloadCostsOnSighup(cfg.Cost.TablePath, orch, logger)
	}

	router := server.New(orch, requestLog, logger).Router(metricsRegistry)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func buildStore(cfg *config.Config, db *gorm.DB, logger *zap.Logger) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "memory":
		return memory.New(cfg.Embedding.Dimensions, cfg.Embedding.Model), nil
	case "gorm":
		return gormstore.New(db, cfg.Embedding.Dimensions, cfg.Embedding.Model)
	case "qdrant":
		return qdrantstore.New(
			cfg.Cache.QdrantHost,
			cfg.Cache.QdrantPort,
			cfg.Cache.QdrantCollection,
			cfg.Embedding.Dimensions,
			cfg.Embedding.Model,
			logger,
		)
	}
	// config.Load already validated the backend name
	panic("unreachable")
}

func buildEmbedder(cfg *config.Config, logger *zap.Logger) embedding.Service {
	var svc embedding.Service = embedding.NewLazy(func() (embedding.Service, error) {
		if os.Getenv(cfg.Embedding.APIKeyEnv) == "" {
			return nil, errors.New("missing api key in env " + cfg.Embedding.APIKeyEnv)
		}
		return openaiembedding.New(
			cfg.Embedding.Endpoint,
			cfg.Embedding.Model,
			cfg.Embedding.APIKeyEnv,
			cfg.Embedding.Dimensions,
		), nil
	})

	if cfg.Embedding.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.Embedding.RedisAddr})
		svc = embeddingredis.New(svc, client, cfg.Embedding.Model, cfg.Embedding.RedisTTL)
		logger.Info("embedding cache enabled", zap.String("redis", cfg.Embedding.RedisAddr))
	}
	return svc
}

func reloadCostsOnSighup(path string, orch *proxy.Orchestrator, logger *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	for range hup {
		table, err := cost.Load(path)
		if err != nil {
			logger.Error("fail to reload cost table", zap.Error(err))
			continue
		}
		orch.SetCostTable(table)
		logger.Info("cost table reloaded", zap.String("path", path))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = lvl
	return cfg.Build()
}
