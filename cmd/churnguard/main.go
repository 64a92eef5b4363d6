package main

import (
	"context"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/churnlabs/churnguard/internal/analysis"
	"github.com/churnlabs/churnguard/internal/campaign"
	"github.com/churnlabs/churnguard/internal/contract"
	"github.com/churnlabs/churnguard/internal/gateway"
	"github.com/churnlabs/churnguard/internal/ingest"
	"github.com/churnlabs/churnguard/internal/nlq"
	"github.com/churnlabs/churnguard/internal/projection"
	"github.com/churnlabs/churnguard/internal/prompt"
	"github.com/churnlabs/churnguard/internal/server"
	"github.com/churnlabs/churnguard/internal/storage"
	"github.com/churnlabs/churnguard/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// A .env file is optional; real deployments set the environment.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Store
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStore()
	} else {
		logger.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		}
		store, err = storage.NewPostgresStore(dbConfig, logger)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize the model gateway
	gw, err := gateway.New(context.Background(), gateway.Config{
		APIKey:          cfg.Gemini.APIKey,
		Model:           cfg.Gemini.Model,
		MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
		Temperature:     cfg.Gemini.Temperature,
		LogPreviewLen:   cfg.Gemini.LogPreviewLen,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize model gateway", zap.Error(err))
	}

	// Pipeline components
	assembler := prompt.NewAssembler(cfg.Prompts.Dir, logger)
	parser := contract.NewParser(logger)
	validator := ingest.NewValidator(ingest.Limits{
		MaxFileSizeMB: cfg.CSV.MaxFileSizeMB,
		MaxRows:       cfg.CSV.MaxRows,
		MaxColumns:    cfg.CSV.MaxColumns,
		MinRows:       cfg.CSV.MinRows,
	}, logger)

	analyzer := analysis.NewAnalyzer(gw, assembler, parser, logger)
	runner := analysis.NewRunner(analyzer, store, logger)
	headerValidator := analysis.NewHeaderValidator(gw, assembler, parser, logger)

	projections := projection.NewBuilder(projection.Thresholds{
		High:   cfg.Churn.HighThreshold,
		Medium: cfg.Churn.MediumThreshold,
	}, logger)
	campaigns := campaign.NewBuilder(logger)

	router := nlq.NewRouter(cfg.NLQ.FullTableKeywords)
	newAgent := func() *nlq.Agent {
		return nlq.NewAgent(gw, assembler, router, nlq.Options{
			HistoryLimit:  cfg.NLQ.HistoryLimit,
			HistoryMaxLen: cfg.NLQ.MessageMaxLen,
		}, logger)
	}

	srv := server.New(store, validator, headerValidator, runner, projections, campaigns, newAgent, logger)

	logger.Info("Starting HTTP server", zap.String("addr", cfg.Server.Addr))
	if err := http.ListenAndServe(cfg.Server.Addr, srv.Router()); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
