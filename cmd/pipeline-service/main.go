/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Command pipeline-service wires every package in this module into one
// running process: storage, the driver/checker/provider/notify registries,
// both orchestrators, and the §6 HTTP surface.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/jordigilh/alertpipe/internal/config"
	"github.com/jordigilh/alertpipe/internal/database"
	"github.com/jordigilh/alertpipe/internal/telemetry"
	"github.com/jordigilh/alertpipe/pkg/alerts"
	alertdrivers "github.com/jordigilh/alertpipe/pkg/alerts/drivers"
	"github.com/jordigilh/alertpipe/pkg/checkers"
	"github.com/jordigilh/alertpipe/pkg/definition"
	"github.com/jordigilh/alertpipe/pkg/httpapi"
	"github.com/jordigilh/alertpipe/pkg/intelligence"
	"github.com/jordigilh/alertpipe/pkg/intelligence/providers"
	"github.com/jordigilh/alertpipe/pkg/metrics"
	"github.com/jordigilh/alertpipe/pkg/nodes"
	"github.com/jordigilh/alertpipe/pkg/notify"
	notifydrivers "github.com/jordigilh/alertpipe/pkg/notify/drivers"
	"github.com/jordigilh/alertpipe/pkg/orchestrator"
	"github.com/jordigilh/alertpipe/pkg/registry"
	"github.com/jordigilh/alertpipe/pkg/stages"
	"github.com/jordigilh/alertpipe/pkg/storage/postgres"
	"github.com/jordigilh/alertpipe/pkg/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := envOr("ALERTPIPE_CONFIG", "config.yaml")
	cfgWatcher, err := config.NewWatcher(configPath, nil)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	defer cfgWatcher.Close()
	cfg := cfgWatcher.Current()

	log, err := telemetry.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	tp := telemetry.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := database.Connect(ctx, database.Config{
		DSN:             cfg.Storage.DSN,
		MaxOpenConns:    cfg.Storage.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	pgxPool, err := pgxpool.New(ctx, cfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("open pgx pool for advisory locks: %w", err)
	}
	defer pgxPool.Close()

	alertsRepo := postgres.AlertRepository{DB: db}
	historyRepo := postgres.AlertHistoryRepository{DB: db}
	incidentsRepo := postgres.IncidentRepository{DB: db}
	runsRepo := postgres.PipelineRunRepository{DB: db}
	stageExecsRepo := postgres.StageExecutionRepository{DB: db}
	definitionsRepo := postgres.DefinitionRepository{DB: db}
	channelsRepo := postgres.ChannelRepository{DB: db}
	providersRepo := postgres.ProviderRepository{DB: db}
	analysisRunsRepo := postgres.AnalysisRunRepository{DB: db}
	fingerprintLock := postgres.FingerprintLock{Pool: pgxPool}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	snapshotCache := registry.New(redisClient, providersRepo, channelsRepo, log.WithName("registry"))
	go func() {
		if err := snapshotCache.Run(ctx, 30*time.Second, configPath); err != nil && ctx.Err() == nil {
			log.Error(err, "registry cache refresh loop exited")
		}
	}()

	alertRegistry := alerts.NewRegistry()
	_ = alertRegistry.Register(alertdrivers.NewGeneric())
	_ = alertRegistry.Register(alertdrivers.NewAlertmanager())
	normalizer := alerts.NewNormalizer(alertRegistry, alertsRepo, historyRepo, incidentsRepo, fingerprintLock)

	checkerRegistry := checkers.NewRegistry()
	_ = checkerRegistry.Register(checkers.NewDisk(cfg.Checkers.Disk.Path, cfg.Checkers.Disk.WarnPercent, cfg.Checkers.Disk.CriticalPercent))
	_ = checkerRegistry.Register(checkers.NewProcess(cfg.Checkers.Process.Name, cfg.Checkers.Process.PIDFile))

	notifyRegistry := notify.NewRegistry()
	_ = notifyRegistry.Register(notifydrivers.NewWebhook())
	_ = notifyRegistry.Register(notifydrivers.NewSlack())
	dispatcher := notify.NewDispatcher(notifyRegistry)
	dispatcher.Concurrency = cfg.Stages.NotifyConcurrency
	if cfg.Stages.NotifyRatePerSecond > 0 {
		dispatcher.Limiter = rate.NewLimiter(rate.Limit(cfg.Stages.NotifyRatePerSecond), cfg.Stages.NotifyConcurrency)
	}

	intelligenceRegistry := intelligence.NewRegistry(intelligence.NewLocal())
	registerIntelligenceProviders(intelligenceRegistry, cfg.Intelligence, log)

	ingestStage := stages.NewIngest(normalizer, log.WithName("ingest"))
	checkStage := stages.NewCheck(checkerRegistry, log.WithName("check"))
	checkStage.Concurrency = cfg.Stages.CheckConcurrency
	analyzeStage := stages.NewAnalyze(intelligenceRegistry, incidentsRepo, analysisRunsRepo, providersRepo, log.WithName("analyze"))
	notifyStage := stages.NewNotify(channelsRepo, dispatcher, log.WithName("notify"))

	executors := map[types.Stage]orchestrator.StageExecutor{
		types.StageIngest:  ingestStage,
		types.StageCheck:   checkStage,
		types.StageAnalyze: analyzeStage,
		types.StageNotify:  notifyStage,
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	orch := orchestrator.New(runsRepo, stageExecsRepo, executors, log.WithName("orchestrator"))
	orch.StageTimeout = cfg.Stages.DefaultStageTimeout
	orch.Metrics = m

	nodeRegistry := nodes.NewRegistry()
	_ = nodeRegistry.Register(nodes.NewIngestNode(ingestStage))
	_ = nodeRegistry.Register(nodes.NewContextNode(checkStage))
	_ = nodeRegistry.Register(nodes.NewIntelligenceNode(analyzeStage))
	_ = nodeRegistry.Register(nodes.NewNotifyNode(notifyStage))
	_ = nodeRegistry.Register(nodes.NewTransformNode())

	runner := definition.NewRunner(runsRepo, stageExecsRepo, nodeRegistry, log.WithName("definition"))
	runner.StageTimeout = cfg.Stages.DefaultStageTimeout
	runner.Metrics = m

	server := httpapi.New(orch, runner, nodeRegistry, runsRepo, stageExecsRepo, definitionsRepo, m, log.WithName("httpapi"))

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Server.HTTPPort,
		Handler:           server.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("pipeline-service listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(err, "http server exited")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// registerIntelligenceProviders registers the optional LLM-backed providers
// whose credentials are present in cfg, leaving the always-present local
// rule engine as the sole provider otherwise.
func registerIntelligenceProviders(reg *intelligence.Registry, cfg config.IntelligenceConfig, log interface {
	Error(err error, msg string, kv ...interface{})
}) {
	if cfg.AnthropicAPIKey != "" {
		modelName := cfg.AnthropicModel
		if modelName == "" {
			modelName = "claude-3-5-haiku-latest"
		}
		if err := reg.Register(providers.NewAnthropic(cfg.AnthropicAPIKey, anthropic.Model(modelName))); err != nil {
			log.Error(err, "register anthropic provider")
		}
	}
	if cfg.BedrockRegion != "" {
		bedrock, err := providers.NewBedrock(context.Background(), cfg.BedrockRegion, cfg.BedrockModelID)
		if err != nil {
			log.Error(err, "init bedrock provider")
		} else if err := reg.Register(bedrock); err != nil {
			log.Error(err, "register bedrock provider")
		}
	}
	if cfg.LangchainAPIKey != "" {
		lc, err := providers.NewLangchainOpenAI(cfg.LangchainAPIKey, cfg.LangchainBaseURL, cfg.LangchainModel)
		if err != nil {
			log.Error(err, "init langchain provider")
		} else if err := reg.Register(lc); err != nil {
			log.Error(err, "register langchain provider")
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
