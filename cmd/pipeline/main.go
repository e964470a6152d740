// cmd/pipeline/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"trendmint/internal/common/aws"
	"trendmint/internal/common/config"
	"trendmint/internal/common/database"
	"trendmint/internal/common/logger"
	"trendmint/internal/common/observability"
	"trendmint/internal/ledger"
	"trendmint/internal/models"
	"trendmint/internal/monitor"
	"trendmint/internal/originality"
	"trendmint/internal/pipeline"
	"trendmint/internal/platform"
	"trendmint/internal/pricing"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	manifestPath := flag.String("manifest", "", "path to the candidate manifest JSON")
	configPath := flag.String("config", "", "config file path (defaults to configs/config.yaml)")
	flag.Parse()

	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting publishing pipeline...")

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	if *manifestPath == "" {
		zapLog.Fatal("missing required -manifest flag")
	}

	obs := observability.New("publishing-pipeline")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Audit Ledger ---
	audit, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		zapLog.Fatal("ledger open failed", zap.Error(err))
	}
	defer audit.Close()
	zapLog.Info("Audit ledger opened", zap.String("path", cfg.Ledger.Path))

	// --- Compliance Collaborators ---
	searcher := originality.NewTinEyeClient(
		cfg.Originality.BaseURL,
		cfg.Originality.APIKey,
		config.GetDuration(cfg.Originality.Timeout),
	)
	gate := originality.NewGate(searcher, redis.GetClient(), config.GetDuration(cfg.Originality.CacheTTL), log)

	var trademark pipeline.TrademarkChecker
	if cfg.Trademark.Enabled {
		trademark = originality.NewTrademarkScreen(
			cfg.Trademark.Enabled,
			cfg.Trademark.BaseURL,
			cfg.Trademark.APIKey,
			config.GetDuration(cfg.Trademark.Timeout),
		)
	}

	// --- Pricing ---
	salesStore := pricing.NewSalesStore(pg.GetDB(), log)
	engine := pricing.NewEngine(salesStore, log)

	// --- Platform Adapters ---
	uploadTimeout := config.GetDuration(cfg.Pipeline.UploadTimeout)
	registry := platform.NewRegistry()
	for name, pcfg := range cfg.Platforms {
		if !pcfg.Enabled {
			continue
		}
		switch name {
		case platform.TargetOpenSea:
			registry.Register(platform.NewOpenSeaAdapter(pcfg, uploadTimeout, log))
		case platform.TargetShutterstock:
			registry.Register(platform.NewShutterstockAdapter(pcfg, uploadTimeout, log))
		case platform.TargetAdobeStock:
			registry.Register(platform.NewAdobeStockAdapter(pcfg, uploadTimeout, log))
		default:
			zapLog.Fatal("unknown platform in config", zap.String("platform", name))
		}
	}

	// --- Orchestrator ---
	orch, err := pipeline.New(cfg.Pipeline, pipeline.Deps{
		Gate:      gate,
		Trademark: trademark,
		Pricer:    engine,
		Registry:  registry,
		Platforms: cfg.Platforms,
		Ledger:    audit,
		Logger:    log,
	})
	if err != nil {
		zapLog.Fatal("orchestrator init failed", zap.Error(err))
	}
	zapLog.Info("Orchestrator ready", zap.Strings("targets", orch.Targets()))

	// --- Takedown Monitor ---
	var takedowns *monitor.Monitor
	if cfg.Monitor.Enabled {
		var email monitor.EmailSender
		var topic monitor.TopicPublisher
		if sesClient, err := aws.NewSESClient(ctx, cfg.Monitor.AWSRegion); err != nil {
			zapLog.Warn("SES client unavailable, legal emails disabled", zap.Error(err))
		} else {
			email = sesClient
		}
		if snsClient, err := aws.NewSNSClient(ctx, cfg.Monitor.AWSRegion); err != nil {
			zapLog.Warn("SNS client unavailable, legal alerts disabled", zap.Error(err))
		} else {
			topic = snsClient
		}

		var sources []monitor.NoticeSource
		for name, pcfg := range cfg.Platforms {
			if !pcfg.Enabled {
				continue
			}
			sources = append(sources, monitor.NewHTTPNoticeSource(name, pcfg.UploadURL, pcfg.APIKey, uploadTimeout))
		}

		takedowns = monitor.New(cfg.Monitor, sources, audit, email, topic, log)
		takedowns.Start(ctx)
		defer takedowns.Stop()
		zapLog.Info("Takedown monitor started")
	}

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Load Candidate Manifest ---
	candidates, invalid, err := models.LoadManifest(*manifestPath)
	if err != nil {
		zapLog.Fatal("manifest load failed", zap.Error(err))
	}
	for _, row := range invalid {
		var partial struct {
			Keyword string `json:"keyword"`
		}
		_ = json.Unmarshal(row, &partial)
		if err := audit.Append(ledger.Record{
			Type:    ledger.RecordInvalidRow,
			Keyword: partial.Keyword,
			Payload: map[string]interface{}{"raw": string(row)},
		}); err != nil {
			zapLog.Fatal("ledger append failed", zap.Error(err))
		}
	}
	zapLog.Info("Manifest loaded",
		zap.Int("candidates", len(candidates)),
		zap.Int("invalidRows", len(invalid)),
	)

	// --- Run, stopping gracefully on SIGINT/SIGTERM ---
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcomes, runErr := orch.Run(runCtx, candidates)

	published, rejected, failed := 0, 0, 0
	for _, out := range outcomes {
		obs.RecordCandidateProcessed(ctx, string(out.State))
		switch out.State {
		case pipeline.StatePublished:
			published++
		case pipeline.StateRejected:
			rejected++
		case pipeline.StateFailed:
			failed++
		}
	}
	zapLog.Info("Run complete",
		zap.Int("published", published),
		zap.Int("rejected", rejected),
		zap.Int("failed", failed),
	)

	for keyword, report := range audit.ReportByKeyword() {
		zapLog.Info("Revenue report",
			zap.String("keyword", keyword),
			zap.Float64("totalRevenue", report.TotalRevenue),
			zap.Int("listings", report.Count),
		)
	}

	if runErr != nil {
		zapLog.Fatal("pipeline aborted", zap.Error(runErr))
	}
	zapLog.Info("Pipeline stopped gracefully")
}
