package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/ILLUVRSE/pizza-rewards/internal/analytics"
	"github.com/ILLUVRSE/pizza-rewards/internal/auth"
	"github.com/ILLUVRSE/pizza-rewards/internal/config"
	"github.com/ILLUVRSE/pizza-rewards/internal/coupon"
	"github.com/ILLUVRSE/pizza-rewards/internal/evaluator"
	"github.com/ILLUVRSE/pizza-rewards/internal/health"
	"github.com/ILLUVRSE/pizza-rewards/internal/httpserver"
	"github.com/ILLUVRSE/pizza-rewards/internal/models"
	"github.com/ILLUVRSE/pizza-rewards/internal/scoring"
	"github.com/ILLUVRSE/pizza-rewards/internal/service"
	"github.com/ILLUVRSE/pizza-rewards/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	remotes := buildRemotes(cfg)
	static := models.ProviderTier{Name: "static-rules", Kind: models.ProviderDeterministicStatic, MaxAttempts: 1}
	tiers := []models.ProviderTier{static}
	for _, p := range remotes {
		tiers = append(tiers, p.Tier)
	}
	tracker := health.NewTracker(cfg.FailureThreshold, cfg.RecoveryPolicy, tiers...)
	eval, err := evaluator.New(evaluator.Config{
		MinStoryLength: cfg.MinStoryLength,
		RequestBudget:  cfg.RequestBudget,
	}, tracker, remotes, static)
	if err != nil {
		log.Fatalf("evaluator init: %v", err)
	}
	for _, t := range eval.Tiers() {
		log.Printf("[startup] provider tier %s (%s)", t.Name, t.Kind)
	}

	ledger, err := openLedger(ctx, cfg)
	if err != nil {
		log.Fatalf("ledger init: %v", err)
	}
	defer ledger.Close()

	dispatcher := analytics.NewDispatcher(analytics.DispatcherConfig{Buffer: cfg.AnalyticsBuffer}, buildSinks(ctx, cfg)...)

	vendors, err := auth.NewVendorVerifier(cfg.VendorJWTSecret, cfg.AllowDevVendor)
	if err != nil {
		log.Fatalf("vendor auth init: %v", err)
	}

	svc := service.New(cfg.ConferenceID, eval, coupon.NewIssuer(ledger), tracker, dispatcher)
	server := httpserver.New(svc, ledger, vendors, dispatcher, cfg.RequestBudget+5*time.Second)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("[startup] rewards service for %s listening on %s", cfg.ConferenceID, cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	waitForShutdown(cancel, httpServer, dispatcher)
}

func buildRemotes(cfg config.Config) []evaluator.Provider {
	var remotes []evaluator.Provider
	add := func(name string, kind models.ProviderKind, sc config.ScorerConfig) {
		if sc.URL == "" {
			return
		}
		scorer, err := scoring.NewHTTPScorer(scoring.HTTPScorerConfig{
			BaseURL: sc.URL,
			Model:   sc.Model,
			APIKey:  sc.APIKey,
		})
		if err != nil {
			log.Fatalf("scorer %s init: %v", name, err)
		}
		remotes = append(remotes, evaluator.Provider{
			Tier: models.ProviderTier{
				Name:              name,
				Kind:              kind,
				MaxAttempts:       cfg.ScorerAttempts,
				PerAttemptTimeout: cfg.ScorerTimeout,
				InterAttemptDelay: cfg.ScorerRetryDelay,
			},
			Scorer: scorer,
		})
	}
	add("primary-ai", models.ProviderRemotePrimary, cfg.PrimaryScorer)
	add("secondary-ai", models.ProviderRemoteSecondary, cfg.SecondaryScorer)
	if len(remotes) == 0 {
		log.Printf("[startup] no scorer URLs configured, static rules only")
	}
	return remotes
}

func openLedger(ctx context.Context, cfg config.Config) (store.LedgerStore, error) {
	switch {
	case cfg.DatabaseURL != "":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, err
		}
		log.Printf("[startup] using postgres ledger")
		l, err := store.NewPGLedger(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return l, nil
	case cfg.BoltPath != "":
		log.Printf("[startup] using bolt ledger at %s", cfg.BoltPath)
		return store.OpenBoltLedger(cfg.BoltPath)
	default:
		log.Printf("[startup] using in-memory ledger; coupons are lost on restart")
		return store.NewMemoryLedger(), nil
	}
}

func buildSinks(ctx context.Context, cfg config.Config) []analytics.Sink {
	var sinks []analytics.Sink
	if len(cfg.KafkaBrokers) > 0 {
		k, err := analytics.NewKafkaSink(analytics.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
		if err != nil {
			log.Fatalf("kafka sink init: %v", err)
		}
		log.Printf("[startup] analytics to kafka topic %s", cfg.KafkaTopic)
		sinks = append(sinks, k)
	}
	if cfg.S3Bucket != "" {
		s, err := analytics.NewS3Sink(ctx, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			log.Fatalf("s3 sink init: %v", err)
		}
		log.Printf("[startup] analytics archived to s3://%s/%s", cfg.S3Bucket, cfg.S3Prefix)
		sinks = append(sinks, s)
	}
	if len(sinks) == 0 {
		sinks = append(sinks, analytics.NewLogSink(nil))
	}
	return sinks
}

func waitForShutdown(cancel context.CancelFunc, srv *http.Server, dispatcher *analytics.Dispatcher) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancel()
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	if err := dispatcher.Close(ctx); err != nil {
		log.Printf("analytics drain incomplete: %v", err)
	}
}
