package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/claimscortex/internal/claims/application"
	"github.com/wyfcoding/claimscortex/internal/claims/domain"
	"github.com/wyfcoding/claimscortex/internal/claims/infrastructure/client"
	"github.com/wyfcoding/claimscortex/internal/claims/infrastructure/messaging"
	"github.com/wyfcoding/claimscortex/internal/claims/infrastructure/persistence"
	claimshttp "github.com/wyfcoding/claimscortex/internal/claims/interfaces/http"
	"github.com/wyfcoding/claimscortex/pkg/config"
	"github.com/wyfcoding/claimscortex/pkg/db"
	"github.com/wyfcoding/claimscortex/pkg/idgen"
	"github.com/wyfcoding/claimscortex/pkg/logger"
	"github.com/wyfcoding/claimscortex/pkg/metrics"
	"github.com/wyfcoding/claimscortex/pkg/middleware"
	"github.com/wyfcoding/claimscortex/pkg/mq"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/claims/config.toml", "path to config file")
	flag.Parse()

	// 1. Config
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("load config failed: %v", err))
	}

	// 2. Logger
	if err := logger.Init(cfg.Logger); err != nil {
		panic(fmt.Sprintf("init logger failed: %v", err))
	}
	ctx := context.Background()
	logger.Info(ctx, "Starting claims service",
		"service", cfg.ServiceName, "version", cfg.Version, "environment", cfg.Environment)

	// 3. Database
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to connect to database", "error", err)
	}
	defer database.Close()

	if err := database.AutoMigrate(
		&domain.Claim{},
		&domain.FraudScore{},
		&domain.ValidationResult{},
		&domain.AgentTask{},
		&domain.Decision{},
		&domain.AuditEvent{},
		&messaging.OutboxMessage{},
	); err != nil {
		logger.Fatal(ctx, "Failed to migrate database", "error", err)
	}

	// 4. Metrics
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.ServiceName)
		if err := m.Register(); err != nil {
			logger.Fatal(ctx, "Failed to register metrics", "error", err)
		}
	}

	// 5. Infrastructure
	repo := persistence.NewClaimRepository(database)

	aiClient := client.NewAIClient(client.AIClientConfig{
		Endpoint:        cfg.AI.Endpoint,
		Timeout:         time.Duration(cfg.AI.Timeout) * time.Millisecond,
		BreakerFailures: uint32(cfg.AI.BreakerFailures),
		BreakerTimeout:  time.Duration(cfg.AI.BreakerTimeout) * time.Second,
	})
	policyClient := client.NewPolicyClient(client.PolicyClientConfig{
		Endpoint: cfg.PolicyStore.Endpoint,
		Timeout:  time.Duration(cfg.PolicyStore.Timeout) * time.Millisecond,
	})

	var (
		publisher domain.EventPublisher
		relay     *messaging.Relay
		producer  *mq.KafkaProducer
	)
	if cfg.Kafka.Enabled {
		producer, err = mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			logger.Fatal(ctx, "Failed to create kafka producer", "error", err)
		}
		defer producer.Close()

		publisher = messaging.NewOutboxEventPublisher(database, cfg.Kafka.DecisionTopic)
		relay = messaging.NewRelay(database, producer,
			time.Duration(cfg.Kafka.RelayInterval)*time.Millisecond)
	}

	// 6. Application
	scoring := domain.ScoringPolicy{
		InjuryWeight:       cfg.Scoring.InjuryWeight,
		PropertyWeight:     cfg.Scoring.PropertyWeight,
		DescriptionWeight:  cfg.Scoring.DescriptionWeight,
		CompletenessWeight: cfg.Scoring.CompletenessWeight,
		DescriptionLength:  cfg.Scoring.DescriptionLength,
		StructuralBlend:    cfg.Scoring.StructuralBlend,
		AIBlend:            cfg.Scoring.AIBlend,
		MediumScore:        cfg.Scoring.MediumScore,
		HighScore:          cfg.Scoring.HighScore,
		BaseConfidence:     cfg.Scoring.BaseConfidence,
		FallbackConfidence: cfg.Scoring.FallbackConfidence,
	}
	workflow := application.WorkflowSettings{
		StageTimeout:   time.Duration(cfg.Workflow.StageTimeout) * time.Millisecond,
		MaxAttempts:    cfg.Workflow.MaxAttempts,
		BackoffInitial: time.Duration(cfg.Workflow.BackoffInitial) * time.Millisecond,
		BackoffMax:     time.Duration(cfg.Workflow.BackoffMax) * time.Millisecond,
	}
	claimService := application.NewClaimService(
		repo, policyClient, aiClient, publisher, m, scoring, workflow, idgen.New(1))

	// 7. Interfaces
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery(), middleware.Logging(), middleware.CORS())
	if m != nil {
		router.Use(middleware.Metrics(m))
		router.GET(cfg.Metrics.Path, metrics.Handler())
	}

	handler := claimshttp.NewClaimHandler(claimService, cfg.ServiceName, cfg.Version)
	handler.RegisterRoutes(router)

	// 8. Start
	rootCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		logger.Info(gctx, "HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if relay != nil {
		g.Go(func() error {
			logger.Info(gctx, "Outbox relay started", "topic", cfg.Kafka.DecisionTopic)
			if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info(ctx, "Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal(ctx, "Service exited with error", "error", err)
	}
	logger.Info(ctx, "Service stopped")
}
