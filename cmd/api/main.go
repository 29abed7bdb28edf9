package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/api"
	"github.com/saturnino-fabrica-de-software/ponto/internal/attendance"
	"github.com/saturnino-fabrica-de-software/ponto/internal/config"
	"github.com/saturnino-fabrica-de-software/ponto/internal/database"
	"github.com/saturnino-fabrica-de-software/ponto/internal/geofence"
	"github.com/saturnino-fabrica-de-software/ponto/internal/maintenance"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/ponto/internal/provider/rekognition"
	"github.com/saturnino-fabrica-de-software/ponto/internal/reference"
	"github.com/saturnino-fabrica-de-software/ponto/internal/repository"
	"github.com/saturnino-fabrica-de-software/ponto/internal/service"
	"github.com/saturnino-fabrica-de-software/ponto/internal/verification"
	"github.com/saturnino-fabrica-de-software/ponto/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting Ponto gate",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
		slog.String("provider", cfg.ProviderType),
		slog.String("face_gate", cfg.FaceGate),
	)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := database.NewPgxPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	references := repository.NewReferenceRepository(pool)
	attempts := repository.NewAttemptRepository(pool)

	// Face provider
	source, err := newDescriptorSource(ctx, cfg)
	if err != nil {
		return err
	}

	resolver := reference.NewResolver(source, references, reference.Config{
		CacheTTL: cfg.ReferenceCacheTTL,
	}, logger)

	attendanceCfg := attendance.DefaultConfig()
	attendanceCfg.BaseURL = cfg.AttendanceURL
	attendanceCfg.Token = cfg.AttendanceToken
	attendanceCfg.Timeout = cfg.AttendanceTimeout
	attendanceClient := attendance.NewClient(attendanceCfg)

	// Verification sessions publish to the WebSocket hub
	hub := ws.NewHub()

	verifyCfg := verification.DefaultConfig()
	verifyCfg.SampleInterval = cfg.SampleInterval
	verifyCfg.RequiredStreak = cfg.RequiredStreak
	verifyCfg.Threshold = cfg.MatchThreshold
	verifyCfg.FailCountdown = cfg.FailCountdown
	verifyCfg.SuccessCloseDelay = cfg.SuccessCloseDelay

	manager := verification.NewManager(ctx, verification.Dependencies{
		References: resolver,
		Source:     source,
		Marker:     attendanceClient,
		Attempts:   attempts,
		Logger:     logger,
	}, verifyCfg, verification.ManagerOptions{
		Publish:         hub.PublishSnapshot,
		OnSuccess:       hub.PublishOutcome,
		FrameStaleAfter: 2 * time.Second,
		SnapshotTimeout: 3 * time.Second,
	})

	shiftLocation, err := cfg.ShiftLocation()
	if err != nil {
		return err
	}
	punches := service.NewAttendanceService(attendanceClient, manager, geofence.NewResolver(logger), shiftLocation, logger)

	// Background maintenance
	maintenanceCfg := maintenance.DefaultConfig()
	maintenanceCfg.ReferenceTTL = cfg.ReferenceCacheTTL
	maintenanceCfg.AttemptRetention = cfg.AttemptRetention
	worker := maintenance.NewWorker(references, attempts, manager, maintenanceCfg, logger)
	if err := worker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start maintenance: %w", err)
	}

	// Setup router
	router := api.NewRouter(logger, &api.Dependencies{
		Sessions:      api.NewSessions(manager),
		Attendance:    punches,
		Hub:           hub,
		DB:            pool,
		GateKeyHashes: cfg.GateAPIKeys,
		FrameRate:     cfg.FrameRateLimit,
		SessionCount:  manager.Count,
	})
	router.Setup()

	if len(cfg.GateAPIKeys) == 0 {
		logger.Warn("GATE_API_KEYS is empty, every /v1 request will be rejected")
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Info("server listening", slog.String("addr", addr))
		if err := router.Listen(addr); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("shutting down server...")
	worker.Stop()
	manager.Shutdown()
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	logger.Info("server stopped")

	return nil
}

func newDescriptorSource(ctx context.Context, cfg *config.Config) (provider.DescriptorSource, error) {
	var source provider.DescriptorSource
	switch cfg.ProviderType {
	case "mock":
		source = mock.New()
	default:
		dfCfg := deepface.DefaultConfig()
		dfCfg.BaseURL = cfg.DeepFaceURL
		dfCfg.Model = cfg.DeepFaceModel
		source = deepface.NewSource(dfCfg)
	}

	if cfg.FaceGate != "rekognition" {
		return source, nil
	}

	rekCfg := rekognition.DefaultConfig()
	rekCfg.Region = cfg.AWSRegion
	detector, err := rekognition.NewAPI(ctx, rekCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create rekognition client: %w", err)
	}

	return provider.NewGated(rekognition.NewCounter(detector, rekCfg), source), nil
}
