// Package main - точка входа движка прогрессии LabSim.
//
// Движок отвечает за:
// - Оценивание отправленных заключений (scoring)
// - Достижения, XP и сертификаты (achievement)
// - Рейтинги соревнований (leaderboard)
// - Анализ поведения и тепловые карты ошибок (behavior)
// - Синхронизацию прогресса local → remote (progress)
//
// Вся прогрессия запускается событием "отправка оценена": достижения и XP
// никогда не обгоняют итоговую оценку.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/labsim-hub/labsim-progression-engine/config"
	"github.com/labsim-hub/labsim-progression-engine/internal/application/command"
	"github.com/labsim-hub/labsim-progression-engine/internal/application/eventhandler"
	"github.com/labsim-hub/labsim-progression-engine/internal/application/saga"
	"github.com/labsim-hub/labsim-progression-engine/internal/application/session"
	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
	"github.com/labsim-hub/labsim-progression-engine/internal/infrastructure/external/content"
	"github.com/labsim-hub/labsim-progression-engine/internal/infrastructure/messaging"
	"github.com/labsim-hub/labsim-progression-engine/internal/infrastructure/persistence/postgres"
	"github.com/labsim-hub/labsim-progression-engine/internal/infrastructure/persistence/redis"
	"github.com/labsim-hub/labsim-progression-engine/internal/infrastructure/scheduler"
	"github.com/labsim-hub/labsim-progression-engine/internal/infrastructure/scheduler/jobs"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting LabSim progression engine",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К БАЗЕ ДАННЫХ (удалённое хранилище)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("database connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. МИГРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ПОДКЛЮЧЕНИЕ К REDIS (локальное хранилище)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to Redis...")
	redisCfg := redis.DefaultConfig()
	if cfg.Redis.Host != "" {
		redisCfg.Host = cfg.Redis.Host
	}
	if cfg.Redis.Port != 0 {
		redisCfg.Port = cfg.Redis.Port
	}
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	if cfg.Redis.PoolSize > 0 {
		redisCfg.PoolSize = cfg.Redis.PoolSize
	}

	cache, err := redis.NewCache(redisCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer func() {
		log.Info("closing Redis connection...")
		_ = cache.Close()
	}()
	log.Info("Redis connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 6. РЕПОЗИТОРИИ И ХРАНИЛИЩА
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing repositories...")

	// Remote (Postgres)
	progressRepo := postgres.NewProgressRepository(dbConn)
	achievementRepo := postgres.NewAchievementRepository(dbConn)
	submissionRepo := postgres.NewSubmissionRepository(dbConn)
	behaviorRepo := postgres.NewBehaviorRepository(dbConn)
	leaderboardRepo := postgres.NewLeaderboardRepository(dbConn)

	// Local (Redis)
	snapshotStore := redis.NewSnapshotStore(cache)
	sessionTracker := redis.NewSessionTracker(cache)
	eventBuffer := redis.NewEventBuffer(cache)
	leaderboardCache := redis.NewLeaderboardCache(cache)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. EVENT BUS (Redis pub/sub поверх локальной шины)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing event bus...")
	busCfg := messaging.DefaultConfig()
	busCfg.Logger = log
	eventBus, err := messaging.NewRedisEventBus(cache, busCfg, log)
	if err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. КОМАНДЫ, СЕССИИ И САГА ЗАВЕРШЕНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("initializing application layer...")

	// Команду SubmitScore конструирует встраивающее приложение; отправки
	// вердиктов приходят в движок событиями через шину.
	recordBehavior := command.NewRecordBehaviorHandler(eventBuffer, behaviorRepo, cfg.Behavior.FlushThreshold)
	submitJudgment := command.NewSubmitJudgmentHandler(submissionRepo, eventBus)

	sessionCfg := session.DefaultConfig()
	sessionCfg.MaxBackups = cfg.Sync.MaxBackups
	sessionCfg.RemoteTimeout = cfg.Sync.RemoteTimeout
	sessions := session.NewManager(
		snapshotStore,
		progressRepo,
		sessionTracker,
		progressRepo,
		recordBehavior,
		eventBus,
		log,
		sessionCfg,
	)

	// Каталог контент-сервиса (сложность задач, базовый XP). Без него
	// сага использует значения по умолчанию.
	var taskCatalog eventhandler.TaskCatalog
	if cfg.Content.BaseURL != "" {
		contentCfg := content.DefaultClientConfig(cfg.Content.BaseURL)
		contentCfg.APIKey = cfg.Content.APIKey
		contentCfg.Timeout = cfg.Content.Timeout
		contentCfg.Debug = cfg.App.Debug
		taskCatalog = content.NewCatalog(content.NewClient(contentCfg))
		log.Info("content service client enabled", "base_url", cfg.Content.BaseURL)
	} else {
		log.Warn("content service is not configured, using default task metadata")
	}

	completionFlow := saga.NewCompletionFlow(
		achievementRepo, // grants
		achievementRepo, // certificates
		achievementRepo, // profiles
		progressRepo,    // streaks
		eventBus,
		cfg.Features,
	)
	onReceived := eventhandler.NewOnSubmissionReceived(submitJudgment, log)
	if err := eventBus.Subscribe(shared.EventSubmissionReceived, onReceived); err != nil {
		return fmt.Errorf("failed to subscribe submission handler: %w", err)
	}

	onScored := eventhandler.NewOnSubmissionScored(completionFlow, snapshotStore, taskCatalog, log)
	if err := eventBus.Subscribe(shared.EventSubmissionScored, onScored); err != nil {
		return fmt.Errorf("failed to subscribe completion flow: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ПЛАНИРОВЩИК ФОНОВЫХ ЗАДАЧ
	// ─────────────────────────────────────────────────────────────────────────
	schedCfg := scheduler.DefaultConfig()
	schedCfg.Logger = log
	if cfg.Scheduler.MaxConcurrentJobs > 0 {
		schedCfg.MaxConcurrentJobs = cfg.Scheduler.MaxConcurrentJobs
	}
	if cfg.Scheduler.JobTimeout > 0 {
		schedCfg.JobTimeout = cfg.Scheduler.JobTimeout
	}
	sched := scheduler.New(schedCfg)

	if cfg.Scheduler.Enabled {
		log.Info("registering background jobs...")

		autosave := jobs.NewAutosaveJob(sessions, log)
		if err := sched.Register(autosave, scheduler.NewIntervalSchedule(cfg.Sync.AutosaveInterval)); err != nil {
			return fmt.Errorf("failed to register autosave job: %w", err)
		}

		remoteSync := jobs.NewRemoteSyncJob(snapshotStore, progressRepo, sessionTracker, eventBus, log)
		if err := sched.Register(remoteSync, scheduler.NewIntervalSchedule(cfg.Sync.RemoteSyncInterval)); err != nil {
			return fmt.Errorf("failed to register remote sync job: %w", err)
		}

		refresh := jobs.NewRefreshLeaderboardJob(leaderboardRepo, leaderboardCache, eventBus, log)
		if err := sched.Register(refresh, scheduler.NewIntervalSchedule(cfg.Scheduler.LeaderboardRefreshInterval)); err != nil {
			return fmt.Errorf("failed to register leaderboard refresh job: %w", err)
		}

		cleanup := jobs.NewCleanupJob(behaviorRepo, jobs.DefaultEventRetention, log)
		if err := sched.Register(cleanup, scheduler.MustParseCron("0 3 * * *")); err != nil {
			return fmt.Errorf("failed to register cleanup job: %w", err)
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		log.Info("scheduler started",
			"autosave_interval", cfg.Sync.AutosaveInterval.String(),
			"remote_sync_interval", cfg.Sync.RemoteSyncInterval.String(),
		)
	} else {
		log.Warn("scheduler is disabled, progress will only sync on session end")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("LabSim progression engine is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	sig := <-sigCh
	log.Info("received shutdown signal", "signal", sig.String())
	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancelShutdown()

	if sched.IsRunning() {
		if err := sched.Stop(); err != nil {
			log.Error("scheduler stop failed", "error", err)
		}
	}

	// Terminal save + push for every open session. Errors are logged, not
	// fatal: the dirty flags keep unsynced progress recoverable.
	if err := sessions.EndAll(shutdownCtx); err != nil {
		log.Error("failed to end all sessions", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Observability.LogLevel {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" || cfg.App.Environment == config.EnvProduction {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
