package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Freeeeeet/lesson_scheduler/internal/app"
	"github.com/Freeeeeet/lesson_scheduler/internal/config"
	"github.com/Freeeeeet/lesson_scheduler/internal/controller"
	"github.com/Freeeeeet/lesson_scheduler/internal/controller/handlers"
	"github.com/Freeeeeet/lesson_scheduler/internal/events"
	"github.com/Freeeeeet/lesson_scheduler/internal/lock"
	"github.com/Freeeeeet/lesson_scheduler/internal/observability"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository"
	"github.com/Freeeeeet/lesson_scheduler/internal/scheduling"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, _ := app.NewLogger(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Environment, cfg.Release)
	if err != nil {
		logger.Warn("Sentry disabled", zap.Error(err))
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		observability.CaptureErr(err)
		logger.Error("Scheduler stopped with error", zap.Error(err))
		flush()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting lesson scheduler",
		zap.String("environment", cfg.Environment),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("schedule_tz", cfg.ScheduleTZ))

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	if cfg.AutoMigrate {
		migrator, err := app.NewMigrator(pool, logger)
		if err != nil {
			return err
		}
		err = migrator.Run(ctx)
		_ = migrator.Close()
		if err != nil {
			return err
		}
	}

	// Блокировки и события: Redis, если настроен, иначе в памяти процесса
	var (
		locker    lock.Locker = lock.NewKeyedMutex()
		publisher events.Publisher
	)
	logPublisher := events.NewLogPublisher(logger)
	publisher = logPublisher

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		locker = lock.NewRedisLocker(rdb, cfg.LockTTL, logger)
		publisher = events.Multi{logPublisher, events.NewRedisPublisher(rdb, cfg.RedisEventsChannel)}
		logger.Info("Using Redis for locks and events", zap.String("addr", cfg.RedisAddr))
	}

	// Репозитории
	lessonRepo := repository.NewLessonRepository(pool, logger)
	seriesRepo := repository.NewSeriesRepository(pool)
	availabilityRepo := repository.NewAvailabilityRepository(pool, logger)
	holidayRepo := repository.NewHolidayRepository(pool)
	courseRepo := repository.NewCourseRepository(pool, logger)

	// Сервисы
	resolver := scheduling.NewResolver(cfg.Location())
	availabilityService := service.NewAvailabilityService(availabilityRepo, holidayRepo, lessonRepo, resolver, cfg.DBTimeout, logger)
	lessonService := service.NewLessonService(lessonRepo, availabilityService, locker, publisher, cfg.DBTimeout, logger)
	seriesService := service.NewSeriesService(seriesRepo, lessonRepo, availabilityService, locker, publisher, cfg.DBTimeout, logger)
	holidayService := service.NewHolidayService(holidayRepo, cfg.DBTimeout, logger)
	enrollmentService := service.NewEnrollmentService(courseRepo, publisher, cfg.DBTimeout, logger)

	h := handlers.NewHandlers(lessonService, seriesService, availabilityService, holidayService, enrollmentService, pool, logger)
	server := app.NewHTTPServer(cfg.HTTPAddr, controller.NewRouter(h), logger)

	if err := server.Run(ctx); err != nil {
		return err
	}
	logger.Info("Scheduler stopped")
	return nil
}
