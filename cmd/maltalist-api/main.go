// Точка входа Maltalist API — доски объявлений с конвейером
// санитизации загружаемых картинок.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/maltalist/maltalist-api/internal/api/handlers"
	"github.com/maltalist/maltalist-api/internal/api/middleware"
	"github.com/maltalist/maltalist-api/internal/config"
	"github.com/maltalist/maltalist-api/internal/database"
	"github.com/maltalist/maltalist-api/internal/repository"
	"github.com/maltalist/maltalist-api/internal/server"
	"github.com/maltalist/maltalist-api/internal/service"
	"github.com/maltalist/maltalist-api/internal/storage/picstore"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Maltalist API запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("pictures_dir", cfg.PicturesDir),
	)

	// --- Инициализация компонентов ---

	ctx := context.Background()

	// 1. Миграции и подключение к PostgreSQL
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграции БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к БД", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 2. Файловое хранилище картинок
	store, err := picstore.New(cfg.PicturesDir, cfg.PicturesURLPrefix, logger)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища картинок", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. Репозитории
	listingRepo := repository.NewListingRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	reportRepo := repository.NewReportRepository(pool)
	promotionRepo := repository.NewPromotionRepository(pool)

	// 4. Сервисы
	cache := service.NewPictureURLCache(cfg.CacheSize, cfg.CacheTTL)
	picturesSvc := service.NewPicturesService(store, cache, listingRepo, userRepo, logger)
	listingsSvc := service.NewListingsService(listingRepo, picturesSvc, logger)
	usersSvc := service.NewUsersService(userRepo, listingRepo, picturesSvc, logger)
	reportsSvc := service.NewReportsService(reportRepo, listingRepo, logger)
	promotionsSvc := service.NewPromotionsService(promotionRepo, listingRepo, logger)

	// 5. Фоновые процессы

	// 5.1 Очистка истёкших продвижений
	purger := service.NewPromoPurger(promotionsSvc, cfg.PromoPurgeInterval, logger)
	purger.Start(ctx)

	// 5.2 Сверка картинок на диске с БД (orphan-директории)
	reconciler := service.NewReconcileService(store, cache, listingRepo, userRepo, cfg.ReconcileInterval, logger)
	reconciler.Start(ctx)

	// 5.3 topologymetrics — мониторинг зависимостей
	sqlDB := stdlib.OpenDBFromPool(pool)
	pgConnURL := fmt.Sprintf("postgres://%s:%d/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		cfg.DephealthName,
		cfg.DephealthGroup,
		sqlDB,
		pgConnURL,
		cfg.JWKSUrl,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 6. Handlers
	apiHandler := handlers.NewAPIHandler(
		handlers.NewListingsHandler(listingsSvc),
		handlers.NewPicturesHandler(picturesSvc),
		handlers.NewUsersHandler(usersSvc),
		handlers.NewReportsHandler(reportsSvc),
		handlers.NewPromotionsHandler(promotionsSvc),
		handlers.NewHealthHandler(cfg.PicturesDir, database.NewReadinessChecker(pool)),
		handlers.NewMaintenanceHandler(reconciler),
	)

	// 7. JWT middleware
	var jwtAuth *middleware.JWTAuth
	jwtMiddleware, err := middleware.NewJWTAuth(middleware.JWTAuthConfig{
		JWKSURL:         cfg.JWKSUrl,
		CACertPath:      cfg.JWKSCACert,
		TLSSkipVerify:   cfg.JWKSTLSSkipVerify,
		ClientTimeout:   10 * time.Second,
		RefreshInterval: time.Hour,
		JWTLeeway:       30 * time.Second,
	}, logger)
	if err != nil {
		// JWT недоступен — запускаем без аутентификации (для разработки)
		logger.Warn("JWT JWKS недоступен, запуск без аутентификации",
			slog.String("jwks_url", cfg.JWKSUrl),
			slog.String("error", err.Error()),
		)
	} else {
		jwtAuth = jwtMiddleware
		defer jwtAuth.Close()
		logger.Info("JWT аутентификация настроена",
			slog.String("jwks_url", cfg.JWKSUrl),
		)
	}

	// 8. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	purger.Stop()
	reconciler.Stop()
	if dephealthErr == nil && dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Maltalist API остановлен")
}
