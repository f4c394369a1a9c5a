package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"placement_backend/internal/config"
	"placement_backend/internal/controller"
	"placement_backend/internal/placement"
	"placement_backend/internal/repository"
	"placement_backend/internal/service"
	"placement_backend/pkg/configwatcher"
	"placement_backend/pkg/database"
	"placement_backend/pkg/logger"
	"placement_backend/pkg/monitoring"
	"placement_backend/pkg/security"
	"placement_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config     *config.Config
	ConfigFile string
	Router     *gin.Engine
	DB         *gorm.DB
	Redis      *redis.Client

	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	placement *repository.PlacementRepository
	cache     *repository.PlacementCache
}

type services struct {
	placement      *service.PlacementService
	placementAdmin *service.PlacementAdminService
}

type controllers struct {
	placement      *controller.PlacementController
	placementAdmin *controller.PlacementAdminController
	health         *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) applyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *repositories {
	return &repositories{
		placement: repository.NewPlacementRepository(db),
		cache:     repository.NewPlacementCache(rdb, cfg.Placement.CacheTTL()),
	}
}

func (a *App) initServices(repos *repositories) (*services, error) {
	evaluator, err := placement.NewEvaluator(placement.DefaultRules)
	if err != nil {
		return nil, err
	}
	return &services{
		placement:      service.NewPlacementService(repos.placement, repos.cache, evaluator),
		placementAdmin: service.NewPlacementAdminService(repos.placement, repos.cache),
	}, nil
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		placement:      controller.NewPlacementController(s.placement),
		placementAdmin: controller.NewPlacementAdminController(s.placementAdmin),
		health:         controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// New assembles the application on top of already opened connections. rdb
// may be nil, which disables the snapshot cache.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*App, error) {
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, rdb, cfg)
	svcs, err := app.initServices(repos)
	if err != nil {
		return nil, err
	}
	app.services = svcs
	ctrls := app.initControllers(svcs, db, rdb)

	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, ctrls, cfg)

	app.RegisterConfigCallback(func(c *config.Config) {
		logger.SetLevel(logger.LevelFor(c))
	})
	return app, nil
}

// NewApp opens every connection described by cfg and builds the application.
// Startup failures are fatal.
func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	// 非 release 模式或显式指定时执行迁移
	if cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app, err := New(cfg, db, rdb)
	if err != nil {
		logger.Log.Fatal("Failed to build application", zap.Error(err))
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("placement-service", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}
	return app
}

// startBackgroundTasks publishes scheduled tests until ctx is cancelled.
func (a *App) startBackgroundTasks(ctx context.Context) {
	interval := a.Config.Placement.SchedulerInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := a.services.placementAdmin.ProcessScheduledPublishes(ctx)
				if err != nil {
					logger.Log.Error("scheduled publish error", zap.Error(err))
					continue
				}
				if n > 0 {
					logger.Log.Info("scheduled placement tests published", zap.Int("count", n))
				}
			}
		}
	}()
}

func (a *App) watchConfig(ctx context.Context) {
	if a.ConfigFile == "" {
		return
	}
	go func() {
		if err := configwatcher.WatchConfig(ctx, a.ConfigFile, a.applyConfig); err != nil {
			logger.Log.Error("Config watcher stopped", zap.String("file", filepath.Clean(a.ConfigFile)), zap.Error(err))
		}
	}()
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	a.startBackgroundTasks(ctx)
	a.watchConfig(ctx)

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Log.Info("Server exiting")
}
