package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"gawangliliw/sellerhub/internal/api"
	"gawangliliw/sellerhub/internal/cache"
	"gawangliliw/sellerhub/internal/config"
	"gawangliliw/sellerhub/internal/db"
	"gawangliliw/sellerhub/internal/logger"
	"gawangliliw/sellerhub/internal/metrics"
	"gawangliliw/sellerhub/internal/realtime"
	"gawangliliw/sellerhub/internal/storage"
	"gawangliliw/sellerhub/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'all' (default)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialise logger: %v", err)
	}
	defer logger.Sync()
	lg := logger.Log

	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		lg.Fatal("mongo_connect_failed", zap.Error(err))
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			lg.Warn("mongo_disconnect_failed", zap.Error(err))
		}
	}()
	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(indexCtx, mongoDb); err != nil {
		lg.Fatal("mongo_indexes_failed", zap.Error(err))
	}
	cancelIndex()

	redisClient, err := cache.ConnectRedis(cfg)
	if err != nil {
		lg.Fatal("redis_connect_failed", zap.Error(err))
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			lg.Warn("redis_disconnect_failed", zap.Error(err))
		}
	}()

	files, err := storage.NewS3Storage(context.Background(), cfg)
	if err != nil {
		lg.Fatal("s3_init_failed", zap.Error(err))
	}

	m := metrics.New()
	live := realtime.NewManager(realtime.NewMongoSource(mongoDb), m)

	svc, err := api.NewServices(cfg, mongoDb, cache.NewStore(redisClient), files, live, m)
	if err != nil {
		lg.Fatal("services_init_failed", zap.Error(err))
	}

	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()
	inspector := tasks.NewInspector(redisClient)
	defer inspector.Close()
	lookup := func(taskID string) (*tasks.ReportState, error) {
		return tasks.LookupReport(inspector, taskID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	shutdownChan := make(chan struct{}, 1)

	// The service API runs in every mode.
	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(cfg, svc.Account, m, shutdownChan),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		lg.Info("service_api_listening", zap.String("port", cfg.ServiceApiPort))
		if err := serviceSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatal("service_api_failed", zap.Error(err))
		}
	}()

	var mainApiSrv *http.Server
	var taskSrv *asynq.Server
	var scheduler *asynq.Scheduler

	lg.Info("starting", zap.String("mode", cfg.RunMode), zap.String("app", cfg.AppName))

	apiMode := func() {
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: api.SetupRouter(ctx, cfg, svc, taskClient, lookup, m),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			lg.Info("main_api_listening", zap.String("port", cfg.ApiPort))
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				lg.Fatal("main_api_failed", zap.Error(err))
			}
		}()
	}

	bgMode := func() {
		processor := tasks.NewTaskProcessor(cfg, files, svc.Dashboard, svc.Promotions, m)
		taskSrv = tasks.NewServer(redisClient)
		if err := taskSrv.Start(processor.Mux()); err != nil {
			lg.Fatal("task_server_failed", zap.Error(err))
		}
		scheduler, err = tasks.NewScheduler(redisClient, cfg)
		if err != nil {
			lg.Fatal("scheduler_init_failed", zap.Error(err))
		}
		if err := scheduler.Start(); err != nil {
			lg.Fatal("scheduler_start_failed", zap.Error(err))
		}
		if next, err := tasks.NextRun(cfg.PromoRefreshCron, time.Now().In(cfg.Location())); err == nil {
			lg.Info("promo_refresh_scheduled", zap.String("cron", cfg.PromoRefreshCron), zap.Time("next_run", next))
		}
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "all":
		apiMode()
		bgMode()
	default:
		lg.Fatal("invalid_run_mode", zap.String("mode", cfg.RunMode))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		lg.Info("shutdown_signal", zap.String("signal", sig.String()))
	case <-shutdownChan:
		lg.Info("shutdown_requested")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	// Live streams hold requests open; close them before draining HTTP.
	live.Close()
	cancel()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		lg.Warn("service_api_shutdown_failed", zap.Error(err))
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			lg.Warn("main_api_shutdown_failed", zap.Error(err))
		}
	}
	if scheduler != nil {
		scheduler.Shutdown()
	}
	if taskSrv != nil {
		taskSrv.Shutdown()
	}

	wg.Wait()
	lg.Info("stopped")
}
