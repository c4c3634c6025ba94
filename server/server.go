package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"trackstyler/cache"
	"trackstyler/config"
	"trackstyler/core/convert"
	"trackstyler/core/engine"
	"trackstyler/core/telemetry"
	"trackstyler/logger"
	"trackstyler/storage"
)

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	// 设置服务器超时
	httpServer := &http.Server{
		Addr:        cfg.ServerAddr,
		ReadTimeout: 10 * time.Minute, // uploads and conversions move large files
		IdleTimeout: 120 * time.Second,
	}

	// Optional probe cache. A missing Redis only costs re-probing, so the
	// server degrades instead of refusing to start.
	var probeCache convert.ProbeCache
	if cfg.RedisEnabled {
		if err := cache.ConnectRedis(cfg); err != nil {
			logger.Warn("redis unavailable, probe results will not be cached", logger.ErrorField(err))
		} else {
			defer cache.CloseRedis()
			probeCache = cache.NewProbeCache()
			logger.Info("connected to redis")
		}
	}

	// 初始化 MinIO 客户端 (optional conversion archive)
	if cfg.MinioEnabled {
		if err := storage.InitMinio(cfg); err != nil {
			logger.Warn("minio unavailable, conversions will not be archived", logger.ErrorField(err))
		} else {
			logger.Info("connected to minio", logger.String("bucket", cfg.MinioBucket))
		}
	}

	ffmpeg := engine.NewFFmpeg(cfg.FFmpegPath, cfg.FFprobePath, cfg.EngineWorkDir)
	session := engine.NewSession(ffmpeg)

	// Warm the engine so the first upload does not pay the load cost.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := session.EnsureLoaded(ctx); err != nil {
			logger.Error("engine failed to load", logger.ErrorField(err))
		} else {
			logger.Info("engine loaded", logger.String("workDir", cfg.EngineWorkDir))
		}
	}()

	store := NewTrackStore()
	preparer := convert.NewPreparer(session)
	prober := convert.NewProber(session, probeCache)
	orchestrator := convert.NewOrchestrator(session)
	tele := telemetry.New(cfg.TelemetryEndpoint, cfg.TelemetryDomain)

	apiHandler := NewAPIHandler(store, session, preparer, prober, orchestrator, tele, cfg)

	// 使用 gorilla/mux 创建路由器
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Disposition")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// API Endpoints
	router.HandleFunc("/api/upload", apiHandler.UploadTracksHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks", apiHandler.GetTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", apiHandler.UpdateTrackHandler).Methods(http.MethodPut)
	router.HandleFunc("/api/tracks/{id}", apiHandler.DeleteTrackHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/tracks/{id}/cover", apiHandler.UploadCoverHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks/{id}/cover", apiHandler.GetCoverHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}/hints", apiHandler.HintsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}/convert", apiHandler.ConvertTrackHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/formats", apiHandler.FormatsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/engine/logs", apiHandler.EngineLogsHandler).Methods(http.MethodGet)

	httpServer.Handler = router

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// 在goroutine中启动服务器
	go func() {
		logger.Info("server starting", logger.String("addr", cfg.ServerAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	// 等待中断信号
	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("server stopped")
}
