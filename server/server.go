package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"surroundio/cache"
	"surroundio/config"
	"surroundio/core/submission"
	"surroundio/db"
	"surroundio/logger"
	"surroundio/model"
	"surroundio/repository"
	"surroundio/storage"

	"github.com/gorilla/mux"
)

// Start initializes and starts the HTTP server.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})

	// 对象存储客户端在进程启动时创建一次，注入流水线使用
	store, err := storage.NewMinioStore(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize MinIO store", logger.ErrorField(err))
	}
	if err := store.EnsureBucket(context.Background()); err != nil {
		logger.Fatal("Failed to ensure bucket", logger.ErrorField(err))
	}

	gormDB, err := db.ConnectGormDB(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	defer db.CloseGormDB(gormDB)

	if err := db.AutoMigrateModels(gormDB, &model.Submission{}); err != nil {
		logger.Fatal("Failed to migrate database", logger.ErrorField(err))
	}

	redisClient, err := cache.ConnectRedis(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	subRepo := repository.NewGormSubmissionRepository(gormDB)
	subCache := cache.NewSubmissionCache(redisClient)
	pipeline := submission.NewPipeline(store, subRepo, subCache, cfg)
	apiHandler := NewAPIHandler(pipeline, cfg)

	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// 投稿相关的API端点
	router.HandleFunc("/api/submissions", apiHandler.CreateSubmissionHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/submissions", apiHandler.ListSubmissionsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/submissions/{id}", apiHandler.GetSubmissionHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/submissions/{id}", apiHandler.DeleteSubmissionHandler).Methods(http.MethodDelete)
	router.HandleFunc("/api/submissions/{id}/tracks/{index}/download", apiHandler.DownloadTrackHandler).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Minute, // 上传大文件需要较长的读取时间
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("Server stopped")
}
