package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/cache"
	"github.com/sockheadrps/OBS-Stream-Control-Hub/config"
	"github.com/sockheadrps/OBS-Stream-Control-Hub/core/audio"
	"github.com/sockheadrps/OBS-Stream-Control-Hub/core/player"
	"github.com/sockheadrps/OBS-Stream-Control-Hub/logger"
	"github.com/sockheadrps/OBS-Stream-Control-Hub/storage"
)

// NewRouter 注册所有路由
func NewRouter(cfg *config.Config, h *AudioHandler, gatherer prometheus.Gatherer) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware(cfg.AllowedOrigins()))

	router.HandleFunc("/websockets/audio", h.WebSocketHandler)
	// OPTIONS 需要匹配路由，否则中间件不会执行
	router.HandleFunc("/music", h.LibraryHandler).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/api/audio/status", h.StatusHandler).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet, http.MethodOptions)
	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	// Static file serving
	staticFileServer := http.FileServer(http.Dir(cfg.StaticDir))
	router.PathPrefix("/static/").Handler(http.StripPrefix("/static/", staticFileServer))

	return router
}

// corsMiddleware 只允许配置中的前端地址
func corsMiddleware(origins []string) mux.MiddlewareFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "*")
				w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Start 启动 HTTP 服务，收到 SIGINT/SIGTERM 后优雅关闭
func Start(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return Run(ctx, cfg)
}

// Run serves until ctx is done.
func Run(ctx context.Context, cfg *config.Config) error {
	ensureDirExists(cfg.StaticDir)
	ensureDirExists(cfg.MusicDir)

	if cfg.MinioEnabled {
		syncFromMinio(ctx, cfg)
	}

	var mirror player.StatusMirror
	if cfg.RedisEnabled {
		if err := cache.ConnectRedis(cfg); err != nil {
			logger.Warn("redis unavailable, status mirror disabled", logger.ErrorField(err))
		} else {
			defer cache.CloseRedis()
			mirror = cache.NewStatusCache(cache.RedisClient, cfg.RedisStatusKey)
			logger.Info("status mirror enabled", logger.String("key", cfg.RedisStatusKey))
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	loader := audio.NewLoader(cfg.MusicDir)
	if out := openOutput(cfg); out != nil {
		loader.Output = out
		// 在服务停止之后关闭
		defer out.Close()
	}
	svc := player.NewService(loader.NewChannel, player.ServiceOptions{
		Options: player.Options{
			TickInterval: cfg.TickInterval,
			FadeDuration: cfg.FadeDuration,
		},
		StatusQueueSize: cfg.StatusQueueSize,
		QueueWarn:       cfg.CommandQueueWarn,
		SendBufferSize:  cfg.SendBufferSize,
		Mirror:          mirror,
		Registerer:      registry,
	})
	svc.Start(ctx)

	library, err := audio.NewLibrary(cfg.MusicDir)
	if err != nil {
		logger.Warn("music library watcher disabled", logger.ErrorField(err))
		library = nil
	} else {
		go library.Run(ctx)
	}

	handler := NewAudioHandler(ctx, svc, library, cfg.AllowedOrigins())

	server := &http.Server{
		Addr:        cfg.ListenAddr(),
		Handler:     NewRouter(cfg, handler, registry),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			logger.String("addr", server.Addr),
			logger.String("music_dir", cfg.MusicDir))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			shutdownService(svc)
			return fmt.Errorf("listen %s: %w", server.Addr, err)
		}
	}

	logger.Info("shutting down server")
	// 先关闭 WebSocket 连接，http.Server.Shutdown 不会等待被劫持的连接
	shutdownService(svc)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func shutdownService(svc *player.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Shutdown(ctx); err != nil {
		logger.Warn("audio service shutdown incomplete", logger.ErrorField(err))
	}
}

// openOutput opens the configured audio output. It returns nil for the
// simulated deck and falls back to the null output when the device fails.
func openOutput(cfg *config.Config) audio.Output {
	name := cfg.AudioOutput
	if name == audio.OutputSim {
		logger.Info("audio output simulated")
		return nil
	}
	sr := beep.SampleRate(cfg.AudioSampleRate)
	out, err := audio.OpenOutput(name, sr, cfg.AudioBuffer)
	if err != nil && name != audio.OutputNull {
		logger.Warn("audio output unavailable, using null output",
			logger.String("output", name),
			logger.ErrorField(err))
		name = audio.OutputNull
		out, err = audio.OpenOutput(name, sr, cfg.AudioBuffer)
	}
	if err != nil {
		logger.Error("audio output failed, playback simulated", logger.ErrorField(err))
		return nil
	}
	logger.Info("audio output opened",
		logger.String("output", name),
		logger.Int("sample_rate", cfg.AudioSampleRate))
	return out
}

// syncFromMinio 启动前把远端曲库同步到本地，失败时继续使用本地文件
func syncFromMinio(ctx context.Context, cfg *config.Config) {
	bucket, err := storage.NewMusicBucket(ctx, cfg)
	if err != nil {
		logger.Warn("minio unavailable, using local music only", logger.ErrorField(err))
		return
	}
	res, err := bucket.SyncToDir(ctx, cfg.MusicDir, false)
	if err != nil {
		logger.Warn("minio sync failed", logger.ErrorField(err))
		return
	}
	logger.Info("music synced from minio",
		logger.Int("downloaded", len(res.Downloaded)),
		logger.Int("skipped", len(res.Skipped)))
}

func ensureDirExists(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("creating directory", logger.String("path", path))
		if err := os.MkdirAll(path, 0755); err != nil {
			logger.Fatal("failed to create directory", logger.String("path", path), logger.ErrorField(err))
		}
	} else if err != nil {
		logger.Fatal("failed to check directory", logger.String("path", path), logger.ErrorField(err))
	}
}
