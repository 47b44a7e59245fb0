package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/Skufu/heartrisk/internal/classifier"
	"github.com/Skufu/heartrisk/internal/config"
	"github.com/Skufu/heartrisk/internal/handlers"
	"github.com/Skufu/heartrisk/internal/logging"
	"github.com/Skufu/heartrisk/internal/middleware"
	"github.com/Skufu/heartrisk/internal/patient"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	gin.SetMode(cfg.GinMode)
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	var db HealthChecker
	if cfg.EnableDB {
		pool, err := connectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("database connection failed: %v", err)
		}
		defer pool.Close()
		db = pool
	}

	// Loaded once; every request shares this handle.
	clf, err := classifier.Open(ctx, classifier.Options{
		Path:      cfg.ModelPath,
		URL:       cfg.ModelURL,
		Timeout:   cfg.ModelTimeout,
		RateLimit: cfg.ModelRateLimit,
		Features:  patient.FeatureColumns,
	})
	if err != nil {
		logger.WithError(err).Fatal("classifier unavailable")
	}
	logger.WithField("model", clf.Name()).Info("classifier loaded")

	api := handlers.New(clf, logger)
	staticRoot := detectStaticRoot(cfg.StaticRoot)
	router := setupRouter(cfg, logger, db, api, staticRoot)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	logger.Infof("server listening on :%s", cfg.Port)
	waitForShutdown(server, logger)
}

func connectDB(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

func setupRouter(cfg *config.Config, logger logrus.FieldLogger, db HealthChecker, api *handlers.Handler, staticRoot string) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.CorrelationID(),
		middleware.Logger(logger),
		gin.Recovery(),
		middleware.SecurityHeaders(),
		middleware.LimitBodySize(cfg.MaxUploadBytes),
		cors.New(cors.Config{
			AllowOrigins:  cfg.CORSOrigins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", middleware.CorrelationHeader},
			ExposeHeaders: []string{"Content-Disposition", middleware.CorrelationHeader},
			MaxAge:        12 * time.Hour,
		}),
	)

	// Static form from web/ under /static and the root index.
	router.Static("/static", staticRoot)
	router.StaticFile("/", filepath.Join(staticRoot, "index.html"))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/readyz", func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "disabled", "model": api.ModelName()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"db":     fmt.Sprintf("unhealthy: %v", err),
				"model":  api.ModelName(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"db":     "ok",
			"model":  api.ModelName(),
		})
	})

	api.Register(router)
	return router
}

func waitForShutdown(server *http.Server, logger logrus.FieldLogger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

// detectStaticRoot finds the web/ directory holding index.html, starting from the
// working directory and walking up two levels.
func detectStaticRoot(configured string) string {
	if configured != "" {
		return configured
	}
	startDir, err := os.Getwd()
	if err != nil {
		return "web"
	}

	candidates := []string{
		startDir,
		filepath.Dir(startDir),
		filepath.Dir(filepath.Dir(startDir)),
	}

	for _, dir := range candidates {
		web := filepath.Join(dir, "web")
		if fileExists(filepath.Join(web, "index.html")) {
			return web
		}
	}

	return filepath.Join(startDir, "web")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
