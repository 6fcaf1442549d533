package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/clubhouse/pkg/clubhouse/admin"
	"github.com/mikepea/clubhouse/pkg/clubhouse/clubs"
	"github.com/mikepea/clubhouse/pkg/clubhouse/config"
	"github.com/mikepea/clubhouse/pkg/clubhouse/database"
	"github.com/mikepea/clubhouse/pkg/clubhouse/importexport"
	"github.com/mikepea/clubhouse/pkg/clubhouse/logging"
	"github.com/mikepea/clubhouse/pkg/clubhouse/metrics"
	"github.com/mikepea/clubhouse/pkg/clubhouse/models"
	"github.com/mikepea/clubhouse/pkg/clubhouse/store"
	"github.com/mikepea/clubhouse/pkg/clubhouse/students"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel"

	_ "github.com/mikepea/clubhouse/api/swagger"
)

// @title Clubhouse API
// @version 1.0
// @description Club membership management: clubs, students and their memberships.

// @contact.name Clubhouse Support
// @contact.url https://github.com/mikepea/clubhouse

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

// run wires and starts the server. Deferred cleanup, including closing the
// log file, happens before main exits.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	// Connect to database
	db, err := database.Connect(cfg.DBDriver, cfg.DBDSN, logging.NewGormLogger(logger, cfg.SlowQuery))
	if err != nil {
		logger.Error("Failed to connect to database", slog.String("driver", cfg.DBDriver), slog.Any("error", err))
		return err
	}

	// Run auto-migrations
	if err := models.AutoMigrate(db); err != nil {
		logger.Error("Failed to run migrations", slog.Any("error", err))
		return err
	}
	logger.Info("Database migrations completed", slog.String("driver", cfg.DBDriver))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	membershipStore := store.New(db,
		store.WithLogger(logger),
		store.WithMetrics(metrics.NewStore(reg)),
		store.WithTracer(otel.Tracer("github.com/mikepea/clubhouse/store")),
		store.WithOptions(store.Options{
			LockTimeout:     cfg.LockTimeout,
			MaxRetries:      cfg.MaxRetries,
			RetryInitial:    cfg.RetryInitial,
			CascadeAttempts: store.DefaultOptions().CascadeAttempts,
		}),
	)

	// Set up Gin router
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"service": "clubhouse",
			})
		})

		clubsHandler := clubs.NewHandler(membershipStore)
		clubsGroup := api.Group("/clubs")
		clubsHandler.RegisterRoutes(clubsGroup)
		clubsHandler.RegisterMemberRoutes(clubsGroup)

		studentsHandler := students.NewHandler(membershipStore)
		studentsHandler.RegisterRoutes(api.Group("/students"))

		importExportHandler := importexport.NewHandler(membershipStore)
		importExportHandler.RegisterRoutes(api)

		adminHandler := admin.NewHandler(membershipStore)
		adminHandler.RegisterRoutes(api.Group("/admin"))
	}

	// Serve static frontend files if the web build exists
	webDistPath := cfg.WebDistPath
	if _, err := os.Stat(webDistPath); err == nil {
		r.Static("/assets", filepath.Join(webDistPath, "assets"))
		r.StaticFile("/favicon.ico", filepath.Join(webDistPath, "favicon.ico"))

		// SPA fallback - serve index.html for frontend routes
		indexHTML := filepath.Join(webDistPath, "index.html")
		for _, route := range []string{"/", "/clubs", "/students", "/admin"} {
			r.GET(route, func(c *gin.Context) {
				c.File(indexHTML)
			})
		}
		r.GET("/clubs/*path", func(c *gin.Context) {
			c.File(indexHTML)
		})
		r.GET("/students/*path", func(c *gin.Context) {
			c.File(indexHTML)
		})

		logger.Info("Serving frontend", slog.String("path", webDistPath))
	} else {
		logger.Info("No frontend build found - API only mode", slog.String("path", webDistPath))
	}

	logger.Info("Starting Clubhouse server", slog.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error("Failed to start server", slog.Any("error", err))
		return err
	}
	return nil
}

// requestLogger logs one line per request
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= 500:
			logger.ErrorContext(c.Request.Context(), "request failed", attrs...)
		default:
			logger.DebugContext(c.Request.Context(), "request", attrs...)
		}
	}
}
