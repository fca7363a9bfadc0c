package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"markbook/internal/activity"
	"markbook/internal/attendance"
	"markbook/internal/auth"
	"markbook/internal/cloudinary"
	"markbook/internal/config"
	"markbook/internal/directory"
	"markbook/internal/face"
	"markbook/internal/httpapi"
	"markbook/internal/httpmiddleware"
	"markbook/internal/queue"
	"markbook/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("api failed: %v", err)
	}
}

func run(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := db.Bootstrap(context.Background()); err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var jobs queue.Queue
	if cfg.QueueBackend == "memory" {
		jobs = queue.NewInMemory(64)
	} else {
		jobs = queue.NewRedisQueue(redisClient.Client, "")
	}

	var faces face.Store
	var remoteFaces *face.RemoteStore
	if cfg.FaceLocal {
		faces = face.NewLocalStore(face.GridEmbedder{})
		log.Println("face store: in-process grid embedder")
	} else {
		remoteFaces = face.NewRemoteStore(cfg.FaceServiceURL, cfg.FaceTimeout)
		faces = remoteFaces
		log.Println("face store: remote at", cfg.FaceServiceURL)
	}

	var cdn *cloudinary.Client
	if cfg.CloudinaryCloud != "" && cfg.CloudinaryKey != "" && cfg.CloudinarySecret != "" {
		cdn = cloudinary.New(cfg.CloudinaryCloud, cfg.CloudinaryKey, cfg.CloudinarySecret, cfg.CloudinaryFolder)
		log.Println("cloudinary archive configured:", cfg.CloudinaryCloud)
	} else {
		log.Println("cloudinary archive not configured; enrollment photos are not retained")
	}

	users := auth.NewRepository(db.Client)
	authSvc := auth.NewService(users, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)

	dirRepo := directory.NewRepository(db.Client)
	activities := activity.NewRepository(db.Client)
	dirSvc := directory.NewService(dirRepo, authSvc, faces, cdn, activities, jobs)

	ledger := attendance.NewRepository(db.Client)
	attSvc := attendance.NewService(ledger, faces, cfg.FaceTimeout)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsFor(cfg.CORSOrigins))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := db.Healthy(c.Request.Context())
		redisHealthy := redisClient.Healthy(c.Request.Context())
		status := http.StatusOK
		if !dbHealthy || !redisHealthy {
			status = http.StatusServiceUnavailable
		}
		body := gin.H{"status": "ok", "db": dbHealthy, "redis": redisHealthy}
		if remoteFaces != nil {
			// Informational only: a face outage degrades marking per request
			// but should not fail readiness for the rest of the API.
			body["face"] = remoteFaces.Health(c.Request.Context()) == nil
		}
		c.JSON(status, body)
	})

	h := httpapi.New(authSvc, dirSvc, dirRepo, attSvc, activities, jobs)
	h.Routes(r,
		auth.Authenticate(cfg.JWTSigningKey, cfg.JWTIssuer),
		httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).PerIP(),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}

	log.Println("server exited")
	return nil
}

// corsFor allows credentials only with an explicit origin list; a wildcard
// falls back to credential-less allow-all.
func corsFor(origins []string) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
		corsCfg.AllowCredentials = true
	}
	return cors.New(corsCfg)
}

// securityHeaders sets the browser hardening headers on every response.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
