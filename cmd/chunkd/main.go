// chunkd serves the remote chunk hooks over HTTP, backed by Redis.
// Facades in other processes reach it through httpstore.Client.
package main

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tidemark/tidemark/internal/http/handlers/chunks"
	"github.com/tidemark/tidemark/redis"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// maxInflightChunkOps sizes both the Redis pool and the admission gate:
// every admitted request holds at most one chunk operation, so the gate
// keeps the pool from being oversubscribed by bulk writers.
const maxInflightChunkOps = 64

// requestID tags every request so a chunk operation can be correlated
// across the facade's retries. A proxy-supplied X-Request-ID is kept
// when it looks sane; anything else gets a fresh UUID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if l := len(id); l < 1 || l > 64 {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Set("request_id", id)
		c.Next()
	}
}

// capChunkOps rejects requests beyond the in-flight chunk-op budget
// with 429 instead of queueing them against a saturated Redis pool.
func capChunkOps(limit int) gin.HandlerFunc {
	slots := make(chan struct{}, limit)
	return func(c *gin.Context) {
		select {
		case slots <- struct{}{}:
			defer func() { <-slots }()
			c.Next()
		default:
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "chunk store saturated; retry",
			})
		}
	}
}

// ZapLogger is a Gin middleware that logs one line per request.
func ZapLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("request_id", c.GetString("request_id")),
			zap.Duration("latency", latency),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

func main() {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	log := zap.Must(logConfig.Build())
	defer log.Sync()
	log = log.Named("chunkd")

	client := redis.NewClient(log, redis.ClientOptions{
		Addr:                os.Getenv("REDIS_ADDR"),
		MaxInflightChunkOps: maxInflightChunkOps,
	})
	defer client.Close()

	store := redis.NewChunkRepository(log, client)
	handler := chunks.NewHandler(log, store)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"127.0.0.1"})

	r.Use(gin.Recovery())

	// CORS (dev only)
	if os.Getenv("ENV") == "dev" {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:5173"},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(requestID())
	r.Use(capChunkOps(maxInflightChunkOps))
	r.Use(ZapLogger(log))

	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	handler.Register(r)

	addr := os.Getenv("CHUNKD_ADDR")
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	httpserver := &http.Server{
		Addr:    addr,
		Handler: r,

		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,

		MaxHeaderBytes: 1 << 15, // 32 KB

		ErrorLog: zap.NewStdLog(log.Named("http").WithOptions(zap.AddCallerSkip(1))),
	}

	log.Info("running HTTP server", zap.String("addr", addr))
	if err := httpserver.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server failed", zap.Error(err))
	}
}
