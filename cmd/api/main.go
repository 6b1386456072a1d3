package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qrattend/internal/attendance"
	"qrattend/internal/auth"
	"qrattend/internal/config"
	"qrattend/internal/device"
	"qrattend/internal/directory"
	"qrattend/internal/httpmiddleware"
	"qrattend/internal/metrics"
	"qrattend/internal/qr"
	"qrattend/internal/queue"
	"qrattend/internal/session"
	"qrattend/internal/stats"
	"qrattend/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if db == nil {
		// Open failed outright (bad DSN); nothing downstream can work.
		return err
	}
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() { _ = db.Close() }()

	redisClient := store.NewRedis(cfg.RedisAddr)

	dir, err := buildDirectory(cfg)
	if err != nil {
		return err
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "qrattend:scans")
	}

	sessionRepo := session.NewRepository(db.Client)
	attRepo := attendance.NewRepository(db.Client)
	deviceRepo := device.NewRepository(db.Client)

	gate := auth.NewOperatorGate(cfg.OperatorSecret, cfg.OperatorSecretHash)
	mgr := session.NewManager(sessionRepo, dir, gate, 10*time.Second)
	marker := attendance.NewService(attRepo, qr.NewResolver(dir))
	agg := stats.NewAggregator(sessionRepo, attRepo, dir, stats.NewRedisCache(redisClient.Client, cfg.StatsCacheTTL))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/devices/register", func(c *gin.Context) {
		var req struct {
			DeviceID string `json:"device_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := deviceRepo.Upsert(c.Request.Context(), req.DeviceID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		tokens, err := auth.Issue(req.DeviceID, "device", cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		_ = deviceRepo.SaveRefreshToken(c.Request.Context(), req.DeviceID, tokens.RefreshToken, tokens.RefreshExp)

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	// Scans arrive at up to ~5/s per device, so the limiter keys on the
	// authenticated device rather than the shared network's IP.
	limiter := httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	deviceKey := func(c *gin.Context) string {
		if claims, ok := auth.ClaimsFrom(c); ok {
			return claims.Subject
		}
		return ""
	}

	authGroup := r.Group("/v1", auth.DeviceAuth(cfg.JWTSigningKey, cfg.JWTIssuer), limiter.GinMiddleware(deviceKey))

	authGroup.POST("/sessions", func(c *gin.Context) {
		var req struct {
			ClassID string `json:"class_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s, err := mgr.Start(c.Request.Context(), req.ClassID)
		if err != nil {
			if errors.Is(err, session.ErrAlreadyActive) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "session_already_active"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		metrics.SessionsStartedTotal.Inc()
		c.JSON(http.StatusCreated, s)
	})

	authGroup.GET("/sessions/active", func(c *gin.Context) {
		classID := c.Query("class_id")
		if classID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "class_id required"})
			return
		}
		s, err := mgr.Active(c.Request.Context(), classID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if s == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active session", "code": "no_active_session"})
			return
		}
		c.JSON(http.StatusOK, s)
	})

	authGroup.POST("/sessions/:id/end", func(c *gin.Context) {
		result, err := mgr.End(c.Request.Context(), c.Param("id"))
		if err != nil {
			switch {
			case errors.Is(err, session.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "session_not_found"})
			case errors.Is(err, session.ErrAlreadyCompleted):
				c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "session_already_completed"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		metrics.SessionsCompletedTotal.Inc()
		metrics.AutoAbsentTotal.Add(float64(result.AutoAbsentCount))
		agg.Invalidate(c.Request.Context(), result.Session.ID)
		c.JSON(http.StatusOK, result)
	})

	authGroup.POST("/sessions/:id/marks", func(c *gin.Context) {
		sessionID := c.Param("id")
		var req struct {
			Payload string `json:"payload" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := marker.Mark(c.Request.Context(), sessionID, req.Payload)
		if err != nil {
			writeMarkError(c, err)
			return
		}

		if res.Created {
			metrics.MarksTotal.Inc()
		} else {
			metrics.DuplicateScansTotal.Inc()
		}

		ev := attendance.ScanEvent{
			SessionID: sessionID,
			StudentID: res.StudentID,
			Duplicate: !res.Created,
			At:        res.Record.MarkedAt,
		}
		// Audit publish is best effort and must never hold up the scan
		// response: bounded by the request context, dropped when full.
		if raw, err := json.Marshal(ev); err == nil {
			if err := q.Publish(c.Request.Context(), queue.Message{Type: "scan", Body: raw}); err != nil {
				log.Printf("scan audit publish dropped: %v", err)
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"student_id":   res.StudentID,
			"record":       res.Record,
			"marked_count": res.MarkedCount,
			"duplicate":    !res.Created,
		})
	})

	authGroup.GET("/sessions/:id/stats", func(c *gin.Context) {
		s, err := agg.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "session_not_found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, s)
	})

	authGroup.PATCH("/attendance/:id", func(c *gin.Context) {
		var req struct {
			Status string  `json:"status" binding:"required"`
			Note   *string `json:"note"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rec, err := marker.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, req.Note)
		if err != nil {
			switch {
			case errors.Is(err, attendance.ErrRecordNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "record_not_found"})
			case errors.Is(err, attendance.ErrInvalidStatus):
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "code": "invalid_status"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, rec)
	})

	authGroup.GET("/students/:id/qr", func(c *gin.Context) {
		size := 256
		if v := c.Query("size"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				size = parsed
			}
		}
		png, err := qr.BadgePNG(c.Param("id"), size)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "qr encode failed"})
			return
		}
		c.Data(http.StatusOK, "image/png", png)
	})

	// Destructive operations sit outside device auth; the operator credential
	// is the only gate, and it is never echoed back or logged.
	r.DELETE("/v1/sessions/:id/attendance", func(c *gin.Context) {
		deleted, err := mgr.ClearSession(c.Request.Context(), c.Param("id"), c.GetHeader("X-Operator-Credential"))
		if err != nil {
			writeClearError(c, err)
			return
		}
		metrics.ClearsTotal.WithLabelValues("session").Inc()
		agg.Invalidate(c.Request.Context(), c.Param("id"))
		c.JSON(http.StatusOK, gin.H{"deleted_count": deleted})
	})

	r.DELETE("/v1/attendance", func(c *gin.Context) {
		deleted, err := mgr.ClearAll(c.Request.Context(), c.GetHeader("X-Operator-Credential"))
		if err != nil {
			writeClearError(c, err)
			return
		}
		metrics.ClearsTotal.WithLabelValues("all").Inc()
		agg.InvalidateAll(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"deleted_count": deleted})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func buildDirectory(cfg config.App) (directory.Directory, error) {
	if cfg.DirectoryStatic != "" {
		dir, err := directory.ParseStatic(cfg.DirectoryStatic)
		if err != nil {
			return nil, err
		}
		log.Println("using static directory")
		return dir, nil
	}
	if cfg.DirectoryURL != "" {
		log.Println("using directory service:", cfg.DirectoryURL)
		return directory.NewClient(cfg.DirectoryURL), nil
	}
	return nil, errors.New("directory not configured (set DIRECTORY_URL or DIRECTORY_STATIC)")
}

// writeMarkError maps marking failures to status codes and machine-readable
// codes. The scanning client keeps going on payload problems, halts on
// session_not_active.
func writeMarkError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, qr.ErrInvalidPayload):
		metrics.RejectedScansTotal.WithLabelValues("invalid_payload").Inc()
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "code": "invalid_payload"})
	case errors.Is(err, qr.ErrStudentNotEnrolled):
		metrics.RejectedScansTotal.WithLabelValues("not_enrolled").Inc()
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "code": "not_enrolled"})
	case errors.Is(err, attendance.ErrSessionNotActive):
		metrics.RejectedScansTotal.WithLabelValues("session_not_active").Inc()
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "session_not_active"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func writeClearError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredential):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credential", "code": "invalid_credential"})
	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "session_not_found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// CORS middleware for browser dashboards.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Operator-Credential")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware.
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
