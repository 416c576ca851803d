// Package routes assembles the gin engine.
package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tharoon321/go-rentals/blob"
	"github.com/Tharoon321/go-rentals/cache"
	"github.com/Tharoon321/go-rentals/controllers"
	"github.com/Tharoon321/go-rentals/metrics"
	"github.com/Tharoon321/go-rentals/middleware"
	"github.com/Tharoon321/go-rentals/models"
)

// Config is what Setup needs beyond the handlers themselves.
type Config struct {
	Handlers *controllers.Controller
	Tokens   middleware.TokenParser
	Revoked  cache.Store
	Blobs    blob.Store
	// Ping checks the database for /healthz. Nil means always healthy.
	Ping           func(ctx context.Context) error
	AllowedOrigins []string
	MaxUploadBytes int64
	Logger         *zap.SugaredLogger
}

// Setup builds the engine with every route registered.
func Setup(cfg Config) *gin.Engine {
	r := gin.New()
	var upload gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if cfg.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = cfg.MaxUploadBytes
		upload = middleware.LimitBody(cfg.MaxUploadBytes)
	}

	r.Use(
		cors.New(corsConfig(cfg.AllowedOrigins)),
		middleware.RequestLogger(cfg.Logger),
		metrics.Middleware(),
		gin.Recovery(),
	)

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Hello from the rentals API")
	})
	r.GET("/healthz", healthz(cfg.Ping))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	mountUploads(r, cfg.Blobs, cfg.Logger)

	h := cfg.Handlers
	auth := middleware.Auth(cfg.Tokens, cfg.Revoked, cfg.Logger)
	seller := middleware.RequireRole(models.RoleSeller)

	r.POST("/send-otp", h.SendOTP)
	r.POST("/verify-otp", h.VerifyOTP)
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)

	protected := r.Group("/", auth)
	{
		protected.GET("/profile", h.Profile)
		protected.GET("/getpost", h.GetPosts)
		protected.GET("/get/:id", h.GetPost)
		protected.POST("/senddetails/:id", h.SendDetails)

		protected.POST("/post", seller, upload, h.CreatePost)
		protected.PUT("/edit/:id", seller, upload, h.EditPost)
		protected.DELETE("/delete/:id", seller, h.DeletePost)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) > 0 {
		c.AllowOrigins = origins
	} else {
		// no allow-list configured: same-origin and non-browser clients only
		c.AllowOriginFunc = func(string) bool { return false }
	}
	return c
}

func healthz(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// mountUploads serves stored photos under /uploads. Disk blobs are served
// from the directory; presigning stores redirect to a short-lived URL.
func mountUploads(r *gin.Engine, store blob.Store, logger *zap.SugaredLogger) {
	switch s := store.(type) {
	case *blob.DiskStore:
		r.Static("/uploads", s.Dir())
	case blob.Presigner:
		r.GET("/uploads/:name", func(c *gin.Context) {
			name := c.Param("name")
			if !blob.ValidRef(name) {
				c.Status(http.StatusNotFound)
				return
			}
			url, err := s.PresignGet(c.Request.Context(), name)
			if err != nil {
				logger.Errorw("presign failed", "ref", name, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"err": "Server Error"})
				return
			}
			c.Redirect(http.StatusFound, url)
		})
	}
}
