package main

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/luxora/storefront-api/internal/config"
	"github.com/luxora/storefront-api/internal/handler"
	"github.com/luxora/storefront-api/internal/middleware"
)

type routes struct {
	auth      middleware.Authenticator
	authH     *handler.AuthHandler
	productH  *handler.ProductHandler
	categoryH *handler.CategoryHandler
	orderH    *handler.OrderHandler
	uploadH   *handler.UploadHandler
	healthH   *handler.HealthHandler
	limiter   *middleware.RateLimiter
}

func newRouter(cfg *config.Config, log *slog.Logger, r routes) (*gin.Engine, error) {
	production := cfg.Server.IsProduction()
	rl := cfg.RateLimit

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, err
	}
	router.Use(
		middleware.Recovery(log),
		middleware.RequestID(),
		middleware.RequestLogger(log),
		middleware.SecureHeaders(cfg.Server.ClientURL, production),
		middleware.CORS(cfg.Server.ClientURL),
		middleware.BodyLimit(cfg.Server.MaxBodyBytes),
		middleware.ErrorHandler(log, production),
	)
	router.NoRoute(middleware.NotFound())

	router.GET("/", r.healthH.Root)
	router.GET("/healthz", r.healthH.Healthz)
	router.GET("/readyz", r.healthH.Readyz)

	authenticate := middleware.Authenticate(r.auth)
	adminOnly := middleware.AdminOnly()
	admin := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return []gin.HandlerFunc{authenticate, adminOnly, h}
	}
	authLimit := r.limiter.Limit("auth", rl.AuthMax, rl.AuthWindow,
		"Too many authentication attempts, please try again later.")
	uploadLimit := r.limiter.Limit("upload", rl.UploadMax, rl.UploadWindow,
		"Too many upload attempts, please try again later.")

	v1 := router.Group("/api/v1", r.limiter.Limit("general", rl.GeneralMax, rl.GeneralWindow,
		"Too many requests from this IP, please try again later."))
	{
		v1.GET("/health", r.healthH.Health)

		auth := v1.Group("/auth")
		auth.POST("/register", authLimit, r.authH.Register)
		auth.POST("/login", authLimit, r.authH.Login)
		auth.POST("/refresh-token", r.authH.RefreshToken)
		auth.POST("/logout", authenticate, r.authH.Logout)
		auth.GET("/profile", authenticate, r.authH.Profile)
		auth.PATCH("/profile", authenticate, r.authH.UpdateProfile)

		products := v1.Group("/products")
		products.GET("", r.productH.List)
		products.GET("/featured", r.productH.Featured)
		products.GET("/slug/:slug", r.productH.GetBySlug)
		products.GET("/:id", r.productH.GetByID)
		products.GET("/:id/related/:categoryId", r.productH.Related)
		products.POST("", admin(r.productH.Create)...)
		products.PATCH("/:id", admin(r.productH.Update)...)
		products.DELETE("/:id", admin(r.productH.Delete)...)

		categories := v1.Group("/categories")
		categories.GET("", r.categoryH.List)
		categories.GET("/:slug", r.categoryH.GetBySlug)
		categories.POST("", admin(r.categoryH.Create)...)
		categories.PATCH("/:id", admin(r.categoryH.Update)...)
		categories.DELETE("/:id", admin(r.categoryH.Delete)...)

		orders := v1.Group("/orders")
		orders.POST("", middleware.OptionalAuth(r.auth), r.orderH.Create)
		orders.GET("/number/:orderNumber", r.orderH.GetByNumber)
		orders.GET("/my-orders", authenticate, r.orderH.MyOrders)
		orders.GET("", admin(r.orderH.List)...)
		orders.GET("/stats", admin(r.orderH.Stats)...)
		orders.GET("/:id", admin(r.orderH.GetByID)...)
		orders.PATCH("/:id/status", admin(r.orderH.UpdateStatus)...)
		orders.PATCH("/:id/payment", admin(r.orderH.UpdatePaymentStatus)...)

		upload := v1.Group("/upload", authenticate, uploadLimit)
		upload.POST("", r.uploadH.Upload)
		upload.DELETE("/:publicId", r.uploadH.Delete)
	}

	return router, nil
}
