package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dentalmart/marketplace/internal/api/handlers"
	"github.com/dentalmart/marketplace/internal/api/middleware"
	"github.com/dentalmart/marketplace/internal/cache"
	"github.com/dentalmart/marketplace/internal/config"
	"github.com/dentalmart/marketplace/internal/health"
	"github.com/dentalmart/marketplace/internal/metrics"
	"github.com/dentalmart/marketplace/internal/models"
	"github.com/dentalmart/marketplace/internal/realtime"
	repository "github.com/dentalmart/marketplace/internal/repositories"
	service "github.com/dentalmart/marketplace/internal/services"
	"github.com/dentalmart/marketplace/internal/telemetry"
	"github.com/dentalmart/marketplace/pkg/sendgrid"
	"github.com/dentalmart/marketplace/pkg/stripe"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {

	// Logger setup
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load config
	cfg := config.MustLoad()

	// Tracing setup
	shutdownTracing, err := telemetry.Setup(context.Background(), &cfg.Telemetry)
	if err != nil {
		slog.Error("❌ Error setting up tracing", "error", err.Error())
		os.Exit(1)
	}

	// Database setup
	repos, err := repository.New(cfg)
	if err != nil {
		slog.Error("❌ Error accessing the database", "error", err.Error())
		os.Exit(1)
	}

	// Redis setup
	redisClient, err := repository.NewRedisClient(cfg)
	if err != nil {
		slog.Error("❌ Error accessing the redis instance", "error", err.Error())
		os.Exit(1)
	}

	defer func() {
		if err := repos.Close(); err != nil {
			slog.Error("⚠️ Error closing database connection", slog.String("error", err.Error()))
		} else {
			slog.Info("✅ Database connection closed")
		}
	}()

	rateLimitRepo := repository.NewRateLimitRepo(redisClient, cfg)
	appCache := cache.NewRedisCache(redisClient, &cfg.Cache)

	jwtKey := []byte(cfg.Security.JWTKey)
	stripeClient := stripe.NewStripeClient(cfg.Stripe.APIKey, cfg.Stripe.WebhookSecret)
	sendGridClient := sendgrid.NewEmailService(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName)
	hub := realtime.NewHub()

	userService := service.NewUserService(repos.User, rateLimitRepo, jwtKey)
	userHandler := handlers.NewUserHandler(userService)
	couponService := service.NewCouponService(repos.Coupon)
	couponHandler := handlers.NewCouponHandler(couponService)
	giftCardService := service.NewGiftCardService(repos.GiftCard)
	giftCardHandler := handlers.NewGiftCardHandler(giftCardService)
	productService := service.NewProductService(repos.Product, repos.Category, appCache, &cfg.Cache, &cfg.Pricing, hub)
	productHandler := handlers.NewProductHandler(productService)
	cartService := service.NewCartService(repos.Cart, repos.Product, couponService, &cfg.Pricing, appCache)
	cartHandler := handlers.NewCartHandler(cartService)
	orderService := service.NewOrderService(repos.Order, repos.Product, couponService, giftCardService,
		repos.User, repos.Notification, sendGridClient, hub, &cfg.Pricing)
	orderHandler := handlers.NewOrderHandler(orderService)
	reviewService := service.NewReviewService(repos.Review, repos.Order)
	reviewHandler := handlers.NewReviewHandler(reviewService)
	wishlistService := service.NewWishlistService(repos.Wishlist, repos.Product)
	wishlistHandler := handlers.NewWishlistHandler(wishlistService)
	paymentService := service.NewPaymentService(repos.Payment, repos.Order, stripeClient, hub, &cfg.Stripe)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	notificationService := service.NewNotificationService(repos.Notification, sendGridClient)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	adminService := service.NewAdminService(repos.Stats, &cfg.Pricing)
	adminHandler := handlers.NewAdminHandler(adminService)
	authMiddleware := middleware.NewAuthMiddleware(jwtKey)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateConfig)

	healthHandler, err := health.NewHealthHandler(cfg, &health.Endpoints{
		DB:           repos.DB,
		RedisClient:  redisClient,
		StripeClient: stripeClient,
	})
	if err != nil {
		slog.Error("❌ Error setting up health checks", "error", err.Error())
		os.Exit(1)
	}

	slog.Info("storage initialized", slog.String("env", cfg.Env), slog.String("version", "1.0.0"))

	// Setup router
	routerMux := http.NewServeMux()
	routerMux.HandleFunc("POST /api/v1/users/register", userHandler.Register())
	routerMux.HandleFunc("POST /api/v1/users/login", userHandler.Login())
	routerMux.HandleFunc("GET /api/v1/users/profile", authMiddleware.Authenticate(userHandler.Profile()))

	// Catalog
	routerMux.HandleFunc("POST /api/v1/products", authMiddleware.RequireRole(productHandler.CreateProduct(), models.RoleVendor))
	routerMux.HandleFunc("GET /api/v1/products/{id}", productHandler.GetProduct())
	routerMux.HandleFunc("PUT /api/v1/products/{id}", authMiddleware.RequireRole(productHandler.UpdateProduct(), models.RoleVendor))
	routerMux.HandleFunc("DELETE /api/v1/products/{id}", authMiddleware.RequireRole(productHandler.DeleteProduct(), models.RoleVendor))
	routerMux.HandleFunc("GET /api/v1/products", productHandler.ListProducts())
	routerMux.HandleFunc("PATCH /api/v1/products/{id}/stock", authMiddleware.RequireRole(productHandler.AdjustStock(), models.RoleVendor))
	routerMux.HandleFunc("GET /api/v1/products/{id}/reviews", reviewHandler.ListProductReviews())
	routerMux.HandleFunc("POST /api/v1/categories", authMiddleware.RequireRole(productHandler.CreateCategory(), models.RoleAdmin))
	routerMux.HandleFunc("GET /api/v1/categories", productHandler.ListCategories())
	routerMux.HandleFunc("DELETE /api/v1/categories/{id}", authMiddleware.RequireRole(productHandler.DeleteCategory(), models.RoleAdmin))

	// Cart
	routerMux.HandleFunc("GET /api/v1/carts", authMiddleware.Authenticate(cartHandler.GetCart()))
	routerMux.HandleFunc("POST /api/v1/carts/items", authMiddleware.Authenticate(cartHandler.AddItem()))
	routerMux.HandleFunc("PUT /api/v1/carts/items", authMiddleware.Authenticate(cartHandler.UpdateQuantity()))
	routerMux.HandleFunc("DELETE /api/v1/carts/items/{productId}", authMiddleware.Authenticate(cartHandler.RemoveItem()))
	routerMux.HandleFunc("DELETE /api/v1/carts", authMiddleware.Authenticate(cartHandler.ClearCart()))
	routerMux.HandleFunc("POST /api/v1/carts/coupon", authMiddleware.Authenticate(cartHandler.ApplyCoupon()))
	routerMux.HandleFunc("DELETE /api/v1/carts/coupon", authMiddleware.Authenticate(cartHandler.RemoveCoupon()))
	routerMux.HandleFunc("POST /api/v1/carts/merge", authMiddleware.Authenticate(cartHandler.MergeGuestCart()))

	// Coupons and gift cards
	routerMux.HandleFunc("POST /api/v1/coupons", authMiddleware.RequireRole(couponHandler.CreateCoupon(), models.RoleAdmin))
	routerMux.HandleFunc("GET /api/v1/coupons", authMiddleware.RequireRole(couponHandler.ListCoupons(), models.RoleAdmin))
	routerMux.HandleFunc("GET /api/v1/coupons/{code}", authMiddleware.RequireRole(couponHandler.GetCoupon(), models.RoleAdmin))
	routerMux.HandleFunc("PATCH /api/v1/coupons/{code}", authMiddleware.RequireRole(couponHandler.UpdateCoupon(), models.RoleAdmin))
	routerMux.HandleFunc("POST /api/v1/coupons/validate", authMiddleware.Authenticate(couponHandler.ValidateCoupon()))
	routerMux.HandleFunc("POST /api/v1/giftcards", authMiddleware.RequireRole(giftCardHandler.IssueGiftCard(), models.RoleAdmin))
	routerMux.HandleFunc("GET /api/v1/giftcards", authMiddleware.RequireRole(giftCardHandler.ListGiftCards(), models.RoleAdmin))
	routerMux.HandleFunc("GET /api/v1/giftcards/{code}/balance", authMiddleware.Authenticate(giftCardHandler.GetBalance()))
	routerMux.HandleFunc("DELETE /api/v1/giftcards/{code}", authMiddleware.RequireRole(giftCardHandler.DisableGiftCard(), models.RoleAdmin))

	// Orders
	routerMux.HandleFunc("POST /api/v1/orders", authMiddleware.Authenticate(orderHandler.CreateOrder()))
	routerMux.HandleFunc("GET /api/v1/orders/{id}", authMiddleware.Authenticate(orderHandler.GetOrder()))
	routerMux.HandleFunc("GET /api/v1/orders", authMiddleware.Authenticate(orderHandler.ListOrders()))
	routerMux.HandleFunc("PATCH /api/v1/orders/{id}/status", authMiddleware.RequireRole(orderHandler.UpdateOrderStatus(), models.RoleAdmin))
	routerMux.HandleFunc("POST /api/v1/orders/{id}/cancel", authMiddleware.Authenticate(orderHandler.CancelOrder()))

	// Reviews
	routerMux.HandleFunc("POST /api/v1/reviews", authMiddleware.Authenticate(reviewHandler.CreateReview()))
	routerMux.HandleFunc("PATCH /api/v1/reviews/{id}/moderate", authMiddleware.RequireRole(reviewHandler.ModerateReview(), models.RoleAdmin))
	routerMux.HandleFunc("DELETE /api/v1/reviews/{id}", authMiddleware.Authenticate(reviewHandler.DeleteReview()))

	// Wishlist and comparison
	routerMux.HandleFunc("GET /api/v1/wishlist", authMiddleware.Authenticate(wishlistHandler.ListWishlist()))
	routerMux.HandleFunc("POST /api/v1/wishlist", authMiddleware.Authenticate(wishlistHandler.AddToWishlist()))
	routerMux.HandleFunc("DELETE /api/v1/wishlist/{productId}", authMiddleware.Authenticate(wishlistHandler.RemoveFromWishlist()))
	routerMux.HandleFunc("GET /api/v1/comparison", authMiddleware.Authenticate(wishlistHandler.ListComparison()))
	routerMux.HandleFunc("POST /api/v1/comparison", authMiddleware.Authenticate(wishlistHandler.AddToComparison()))
	routerMux.HandleFunc("DELETE /api/v1/comparison/{productId}", authMiddleware.Authenticate(wishlistHandler.RemoveFromComparison()))

	// Payments
	routerMux.HandleFunc("POST /api/v1/payments", authMiddleware.Authenticate(paymentHandler.CreatePayment()))
	routerMux.HandleFunc("GET /api/v1/payments/{id}", authMiddleware.Authenticate(paymentHandler.GetPayment()))
	routerMux.HandleFunc("GET /api/v1/payments", authMiddleware.Authenticate(paymentHandler.ListPayments()))
	routerMux.HandleFunc("POST /api/v1/payments/webhook", paymentHandler.HandleStripeWebhook())

	// Notifications and admin
	routerMux.HandleFunc("POST /api/v1/notifications/email", authMiddleware.RequireRole(notificationHandler.SendEmail(), models.RoleAdmin))
	routerMux.HandleFunc("GET /api/v1/notifications", authMiddleware.RequireRole(notificationHandler.ListNotifications(), models.RoleAdmin))
	routerMux.HandleFunc("GET /api/v1/admin/dashboard", authMiddleware.RequireRole(adminHandler.DashboardStats(), models.RoleAdmin))

	// Operational endpoints
	routerMux.HandleFunc("GET /ws", authMiddleware.Authenticate(hub.Handler()))
	routerMux.Handle("GET /metrics", metrics.Handler())
	routerMux.Handle("GET /health", healthHandler.Handler())

	// Middleware chaining
	var handler http.Handler = routerMux
	handler = middleware.Logging(handler)
	handler = otelhttp.NewHandler(handler, "marketplace")
	handler = metrics.Middleware(handler)
	handler = rateLimiter.Limit(handler)
	handler = cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Stripe-Signature"},
	}).Handler(handler)

	// Setup http server
	server := http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	slog.Info("🚀 Server is starting...", slog.String("address", cfg.Addr))

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("❌ Failed to start server", slog.Any("error", err.Error()))
		}
	}()

	<-done

	slog.Warn("🛑 Shutdown signal received. Preparing to stop the server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("⚠️ Server shutdown encountered an issue", slog.String("error", err.Error()))
	} else {
		slog.Info("✅ Server shut down gracefully. All connections closed.")
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Error("⚠️ Tracing shutdown encountered an issue", slog.String("error", err.Error()))
	}
}
