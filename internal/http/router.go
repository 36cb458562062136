package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/onemove/marketplace/internal/auth"
	"github.com/onemove/marketplace/internal/config"
	"github.com/onemove/marketplace/internal/domain/user"
	"github.com/onemove/marketplace/internal/http/handlers"
	"github.com/onemove/marketplace/internal/http/middlewares"
	"github.com/onemove/marketplace/internal/observability"
	"github.com/onemove/marketplace/internal/redisclient"
	"github.com/onemove/marketplace/internal/repo/postgres"
	"github.com/onemove/marketplace/internal/storage"
)

const maxBodyBytes = 5 << 20 // product images ride in multipart bodies

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, rdb *redisclient.Client, uploader storage.Uploader, cfg config.Config) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("marketplace-api"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(prom.GinHandleMiddleware())

	// health + metrics

	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	health := handlers.NewHealthHandler(ping)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// repositories

	usersRepo := postgres.NewUsersRepo(pool)
	productsRepo := postgres.NewProductsRepo(pool)
	categoriesRepo := postgres.NewCategoriesRepo(pool)
	cartsRepo := postgres.NewCartsRepo(pool)
	salesRepo := postgres.NewSalesRepo(pool)

	jwtManager := auth.NewManager(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authMiddleware := middlewares.NewAuthMiddleware(jwtManager, usersRepo)
	limiter := middlewares.NewRateLimiter(rdb, log, 10, time.Minute)

	// handlers

	usersHandler := handlers.NewUsersHandler(usersRepo, jwtManager, cfg)
	productsHandler := handlers.NewProductsHandler(productsRepo, categoriesRepo, uploader)
	cartsHandler := handlers.NewCartsHandler(cartsRepo, productsRepo, salesRepo)

	api := r.Group("/api/v1")

	users := api.Group("/users")
	users.Use(middlewares.RequireJSON())
	{
		users.POST("/register", limiter.RateLimiterMiddleware(middlewares.KeyByIP), usersHandler.Register)
		users.POST("/login", limiter.RateLimiterMiddleware(middlewares.KeyByIP), usersHandler.Login)
		users.POST("/refresh-access-token", usersHandler.RefreshAccessToken)

		users.POST("/logout", authMiddleware.RequireAuth(), usersHandler.Logout)
		users.PATCH("/change-password", authMiddleware.RequireAuth(), usersHandler.ChangePassword)
		users.GET("/current-user", authMiddleware.RequireAuth(), usersHandler.CurrentUser)
		users.PATCH("/update-details", authMiddleware.RequireAuth(), usersHandler.UpdateDetails)
		users.PATCH("/update-role", authMiddleware.RequireAuth(), usersHandler.UpdateRole)
		users.GET("/get-user-products", authMiddleware.RequireAuth(), productsHandler.GetUserProducts)
	}

	products := api.Group("/products")
	{
		// multipart route, so no RequireJSON here
		products.POST("/list-product",
			authMiddleware.RequireAuth(),
			middlewares.RequireActiveRole(user.RoleSeller),
			productsHandler.ListProduct,
		)
		products.GET("/get-products", productsHandler.GetAllProducts)
		products.POST("/get-products-by-category", middlewares.RequireJSON(), productsHandler.GetProductsByCategory)
	}

	api.GET("/product-sold", authMiddleware.RequireAuth(), cartsHandler.GetProductsSold)

	carts := api.Group("/cart")
	carts.Use(middlewares.RequireJSON(), authMiddleware.RequireAuth())
	{
		carts.POST("/add-to-cart", cartsHandler.AddToCart)
		carts.GET("/get-cart-details", cartsHandler.GetCartDetails)
	}

	return r
}
