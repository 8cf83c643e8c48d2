package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wichananm65/checkout-backend/internal/auth"
	"github.com/wichananm65/checkout-backend/internal/cart"
	"github.com/wichananm65/checkout-backend/internal/checkout"
	"github.com/wichananm65/checkout-backend/internal/config"
	"github.com/wichananm65/checkout-backend/internal/database"
	"github.com/wichananm65/checkout-backend/internal/destination"
	"github.com/wichananm65/checkout-backend/internal/logger"
	"github.com/wichananm65/checkout-backend/internal/order"
	"github.com/wichananm65/checkout-backend/internal/payment"
	"github.com/wichananm65/checkout-backend/internal/product"
	"github.com/wichananm65/checkout-backend/internal/session"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	var migrateFirst bool

	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Run the HTTP server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, migrateFirst)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, migrateFirst bool) error {
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if migrateFirst {
		if err := database.Migrate(db); err != nil {
			return err
		}
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}
	storage := session.NewRedisStorage(rdb)
	defer storage.Close()

	provider, err := newProvider(cfg, log)
	if err != nil {
		return err
	}

	products := product.NewPostgresRepository(db)
	orders := order.NewPostgresRepository(db)
	carts := cart.NewService(products, log)
	svc := checkout.NewService(checkout.Deps{
		Carts:        carts,
		Orders:       orders,
		Products:     products,
		Destinations: destination.NewPostgresRepository(db),
		Reconciler:   order.NewReconciler(orders, products, order.MissingProductPolicy(cfg.MissingProductPolicy), log),
		Finalizer:    order.NewFinalizer(orders, carts, log),
		Provider:     provider,
	}, checkout.Settings{
		Currency:       cfg.Currency,
		BaseURL:        cfg.BaseURL,
		PublishableKey: cfg.StripePublishableKey,
	}, log)

	app := fiber.New(fiber.Config{
		ErrorHandler:          errorHandler(log),
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	setupCORS(app)
	app.Use(logger.Requests(log))
	app.Get("/healthz", healthz(db))
	app.Use(auth.Middleware(cfg.JWTSecret, "/healthz"))
	checkout.NewHandler(svc, carts, session.NewStore(storage, cfg.SessionTTL), log).RegisterProtectedRoutes(app)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.String("env", cfg.Env))
		return app.Listen(cfg.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})
	return g.Wait()
}

// newProvider wraps Stripe in a circuit breaker. Without a secret key only
// development runs are allowed, against a fake provider that reports every
// session paid.
func newProvider(cfg config.Config, log *zap.Logger) (payment.Provider, error) {
	var p payment.Provider
	switch {
	case cfg.StripeSecretKey != "":
		p = payment.NewStripeProvider(cfg.StripeSecretKey, cfg.PaymentTimeout)
	case cfg.Env == "development":
		log.Warn("STRIPE_SECRET_KEY not set, using the fake payment provider")
		p = &payment.FakeProvider{AutoPay: true}
	default:
		return nil, errors.New("STRIPE_SECRET_KEY is not set")
	}
	return payment.NewBreaker(p, payment.BreakerSettings{}, log), nil
}

func setupCORS(app *fiber.App) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
}

func healthz(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := db.PingContext(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
		}
		log.Error("unhandled error",
			zap.Any("request_id", c.Locals("request_id")),
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "internal server error"})
	}
}
