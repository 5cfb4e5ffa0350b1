// Package app wires configuration, storage, domain services, and the HTTP
// server into a runnable process.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/discount"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/order"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/domain/table"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/handler"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/notify"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/promocache"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/internal/storage/postgres"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/pkg/health"
	"github.com/THAITHIENDAYYY/DoAnTotNghiep-sub002/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pricing, err := parsePricing(cfg.Pricing)
	if err != nil {
		return errors.Wrap(err, "parse pricing config")
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	customerRepo := postgres.NewCustomerRepository(pool)
	employeeRepo := postgres.NewEmployeeRepository(pool)
	discountRepo := postgres.NewDiscountRepository(pool)
	tableRepo := postgres.NewTableRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Bloom filter over known codes rejects garbage lookups before they
	// reach the database.
	codes, err := discountRepo.ListCodes(ctx)
	if err != nil {
		return errors.Wrap(err, "list discount codes")
	}
	codeFilter := promocache.Seed(codes)
	lg.Info("Seeded discount code filter", zap.Int("codes", len(codes)))

	// Event notifications: RabbitMQ when configured, no-op otherwise.
	var events notify.Publisher = notify.Nop{}
	if cfg.AMQPURL != "" {
		pub, err := notify.NewAMQPPublisher(cfg.AMQPURL, lg.Named("notify"))
		if err != nil {
			return errors.Wrap(err, "connect amqp")
		}
		defer pub.Close()
		events = pub
	}

	// Domain services.
	engine := discount.NewEngine(discountRepo, codeFilter, pricing.Scale)
	coordinator := table.NewCoordinator(tableRepo, orderRepo, txRunner, events)
	orderService := order.NewService(
		orderRepo, productRepo, customerRepo, employeeRepo,
		engine, discountRepo, coordinator, txRunner, events, pricing,
	)

	// HTTP handlers: API routes behind key authentication, health endpoints
	// open.
	h := handler.New(orderService, coordinator, tableRepo)
	api := http.NewServeMux()
	h.Register(api)

	secured := handler.Security(apikeyRepo, []byte(cfg.APIKeyPepper))(api)
	instrumented := otelhttp.NewHandler(secured, "pos-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", instrumented)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "api_key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func parsePricing(cfg PricingConfig) (order.Pricing, error) {
	taxRate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		return order.Pricing{}, errors.Wrapf(err, "tax rate %q", cfg.TaxRate)
	}
	deliveryFee, err := decimal.NewFromString(cfg.DeliveryFee)
	if err != nil {
		return order.Pricing{}, errors.Wrapf(err, "delivery fee %q", cfg.DeliveryFee)
	}
	return order.Pricing{
		TaxRate:     taxRate,
		DeliveryFee: deliveryFee,
		Scale:       cfg.CurrencyScale,
	}, nil
}
