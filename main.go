package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	"github.com/onhighmng/melhor-saude-final-57-sub010/config"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/clock"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/consumer"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/handler"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/middleware"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/notifier"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/realtime"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/repository"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/scheduler"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/service"
	"github.com/onhighmng/melhor-saude-final-57-sub010/pkg/database"
	"github.com/onhighmng/melhor-saude-final-57-sub010/pkg/obs"
	"github.com/onhighmng/melhor-saude-final-57-sub010/pkg/rabbitmq"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid time zone: %v", err)
	}
	grid, err := service.NewSlotGrid(cfg.SlotDayStart, cfg.SlotDayEnd, cfg.SlotInterval)
	if err != nil {
		log.Fatalf("invalid slot grid: %v", err)
	}

	shutdownTracer, err := obs.InitTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}

	db := database.NewPostgresDB(cfg.DSN())

	// RabbitMQ publisher: change fan-out and notification hand-off
	mqPublisher, err := rabbitmq.NewPublisher(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ: %v", err)
	}
	defer mqPublisher.Close()

	hub := realtime.NewHub()
	changes := realtime.NewBrokerPublisher(mqPublisher)

	// Per-instance queue: every instance's hub hears every change
	syncMQ, err := rabbitmq.NewConsumer(cfg.RabbitURL, "", consumer.SyncKeys)
	if err != nil {
		log.Fatalf("failed to declare sync queue: %v", err)
	}
	defer syncMQ.Close()
	syncMsgs, err := syncMQ.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to start sync consumer: %v", err)
	}
	consumer.NewSyncConsumer(hub).Start(syncMsgs)

	// Shared queue: provider directory updates
	providerMQ, err := rabbitmq.NewConsumer(cfg.RabbitURL, rabbitmq.ProviderQueue, []string{consumer.RoutingKeyProviderUpserted})
	if err != nil {
		log.Fatalf("failed to declare provider queue: %v", err)
	}
	defer providerMQ.Close()
	providerMsgs, err := providerMQ.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to start provider consumer: %v", err)
	}

	// Repositories
	tx := repository.NewTransactor(db)
	allocRepo := repository.NewAllocationRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	blackoutRepo := repository.NewBlackoutRepository(db)
	providerRepo := repository.NewProviderRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	consumer.NewProviderConsumer(providerRepo).Start(providerMsgs)

	notify, err := notifier.New(cfg.NotificationSink, mqPublisher)
	if err != nil {
		log.Fatalf("invalid notification sink: %v", err)
	}

	// Services
	clk := clock.Real{}
	quota := service.NewQuotaLedger(allocRepo, changes)
	availability := service.NewAvailabilityService(bookingRepo, blackoutRepo, grid)
	bookings := service.NewBookingService(service.BookingDeps{
		Tx:        tx,
		Bookings:  bookingRepo,
		Blackouts: blackoutRepo,
		Providers: providerRepo,
		Quota:     quota,
		Grid:      grid,
		Clock:     clk,
		Location:  loc,
		Publisher: changes,
	})
	lifecycle := service.NewLifecycleService(service.LifecycleDeps{
		Tx:        tx,
		Bookings:  bookingRepo,
		Ledger:    ledgerRepo,
		Blackouts: blackoutRepo,
		Quota:     quota,
		Grid:      grid,
		Clock:     clk,
		Location:  loc,
		Publisher: changes,
		Notifier:  notify,
	})

	// Reconcile runner
	runner := scheduler.NewRunner("completion scan", cfg.ScanInterval, func(ctx context.Context) error {
		report, err := lifecycle.Scan(ctx)
		if err != nil {
			return err
		}
		if report.Completed > 0 || report.Failed > 0 {
			log.Printf("[Lifecycle] scan checked=%d completed=%d exhausted=%d skipped=%d failed=%d",
				report.Checked, report.Completed, report.Exhausted, report.Skipped, report.Failed)
		}
		return nil
	})
	go runner.Run(ctx)

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Use(echoMw.RequestLoggerWithConfig(echoMw.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echoMw.RequestLoggerValues) error {
			log.Printf("%s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(echoMw.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok", "service": cfg.ServiceName})
	})

	api := e.Group("/api/v1", middleware.JWTAuth(cfg.JWTSecret))
	admin := api.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))

	handler.NewBalanceHandler(quota, hub).RegisterRoutes(api, admin)
	handler.NewAvailabilityHandler(availability).RegisterRoutes(api, admin)
	handler.NewBookingHandler(bookings, lifecycle, clk, loc).RegisterRoutes(api, admin)

	go func() {
		log.Printf("Session Ledger starting on :%s", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Printf("tracer shutdown: %v", err)
	}
}
