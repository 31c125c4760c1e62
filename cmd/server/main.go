package main // Entry point package

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/minghsiao/lamp-reservation/internal/config"
	"github.com/minghsiao/lamp-reservation/internal/database"
	"github.com/minghsiao/lamp-reservation/internal/handler"
	"github.com/minghsiao/lamp-reservation/internal/queue"
	"github.com/minghsiao/lamp-reservation/internal/repository"
	"github.com/minghsiao/lamp-reservation/internal/router"
	"github.com/minghsiao/lamp-reservation/internal/service"
	"github.com/minghsiao/lamp-reservation/internal/worker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}
	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	towerRepo := repository.NewTowerRepo(db)
	blockRepo := repository.NewBlockRepo(db)
	rowRepo := repository.NewRowRepo(db)
	slotRepo := repository.NewSlotRepo(db)
	resRepo := repository.NewReservationRepo(db)
	modeRepo := repository.NewPaymentModeRepo(db)

	booking := service.NewBookingService(db, slotRepo, resRepo, modeRepo,
		time.Duration(cfg.HoldDurationMin)*time.Minute)

	// The audit consumer and sweeper are best-effort companions to the
	// API: a broker outage degrades to lost audit lines, never to a
	// failed booking.
	go func() {
		if err := queue.StartAuditConsumer(); err != nil {
			log.Printf("audit consumer: %v", err)
		}
	}()

	sweeper := worker.NewSweeper(booking, time.Duration(cfg.SweepIntervalSec)*time.Second)
	if err := sweeper.Start(context.Background()); err != nil {
		log.Fatalf("sweeper: %v", err)
	}
	defer sweeper.Stop()

	rdb := config.NewRedisClient() // nil when Redis is unreachable or unconfigured

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAPI(e, router.Deps{
		Layout:    handler.NewLayoutHandler(towerRepo, blockRepo, rowRepo, slotRepo),
		SlotOps:   handler.NewSlotOpsHandler(slotRepo, booking),
		Booking:   handler.NewBookingHandler(booking, slotRepo, resRepo, modeRepo, true),
		JWTSecret: cfg.JWTSecret,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	go func() {
		if err := e.Start(addr); err != nil {
			log.Printf("server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
