package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-marketplace/internal/config"
	"github.com/iliyamo/tour-marketplace/internal/database"
	"github.com/iliyamo/tour-marketplace/internal/handler"
	"github.com/iliyamo/tour-marketplace/internal/lock"
	"github.com/iliyamo/tour-marketplace/internal/queue"
	"github.com/iliyamo/tour-marketplace/internal/repository"
	"github.com/iliyamo/tour-marketplace/internal/router"
	"github.com/iliyamo/tour-marketplace/internal/service"
)

func main() {
	// .env is optional; real deployments configure the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// A nil Redis client degrades the advisory lock to a no-op; the row
	// lock alone still guarantees the seat invariant.
	redisClient := config.NewRedisClient()
	var lockStore lock.Store
	if redisClient != nil {
		lockStore = redisClient
	} else {
		log.Printf("redis unavailable, booking relies on row locks only")
	}
	locks := lock.New(lockStore, cfg.LockTTL, cfg.LockRetry, cfg.LockMaxWait)

	tourRepo := repository.NewTourRepo(db)
	departureRepo := repository.NewDepartureRepo(db)
	purchaseRepo := repository.NewPurchaseRepo(db)
	referralRepo := repository.NewReferralRepo(db)
	userRepo := repository.NewUserRepo(db)

	virtualSvc := service.NewVirtualDepartureService(db, tourRepo, departureRepo, uint32(cfg.VirtualCapacity))
	bookingSvc := service.NewBookingService(db, locks, departureRepo, tourRepo, purchaseRepo, referralRepo, userRepo, service.AMQPNotifier{})
	departureSvc := service.NewDepartureService(db, locks, departureRepo, tourRepo)
	sweeper := service.NewSweeper(departureRepo, cfg.SweepInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Run(ctx)
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("booking-consumer: %v", err)
		}
	}()

	e := echo.New()
	router.Register(e, router.Handlers{
		Auth:     handler.NewAuthHandler(userRepo, cfg.JWTSecret, cfg.AccessTTLMin, cfg.BcryptCost),
		Public:   handler.NewPublicHandler(tourRepo, virtualSvc),
		Booking:  handler.NewBookingHandler(bookingSvc, virtualSvc, purchaseRepo),
		Agency:   handler.NewAgencyHandler(userRepo, purchaseRepo, departureSvc, bookingSvc),
		Referral: handler.NewReferralHandler(referralRepo, userRepo, tourRepo),
	}, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
