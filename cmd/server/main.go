package main // Entry point package

import (
    "context"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/fitdesk/class-booking/internal/config"
    "github.com/fitdesk/class-booking/internal/database"
    "github.com/fitdesk/class-booking/internal/handler"
    "github.com/fitdesk/class-booking/internal/ledger"
    "github.com/fitdesk/class-booking/internal/middleware"
    "github.com/fitdesk/class-booking/internal/queue"
    "github.com/fitdesk/class-booking/internal/repository"
    "github.com/fitdesk/class-booking/internal/router"
    "github.com/fitdesk/class-booking/internal/service"
)

func main() {
    // .env is optional; real deployments set variables directly.
    _ = godotenv.Load()

    log := logrus.New()
    log.SetFormatter(&logrus.JSONFormatter{})

    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.WithError(err).Fatal("database connection failed")
    }
    defer db.Close()
    if err := database.EnsureSchema(context.Background(), db); err != nil {
        log.WithError(err).Fatal("schema setup failed")
    }

    templateRepo := repository.NewTemplateRepo(db)
    bookingRepo := repository.NewBookingRepo(db)

    var events service.EventPublisher
    if cfg.PublishEvents {
        events = queue.NewPublisher(log)
        // The consumer mirrors events into logs/booking.log; it keeps
        // reconnecting on its own if the broker flaps.
        go func() {
            if err := queue.StartBookingConsumer(log); err != nil {
                log.WithError(err).Warn("booking consumer stopped")
            }
        }()
    }

    led := ledger.New(bookingRepo, cfg.LockTimeout, log)
    svc := service.NewBookingService(templateRepo, bookingRepo, led, events, log)

    sweepCtx, stopSweep := context.WithCancel(context.Background())
    defer stopSweep()
    go service.RunNoShowSweeper(sweepCtx, svc, cfg.SweepInterval, log)

    e := echo.New()
    e.HideBanner = true

    // Redis is optional: without it the limiter and the occupancy cache
    // silently disable themselves.
    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Warn("redis unavailable; rate limiting and response cache disabled")
    }
    e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
    e.Use(middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

    bookingHandler := handler.NewBookingHandler(svc, bookingRepo)
    templateHandler := handler.NewTemplateHandler(templateRepo, svc)

    router.RegisterRoutes(e)
    router.RegisterPublic(e, templateHandler, bookingHandler)
    router.RegisterBooking(e, bookingHandler, templateHandler, cfg.JWTSecret)

    addr := ":" + cfg.Port
    log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("booking engine listening")
    if err := e.Start(addr); err != nil {
        log.WithError(err).Fatal("server stopped")
    }
}
