package service

import (
    "context"
    "time"

    "github.com/sirupsen/logrus"
)

// RunNoShowSweeper periodically sweeps past occurrences and marks
// unattended confirmed bookings as no-shows.  It runs until the context
// is cancelled and is started from main as a background goroutine,
// outside the real-time booking flow.
func RunNoShowSweeper(ctx context.Context, svc *BookingService, interval time.Duration, log *logrus.Logger) {
    if log == nil {
        log = logrus.StandardLogger()
    }
    ticker := time.NewTicker(interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            n, err := svc.SweepNoShows(ctx, time.Now().UTC())
            if err != nil {
                log.WithError(err).Warn("no-show sweep failed")
                continue
            }
            if n > 0 {
                log.WithField("marked", n).Info("no-show sweep completed")
            }
        }
    }
}
