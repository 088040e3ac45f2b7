package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"campus-access-backend/config"
	"campus-access-backend/internal/db"
	"campus-access-backend/internal/notification"
	"campus-access-backend/internal/store"
)

// End-of-day batch. Run from cron after the campus closes; it checks out every
// student still flagged as on campus and pushes them a notice.
func main() {
	logger := log.New(os.Stdout, "auto-checkout ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}

	appStore := store.NewGormStore(gormDB, store.Rules{
		Cooldown:     cfg.Scan.Cooldown,
		BorrowPeriod: time.Duration(cfg.Scan.BorrowPeriodDays) * 24 * time.Hour,
		FinePerDay:   cfg.Scan.FinePerDay,
	})

	now := time.Now().UTC()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), cfg.Scan.AutoCheckoutHour, 0, 0, 0, time.UTC)
	if cutoff.After(now) {
		cutoff = now
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	summary, err := appStore.AutoCheckout(ctx, cutoff)
	if err != nil {
		logger.Fatalf("auto-checkout batch failed: %v", err)
	}
	logger.Printf("auto-checkout processed %d students, %d failed", summary.Processed, summary.Failed)

	if summary.Processed == 0 {
		return
	}
	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Println("VAPID keys not configured, skipping push notices")
		return
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions)
	pool.Start(ctx)

	message := fmt.Sprintf("You were automatically checked out at %s",
		cutoff.Format("3:04 PM"))
	for _, id := range summary.StudentIDs {
		pool.Dispatch(notification.Notice{StudentID: id, Message: message})
	}

	// Give the workers a moment to drain before the process exits.
	time.Sleep(5 * time.Second)
	logger.Printf("dispatched %d push notices", len(summary.StudentIDs))
}
