package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hoanghust2003/Restaurant-Management-sub003/config"
	"github.com/hoanghust2003/Restaurant-Management-sub003/models"
	"github.com/hoanghust2003/Restaurant-Management-sub003/utils"
)

// The reconciler is the scheduled sweep over the batch ledger: it promotes
// batches into ExpiringSoon/Expired as time passes and reports low stock and
// upcoming expiries. Run once (cron) or as a long-lived loop.
func main() {
	once := flag.Bool("once", false, "run a single reconciliation pass and exit")
	interval := flag.Duration("interval", time.Hour, "time between passes in loop mode")
	useRedis := flag.Bool("redis", false, "serialize passes across instances via redis lock")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if *useRedis {
		config.ConnectRedisWithRetry()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Println("shutting down")
		cancel()
	}()

	if *once {
		if err := runPass(ctx); err != nil {
			log.Fatalf("reconciliation failed: %v", err)
		}
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	if err := runPass(ctx); err != nil {
		log.Printf("reconciliation failed: %v", err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := runPass(ctx); err != nil {
				log.Printf("reconciliation failed: %v", err)
			}
		}
	}
}

func runPass(ctx context.Context) error {
	release, err := utils.InventoryLock(ctx, "reconcile", 5*time.Minute)
	if err != nil {
		return err
	}
	defer release()

	today := utils.DateOnlyUTC(time.Now())
	changed, err := models.ReconcileBatchStatuses(ctx, today)
	if err != nil {
		return err
	}
	log.Printf("reconciled batch statuses (changed=%d today=%s)", changed, today.Format("2006-01-02"))

	low, err := models.GetLowStockItems(ctx)
	if err != nil {
		return err
	}
	for _, item := range low {
		log.Printf("low stock: %s quantity=%s threshold=%s", item.Name, item.CurrentQuantity, item.Threshold)
	}

	expiring, err := models.GetBatchesNeedingNotification(ctx)
	if err != nil {
		return err
	}
	if len(expiring) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(expiring))
	for i := range expiring {
		b := &expiring[i]
		log.Printf("expiring soon: batch=%s lot=%s name=%s expiry=%s remaining=%s",
			b.ID, b.LotNumber, b.Name, b.ExpiryDate.Format("2006-01-02"), b.RemainingQuantity)
		ids = append(ids, b.ID)
	}
	return models.MarkBatchesAsNotified(ctx, ids)
}
