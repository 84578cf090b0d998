package models

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hoanghust2003/Restaurant-Management-sub003/config"
	"github.com/hoanghust2003/Restaurant-Management-sub003/utils"
	"github.com/shopspring/decimal"
)

func TestClassifyBatchStatus(t *testing.T) {
	today := utils.DateOnlyUTC(time.Now())
	day := func(offset int) time.Time { return today.AddDate(0, 0, offset) }

	cases := []struct {
		name      string
		remaining string
		expiry    time.Time
		current   BatchStatus
		want      BatchStatus
	}{
		{"plenty of stock far from expiry", "10", day(30), BatchStatusAvailable, BatchStatusAvailable},
		{"expires beyond the window", "10", day(8), BatchStatusAvailable, BatchStatusAvailable},
		{"expires exactly at the window edge", "10", day(7), BatchStatusAvailable, BatchStatusExpiringSoon},
		{"expires tomorrow", "10", day(1), BatchStatusAvailable, BatchStatusExpiringSoon},
		{"expires today is still usable", "10", day(0), BatchStatusAvailable, BatchStatusExpiringSoon},
		{"expired yesterday", "10", day(-1), BatchStatusAvailable, BatchStatusExpired},
		{"zero remaining", "0", day(30), BatchStatusAvailable, BatchStatusDepleted},
		{"depletion beats expiry", "0", day(-5), BatchStatusExpired, BatchStatusDepleted},
		{"damaged override wins over expiry", "10", day(-5), BatchStatusDamaged, BatchStatusDamaged},
		{"on hold override wins over depletion", "0", day(30), BatchStatusOnHold, BatchStatusOnHold},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			remaining := mustDecimal(t, tc.remaining)
			got := ClassifyBatchStatus(remaining, tc.expiry, today, tc.current)
			if got != tc.want {
				t.Fatalf("ClassifyBatchStatus(%s, %s) = %s, want %s", tc.remaining, tc.expiry.Format("2006-01-02"), got, tc.want)
			}
		})
	}
}

func TestReconcileBatchStatusesIsIdempotent(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	ing := seedIngredient(t, "flour", "0")

	// Stored as Available but written with an expiry inside the window, so
	// the sweep has something to promote.
	stale := seedBatch(t, ing.ID, "10", "2", 30)
	today := utils.DateOnlyUTC(time.Now())
	err := stale.updateForTest(map[string]interface{}{"expiry_date": today.AddDate(0, 0, 3)})
	if err != nil {
		t.Fatalf("age batch: %v", err)
	}
	seedBatch(t, ing.ID, "5", "2", 60)

	changed, err := ReconcileBatchStatuses(ctx, today)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if changed != 1 {
		t.Fatalf("first pass changed %d batches, want 1", changed)
	}
	if got := reloadBatch(t, stale.ID).Status; got != BatchStatusExpiringSoon {
		t.Fatalf("stale batch status = %s, want ExpiringSoon", got)
	}

	changed, err = ReconcileBatchStatuses(ctx, today)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if changed != 0 {
		t.Fatalf("second pass changed %d batches, want 0", changed)
	}
}

func TestReconcileSkipsOverriddenAndDepleted(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	ing := seedIngredient(t, "butter", "0")
	today := utils.DateOnlyUTC(time.Now())

	damaged := seedBatch(t, ing.ID, "10", "5", 30)
	if _, err := SetBatchStatus(ctx, damaged.ID, BatchStatusDamaged); err != nil {
		t.Fatalf("set damaged: %v", err)
	}
	// Push its expiry into the past; the override must still pin it.
	err := damaged.updateForTest(map[string]interface{}{"expiry_date": today.AddDate(0, 0, -1)})
	if err != nil {
		t.Fatalf("age batch: %v", err)
	}

	if _, err := ReconcileBatchStatuses(ctx, today); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got := reloadBatch(t, damaged.ID).Status; got != BatchStatusDamaged {
		t.Fatalf("damaged batch status = %s, want Damaged", got)
	}
}

func TestReconcileResetsNotificationFlagOnLeavingWindow(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	ing := seedIngredient(t, "milk", "0")
	today := utils.DateOnlyUTC(time.Now())

	b := seedBatch(t, ing.ID, "10", "3", 3)
	if b.Status != BatchStatusExpiringSoon {
		t.Fatalf("seed status = %s, want ExpiringSoon", b.Status)
	}
	if err := MarkBatchesAsNotified(ctx, []uuid.UUID{b.ID}); err != nil {
		t.Fatalf("mark notified: %v", err)
	}

	// The batch expires; it leaves the window and the flag resets so a
	// fresh alert fires if it somehow re-enters.
	if _, err := ReconcileBatchStatuses(ctx, today.AddDate(0, 0, 5)); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	got := reloadBatch(t, b.ID)
	if got.Status != BatchStatusExpired {
		t.Fatalf("status = %s, want Expired", got.Status)
	}
	if got.IsNotifiedExpiring {
		t.Fatal("notification flag should reset when leaving the expiring window")
	}
}

// A sweep transition computed from a stale row must not land after an
// allocator has already consumed the batch: remaining=0 rows stay Depleted.
func TestStaleSweepWriteCannotOverwriteAllocator(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	ing := seedIngredient(t, "garlic", "0")
	today := utils.DateOnlyUTC(time.Now())

	b := seedBatch(t, ing.ID, "10", "1", 10)
	stale := *b

	// An export drains the batch between the sweep's read and its write.
	if _, err := CreateExport(ctx, &NewIngredientExport{
		Reason: "service",
		Items:  []NewExportItem{{IngredientId: ing.ID, Quantity: mustDecimal(t, "10")}},
	}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if got := reloadBatch(t, b.ID); got.Status != BatchStatusDepleted {
		t.Fatalf("status = %s after draining export, want Depleted", got.Status)
	}

	applied, err := applyStatusTransition(config.GetDB(), &stale, BatchStatusExpiringSoon)
	if err != nil {
		t.Fatalf("apply transition: %v", err)
	}
	if applied {
		t.Fatal("transition from a stale row must not apply")
	}
	got := reloadBatch(t, b.ID)
	if got.Status != BatchStatusDepleted {
		t.Fatalf("status = %s, want Depleted preserved", got.Status)
	}
	if !got.RemainingQuantity.IsZero() {
		t.Fatalf("remaining = %s, want 0", got.RemainingQuantity)
	}

	// The row is picked up cleanly by the next regular sweep.
	if _, err := ReconcileBatchStatuses(ctx, today); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got := reloadBatch(t, b.ID); got.Status != BatchStatusDepleted {
		t.Fatalf("status = %s after sweep, want Depleted", got.Status)
	}
}

// Lookup failures that are not "row missing" must surface as-is, not as
// NotFoundError.
func TestGetBatchByIdDistinguishesMissingFromFailure(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	_, err := GetBatchById(ctx, uuid.New())
	var nerr *utils.NotFoundError
	if !errors.As(err, &nerr) {
		t.Fatalf("missing row: want NotFoundError, got %T: %v", err, err)
	}

	if err := config.GetDB().Migrator().DropTable(&Batch{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	_, err = GetBatchById(ctx, uuid.New())
	if err == nil {
		t.Fatal("query against a dropped table should fail")
	}
	if errors.As(err, &nerr) {
		t.Fatalf("database failure was masked as NotFoundError: %v", err)
	}
}

func TestSetAndReleaseBatchStatus(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	ing := seedIngredient(t, "sugar", "0")
	b := seedBatch(t, ing.ID, "10", "4", 30)

	if _, err := SetBatchStatus(ctx, b.ID, BatchStatusExpired); err == nil {
		t.Fatal("setting a derived status manually should fail")
	} else {
		var verr *utils.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("want ValidationError, got %T: %v", err, err)
		}
	}

	held, err := SetBatchStatus(ctx, b.ID, BatchStatusOnHold)
	if err != nil {
		t.Fatalf("set on hold: %v", err)
	}
	if held.Status != BatchStatusOnHold {
		t.Fatalf("status = %s, want OnHold", held.Status)
	}

	released, err := ReleaseBatch(ctx, b.ID)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.Status != BatchStatusAvailable {
		t.Fatalf("released status = %s, want Available", released.Status)
	}

	if _, err := ReleaseBatch(ctx, b.ID); err == nil {
		t.Fatal("releasing a non-overridden batch should fail")
	}
}

func TestReleaseReclassifiesFromCurrentState(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	ing := seedIngredient(t, "cream", "0")
	today := utils.DateOnlyUTC(time.Now())

	b := seedBatch(t, ing.ID, "10", "4", 30)
	if _, err := SetBatchStatus(ctx, b.ID, BatchStatusDamaged); err != nil {
		t.Fatalf("set damaged: %v", err)
	}
	err := b.updateForTest(map[string]interface{}{"expiry_date": today.AddDate(0, 0, -2)})
	if err != nil {
		t.Fatalf("age batch: %v", err)
	}

	released, err := ReleaseBatch(ctx, b.ID)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.Status != BatchStatusExpired {
		t.Fatalf("released status = %s, want Expired", released.Status)
	}
}

func TestDecrementBatchQuantityVersionConflict(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	ing := seedIngredient(t, "salt", "0")
	today := utils.DateOnlyUTC(time.Now())

	fresh := seedBatch(t, ing.ID, "10", "1", 30)
	stale := *fresh

	db := config.GetDB().WithContext(ctx)
	if err := decrementBatchQuantity(db, fresh, decimal.NewFromInt(4), today); err != nil {
		t.Fatalf("first decrement: %v", err)
	}

	err := decrementBatchQuantity(db, &stale, decimal.NewFromInt(4), today)
	var cerr *utils.ConcurrentModificationError
	if !errors.As(err, &cerr) {
		t.Fatalf("want ConcurrentModificationError, got %T: %v", err, err)
	}
	if cerr.BatchId != fresh.ID.String() {
		t.Fatalf("conflict batch id = %s, want %s", cerr.BatchId, fresh.ID)
	}

	got := reloadBatch(t, fresh.ID)
	if !got.RemainingQuantity.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("remaining = %s, want 6", got.RemainingQuantity)
	}
}

func TestDecrementBelowZeroIsInvariantViolation(t *testing.T) {
	setupTestDB(t)
	ing := seedIngredient(t, "pepper", "0")
	today := utils.DateOnlyUTC(time.Now())
	b := seedBatch(t, ing.ID, "3", "1", 30)

	err := decrementBatchQuantity(config.GetDB(), b, decimal.NewFromInt(5), today)
	var ierr *utils.InvariantViolationError
	if !errors.As(err, &ierr) {
		t.Fatalf("want InvariantViolationError, got %T: %v", err, err)
	}
}
