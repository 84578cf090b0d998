package models

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/hoanghust2003/Restaurant-Management-sub003/config"
	"github.com/hoanghust2003/Restaurant-Management-sub003/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB installs a fresh in-memory SQLite database as the global DB
// and migrates the schema. Each test gets its own database.
func setupTestDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// A :memory: database exists per connection; cap the pool at one so every
	// query and transaction sees the same database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	config.SetDB(db)
	MigrateTable()
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func seedIngredient(t *testing.T, name string, threshold string) *Ingredient {
	t.Helper()
	ing, err := CreateIngredient(context.Background(), &NewIngredient{
		Name:      name,
		UnitName:  "kg",
		Threshold: mustDecimal(t, threshold),
	})
	if err != nil {
		t.Fatalf("seed ingredient %s: %v", name, err)
	}
	return ing
}

// seedBatch inserts a batch directly, bypassing the import processor, with
// the expiry the given number of days from today. Negative days means
// already expired.
func seedBatch(t *testing.T, ingredientId uuid.UUID, qty, unitPrice string, expiryDays int) *Batch {
	t.Helper()
	quantity := mustDecimal(t, qty)
	price := mustDecimal(t, unitPrice)
	today := utils.DateOnlyUTC(time.Now())

	batch := Batch{
		ID:                uuid.New(),
		ImportId:          uuid.New(),
		IngredientId:      ingredientId,
		Name:              "seeded",
		LotNumber:         "LOT-" + uuid.NewString()[:8],
		Quantity:          quantity,
		RemainingQuantity: quantity,
		UnitPrice:         price,
		TotalPrice:        quantity.Mul(price),
		ExpiryDate:        today.AddDate(0, 0, expiryDays),
	}
	batch.Status = ClassifyBatchStatus(batch.RemainingQuantity, batch.ExpiryDate, today, BatchStatusAvailable)

	if err := config.GetDB().Create(&batch).Error; err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	return &batch
}

// seedImport runs a full import for a single line and returns its batch.
func seedImport(t *testing.T, ingredientId uuid.UUID, qty, unitPrice string, expiryDays int) (*IngredientImport, *Batch) {
	t.Helper()
	expiry := utils.DateOnlyUTC(time.Now()).AddDate(0, 0, expiryDays)
	imp, err := CreateImport(context.Background(), &NewIngredientImport{
		Supplier: "test supplier",
		Batches: []NewImportBatch{{
			IngredientId: ingredientId,
			Quantity:     mustDecimal(t, qty),
			UnitPrice:    mustDecimal(t, unitPrice),
			ExpiryDate:   expiry.Format("2006-01-02"),
		}},
	})
	if err != nil {
		t.Fatalf("seed import: %v", err)
	}
	return imp, &imp.Batches[0]
}

// updateForTest writes raw column values, bypassing the model functions.
// Used to fabricate states the public API refuses to create (for example an
// Available row whose expiry has silently drifted into the window).
func (b *Batch) updateForTest(updates map[string]interface{}) error {
	return config.GetDB().Model(&Batch{}).Where("id = ?", b.ID).Updates(updates).Error
}

func reloadBatch(t *testing.T, id uuid.UUID) *Batch {
	t.Helper()
	b, err := GetBatchById(context.Background(), id)
	if err != nil {
		t.Fatalf("reload batch %s: %v", id, err)
	}
	return b
}
