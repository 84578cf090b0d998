package models

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hoanghust2003/Restaurant-Management-sub003/config"
	"github.com/hoanghust2003/Restaurant-Management-sub003/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// IngredientExport is one outbound issue document. Its lines record exactly
// which batches stock was drawn from and at what receipt price, so the cost
// of an export is fixed at allocation time and survives later price changes.
type IngredientExport struct {
	ID         uuid.UUID      `gorm:"type:char(36);primary_key" json:"id"`
	Reason     string         `gorm:"size:500;not null" json:"reason"`
	CreatedBy  string         `gorm:"size:36" json:"created_by,omitempty"`
	ExportDate time.Time      `gorm:"index;not null" json:"export_date"`
	Items      []ExportItem   `gorm:"foreignKey:ExportId" json:"items,omitempty"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// ExportItem is one allocation line: this many units from this batch, priced
// at the batch's receipt unit price.
type ExportItem struct {
	ID           uuid.UUID       `gorm:"type:char(36);primary_key" json:"id"`
	ExportId     uuid.UUID       `gorm:"type:char(36);index;not null" json:"export_id"`
	BatchId      uuid.UUID       `gorm:"type:char(36);index;not null" json:"batch_id"`
	Batch        *Batch          `gorm:"foreignKey:BatchId" json:"batch,omitempty"`
	IngredientId uuid.UUID       `gorm:"type:char(36);index;not null" json:"ingredient_id"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
}

type NewExportItem struct {
	IngredientId uuid.UUID       `json:"ingredient_id" validate:"required"`
	Quantity     decimal.Decimal `json:"quantity"`
}

type NewIngredientExport struct {
	Reason     string          `json:"reason" validate:"required"`
	ExportDate *time.Time      `json:"export_date"`
	Items      []NewExportItem `json:"items" validate:"required,min=1,dive"`
}

// TotalCost is the sum over lines of quantity times receipt unit price.
func (exp *IngredientExport) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for i := range exp.Items {
		total = total.Add(exp.Items[i].Quantity.Mul(exp.Items[i].UnitPrice))
	}
	return total
}

// batchAllocation is one planned draw against one batch.
type batchAllocation struct {
	Batch    *Batch
	Quantity decimal.Decimal
}

// eligibleBatchesForAllocation loads the allocatable batches of one
// ingredient inside the caller's transaction, in first-expiry-first-out
// order. Ties on expiry date break on creation time, then id, so the plan is
// fully deterministic. The classifier is re-applied in memory as a second
// line of defense against rows the sweep has not caught up with yet.
func eligibleBatchesForAllocation(tx *gorm.DB, ingredientId uuid.UUID, today time.Time) ([]Batch, error) {
	var batches []Batch
	err := tx.
		Where("ingredient_id = ?", ingredientId).
		Where("status IN ?", []BatchStatus{BatchStatusAvailable, BatchStatusExpiringSoon}).
		Where("remaining_quantity > 0").
		Order("expiry_date ASC, created_at ASC, id ASC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}

	eligible := batches[:0]
	for i := range batches {
		if batches[i].classify(today).IsAllocatable() {
			eligible = append(eligible, batches[i])
		}
	}
	return eligible, nil
}

// planAllocation walks the ordered batches and greedily fills the requested
// quantity. Returns the planned draws and the total that was available; a
// short plan means insufficient stock and the caller must not apply any of
// it.
func planAllocation(batches []Batch, requested decimal.Decimal) ([]batchAllocation, decimal.Decimal) {
	allocations := make([]batchAllocation, 0, len(batches))
	remaining := requested
	available := decimal.Zero

	for i := range batches {
		available = available.Add(batches[i].RemainingQuantity)
		if !remaining.IsPositive() {
			continue
		}
		take := decimal.Min(remaining, batches[i].RemainingQuantity)
		allocations = append(allocations, batchAllocation{Batch: &batches[i], Quantity: take})
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		return nil, available
	}
	return allocations, available
}

// CreateExport issues stock against the ledger. The whole export is
// all-or-nothing: every line is planned first, and if any ingredient cannot
// be fully covered the transaction rolls back with an InsufficientStockError
// naming the shortfall. Batches are consumed oldest expiry first, and each
// line freezes the batch's receipt unit price.
func CreateExport(ctx context.Context, input *NewIngredientExport) (*IngredientExport, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	for i := range input.Items {
		if !input.Items[i].Quantity.IsPositive() {
			return nil, &utils.ValidationError{Field: "quantity", Reason: "must be greater than zero"}
		}
	}

	today := utils.DateOnlyUTC(time.Now())
	exportDate := today
	if input.ExportDate != nil {
		exportDate = utils.DateOnlyUTC(*input.ExportDate)
	}

	exp := IngredientExport{
		ID:         uuid.New(),
		Reason:     input.Reason,
		ExportDate: exportDate,
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		exp.CreatedBy = userId
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items := make([]ExportItem, 0, len(input.Items))

		for i := range input.Items {
			line := &input.Items[i]
			// Resolved through tx so the existence check shares the export's
			// transaction (and its connection).
			var ingredient Ingredient
			if err := tx.Where("id = ?", line.IngredientId).First(&ingredient).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &utils.NotFoundError{Resource: "ingredient", Id: line.IngredientId.String()}
				}
				return err
			}

			batches, err := eligibleBatchesForAllocation(tx, line.IngredientId, today)
			if err != nil {
				return err
			}
			allocations, available := planAllocation(batches, line.Quantity)
			if allocations == nil {
				return &utils.InsufficientStockError{
					IngredientId: line.IngredientId.String(),
					Requested:    line.Quantity,
					Available:    available,
				}
			}

			for _, alloc := range allocations {
				if err := decrementBatchQuantity(tx, alloc.Batch, alloc.Quantity, today); err != nil {
					return err
				}
				items = append(items, ExportItem{
					ID:           uuid.New(),
					ExportId:     exp.ID,
					BatchId:      alloc.Batch.ID,
					IngredientId: line.IngredientId,
					Quantity:     alloc.Quantity,
					UnitPrice:    alloc.Batch.UnitPrice,
				})
			}
		}

		if err := tx.Create(&exp).Error; err != nil {
			return err
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		exp.Items = items
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &exp, nil
}

func GetExportById(ctx context.Context, id uuid.UUID) (*IngredientExport, error) {
	db := config.GetDB()
	var exp IngredientExport
	err := db.WithContext(ctx).Preload("Items").Preload("Items.Batch").
		Where("id = ?", id).First(&exp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &utils.NotFoundError{Resource: "export", Id: id.String()}
	}
	if err != nil {
		return nil, err
	}
	return &exp, nil
}

func GetAllExports(ctx context.Context) ([]IngredientExport, error) {
	db := config.GetDB()
	var exports []IngredientExport
	err := db.WithContext(ctx).Preload("Items").
		Order("export_date DESC, created_at DESC").
		Find(&exports).Error
	if err != nil {
		return nil, err
	}
	return exports, nil
}

// GetExportHistory returns exports whose export date falls in [start, end].
func GetExportHistory(ctx context.Context, start, end time.Time) ([]IngredientExport, error) {
	db := config.GetDB()
	var exports []IngredientExport
	err := db.WithContext(ctx).Preload("Items").
		Where("export_date >= ? AND export_date <= ?", utils.DateOnlyUTC(start), utils.DateOnlyUTC(end)).
		Order("export_date ASC, created_at ASC").
		Find(&exports).Error
	if err != nil {
		return nil, err
	}
	return exports, nil
}

// RemoveExport soft-deletes an export and returns the issued quantities to
// their source batches, re-classifying each batch afterwards (a Depleted
// batch regaining stock comes back as Available/ExpiringSoon/Expired).
func RemoveExport(ctx context.Context, id uuid.UUID) error {
	exp, err := GetExportById(ctx, id)
	if err != nil {
		return err
	}

	today := utils.DateOnlyUTC(time.Now())
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range exp.Items {
			item := &exp.Items[i]
			var batch Batch
			if err := tx.Where("id = ?", item.BatchId).First(&batch).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &utils.NotFoundError{Resource: "batch", Id: item.BatchId.String()}
				}
				return err
			}
			if err := incrementBatchQuantity(tx, &batch, item.Quantity, today); err != nil {
				return err
			}
		}
		if err := tx.Where("export_id = ?", id).Delete(&ExportItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&IngredientExport{}, "id = ?", id).Error
	})
}

// RestoreExport undoes a soft delete by re-deducting every line from its
// original batch. Fails if any batch no longer holds enough stock.
func RestoreExport(ctx context.Context, id uuid.UUID) (*IngredientExport, error) {
	db := config.GetDB()

	var exp IngredientExport
	err := db.WithContext(ctx).Unscoped().Preload("Items", func(tx *gorm.DB) *gorm.DB {
		return tx.Unscoped()
	}).Where("id = ?", id).First(&exp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &utils.NotFoundError{Resource: "export", Id: id.String()}
	}
	if err != nil {
		return nil, err
	}
	if !exp.DeletedAt.Valid {
		return nil, &utils.ValidationError{Field: "id", Reason: "export is not deleted"}
	}

	today := utils.DateOnlyUTC(time.Now())
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range exp.Items {
			item := &exp.Items[i]
			var batch Batch
			if err := tx.Where("id = ?", item.BatchId).First(&batch).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &utils.NotFoundError{Resource: "batch", Id: item.BatchId.String()}
				}
				return err
			}
			if batch.RemainingQuantity.LessThan(item.Quantity) {
				return &utils.InsufficientStockError{
					IngredientId: item.IngredientId.String(),
					Requested:    item.Quantity,
					Available:    batch.RemainingQuantity,
				}
			}
			if err := decrementBatchQuantity(tx, &batch, item.Quantity, today); err != nil {
				return err
			}
		}
		err := tx.Unscoped().Model(&ExportItem{}).
			Where("export_id = ?", id).
			Update("deleted_at", nil).Error
		if err != nil {
			return err
		}
		return tx.Unscoped().Model(&IngredientExport{}).
			Where("id = ?", id).
			Update("deleted_at", nil).Error
	})
	if err != nil {
		return nil, err
	}
	return GetExportById(ctx, id)
}
