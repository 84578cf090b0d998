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

// IngredientImport is one receipt document. Every import produces exactly one
// batch per line, atomically: either the whole delivery is in the ledger or
// none of it is.
type IngredientImport struct {
	ID         uuid.UUID      `gorm:"type:char(36);primary_key" json:"id"`
	Supplier   string         `gorm:"size:255" json:"supplier"`
	Note       string         `gorm:"size:500" json:"note"`
	CreatedBy  string         `gorm:"size:36" json:"created_by,omitempty"`
	ImportDate time.Time      `gorm:"index;not null" json:"import_date"`
	Batches    []Batch        `gorm:"foreignKey:ImportId" json:"batches,omitempty"`
	CreatedAt  time.Time      `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

type NewImportBatch struct {
	IngredientId uuid.UUID       `json:"ingredient_id" validate:"required"`
	Name         string          `json:"name"`
	LotNumber    string          `json:"lot_number"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	ExpiryDate   string          `json:"expiry_date" validate:"required"`
}

type NewIngredientImport struct {
	Supplier   string           `json:"supplier"`
	Note       string           `json:"note"`
	ImportDate *time.Time       `json:"import_date"`
	Batches    []NewImportBatch `json:"batches" validate:"required,min=1,dive"`
}

// TotalValue is the receipt cost of the import: the sum of its batches'
// total prices.
func (imp *IngredientImport) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for i := range imp.Batches {
		total = total.Add(imp.Batches[i].TotalPrice)
	}
	return total
}

// CreateImport records a delivery and mints one batch per line in a single
// transaction. Total price per batch is quantity times unit price, computed
// here and never trusted from the caller. Initial status is classified
// immediately, so a backdated expiry lands as Expired from the start.
func CreateImport(ctx context.Context, input *NewIngredientImport) (*IngredientImport, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	today := utils.DateOnlyUTC(time.Now())
	importDate := today
	if input.ImportDate != nil {
		importDate = utils.DateOnlyUTC(*input.ImportDate)
	}

	imp := IngredientImport{
		ID:         uuid.New(),
		Supplier:   input.Supplier,
		Note:       input.Note,
		ImportDate: importDate,
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		imp.CreatedBy = userId
	}

	batches := make([]Batch, 0, len(input.Batches))
	for i := range input.Batches {
		line := &input.Batches[i]
		if !line.Quantity.IsPositive() {
			return nil, &utils.ValidationError{Field: "quantity", Reason: "must be greater than zero"}
		}
		if !line.UnitPrice.IsPositive() {
			return nil, &utils.ValidationError{Field: "unit_price", Reason: "must be greater than zero"}
		}
		expiry, err := utils.ParseDateString(line.ExpiryDate)
		if err != nil {
			return nil, &utils.ValidationError{Field: "expiry_date", Reason: "expected YYYY-MM-DD"}
		}

		ingredient, err := GetIngredientById(ctx, line.IngredientId)
		if err != nil {
			return nil, err
		}
		name := line.Name
		if name == "" {
			name = ingredient.Name
		}

		batch := Batch{
			ID:                uuid.New(),
			ImportId:          imp.ID,
			IngredientId:      line.IngredientId,
			Name:              name,
			LotNumber:         line.LotNumber,
			Quantity:          line.Quantity,
			RemainingQuantity: line.Quantity,
			UnitPrice:         line.UnitPrice,
			TotalPrice:        line.Quantity.Mul(line.UnitPrice),
			ExpiryDate:        utils.DateOnlyUTC(expiry),
		}
		batch.Status = ClassifyBatchStatus(batch.RemainingQuantity, batch.ExpiryDate, today, BatchStatusAvailable)
		batches = append(batches, batch)
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&imp).Error; err != nil {
			return err
		}
		if err := tx.Create(&batches).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		config.LogError(config.GetLogger(), "models", "CreateImport", "creating import", input, err)
		return nil, err
	}

	imp.Batches = batches
	return &imp, nil
}

func GetImportById(ctx context.Context, id uuid.UUID) (*IngredientImport, error) {
	db := config.GetDB()
	var imp IngredientImport
	err := db.WithContext(ctx).Preload("Batches").Where("id = ?", id).First(&imp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &utils.NotFoundError{Resource: "import", Id: id.String()}
	}
	if err != nil {
		return nil, err
	}
	return &imp, nil
}

func GetAllImports(ctx context.Context) ([]IngredientImport, error) {
	db := config.GetDB()
	var imports []IngredientImport
	err := db.WithContext(ctx).Preload("Batches").
		Order("import_date DESC, created_at DESC").
		Find(&imports).Error
	if err != nil {
		return nil, err
	}
	return imports, nil
}

// GetImportHistory returns imports whose import date falls in [start, end].
func GetImportHistory(ctx context.Context, start, end time.Time) ([]IngredientImport, error) {
	db := config.GetDB()
	var imports []IngredientImport
	err := db.WithContext(ctx).Preload("Batches").
		Where("import_date >= ? AND import_date <= ?", utils.DateOnlyUTC(start), utils.DateOnlyUTC(end)).
		Order("import_date ASC, created_at ASC").
		Find(&imports).Error
	if err != nil {
		return nil, err
	}
	return imports, nil
}

// RemoveImport soft-deletes an import together with its batches. Refused when
// any batch has been drawn from: exports already reference those units and
// removing the receipt would corrupt the ledger.
func RemoveImport(ctx context.Context, id uuid.UUID) error {
	imp, err := GetImportById(ctx, id)
	if err != nil {
		return err
	}
	for i := range imp.Batches {
		b := &imp.Batches[i]
		if !b.RemainingQuantity.Equal(b.Quantity) {
			return &utils.ValidationError{
				Field:  "id",
				Reason: "import has consumed batches and cannot be removed",
			}
		}
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("import_id = ?", id).Delete(&Batch{}).Error; err != nil {
			return err
		}
		return tx.Delete(&IngredientImport{}, "id = ?", id).Error
	})
}

// RestoreImport undoes a soft delete of an import and its batches.
func RestoreImport(ctx context.Context, id uuid.UUID) (*IngredientImport, error) {
	db := config.GetDB()

	var imp IngredientImport
	err := db.WithContext(ctx).Unscoped().Where("id = ?", id).First(&imp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &utils.NotFoundError{Resource: "import", Id: id.String()}
	}
	if err != nil {
		return nil, err
	}
	if !imp.DeletedAt.Valid {
		return nil, &utils.ValidationError{Field: "id", Reason: "import is not deleted"}
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Unscoped().Model(&Batch{}).
			Where("import_id = ?", id).
			Update("deleted_at", nil).Error
		if err != nil {
			return err
		}
		return tx.Unscoped().Model(&IngredientImport{}).
			Where("id = ?", id).
			Update("deleted_at", nil).Error
	})
	if err != nil {
		return nil, err
	}
	return GetImportById(ctx, id)
}
