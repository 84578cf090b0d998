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

// Ingredient is the catalog entry batches hang off. The aggregate current
// quantity is always computed from batches on demand; it is deliberately not
// stored here so the ledger stays the single source of truth.
type Ingredient struct {
	ID        uuid.UUID       `gorm:"type:char(36);primary_key" json:"id"`
	Name      string          `gorm:"size:255;not null" json:"name"`
	UnitName  string          `gorm:"size:50" json:"unit_name"`
	Threshold decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"threshold"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewIngredient struct {
	Name      string          `json:"name" validate:"required"`
	UnitName  string          `json:"unit_name"`
	Threshold decimal.Decimal `json:"threshold"`
}

// IngredientStockLevel is the low-stock signal exposed to the alerting
// collaborator: computed quantity vs configured threshold.
type IngredientStockLevel struct {
	IngredientId    uuid.UUID        `json:"ingredient_id"`
	Name            string           `json:"name"`
	UnitName        string           `json:"unit_name"`
	CurrentQuantity decimal.Decimal  `json:"current_quantity"`
	Threshold       decimal.Decimal  `json:"threshold"`
	Status          StockLevelStatus `json:"status"`
	BelowThreshold  bool             `json:"below_threshold"`
}

func CreateIngredient(ctx context.Context, input *NewIngredient) (*Ingredient, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.Threshold.IsNegative() {
		return nil, &utils.ValidationError{Field: "threshold", Reason: "must not be negative"}
	}

	ingredient := Ingredient{
		ID:        uuid.New(),
		Name:      input.Name,
		UnitName:  input.UnitName,
		Threshold: input.Threshold,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&ingredient).Error; err != nil {
		return nil, err
	}
	return &ingredient, nil
}

func GetIngredientById(ctx context.Context, id uuid.UUID) (*Ingredient, error) {
	db := config.GetDB()
	var ingredient Ingredient
	err := db.WithContext(ctx).Where("id = ?", id).First(&ingredient).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &utils.NotFoundError{Resource: "ingredient", Id: id.String()}
	}
	if err != nil {
		return nil, err
	}
	return &ingredient, nil
}

// GetAvailableQuantity sums remaining quantity over allocatable batches of
// one ingredient (Available/ExpiringSoon, not expired as of today).
func GetAvailableQuantity(ctx context.Context, ingredientId uuid.UUID) (decimal.Decimal, error) {
	today := utils.DateOnlyUTC(time.Now())
	db := config.GetDB()

	type row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	var r row
	err := db.WithContext(ctx).Model(&Batch{}).
		Select("COALESCE(SUM(remaining_quantity), 0) AS total").
		Where("ingredient_id = ?", ingredientId).
		Where("status IN ?", []BatchStatus{BatchStatusAvailable, BatchStatusExpiringSoon}).
		Where("remaining_quantity > 0").
		Where("expiry_date >= ?", today).
		Scan(&r).Error
	if err != nil {
		return decimal.Zero, err
	}
	return r.Total, nil
}

// CheckStock returns the low-stock signal for one ingredient.
func CheckStock(ctx context.Context, ingredientId uuid.UUID) (*IngredientStockLevel, error) {
	ingredient, err := GetIngredientById(ctx, ingredientId)
	if err != nil {
		return nil, err
	}
	quantity, err := GetAvailableQuantity(ctx, ingredientId)
	if err != nil {
		return nil, err
	}
	return stockLevelFor(ingredient, quantity), nil
}

// GetIngredientStock returns current stock levels for every ingredient.
func GetIngredientStock(ctx context.Context) ([]IngredientStockLevel, error) {
	db := config.GetDB()
	var ingredients []Ingredient
	if err := db.WithContext(ctx).Order("name ASC").Find(&ingredients).Error; err != nil {
		return nil, err
	}

	levels := make([]IngredientStockLevel, 0, len(ingredients))
	for i := range ingredients {
		quantity, err := GetAvailableQuantity(ctx, ingredients[i].ID)
		if err != nil {
			return nil, err
		}
		levels = append(levels, *stockLevelFor(&ingredients[i], quantity))
	}
	return levels, nil
}

// GetLowStockItems returns only the ingredients at or below threshold.
func GetLowStockItems(ctx context.Context) ([]IngredientStockLevel, error) {
	levels, err := GetIngredientStock(ctx)
	if err != nil {
		return nil, err
	}
	low := levels[:0]
	for _, level := range levels {
		if level.BelowThreshold {
			low = append(low, level)
		}
	}
	return low, nil
}

func stockLevelFor(ingredient *Ingredient, quantity decimal.Decimal) *IngredientStockLevel {
	level := IngredientStockLevel{
		IngredientId:    ingredient.ID,
		Name:            ingredient.Name,
		UnitName:        ingredient.UnitName,
		CurrentQuantity: quantity,
		Threshold:       ingredient.Threshold,
		Status:          StockLevelOk,
	}
	if quantity.LessThanOrEqual(ingredient.Threshold) {
		level.Status = StockLevelLow
		level.BelowThreshold = true
	}
	return &level
}
