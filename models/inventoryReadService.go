package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hoanghust2003/Restaurant-Management-sub003/config"
	"github.com/hoanghust2003/Restaurant-Management-sub003/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Read-side views over the batch ledger. Nothing here mutates state: every
// figure is recomputed from batches so the numbers always agree with the
// ledger, and the heavier aggregates go through a short redis cache.

// StockValueBatch is one batch's contribution to the valuation: remaining
// units at receipt price.
type StockValueBatch struct {
	BatchId           uuid.UUID       `json:"batch_id"`
	LotNumber         string          `json:"lot_number"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	Value             decimal.Decimal `json:"value"`
	ExpiryDate        time.Time       `json:"expiry_date"`
	Status            BatchStatus     `json:"status"`
}

type StockValueIngredient struct {
	IngredientId  uuid.UUID         `json:"ingredient_id"`
	Name          string            `json:"name"`
	UnitName      string            `json:"unit_name"`
	TotalQuantity decimal.Decimal   `json:"total_quantity"`
	TotalValue    decimal.Decimal   `json:"total_value"`
	Batches       []StockValueBatch `json:"batches"`
}

type StockValue struct {
	TotalValue  decimal.Decimal        `json:"total_value"`
	Ingredients []StockValueIngredient `json:"ingredients"`
}

// InventoryCosts is the money-flow summary for a reporting period: what came
// in at receipt price, what went out at the prices frozen on export lines,
// and what the shelf is worth right now.
type InventoryCosts struct {
	Period struct {
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	} `json:"period"`
	Costs struct {
		ImportCost        decimal.Decimal `json:"import_cost"`
		ExportCost        decimal.Decimal `json:"export_cost"`
		CurrentStockValue decimal.Decimal `json:"current_stock_value"`
	} `json:"costs"`
}

type InventoryStats struct {
	IngredientCount int             `json:"ingredient_count"`
	BatchCount      int             `json:"batch_count"`
	LowStockCount   int             `json:"low_stock_count"`
	ExpiringCount   int             `json:"expiring_count"`
	MonthlyImports  int             `json:"monthly_imports"`
	MonthlyExports  int             `json:"monthly_exports"`
	TotalValue      decimal.Decimal `json:"total_value"`
}

// valuationStatuses returns the batch statuses that count toward stock
// value. Depleted batches have no units left; Expired/ExpiringSoon/OnHold
// stock is still on the shelf and still worth money. Damaged stock joins
// only when the policy flag says so.
func valuationStatuses() []BatchStatus {
	statuses := []BatchStatus{
		BatchStatusAvailable, BatchStatusExpiringSoon,
		BatchStatusExpired, BatchStatusOnHold,
	}
	if config.IncludeDamagedInValuation() {
		statuses = append(statuses, BatchStatusDamaged)
	}
	return statuses
}

// GetStockValue values every batch with stock left at its receipt unit
// price, grouped per ingredient. The whole computation runs inside one read
// transaction so concurrent exports cannot skew the total mid-walk.
func GetStockValue(ctx context.Context) (*StockValue, error) {
	db := config.GetDB()
	result := StockValue{TotalValue: decimal.Zero, Ingredients: []StockValueIngredient{}}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ingredients []Ingredient
		if err := tx.Order("name ASC").Find(&ingredients).Error; err != nil {
			return err
		}

		statuses := valuationStatuses()
		for i := range ingredients {
			ing := &ingredients[i]
			var batches []Batch
			err := tx.
				Where("ingredient_id = ?", ing.ID).
				Where("status IN ?", statuses).
				Where("remaining_quantity > 0").
				Order("expiry_date ASC, created_at ASC, id ASC").
				Find(&batches).Error
			if err != nil {
				return err
			}
			if len(batches) == 0 {
				continue
			}

			entry := StockValueIngredient{
				IngredientId:  ing.ID,
				Name:          ing.Name,
				UnitName:      ing.UnitName,
				TotalQuantity: decimal.Zero,
				TotalValue:    decimal.Zero,
				Batches:       make([]StockValueBatch, 0, len(batches)),
			}
			for j := range batches {
				b := &batches[j]
				value := b.RemainingQuantity.Mul(b.UnitPrice)
				entry.TotalQuantity = entry.TotalQuantity.Add(b.RemainingQuantity)
				entry.TotalValue = entry.TotalValue.Add(value)
				entry.Batches = append(entry.Batches, StockValueBatch{
					BatchId:           b.ID,
					LotNumber:         b.LotNumber,
					RemainingQuantity: b.RemainingQuantity,
					UnitPrice:         b.UnitPrice,
					Value:             value,
					ExpiryDate:        b.ExpiryDate,
					Status:            b.Status,
				})
			}
			result.TotalValue = result.TotalValue.Add(entry.TotalValue)
			result.Ingredients = append(result.Ingredients, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CalculateInventoryCosts sums import cost (receipt total of batches received
// in the period) and export cost (export lines priced at their frozen unit
// prices) over [start, end], plus the current stock value.
func CalculateInventoryCosts(ctx context.Context, start, end time.Time) (*InventoryCosts, error) {
	start = utils.DateOnlyUTC(start)
	end = utils.DateOnlyUTC(end)
	if end.Before(start) {
		return nil, &utils.ValidationError{Field: "period", Reason: "end date is before start date"}
	}

	db := config.GetDB()
	costs := InventoryCosts{}
	costs.Period.Start = start
	costs.Period.End = end
	costs.Costs.ImportCost = decimal.Zero
	costs.Costs.ExportCost = decimal.Zero

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		type row struct {
			Total decimal.Decimal `gorm:"column:total"`
		}

		var imported row
		err := tx.Model(&Batch{}).
			Select("COALESCE(SUM(batches.total_price), 0) AS total").
			Joins("JOIN ingredient_imports ON ingredient_imports.id = batches.import_id").
			Where("ingredient_imports.deleted_at IS NULL").
			Where("ingredient_imports.import_date >= ? AND ingredient_imports.import_date <= ?", start, end).
			Scan(&imported).Error
		if err != nil {
			return err
		}
		costs.Costs.ImportCost = imported.Total

		var exported row
		err = tx.Model(&ExportItem{}).
			Select("COALESCE(SUM(export_items.quantity * export_items.unit_price), 0) AS total").
			Joins("JOIN ingredient_exports ON ingredient_exports.id = export_items.export_id").
			Where("ingredient_exports.deleted_at IS NULL").
			Where("ingredient_exports.export_date >= ? AND ingredient_exports.export_date <= ?", start, end).
			Scan(&exported).Error
		if err != nil {
			return err
		}
		costs.Costs.ExportCost = exported.Total
		return nil
	})
	if err != nil {
		return nil, err
	}

	stock, err := GetStockValue(ctx)
	if err != nil {
		return nil, err
	}
	costs.Costs.CurrentStockValue = stock.TotalValue
	return &costs, nil
}

const inventoryStatsCacheKey = "inventory:stats"

// GetInventoryStats returns the dashboard counters. Cached in redis for a
// minute; when redis is absent the helpers no-op and the stats are computed
// fresh every call.
func GetInventoryStats(ctx context.Context) (*InventoryStats, error) {
	var cached InventoryStats
	if ok, err := config.GetRedisObject(inventoryStatsCacheKey, &cached); err == nil && ok {
		return &cached, nil
	}

	db := config.GetDB()
	stats := InventoryStats{}

	var ingredientCount, batchCount int64
	if err := db.WithContext(ctx).Model(&Ingredient{}).Count(&ingredientCount).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Model(&Batch{}).Count(&batchCount).Error; err != nil {
		return nil, err
	}
	stats.IngredientCount = int(ingredientCount)
	stats.BatchCount = int(batchCount)

	low, err := GetLowStockItems(ctx)
	if err != nil {
		return nil, err
	}
	stats.LowStockCount = len(low)

	expiring, err := GetExpiringBatches(ctx, 30)
	if err != nil {
		return nil, err
	}
	stats.ExpiringCount = len(expiring)

	now := time.Now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0).Add(-time.Nanosecond)

	var monthlyImports, monthlyExports int64
	err = db.WithContext(ctx).Model(&IngredientImport{}).
		Where("import_date >= ? AND import_date <= ?", monthStart, monthEnd).
		Count(&monthlyImports).Error
	if err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).Model(&IngredientExport{}).
		Where("export_date >= ? AND export_date <= ?", monthStart, monthEnd).
		Count(&monthlyExports).Error
	if err != nil {
		return nil, err
	}
	stats.MonthlyImports = int(monthlyImports)
	stats.MonthlyExports = int(monthlyExports)

	stock, err := GetStockValue(ctx)
	if err != nil {
		return nil, err
	}
	stats.TotalValue = stock.TotalValue

	if err := config.SetRedisObject(inventoryStatsCacheKey, &stats, time.Minute); err != nil {
		config.LogError(config.GetLogger(), "models", "GetInventoryStats", "caching stats", inventoryStatsCacheKey, err)
	}
	return &stats, nil
}

// GetExpiringSoonItems lists batches expiring within the given window, for
// the alerting collaborator.
func GetExpiringSoonItems(ctx context.Context, days int) ([]Batch, error) {
	if days <= 0 {
		days = ExpiringSoonWindowDays
	}
	return GetExpiringBatches(ctx, days)
}
