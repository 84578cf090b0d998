package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hoanghust2003/Restaurant-Management-sub003/config"
	"github.com/hoanghust2003/Restaurant-Management-sub003/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ExpiringSoonWindowDays is how many days before expiry a batch is flagged
// as ExpiringSoon.
const ExpiringSoonWindowDays = 7

// Batch is one received lot of one ingredient. Quantity, unit price and
// total price are fixed at receipt; only RemainingQuantity and Status change
// afterwards. Rows are soft-deleted at most (audit history is never lost).
type Batch struct {
	ID                 uuid.UUID       `gorm:"type:char(36);primary_key" json:"id"`
	ImportId           uuid.UUID       `gorm:"type:char(36);index;not null" json:"import_id"`
	IngredientId       uuid.UUID       `gorm:"type:char(36);index;not null" json:"ingredient_id"`
	Ingredient         *Ingredient     `gorm:"foreignKey:IngredientId" json:"ingredient,omitempty"`
	Name               string          `gorm:"size:250" json:"name"`
	LotNumber          string          `gorm:"size:100" json:"lot_number"`
	Quantity           decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	RemainingQuantity  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"remaining_quantity"`
	UnitPrice          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	TotalPrice         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_price"`
	ExpiryDate         time.Time       `gorm:"index;not null" json:"expiry_date"`
	Status             BatchStatus     `gorm:"size:20;index;not null" json:"status"`
	IsNotifiedExpiring bool            `gorm:"not null;default:false" json:"is_notified_expiring"`
	Version            int             `gorm:"not null;default:0" json:"-"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt          gorm.DeletedAt  `gorm:"index" json:"-"`
}

// ClassifyBatchStatus derives a batch's lifecycle status from its remaining
// quantity and expiry date. Manual overrides (Damaged/OnHold) always win;
// depletion wins over expiry; expiry comparisons are date-granular.
func ClassifyBatchStatus(remaining decimal.Decimal, expiryDate, today time.Time, current BatchStatus) BatchStatus {
	if current.IsManualOverride() {
		return current
	}
	if remaining.Sign() <= 0 {
		return BatchStatusDepleted
	}
	expiry := utils.DateOnlyUTC(expiryDate)
	day := utils.DateOnlyUTC(today)
	if expiry.Before(day) {
		return BatchStatusExpired
	}
	if !expiry.After(day.AddDate(0, 0, ExpiringSoonWindowDays)) {
		return BatchStatusExpiringSoon
	}
	return BatchStatusAvailable
}

func (b *Batch) classify(today time.Time) BatchStatus {
	return ClassifyBatchStatus(b.RemainingQuantity, b.ExpiryDate, today, b.Status)
}

// ReconcileBatchStatuses re-applies classification to every batch whose
// status can still change (Depleted is terminal; Damaged/OnHold are manually
// pinned). This is the sweep that promotes batches into ExpiringSoon/Expired
// purely from time passing. It is idempotent: a second run with the same
// `today` and no intervening mutation changes nothing. Returns the number of
// batches whose status changed.
func ReconcileBatchStatuses(ctx context.Context, today time.Time) (int, error) {
	db := config.GetDB()

	var batches []Batch
	err := db.WithContext(ctx).
		Where("status NOT IN ?", []BatchStatus{BatchStatusDepleted, BatchStatusDamaged, BatchStatusOnHold}).
		Find(&batches).Error
	if err != nil {
		return 0, err
	}

	changed := 0
	for i := range batches {
		b := &batches[i]
		next := b.classify(today)
		if next == b.Status {
			continue
		}
		applied, err := applyStatusTransition(db.WithContext(ctx), b, next)
		if err != nil {
			return changed, err
		}
		if applied {
			changed++
		}
	}
	return changed, nil
}

// applyStatusTransition writes a sweep-derived status under the row's version
// so a transition computed from a stale read can never clobber a write the
// allocator committed in between. Returns false when the row changed since it
// was read; the next pass will classify it from fresh state.
func applyStatusTransition(db *gorm.DB, b *Batch, next BatchStatus) (bool, error) {
	updates := map[string]interface{}{
		"status":  next,
		"version": b.Version + 1,
	}
	// A batch leaving the expiring window becomes eligible for a fresh
	// notification if it ever re-enters it.
	if b.Status == BatchStatusExpiringSoon {
		updates["is_notified_expiring"] = false
	}
	res := db.Model(&Batch{}).Where("id = ? AND version = ?", b.ID, b.Version).Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetBatchStatus applies a manual override (Damaged or OnHold). Overridden
// batches are excluded from allocation and from automatic transitions until
// released.
func SetBatchStatus(ctx context.Context, id uuid.UUID, status BatchStatus) (*Batch, error) {
	if !status.IsManualOverride() {
		return nil, &utils.ValidationError{Field: "status", Reason: "only Damaged or OnHold can be set manually"}
	}

	db := config.GetDB()
	batch, err := GetBatchById(ctx, id)
	if err != nil {
		return nil, err
	}

	err = db.WithContext(ctx).Model(&Batch{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":  status,
		"version": gorm.Expr("version + 1"),
	}).Error
	if err != nil {
		return nil, err
	}
	batch.Status = status
	batch.Version++
	return batch, nil
}

// ReleaseBatch lifts a manual override and immediately re-classifies the
// batch from its remaining quantity and expiry date.
func ReleaseBatch(ctx context.Context, id uuid.UUID) (*Batch, error) {
	db := config.GetDB()
	batch, err := GetBatchById(ctx, id)
	if err != nil {
		return nil, err
	}
	if !batch.Status.IsManualOverride() {
		return nil, &utils.ValidationError{Field: "status", Reason: "batch is not Damaged or OnHold"}
	}

	next := ClassifyBatchStatus(batch.RemainingQuantity, batch.ExpiryDate, time.Now(), BatchStatusAvailable)
	err = db.WithContext(ctx).Model(&Batch{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":  next,
		"version": gorm.Expr("version + 1"),
	}).Error
	if err != nil {
		return nil, err
	}
	batch.Status = next
	batch.Version++
	return batch, nil
}

func GetBatchById(ctx context.Context, id uuid.UUID) (*Batch, error) {
	db := config.GetDB()
	var batch Batch
	err := db.WithContext(ctx).Preload("Ingredient").Where("id = ?", id).First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &utils.NotFoundError{Resource: "batch", Id: id.String()}
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// BatchFilters narrows GetAllBatches. Zero values mean "no filter".
type BatchFilters struct {
	IngredientId uuid.UUID
	ImportId     uuid.UUID
	Status       BatchStatus
	ExpiringSoon bool
}

func GetAllBatches(ctx context.Context, filters BatchFilters) ([]Batch, error) {
	db := config.GetDB()
	query := db.WithContext(ctx).Preload("Ingredient")

	if filters.IngredientId != uuid.Nil {
		query = query.Where("ingredient_id = ?", filters.IngredientId)
	}
	if filters.ImportId != uuid.Nil {
		query = query.Where("import_id = ?", filters.ImportId)
	}
	if filters.Status != "" {
		if !filters.Status.Valid() {
			return nil, &utils.ValidationError{Field: "status", Reason: "unknown batch status"}
		}
		query = query.Where("status = ?", filters.Status)
	}
	if filters.ExpiringSoon {
		cutoff := utils.DateOnlyUTC(time.Now()).AddDate(0, 0, ExpiringSoonWindowDays)
		query = query.Where("expiry_date <= ?", cutoff)
	}

	var batches []Batch
	if err := query.Order("expiry_date ASC, created_at ASC, id ASC").Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// GetExpiringBatches returns batches with stock left that expire within the
// given number of days (but have not expired yet).
func GetExpiringBatches(ctx context.Context, days int) ([]Batch, error) {
	today := utils.DateOnlyUTC(time.Now())
	cutoff := today.AddDate(0, 0, days)

	db := config.GetDB()
	var batches []Batch
	err := db.WithContext(ctx).Preload("Ingredient").
		Where("remaining_quantity > 0").
		Where("expiry_date >= ?", today).
		Where("expiry_date <= ?", cutoff).
		Order("expiry_date ASC, created_at ASC, id ASC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// GetBatchesNeedingNotification returns ExpiringSoon batches the notifier has
// not flagged yet. The notifier owns the flag; the ledger only stores it.
func GetBatchesNeedingNotification(ctx context.Context) ([]Batch, error) {
	db := config.GetDB()
	var batches []Batch
	err := db.WithContext(ctx).Preload("Ingredient").
		Where("status = ?", BatchStatusExpiringSoon).
		Where("is_notified_expiring = ?", false).
		Order("expiry_date ASC, created_at ASC, id ASC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

func MarkBatchesAsNotified(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	db := config.GetDB()
	return db.WithContext(ctx).Model(&Batch{}).
		Where("id IN ?", ids).
		Update("is_notified_expiring", true).Error
}

// decrementBatchQuantity applies one allocation line to a batch inside the
// caller's transaction, using a version-checked compare-and-swap so two
// concurrent exports can never both consume the same units. Zero rows
// affected means another writer got there first.
func decrementBatchQuantity(tx *gorm.DB, b *Batch, qty decimal.Decimal, today time.Time) error {
	newRemaining := b.RemainingQuantity.Sub(qty)
	if newRemaining.IsNegative() {
		return &utils.InvariantViolationError{
			Detail: fmt.Sprintf("batch %s remaining quantity would become %s", b.ID, newRemaining),
		}
	}

	newStatus := ClassifyBatchStatus(newRemaining, b.ExpiryDate, today, b.Status)
	res := tx.Model(&Batch{}).
		Where("id = ? AND version = ?", b.ID, b.Version).
		Updates(map[string]interface{}{
			"remaining_quantity": newRemaining,
			"status":             newStatus,
			"version":            b.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &utils.ConcurrentModificationError{BatchId: b.ID.String()}
	}

	b.RemainingQuantity = newRemaining
	b.Status = newStatus
	b.Version++
	return nil
}

// incrementBatchQuantity returns units to a batch (export deletion). The
// original received quantity is a hard ceiling.
func incrementBatchQuantity(tx *gorm.DB, b *Batch, qty decimal.Decimal, today time.Time) error {
	newRemaining := b.RemainingQuantity.Add(qty)
	if newRemaining.GreaterThan(b.Quantity) {
		return &utils.InvariantViolationError{
			Detail: fmt.Sprintf("batch %s remaining quantity %s would exceed received quantity %s", b.ID, newRemaining, b.Quantity),
		}
	}

	newStatus := ClassifyBatchStatus(newRemaining, b.ExpiryDate, today, b.Status)
	res := tx.Model(&Batch{}).
		Where("id = ? AND version = ?", b.ID, b.Version).
		Updates(map[string]interface{}{
			"remaining_quantity": newRemaining,
			"status":             newStatus,
			"version":            b.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &utils.ConcurrentModificationError{BatchId: b.ID.String()}
	}

	b.RemainingQuantity = newRemaining
	b.Status = newStatus
	b.Version++
	return nil
}
