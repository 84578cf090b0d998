package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/hoanghust2003/Restaurant-Management-sub003/config"
	"github.com/shopspring/decimal"
)

// DateOnlyUTC truncates a timestamp to its calendar date at UTC midnight.
// Expiry comparisons are date-granular, not instant-granular.
func DateOnlyUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDateString parses a "YYYY-MM-DD" date into UTC midnight.
func ParseDateString(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date string")
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}
	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}
	return dec, nil
}

// InventoryLock obtains a cross-instance redis lock for an inventory-wide
// sweep (reconciliation). Returns a release func. When redis is not
// configured the lock degrades to a no-op: single-instance deployments rely
// on the per-batch version checks alone.
func InventoryLock(ctx context.Context, scope string, ttl time.Duration) (func(), error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}, nil
	}
	lockKey := fmt.Sprintf("inventoryLock:%s", scope)
	lock, err := locker.Obtain(ctx, lockKey, ttl, nil)
	if err == redislock.ErrNotObtained {
		return nil, fmt.Errorf("could not obtain lock %s: held by another worker", lockKey)
	} else if err != nil {
		config.LogError(config.GetLogger(), "utils", "InventoryLock", "obtaining lock", lockKey, err)
		return nil, err
	}
	return func() { _ = lock.Release(ctx) }, nil
}
