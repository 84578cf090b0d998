package models

// BatchStatus is the lifecycle status of a batch. Available, ExpiringSoon,
// Expired and Depleted are derived from remaining quantity and expiry date;
// Damaged and OnHold are manual overrides that suspend automatic transitions.
type BatchStatus string

const (
	BatchStatusAvailable    BatchStatus = "Available"
	BatchStatusExpiringSoon BatchStatus = "ExpiringSoon"
	BatchStatusExpired      BatchStatus = "Expired"
	BatchStatusDepleted     BatchStatus = "Depleted"
	BatchStatusDamaged      BatchStatus = "Damaged"
	BatchStatusOnHold       BatchStatus = "OnHold"
)

func (s BatchStatus) Valid() bool {
	switch s {
	case BatchStatusAvailable, BatchStatusExpiringSoon, BatchStatusExpired,
		BatchStatusDepleted, BatchStatusDamaged, BatchStatusOnHold:
		return true
	}
	return false
}

// IsManualOverride reports whether the status was set by an operator and
// therefore wins over automatic classification until released.
func (s BatchStatus) IsManualOverride() bool {
	return s == BatchStatusDamaged || s == BatchStatusOnHold
}

// IsAllocatable reports whether batches in this status may be drawn from by
// the export allocator.
func (s BatchStatus) IsAllocatable() bool {
	return s == BatchStatusAvailable || s == BatchStatusExpiringSoon
}

// StockLevelStatus marks an ingredient's aggregate stock as above or below
// its alerting threshold.
type StockLevelStatus string

const (
	StockLevelOk  StockLevelStatus = "ok"
	StockLevelLow StockLevelStatus = "low"
)
