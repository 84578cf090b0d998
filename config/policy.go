package config

import (
	"os"
	"strings"
)

// IncludeDamagedInValuation controls whether Damaged batches count toward
// current stock value. Damaged stock is physically present but normally
// written off, so the default is to exclude it.
//
// Set via env:
// - INCLUDE_DAMAGED_IN_VALUATION=true
func IncludeDamagedInValuation() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("INCLUDE_DAMAGED_IN_VALUATION")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
