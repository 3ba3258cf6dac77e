package export

import (
	"strconv"
	"strings"

	"github.com/cschwartz85032/loanserve-sub007/internal/extract/deterministic"
)

// fieldKinds classifies canonical keys by their coercion type (§4.9 step 4
// "coerce well-known types: booleans -> true/false, money -> digits with
// one decimal point"). This mirrors the deterministic extractor's Kind
// classification for the same keys rather than inventing a parallel
// taxonomy.
var fieldKinds = map[string]deterministic.Kind{
	"loan_amount":              deterministic.KindMoney,
	"monthly_payment":          deterministic.KindMoney,
	"appraised_value":          deterministic.KindMoney,
	"hoi_premium":              deterministic.KindMoney,
	"hoi_coverage_amount":      deterministic.KindMoney,
	"flood_premium":            deterministic.KindMoney,
	"interest_rate":            deterministic.KindPercent,
	"escrow_required":          deterministic.KindBoolean,
	"flood_insurance_required": deterministic.KindBoolean,
	"origination_date":         deterministic.KindDate,
	"maturity_date":            deterministic.KindDate,
	"closing_date":             deterministic.KindDate,
	"recording_date":           deterministic.KindDate,
	"appraisal_date":           deterministic.KindDate,
	"hoi_expiration_date":      deterministic.KindDate,
}

// CoerceValue applies §4.9 step 4's type coercion for a canonical key's raw
// value. Keys with no known kind pass through unchanged (string fields
// such as borrower_name, property_address).
func CoerceValue(key, value string) string {
	switch fieldKinds[key] {
	case deterministic.KindBoolean:
		return coerceBoolean(value)
	case deterministic.KindMoney, deterministic.KindPercent:
		return coerceMoney(value)
	default:
		return value
	}
}

func coerceBoolean(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "y":
		return "true"
	default:
		return "false"
	}
}

// coerceMoney renders value as "digits with one decimal point" per §4.9
// step 4, e.g. "250000.00" -> "250000.0".
func coerceMoney(value string) string {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
