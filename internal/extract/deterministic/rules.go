package deterministic

import (
	"regexp"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

var (
	moneyValue   = regexp.MustCompile(`\$?[0-9][0-9,]*(?:\.[0-9]{1,2})?`)
	percentValue = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?\s*%`)
	integerValue = regexp.MustCompile(`\d+`)
	booleanValue = regexp.MustCompile(`(?i)(yes|no|required|not required)`)
	dateValue    = regexp.MustCompile(`[A-Za-z0-9,/\-\s]{4,24}`)
)

func label(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + pattern)
}

// DefaultRules returns the built-in proximity-windowed rule set, one list
// per document type named in §4.2/§3 DocType.
func DefaultRules() map[domain.DocType][]Rule {
	return map[domain.DocType][]Rule{
		domain.DocNote: {
			{Key: "loan_amount", Label: label(`NOTE AMOUNT`), Value: moneyValue, WindowChars: 60, Kind: KindMoney},
			{Key: "interest_rate", Label: label(`INTEREST RATE`), Value: percentValue, WindowChars: 40, Kind: KindPercent},
			{Key: "origination_date", Label: label(`DATE OF NOTE`), Value: dateValue, WindowChars: 40, Kind: KindDate},
			{Key: "maturity_date", Label: label(`MATURITY DATE`), Value: dateValue, WindowChars: 40, Kind: KindDate},
			{Key: "borrower_name", Label: label(`BORROWER`), Value: regexp.MustCompile(`[A-Za-z.,' \-]{3,60}`), WindowChars: 80, Kind: KindString},
		},
		domain.DocCD: {
			{Key: "loan_amount", Label: label(`LOAN AMOUNT`), Value: moneyValue, WindowChars: 60, Kind: KindMoney},
			{Key: "monthly_payment", Label: label(`MONTHLY PRINCIPAL.{0,20}INTEREST`), Value: moneyValue, WindowChars: 400, Kind: KindMoney},
			{Key: "escrow_required", Label: label(`ESCROW ACCOUNT`), Value: booleanValue, WindowChars: 400, Kind: KindBoolean},
			{Key: "closing_date", Label: label(`CLOSING DATE`), Value: dateValue, WindowChars: 40, Kind: KindDate},
		},
		domain.DocHOI: {
			{Key: "hoi_premium", Label: label(`ANNUAL PREMIUM`), Value: moneyValue, WindowChars: 60, Kind: KindMoney},
			{Key: "hoi_coverage_amount", Label: label(`COVERAGE A`), Value: moneyValue, WindowChars: 60, Kind: KindMoney},
			{Key: "hoi_policy_number", Label: label(`POLICY NUMBER`), Value: regexp.MustCompile(`[A-Za-z0-9\-]{4,32}`), WindowChars: 40, Kind: KindString},
			{Key: "hoi_expiration_date", Label: label(`EXPIRATION DATE`), Value: dateValue, WindowChars: 40, Kind: KindDate},
		},
		domain.DocFlood: {
			{Key: "flood_zone", Label: label(`FLOOD ZONE`), Value: regexp.MustCompile(`[A-Z][A-Za-z0-9]{0,3}`), WindowChars: 40, Kind: KindString},
			{Key: "flood_insurance_required", Label: label(`FLOOD INSURANCE`), Value: booleanValue, WindowChars: 400, Kind: KindBoolean},
			{Key: "flood_premium", Label: label(`FLOOD PREMIUM`), Value: moneyValue, WindowChars: 60, Kind: KindMoney},
		},
		domain.DocAppraisal: {
			{Key: "appraised_value", Label: label(`APPRAISED VALUE`), Value: moneyValue, WindowChars: 60, Kind: KindMoney},
			{Key: "appraisal_date", Label: label(`DATE OF APPRAISAL`), Value: dateValue, WindowChars: 40, Kind: KindDate},
			{Key: "property_address", Label: label(`PROPERTY ADDRESS`), Value: regexp.MustCompile(`[A-Za-z0-9.,# \-]{5,80}`), WindowChars: 100, Kind: KindString},
		},
		domain.DocDeed: {
			{Key: "property_address", Label: label(`PROPERTY ADDRESS`), Value: regexp.MustCompile(`[A-Za-z0-9.,# \-]{5,80}`), WindowChars: 100, Kind: KindString},
			{Key: "recording_date", Label: label(`RECORDED ON`), Value: dateValue, WindowChars: 40, Kind: KindDate},
		},
		domain.DocLE: {
			{Key: "loan_amount", Label: label(`LOAN AMOUNT`), Value: moneyValue, WindowChars: 60, Kind: KindMoney},
			{Key: "interest_rate", Label: label(`INTEREST RATE`), Value: percentValue, WindowChars: 40, Kind: KindPercent},
			{Key: "monthly_payment", Label: label(`ESTIMATED.{0,10}MONTHLY PAYMENT`), Value: moneyValue, WindowChars: 400, Kind: KindMoney},
		},
	}
}
