// Package remittance implements the Remittance Engine (C12): period
// computation, per-holding fee/strip/net-remit math, UPB derivation, GL
// entries, the "loan_activity" CSV report, and payout webhook delivery
// (spec.md §4.8).
//
// Grounded on the registry's internal/registry/service orchestration style
// (one exported method per run step, narrow repository interfaces) and
// internal/webhooks for the payout notification.
package remittance

import "time"

// Period is the computed [start, end] window plus its business-day cutoff
// for one remittance run.
type Period struct {
	Start  time.Time
	End    time.Time
	Cutoff time.Time
}

// ComputePeriod implements §4.8's period computation for a cadence as of
// asOfDate, adding graceDays business days past the period end for cutoff.
func ComputePeriod(cadence string, asOfDate time.Time, graceDays int) Period {
	switch cadence {
	case "WEEKLY":
		end := endOfWeek(asOfDate)
		start := end.AddDate(0, 0, -6)
		return Period{Start: start, End: end, Cutoff: addBusinessDays(end, graceDays)}
	default: // MONTHLY
		start := firstOfMonth(asOfDate)
		end := lastOfMonth(asOfDate)
		return Period{Start: start, End: end, Cutoff: addBusinessDays(end, graceDays)}
	}
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func lastOfMonth(t time.Time) time.Time {
	return firstOfMonth(t).AddDate(0, 1, -1)
}

// endOfWeek returns the Friday of the week containing t, per §4.8 "week
// ends Friday".
func endOfWeek(t time.Time) time.Time {
	d := t
	for d.Weekday() != time.Friday {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// addBusinessDays advances t by n business days, skipping Saturday/Sunday
// (§4.8 "business-day arithmetic excludes Saturday/Sunday; holidays are not
// observed unless configured").
func addBusinessDays(t time.Time, n int) time.Time {
	d := t
	remaining := n
	for remaining > 0 {
		d = d.AddDate(0, 0, 1)
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			remaining--
		}
	}
	return d
}
