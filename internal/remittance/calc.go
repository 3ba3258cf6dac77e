package remittance

import (
	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
	"github.com/cschwartz85032/loanserve-sub007/pkg/money"
)

// LedgerSummary is the in-period sum of allocations for one loan (§4.8
// step 1).
type LedgerSummary struct {
	Principal money.Amount
	Interest  money.Amount
	Escrow    money.Amount
	Fees      money.Amount
}

// SummarizeAllocations sums principal/interest/escrow/fees across every
// PAYMENT and ADJUSTMENT allocation in the period.
func SummarizeAllocations(allocations []domain.LedgerAllocation) LedgerSummary {
	var s LedgerSummary
	for _, a := range allocations {
		if a.Type != domain.AllocationPayment && a.Type != domain.AllocationAdjustment {
			continue
		}
		s.Principal += money.Amount(a.Principal)
		s.Interest += money.Amount(a.Interest)
		s.Escrow += money.Amount(a.Escrow)
		s.Fees += money.Amount(a.Fees)
	}
	return s
}

// UPBResult is the derived beginning/ending/average UPB for a loan's
// period (§4.8 step 2/3).
type UPBResult struct {
	Begin   money.Amount
	End     money.Amount
	Average money.Amount
}

// DeriveUPB implements §4.8 step 2/3: beginning UPB is the
// principal_balance_after of the last schedule row due before periodStart;
// ending UPB is the same rule with due_date <= periodEnd. Beginning UPB is
// 0 when no row is due before periodStart; ending UPB falls back to
// max(0, beg - principal) when no row is due by periodEnd.
func DeriveUPB(rows []domain.ScheduleRow, principalPaid money.Amount, periodStart, periodEnd int64) UPBResult {
	var begin, end *int64
	var beginDue, endDue int64

	for _, r := range rows {
		due := r.DueDate.Unix()
		v := r.PrincipalBalanceAfter

		if due < periodStart && (begin == nil || due > beginDue) {
			begin = &v
			beginDue = due
		}
		if due <= periodEnd && (end == nil || due > endDue) {
			end = &v
			endDue = due
		}
	}

	var beginAmt money.Amount
	if begin != nil {
		beginAmt = money.Amount(*begin)
	}

	var endAmt money.Amount
	if end != nil {
		endAmt = money.Amount(*end)
	} else {
		endAmt = beginAmt - principalPaid
		if endAmt < 0 {
			endAmt = 0
		}
	}

	avg := (beginAmt + endAmt) / 2
	return UPBResult{Begin: beginAmt, End: endAmt, Average: avg}
}

// HoldingResult is the computed fee/strip/net-remit figures for one
// (investor, loan) holding in a run (§4.8 steps 4-6).
type HoldingResult struct {
	UPB       UPBResult
	SvcFee    money.Amount
	Strip     money.Amount
	NetRemit  money.Amount
}

// ComputeHolding applies §4.8 steps 4-6 exactly:
//
//	svcFee   = avgUPB * svcFeeBps / 10_000 / 12 * participationPct, half-up to cents
//	strip    = same formula with stripBps
//	netRemit = (principal + interest + (passEscrow ? escrow : 0)) * participationPct - svcFee - strip
func ComputeHolding(h domain.InvestorHolding, ledger LedgerSummary, upb UPBResult) HoldingResult {
	avgUPB := upb.Average.Float()
	participation := h.ParticipationPct

	svcFee := money.FromFloat(avgUPB * float64(h.SvcFeeBps) / 10_000 / 12 * participation)
	strip := money.FromFloat(avgUPB * float64(h.StripBps) / 10_000 / 12 * participation)

	escrow := money.Amount(0)
	if h.PassEscrow {
		escrow = ledger.Escrow
	}
	grossShare := money.FromFloat((ledger.Principal + ledger.Interest + escrow).Float() * participation)
	netRemit := grossShare - svcFee - strip

	return HoldingResult{UPB: upb, SvcFee: svcFee, Strip: strip, NetRemit: netRemit}
}
