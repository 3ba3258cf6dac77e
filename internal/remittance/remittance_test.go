package remittance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
	"github.com/cschwartz85032/loanserve-sub007/internal/storage"
)

func TestComputePeriod_Monthly(t *testing.T) {
	asOf := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	p := ComputePeriod("MONTHLY", asOf, 2)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), p.Start)
	require.Equal(t, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), p.End)
	require.True(t, p.Cutoff.After(p.End))
	require.NotEqual(t, time.Saturday, p.Cutoff.Weekday())
	require.NotEqual(t, time.Sunday, p.Cutoff.Weekday())
}

func TestComputePeriod_Weekly_EndsFriday(t *testing.T) {
	asOf := time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC) // a Wednesday
	p := ComputePeriod("WEEKLY", asOf, 0)
	require.Equal(t, time.Friday, p.End.Weekday())
	require.Equal(t, p.End, p.Cutoff, "zero grace days leaves cutoff at period end")
}

func TestComputeHolding_NetRemitFormula(t *testing.T) {
	h := domain.InvestorHolding{ParticipationPct: 0.5, SvcFeeBps: 25, StripBps: 10, PassEscrow: true}
	ledger := LedgerSummary{Principal: 100000, Interest: 50000, Escrow: 20000, Fees: 0}
	upb := UPBResult{Begin: 1000000, End: 900000, Average: 950000}

	result := ComputeHolding(h, ledger, upb)

	// svcFee = 950000(cents)->9500 dollars * 25bps/10000/12 * 0.5
	require.InDelta(t, 9500.0*25.0/10000/12*0.5, result.SvcFee.Float(), 0.01)
	require.InDelta(t, 9500.0*10.0/10000/12*0.5, result.Strip.Float(), 0.01)

	grossShare := (ledger.Principal + ledger.Interest + ledger.Escrow).Float() * 0.5
	expectedNet := grossShare - result.SvcFee.Float() - result.Strip.Float()
	require.InDelta(t, expectedNet, result.NetRemit.Float(), 0.01)
}

func TestDeriveUPB_FallsBackWhenNoScheduleRows(t *testing.T) {
	upb := DeriveUPB(nil, 10000, 100, 200)
	require.Equal(t, int64(0), int64(upb.Begin))
	require.Equal(t, int64(0), int64(upb.End))
}

func TestEngine_RunOnce_SkipsOnReinvocation(t *testing.T) {
	loanID := uuid.New()
	investorID := uuid.New()

	holdings := NewMemoryHoldingRepo()
	holdings.Add(domain.InvestorHolding{TenantID: "tenant-1", InvestorID: investorID, LoanID: loanID, ParticipationPct: 1.0, Active: true})

	ledger := NewMemoryLedgerRepo()
	ledger.AddAllocation(domain.LedgerAllocation{
		LoanID: loanID, Type: domain.AllocationPayment, PostedAt: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Principal: 10000, Interest: 5000,
	})

	runs := NewMemoryRunRepo()
	clockFn := func() time.Time { return time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC) }

	engine := &Engine{Holdings: holdings, Ledger: ledger, Runs: runs, Docs: storage.NewMemoryDocStore(), Clock: clockFn, Cadence: "MONTHLY", GraceDays: 2}

	asOf := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	r1, err := engine.RunOnce(context.Background(), "tenant-1", investorID, asOf)
	require.NoError(t, err)
	require.False(t, r1.Skipped)
	require.NotEmpty(t, r1.SHA256)

	r2, err := engine.RunOnce(context.Background(), "tenant-1", investorID, asOf)
	require.NoError(t, err)
	require.True(t, r2.Skipped)
}

func TestEngine_RunOnce_PostsGLEntriesBalanced(t *testing.T) {
	loanID := uuid.New()
	investorID := uuid.New()

	holdings := NewMemoryHoldingRepo()
	holdings.Add(domain.InvestorHolding{TenantID: "tenant-1", InvestorID: investorID, LoanID: loanID, ParticipationPct: 1.0, Active: true})

	ledger := NewMemoryLedgerRepo()
	ledger.AddAllocation(domain.LedgerAllocation{
		LoanID: loanID, Type: domain.AllocationPayment, PostedAt: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Principal: 10000, Interest: 5000,
	})

	runs := NewMemoryRunRepo()
	engine := &Engine{Holdings: holdings, Ledger: ledger, Runs: runs, Docs: storage.NewMemoryDocStore(), Cadence: "MONTHLY"}

	asOf := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	result, err := engine.RunOnce(context.Background(), "tenant-1", investorID, asOf)
	require.NoError(t, err)

	gl := runs.GLEntries()
	require.Len(t, gl, 2)
	require.Equal(t, gl[0].Debit, gl[1].Credit)
	require.Equal(t, result.Payout.Amount, gl[0].Debit)
}
