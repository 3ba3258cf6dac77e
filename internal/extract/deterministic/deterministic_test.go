package deterministic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

func TestEngine_Extract_NoteAmountAndRate(t *testing.T) {
	text := "THIS NOTE AMOUNT: $100,000.00 bears INTEREST RATE: 7.125% per annum."
	e := NewEngine()
	hits := e.Extract(domain.DocNote, text)

	byKey := map[string]Hit{}
	for _, h := range hits {
		byKey[h.Key] = h
	}
	require.Equal(t, "100000", byKey["loan_amount"].Value)
	require.Equal(t, "7.125", byKey["interest_rate"].Value)
}

func TestEngine_Extract_FirstWinsPerKey(t *testing.T) {
	rules := map[domain.DocType][]Rule{
		domain.DocNote: {
			{Key: "k", Label: label(`LABEL`), Value: integerValue, WindowChars: 20, Kind: KindInteger},
		},
	}
	e := NewEngineWithRules(rules)
	hits := e.Extract(domain.DocNote, "LABEL 1 ... LABEL 2")
	require.Len(t, hits, 1)
	require.Equal(t, "1", hits[0].Value)
}

func TestEngine_Extract_EmptyTextYieldsNoHits(t *testing.T) {
	e := NewEngine()
	require.Empty(t, e.Extract(domain.DocNote, ""))
}

func TestNormalizeMoney(t *testing.T) {
	v, ok := normalizeMoney("$1,234.56")
	require.True(t, ok)
	require.Equal(t, "1234.56", v)
}

func TestNormalizePercent(t *testing.T) {
	v, ok := normalizePercent("7.125%")
	require.True(t, ok)
	require.Equal(t, "7.125", v)
}

func TestNormalizeBoolean(t *testing.T) {
	v, ok := normalizeBoolean("Required")
	require.True(t, ok)
	require.Equal(t, "true", v)

	_, ok = normalizeBoolean("maybe")
	require.False(t, ok)
}

func TestNormalizeDate_Variants(t *testing.T) {
	cases := map[string]string{
		"2024-03-05":        "2024-03-05",
		"3/5/24":            "2024-03-05",
		"3/5/2024":          "2024-03-05",
		"March 5, 2024":     "2024-03-05",
		"5-Mar-2024":        "2024-03-05",
	}
	for raw, want := range cases {
		got, ok := normalizeDate(raw)
		require.True(t, ok, "input %q should parse", raw)
		require.Equal(t, want, got, "input %q", raw)
	}
}

func TestNormalizeDate_Invalid(t *testing.T) {
	_, ok := normalizeDate("not a date")
	require.False(t, ok)
}
