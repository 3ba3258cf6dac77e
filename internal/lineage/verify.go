package lineage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
)

// VerifyResult is the §4.5 VerifyIntegrity return shape.
type VerifyResult struct {
	OK             bool
	Issues         []string
	VerifiedHashes int
	TotalHashes    int
}

// Tracker bundles a Store with the read-side operations of §4.5.
type Tracker struct {
	store Store
}

// NewTracker wraps store with the Chain/VerifyIntegrity/Explain operations.
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

// Chain returns the cycle-safe lineage list for lineageID: the record
// itself first, then its ancestors in depth-first order along derivedFrom,
// via a visited-set traversal (§4.5).
func (t *Tracker) Chain(ctx context.Context, tenantID, lineageID string) ([]*domain.LineageRecord, error) {
	visited := make(map[string]bool)
	var chain []*domain.LineageRecord

	var walk func(id string) error
	walk = func(id string) error {
		if visited[id] {
			return nil
		}
		visited[id] = true

		rec, err := t.store.Get(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if rec == nil {
			return nil
		}
		chain = append(chain, rec)
		for _, parentID := range rec.DerivedFrom {
			if err := walk(parentID); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(lineageID); err != nil {
		return nil, err
	}
	return chain, nil
}

// VerifyIntegrity recomputes SHA256(sourceText) for every node reachable
// from lineageID and reports which, if any, fail to match the stored
// textHash (§4.5, §9 invariant "SHA256(sourceText) == lineage.textHash for
// every LineageRecord with a documentReference").
func (t *Tracker) VerifyIntegrity(ctx context.Context, tenantID, lineageID string) (VerifyResult, error) {
	chain, err := t.Chain(ctx, tenantID, lineageID)
	if err != nil {
		return VerifyResult{}, err
	}

	result := VerifyResult{OK: true}
	for _, rec := range chain {
		if rec.DocumentReference == nil {
			continue
		}
		result.TotalHashes++
		want := rec.DocumentReference.TextHash
		got := sha256Hex(rec.DocumentReference.SourceText)
		if want == got {
			result.VerifiedHashes++
		} else {
			result.OK = false
			result.Issues = append(result.Issues, fmt.Sprintf(
				"lineage %s: textHash mismatch (stored=%s computed=%s)", rec.LineageID, want, got))
		}
	}
	return result, nil
}

// Explain renders an ordered, human-readable narrative of source →
// transformations → final value for lineageID (§4.5).
func (t *Tracker) Explain(ctx context.Context, tenantID, lineageID string) (string, error) {
	chain, err := t.Chain(ctx, tenantID, lineageID)
	if err != nil {
		return "", err
	}
	if len(chain) == 0 {
		return "", fmt.Errorf("lineage: no record found for %s", lineageID)
	}

	// Oldest record first: order the chain by CreatedAt.
	sort.SliceStable(chain, func(i, j int) bool { return chain[i].CreatedAt.Before(chain[j].CreatedAt) })

	var b strings.Builder
	for i, rec := range chain {
		fmt.Fprintf(&b, "%d. field %q came from %s", i+1, rec.FieldName, rec.Source)
		if rec.DocumentReference != nil {
			fmt.Fprintf(&b, " (document %s", rec.DocumentReference.DocID)
			if rec.DocumentReference.Page != nil {
				fmt.Fprintf(&b, ", page %d", *rec.DocumentReference.Page)
			}
			b.WriteString(")")
		}
		fmt.Fprintf(&b, ", value=%q\n", rec.Value)
		for _, tr := range rec.Transformations {
			fmt.Fprintf(&b, "   - %s: %q -> %q (%s)\n", tr.Type, tr.InputValue, tr.OutputValue, tr.Rule)
		}
	}
	final := chain[len(chain)-1]
	fmt.Fprintf(&b, "final value: %q\n", final.Value)
	return b.String(), nil
}
