package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cschwartz85032/loanserve-sub007/internal/domain"
	"github.com/cschwartz85032/loanserve-sub007/internal/errkind"
)

func TestExtractor_Extract_HappyPath(t *testing.T) {
	prompts := DefaultPromptPack()
	schemas := DefaultSchemaSet()

	prompt, version, err := prompts.Render(domain.DocHOI, []string{"Annual Premium: $1,200"}, []string{"hoi_premium"})
	require.NoError(t, err)

	raw := `{"docType":"HOI","promptVersion":"` + version + `","data":{"hoi_premium":"1200"},"confidence":{"hoi_premium":1.4},"evidence":{"hoi_premium":{"docId":"doc-1","page":1,"textHash":"abc"}}}`
	client := &FakeClient{Responses: map[string]string{prompt: raw}}

	e := NewExtractor(client, prompts, schemas)
	results, err := e.Extract(context.Background(), domain.DocHOI, []string{"Annual Premium: $1,200"}, []string{"hoi_premium"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "1200", results[0].Value)
	require.Equal(t, 1.0, results[0].Confidence, "confidence must clamp to [0,1]")
}

func TestExtractor_Extract_NoMissingKeysIsNoOp(t *testing.T) {
	e := NewExtractor(&FakeClient{}, DefaultPromptPack(), DefaultSchemaSet())
	results, err := e.Extract(context.Background(), domain.DocHOI, nil, nil)
	require.NoError(t, err)
	require.Nil(t, results)
}

func TestExtractor_Extract_SchemaRejectsUndeclaredField(t *testing.T) {
	prompts := DefaultPromptPack()
	schemas := DefaultSchemaSet()
	prompt, version, err := prompts.Render(domain.DocHOI, []string{"x"}, []string{"hoi_premium"})
	require.NoError(t, err)

	raw := `{"docType":"HOI","promptVersion":"` + version + `","data":{"ssn":"123-45-6789"},"confidence":{},"evidence":{}}`
	client := &FakeClient{Responses: map[string]string{prompt: raw}}

	e := NewExtractor(client, prompts, schemas)
	_, err = e.Extract(context.Background(), domain.DocHOI, []string{"x"}, []string{"hoi_premium"})
	require.Error(t, err, "additionalProperties: false must reject an undeclared field")
}

func TestExtractor_Extract_TransientOnClientError(t *testing.T) {
	client := &FakeClient{Err: context.DeadlineExceeded}
	e := NewExtractor(client, DefaultPromptPack(), DefaultSchemaSet())
	_, err := e.Extract(context.Background(), domain.DocHOI, []string{"x"}, []string{"hoi_premium"})
	require.Error(t, err)
	require.True(t, errkind.Retryable(err), "a failed LLM call must surface as a transient error")
}
