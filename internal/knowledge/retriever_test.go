package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatdesk/chatdesk/internal/domain"
	"github.com/chatdesk/chatdesk/internal/logging"
	"github.com/chatdesk/chatdesk/internal/store"
)

func testStore(t *testing.T) *store.KnowledgeStore {
	t.Helper()
	db, err := store.Open(":memory:", logging.New(nil, "silent", "json"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewKnowledgeStore(db)
}

func addSnippet(t *testing.T, ks *store.KnowledgeStore, content string, vec []float32) string {
	t.Helper()
	snip := domain.KnowledgeSnippet{Content: content, Embedding: vec}
	require.NoError(t, ks.Add(context.Background(), &snip))
	return snip.ID
}

func TestSearch_RanksByBlendedScore(t *testing.T) {
	ks := testStore(t)
	// Lexically and semantically on-topic
	exact := addSnippet(t, ks, "shipping takes five business days", []float32{1, 0, 0})
	// Semantically close only
	related := addSnippet(t, ks, "delivery estimates vary by region", []float32{0.9, 0.1, 0})
	// Off-topic
	addSnippet(t, ks, "our office dog is named Waffles", []float32{0, 0, 1})

	r := NewRetriever(ks, DefaultParams(), logging.New(nil, "silent", "json"))
	got, err := r.Search(context.Background(), "how long does shipping take in business days", []float32{1, 0, 0})
	require.NoError(t, err)

	require.NotEmpty(t, got)
	assert.Equal(t, exact, got[0].ID)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Similarity, got[i].Similarity)
	}
	for _, snip := range got {
		assert.NotEqual(t, "our office dog is named Waffles", snip.Content)
		assert.Nil(t, snip.Embedding, "results must not leak embeddings")
	}
	_ = related
}

func TestSearch_ThresholdFiltersWeakMatches(t *testing.T) {
	ks := testStore(t)
	addSnippet(t, ks, "completely unrelated content", []float32{0, 1, 0})

	r := NewRetriever(ks, DefaultParams(), logging.New(nil, "silent", "json"))
	got, err := r.Search(context.Background(), "refund policy", []float32{1, 0, 0})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearch_MatchCountCapsResults(t *testing.T) {
	ks := testStore(t)
	for i := 0; i < 10; i++ {
		addSnippet(t, ks, "shipping details and shipping costs", []float32{1, 0, 0})
	}

	params := DefaultParams()
	params.MatchCount = 3
	r := NewRetriever(ks, params, logging.New(nil, "silent", "json"))
	got, err := r.Search(context.Background(), "shipping costs", []float32{1, 0, 0})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSearch_DimensionMismatchScoresZeroVector(t *testing.T) {
	ks := testStore(t)
	// Stored with a different embedding model: wrong dimensionality.
	addSnippet(t, ks, "shipping times and shipping rates explained", []float32{1, 0})

	params := DefaultParams()
	params.Threshold = 0.4
	r := NewRetriever(ks, params, logging.New(nil, "silent", "json"))
	got, err := r.Search(context.Background(), "shipping rates", []float32{1, 0, 0})
	require.NoError(t, err)

	// Still reachable through the lexical component alone.
	require.Len(t, got, 1)
	assert.InDelta(t, 0.5, got[0].Similarity, 0.01)
}

func TestSearchParams_Overrides(t *testing.T) {
	ks := testStore(t)
	for i := 0; i < 5; i++ {
		addSnippet(t, ks, "shipping details and shipping costs", []float32{1, 0, 0})
	}

	r := NewRetriever(ks, DefaultParams(), logging.New(nil, "silent", "json"))

	// Per-call count override.
	got, err := r.SearchParams(context.Background(), "shipping costs", []float32{1, 0, 0},
		Params{MatchCount: 2, Threshold: -1})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// A raised threshold filters matches the default would keep.
	got, err = r.SearchParams(context.Background(), "costs shipping details unrelated", []float32{1, 0, 0},
		Params{Threshold: 0.95})
	require.NoError(t, err)
	assert.Empty(t, got)

	// Unset fields fall back to the configured parameters.
	got, err = r.SearchParams(context.Background(), "shipping costs", []float32{1, 0, 0},
		Params{Threshold: -1})
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestSearch_EmptyStore(t *testing.T) {
	ks := testStore(t)
	r := NewRetriever(ks, DefaultParams(), logging.New(nil, "silent", "json"))
	got, err := r.Search(context.Background(), "anything", []float32{1, 0, 0})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{1, 2}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	// Opposed vectors clamp to zero rather than going negative.
	assert.Equal(t, 0.0, cosine([]float32{1, 0}, []float32{-1, 0}))
	assert.Equal(t, 0.0, cosine([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Equal(t, 0.0, cosine(nil, nil))
}
