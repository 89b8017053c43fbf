package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatdesk/chatdesk/internal/domain"
)

func TestKnowledge_AddListDelete(t *testing.T) {
	db := testDB(t)
	ks := NewKnowledgeStore(db)
	ctx := context.Background()

	snip := domain.KnowledgeSnippet{
		Content:    "We are open Monday to Friday, 9am to 5pm.",
		SourceName: "hours.md",
		Embedding:  []float32{0.1, 0.2, 0.3},
	}
	require.NoError(t, ks.Add(ctx, &snip))
	require.NotEmpty(t, snip.ID)

	list, err := ks.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, snip.Content, list[0].Content)
	assert.Equal(t, "hours.md", list[0].SourceName)
	assert.Nil(t, list[0].Embedding, "List must not load embeddings")

	require.NoError(t, ks.Delete(ctx, snip.ID))
	list, err = ks.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, ks.Delete(ctx, snip.ID), ErrNotFound)
}

func TestKnowledge_AllIncludesEmbeddings(t *testing.T) {
	db := testDB(t)
	ks := NewKnowledgeStore(db)
	ctx := context.Background()

	snip := domain.KnowledgeSnippet{
		Content:   "Refunds are processed within 5 business days.",
		Embedding: []float32{0.5, -1.25, 3.0},
	}
	require.NoError(t, ks.Add(ctx, &snip))

	all, err := ks.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []float32{0.5, -1.25, 3.0}, all[0].Embedding)
}

func TestKnowledge_LexicalMatches(t *testing.T) {
	db := testDB(t)
	ks := NewKnowledgeStore(db)
	ctx := context.Background()

	for _, content := range []string{
		"Shipping takes 3 to 5 business days within the country.",
		"We accept returns within 30 days of purchase.",
		"Our support team is available around the clock.",
	} {
		require.NoError(t, ks.Add(ctx, &domain.KnowledgeSnippet{Content: content}))
	}

	ids, err := ks.LexicalMatches(ctx, "shipping days", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, ids)

	// Punctuation-heavy input must not surface as an FTS syntax error.
	ids, err = ks.LexicalMatches(ctx, `"shipping" AND (days OR *`, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, ids)

	ids, err = ks.LexicalMatches(ctx, "zzzzz qqqqq", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestKnowledge_FTSFollowsDeletes(t *testing.T) {
	db := testDB(t)
	ks := NewKnowledgeStore(db)
	ctx := context.Background()

	snip := domain.KnowledgeSnippet{Content: "Warranty covers manufacturing defects."}
	require.NoError(t, ks.Add(ctx, &snip))
	require.NoError(t, ks.Delete(ctx, snip.ID))

	ids, err := ks.LexicalMatches(ctx, "warranty", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestEmbeddingCodec(t *testing.T) {
	vec := []float32{0, 1.5, -2.75, 1e-7}
	assert.Equal(t, vec, decodeEmbedding(encodeEmbedding(vec)))

	assert.Nil(t, decodeEmbedding(nil))
	assert.Nil(t, encodeEmbedding(nil))
}
