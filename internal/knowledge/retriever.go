// Package knowledge implements hybrid (lexical + vector) retrieval over
// the knowledge snippet store.
package knowledge

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/chatdesk/chatdesk/internal/domain"
	"github.com/chatdesk/chatdesk/internal/logging"
	"github.com/chatdesk/chatdesk/internal/store"
)

// Params bound a retrieval run.
type Params struct {
	MatchCount    int
	Threshold     float64
	LexicalWeight float64
	VectorWeight  float64
}

// DefaultParams mirrors the retrieval defaults used when no overrides
// are configured.
func DefaultParams() Params {
	return Params{
		MatchCount:    5,
		Threshold:     0.5,
		LexicalWeight: 0.5,
		VectorWeight:  0.5,
	}
}

// Retriever ranks knowledge snippets against a query using a weighted
// blend of lexical overlap and embedding cosine similarity.
type Retriever struct {
	snippets *store.KnowledgeStore
	params   Params
	log      *logging.Logger
}

// NewRetriever creates a retriever over the given snippet store.
func NewRetriever(snippets *store.KnowledgeStore, params Params, log *logging.Logger) *Retriever {
	if params.MatchCount <= 0 {
		params.MatchCount = DefaultParams().MatchCount
	}
	return &Retriever{snippets: snippets, params: params, log: log.Sub("retriever")}
}

// Search returns the best-matching snippets for the query text and its
// embedding, highest similarity first. Snippets whose stored embedding
// has a different dimensionality than the query vector score zero on
// the vector component. An empty result is not an error.
func (r *Retriever) Search(ctx context.Context, query string, queryVec []float32) ([]domain.KnowledgeSnippet, error) {
	return r.SearchParams(ctx, query, queryVec, r.params)
}

// SearchParams is Search with per-call parameter overrides. A zero or
// negative MatchCount, a negative Threshold, or zero weights fall back
// to the configured values.
func (r *Retriever) SearchParams(ctx context.Context, query string, queryVec []float32, params Params) ([]domain.KnowledgeSnippet, error) {
	if params.MatchCount <= 0 {
		params.MatchCount = r.params.MatchCount
	}
	if params.Threshold < 0 {
		params.Threshold = r.params.Threshold
	}
	if params.LexicalWeight == 0 && params.VectorWeight == 0 {
		params.LexicalWeight = r.params.LexicalWeight
		params.VectorWeight = r.params.VectorWeight
	}
	all, err := r.snippets.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}

	lexIDs, err := r.snippets.LexicalMatches(ctx, query, len(all))
	if err != nil {
		return nil, err
	}
	lexSet := make(map[string]bool, len(lexIDs))
	for _, id := range lexIDs {
		lexSet[id] = true
	}

	queryTokens := tokenize(query)

	var out []domain.KnowledgeSnippet
	for _, snip := range all {
		var lex float64
		if lexSet[snip.ID] {
			lex = overlapScore(queryTokens, tokenize(snip.Content))
		}
		vec := cosine(queryVec, snip.Embedding)

		score := params.LexicalWeight*lex + params.VectorWeight*vec
		if score < params.Threshold {
			continue
		}
		snip.Similarity = score
		snip.Embedding = nil
		out = append(out, snip)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	if len(out) > params.MatchCount {
		out = out[:params.MatchCount]
	}

	r.log.Debug().
		Int("candidates", len(all)).
		Int("lexical", len(lexIDs)).
		Int("matched", len(out)).
		Msg("hybrid search done")
	return out, nil
}

// cosine returns the cosine similarity of two vectors, clamped to
// [0, 1]. Mismatched or empty dimensions score zero.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// overlapScore is the fraction of query tokens present in the content.
func overlapScore(queryTokens, contentTokens []string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	set := make(map[string]bool, len(contentTokens))
	for _, t := range contentTokens {
		set[t] = true
	}
	var hits int
	for _, t := range queryTokens {
		if set[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTokens))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
