package domain

import "time"

// KnowledgeSnippet is a unit of retrievable knowledge with a precomputed
// embedding. Similarity is populated only on retrieval; it is never stored.
type KnowledgeSnippet struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	SourceName string    `json:"sourceName,omitempty"`
	Embedding  []float32 `json:"-"`
	Similarity float64   `json:"similarity,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
