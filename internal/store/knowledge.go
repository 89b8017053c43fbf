package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/chatdesk/chatdesk/internal/domain"
)

// KnowledgeStore persists knowledge snippets with precomputed embeddings
// and maintains the FTS5 lexical index used by hybrid search.
type KnowledgeStore struct {
	db *DB
}

// NewKnowledgeStore creates a knowledge store using the given database.
func NewKnowledgeStore(db *DB) *KnowledgeStore {
	return &KnowledgeStore{db: db}
}

// Add stores a snippet. Missing ID is filled in.
func (s *KnowledgeStore) Add(ctx context.Context, snip *domain.KnowledgeSnippet) error {
	if snip.ID == "" {
		snip.ID = uuid.New().String()
	}
	_, err := s.db.sql.ExecContext(ctx, `
		INSERT INTO knowledge_snippets (id, content, source_name, embedding)
		VALUES (?, ?, ?, ?)`,
		snip.ID, snip.Content, snip.SourceName, encodeEmbedding(snip.Embedding))
	if err != nil {
		return domain.PersistenceError("add snippet", err)
	}
	return nil
}

// Delete removes a snippet by id.
func (s *KnowledgeStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.sql.ExecContext(ctx,
		"DELETE FROM knowledge_snippets WHERE id = ?", id)
	if err != nil {
		return domain.PersistenceError("delete snippet", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns snippet metadata (without embeddings), newest first.
func (s *KnowledgeStore) List(ctx context.Context) ([]domain.KnowledgeSnippet, error) {
	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT id, content, source_name, created_at
		FROM knowledge_snippets ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, domain.PersistenceError("list snippets", err)
	}
	defer rows.Close()

	var out []domain.KnowledgeSnippet
	for rows.Next() {
		var snip domain.KnowledgeSnippet
		var createdAt string
		if err := rows.Scan(&snip.ID, &snip.Content, &snip.SourceName, &createdAt); err != nil {
			return nil, domain.PersistenceError("scan snippet", err)
		}
		snip.CreatedAt = parseTime(createdAt)
		out = append(out, snip)
	}
	return out, rows.Err()
}

// All returns every snippet with its embedding, for vector scoring.
func (s *KnowledgeStore) All(ctx context.Context) ([]domain.KnowledgeSnippet, error) {
	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT id, content, source_name, embedding, created_at
		FROM knowledge_snippets`)
	if err != nil {
		return nil, domain.PersistenceError("load snippets", err)
	}
	defer rows.Close()

	var out []domain.KnowledgeSnippet
	for rows.Next() {
		var snip domain.KnowledgeSnippet
		var blob []byte
		var createdAt string
		if err := rows.Scan(&snip.ID, &snip.Content, &snip.SourceName, &blob, &createdAt); err != nil {
			return nil, domain.PersistenceError("scan snippet", err)
		}
		snip.Embedding = decodeEmbedding(blob)
		snip.CreatedAt = parseTime(createdAt)
		out = append(out, snip)
	}
	return out, rows.Err()
}

// LexicalMatches returns ids of snippets whose content matches the FTS5
// query, best match first. An empty result is not an error.
func (s *KnowledgeStore) LexicalMatches(ctx context.Context, query string, limit int) ([]string, error) {
	ftsQuery := buildFTSQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT ks.id
		FROM knowledge_fts f
		JOIN knowledge_snippets ks ON ks.rowid = f.rowid
		WHERE knowledge_fts MATCH ?
		ORDER BY rank LIMIT ?`, ftsQuery, limit)
	if err != nil {
		// A query of only stopwords or punctuation can be unparseable
		// for FTS5; treat that as no lexical matches.
		if isFTSSyntaxError(err) {
			return nil, nil
		}
		return nil, domain.PersistenceError("lexical search", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.PersistenceError("scan lexical match", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func isFTSSyntaxError(err error) bool {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "fts5: syntax error") || strings.Contains(msg, "malformed MATCH")
}

// buildFTSQuery turns free text into a safe OR-of-terms FTS5 query.
// Each term is quoted so user punctuation cannot change query semantics.
func buildFTSQuery(query string) string {
	var terms []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			terms = append(terms, `"`+string(cur)+`"`)
			cur = cur[:0]
		}
	}
	for _, r := range query {
		if isWordRune(r) {
			cur = append(cur, r)
		} else {
			flush()
		}
	}
	flush()

	if len(terms) == 0 {
		return ""
	}
	out := terms[0]
	for _, t := range terms[1:] {
		out += " OR " + t
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' ||
		(r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		r > 127
}

// Embeddings are stored as little-endian float32 blobs.

func encodeEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(blob []byte) []float32 {
	if len(blob) < 4 {
		return nil
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec
}
