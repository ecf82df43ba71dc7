package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"coderag/internal/contextutil"
	"coderag/internal/vectorstore"
)

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var _ vectorstore.VectorStore = (*ChunkRepo)(nil)

// ChunkRepo stores chunk vectors in SQLite and answers similarity queries by
// scanning the collection. It implements vectorstore.VectorStore.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// Open opens the database at path, migrates it and returns a ChunkRepo that
// owns the connection.
func Open(path string) (*ChunkRepo, error) {
	db, err := New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return NewChunkRepo(db), nil
}

// Backend returns "sqlite".
func (r *ChunkRepo) Backend() string {
	return "sqlite"
}

// Close closes the database.
func (r *ChunkRepo) Close() error {
	return r.db.Close()
}

// CollectionExists checks if a collection exists.
func (r *ChunkRepo) CollectionExists(ctx context.Context, collection string) (bool, error) {
	_, err := r.vectorSize(ctx, collection)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// EnsureCollection creates the collection if missing and validates the vector size otherwise.
func (r *ChunkRepo) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)

	size, err := r.vectorSize(ctx, collection)
	if errors.Is(err, ErrNotFound) {
		if _, err := r.db.ExecContext(ctx,
			"INSERT INTO collections (name, vector_size) VALUES (?, ?)",
			collection, vectorSize,
		); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		logger.InfoContext(ctx, "collection created", "collection", collection, "vector_size", vectorSize)
		return nil
	}
	if err != nil {
		return err
	}

	if size != vectorSize {
		return fmt.Errorf("collection vector size mismatch: expected %d, got %d", vectorSize, size)
	}
	logger.InfoContext(ctx, "collection validated", "collection", collection, "vector_size", vectorSize)
	return nil
}

// Upsert inserts or replaces points in one transaction.
func (r *ChunkRepo) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}

	size, err := r.vectorSize(ctx, collection)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (collection, id, source, payload, vector)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			source = excluded.source, payload = excluded.payload, vector = excluded.vector`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, p := range points {
		if len(p.Vec) != size {
			return fmt.Errorf("point %s has vector size %d, expected %d", p.ID, len(p.Vec), size)
		}
		payload, err := json.Marshal(p.Meta)
		if err != nil {
			return fmt.Errorf("failed to marshal payload of point %s: %w", p.ID, err)
		}
		source, _ := p.Meta[SourceField].(string)

		if _, err := stmt.ExecContext(ctx, collection, p.ID, source, string(payload), encodeVector(p.Vec)); err != nil {
			return fmt.Errorf("failed to upsert point %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}
	return nil
}

// Delete removes points by their IDs.
func (r *ChunkRepo) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM chunks WHERE collection = ? AND id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare delete: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, collection, id); err != nil {
			return fmt.Errorf("failed to delete point %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// ListIDs returns the IDs of points whose payload field equals value, ordered by ID.
func (r *ChunkRepo) ListIDs(ctx context.Context, collection, field, value string) ([]string, error) {
	where, args, err := filterClause(map[string]any{field: value})
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM chunks WHERE collection = ?"+where+" ORDER BY id",
		append([]any{collection}, args...)...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk IDs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chunk ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// Count returns the number of points in the collection.
func (r *ChunkRepo) Count(ctx context.Context, collection string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE collection = ?", collection,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// GetCollectionInfo returns the vector size and point count of a collection.
func (r *ChunkRepo) GetCollectionInfo(ctx context.Context, collection string) (*vectorstore.CollectionInfo, error) {
	size, err := r.vectorSize(ctx, collection)
	if err != nil {
		return nil, err
	}
	count, err := r.Count(ctx, collection)
	if err != nil {
		return nil, err
	}
	return &vectorstore.CollectionInfo{
		VectorSize:  size,
		PointsCount: count,
		Status:      "green",
	}, nil
}

// Search scores every matching point by cosine similarity and returns the best k.
func (r *ChunkRepo) Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]vectorstore.SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	where, args, err := filterClause(filters)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, payload, vector FROM chunks WHERE collection = ?"+where,
		append([]any{collection}, args...)...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var results []vectorstore.SearchResult
	for rows.Next() {
		var id, payload string
		var blob []byte
		if err := rows.Scan(&id, &payload, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}

		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", id, err)
		}
		if len(vec) != len(query) {
			return nil, fmt.Errorf("query has size %d, collection vectors have size %d", len(query), len(vec))
		}

		meta, err := decodePayload(payload)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", id, err)
		}

		results = append(results, vectorstore.SearchResult{
			PointID: id,
			Score:   cosine(query, vec),
			Meta:    meta,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].PointID < results[j].PointID
	})
	if len(results) > k {
		results = results[:k]
	}

	logger.DebugContext(ctx, "search completed", "collection", collection, "k", k, "results", len(results))
	return results, nil
}

func (r *ChunkRepo) vectorSize(ctx context.Context, collection string) (int, error) {
	var size int
	err := r.db.QueryRowContext(ctx,
		"SELECT vector_size FROM collections WHERE name = ?", collection,
	).Scan(&size)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("collection %s: %w", collection, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query collection: %w", err)
	}
	return size, nil
}

// filterClause builds " AND ..." conditions for equality filters. The source
// field uses its indexed column; other fields are read from the JSON payload.
func filterClause(filters map[string]any) (string, []any, error) {
	fields := make([]string, 0, len(filters))
	for field := range filters {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var b strings.Builder
	args := make([]any, 0, 2*len(filters))
	for _, field := range fields {
		if !fieldNamePattern.MatchString(field) {
			return "", nil, fmt.Errorf("invalid filter field %q", field)
		}

		value := filters[field]
		switch value.(type) {
		case string, bool, int, int64:
		default:
			return "", nil, fmt.Errorf("unsupported filter value for %s: %T", field, value)
		}

		if field == SourceField {
			b.WriteString(" AND source = ?")
			args = append(args, value)
			continue
		}
		b.WriteString(" AND json_extract(payload, ?) = ?")
		args = append(args, "$."+field, value)
	}
	return b.String(), args, nil
}

// decodePayload restores a JSON payload, keeping integral numbers as int64.
func decodePayload(payload string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()

	meta := make(map[string]any)
	if err := dec.Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if meta == nil {
		meta = make(map[string]any)
	}
	for k, v := range meta {
		meta[k] = normalizeNumber(v)
	}
	return meta, nil
}

func normalizeNumber(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case []any:
		for i := range val {
			val[i] = normalizeNumber(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = normalizeNumber(val[k])
		}
		return val
	default:
		return v
	}
}
