// Package postgres provides a PostgreSQL-backed chunk and consolidation-log store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/loomworks/engram/pkg/memory"
	"github.com/loomworks/engram/pkg/storage"
	"github.com/loomworks/engram/pkg/vector"
)

const defaultLogLimit = 100

// Driver implements storage.Driver using PostgreSQL via pgx.
type Driver struct {
	db *sql.DB
}

// NewDriver connects to PostgreSQL using the given DSN and runs migrations.
func NewDriver(ctx context.Context, dsn string) (*Driver, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	d := &Driver{db: db}

	if err := d.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return d, nil
}

func (d *Driver) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		embedding BYTEA,
		source_path TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		area TEXT NOT NULL DEFAULT 'main',
		importance DOUBLE PRECISION NOT NULL DEFAULT 0.5,
		consolidated_from JSONB
	);

	CREATE TABLE IF NOT EXISTS consolidation_log (
		id TEXT PRIMARY KEY,
		timestamp BIGINT NOT NULL,
		action TEXT NOT NULL,
		source_ids JSONB NOT NULL,
		result_id TEXT,
		area TEXT NOT NULL DEFAULT 'main',
		model TEXT NOT NULL DEFAULT '',
		reasoning TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_consolidation_log_timestamp ON consolidation_log(timestamp);

	ALTER TABLE chunks ADD COLUMN IF NOT EXISTS area TEXT NOT NULL DEFAULT 'main';
	ALTER TABLE chunks ADD COLUMN IF NOT EXISTS importance DOUBLE PRECISION NOT NULL DEFAULT 0.5;
	ALTER TABLE chunks ADD COLUMN IF NOT EXISTS consolidated_from JSONB;
	`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	return nil
}

// PutChunk inserts or updates a chunk row.
func (d *Driver) PutChunk(ctx context.Context, chunk *memory.Chunk) error {
	if chunk == nil {
		return fmt.Errorf("cannot store nil chunk")
	}

	consolidatedFrom, err := marshalIDs(chunk.ConsolidatedFrom)
	if err != nil {
		return fmt.Errorf("failed to marshal consolidated_from: %w", err)
	}

	updatedAt := chunk.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	query := `INSERT INTO chunks
		(id, text, embedding, source_path, model, updated_at, area, importance, consolidated_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding,
			source_path = EXCLUDED.source_path,
			model = EXCLUDED.model,
			updated_at = EXCLUDED.updated_at,
			area = EXCLUDED.area,
			importance = EXCLUDED.importance,
			consolidated_from = EXCLUDED.consolidated_from`

	_, err = d.db.ExecContext(ctx, query,
		chunk.ID,
		chunk.Text,
		vector.EncodeFloat32(chunk.Embedding),
		chunk.SourcePath,
		chunk.Model,
		updatedAt,
		string(memory.NormalizeArea(chunk.Area)),
		memory.ClampImportance(chunk.Importance),
		consolidatedFrom,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}

	return nil
}

// GetChunk retrieves a chunk by its id.
func (d *Driver) GetChunk(ctx context.Context, id string) (*memory.Chunk, error) {
	query := `SELECT id, text, embedding, source_path, model, updated_at, area, importance, consolidated_from
		FROM chunks WHERE id = $1`

	chunk, err := scanChunk(d.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunk: %w", err)
	}

	return chunk, nil
}

// UpdateChunkText overwrites a chunk's text and appends absorbed ids to its
// consolidated_from list. A missing id is a no-op.
func (d *Driver) UpdateChunkText(ctx context.Context, id, text string, absorbed []string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var existing sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT consolidated_from FROM chunks WHERE id = $1 FOR UPDATE`, id,
	).Scan(&existing)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read chunk %s: %w", id, err)
	}

	ids := unmarshalIDs(existing)
	ids = append(ids, absorbed...)

	consolidatedFrom, err := marshalIDs(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal consolidated_from: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE chunks SET text = $1, consolidated_from = $2, updated_at = $3 WHERE id = $4`,
		text, consolidatedFrom, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update chunk %s: %w", id, err)
	}

	return tx.Commit()
}

// DeleteChunk removes a chunk by its id. Deleting a missing id is a no-op.
func (d *Driver) DeleteChunk(ctx context.Context, id string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM chunks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete chunk %s: %w", id, err)
	}
	return nil
}

// ListChunks returns up to limit chunks, most recently updated first.
func (d *Driver) ListChunks(ctx context.Context, area memory.Area, limit int) ([]*memory.Chunk, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}

	query := `SELECT id, text, embedding, source_path, model, updated_at, area, importance, consolidated_from
		FROM chunks`
	args := []any{}
	if area != "" {
		query += ` WHERE area = $1`
		args = append(args, string(area))
	}
	query += fmt.Sprintf(` ORDER BY updated_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*memory.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}

// AppendLogEntry appends one consolidation log record.
func (d *Driver) AppendLogEntry(ctx context.Context, entry *memory.LogEntry) error {
	if entry == nil {
		return fmt.Errorf("cannot append nil log entry")
	}

	sourceIDs, err := json.Marshal(entry.SourceIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal source_ids: %w", err)
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var resultID any
	if entry.ResultID != nil {
		resultID = *entry.ResultID
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO consolidation_log (id, timestamp, action, source_ids, result_id, area, model, reasoning, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.Timestamp, entry.Action, string(sourceIDs), resultID,
		string(entry.Area), entry.Model, entry.Reasoning, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}

	return nil
}

// QueryLog returns log entries matching the filter, newest first.
func (d *Driver) QueryLog(ctx context.Context, filter memory.LogFilter) ([]*memory.LogEntry, error) {
	conds := []string{}
	args := []any{}

	if filter.Area != "" {
		args = append(args, string(filter.Area))
		conds = append(conds, fmt.Sprintf("area = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		conds = append(conds, fmt.Sprintf("action = $%d", len(args)))
	}
	if filter.Since > 0 {
		args = append(args, filter.Since)
		conds = append(conds, fmt.Sprintf("timestamp >= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLogLimit
	}

	query := `SELECT id, timestamp, action, source_ids, result_id, area, model, reasoning, created_at
		FROM consolidation_log`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY timestamp DESC LIMIT $%d`, len(args))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query log: %w", err)
	}
	defer rows.Close()

	var entries []*memory.LogEntry
	for rows.Next() {
		var (
			entry     memory.LogEntry
			sourceIDs string
			resultID  sql.NullString
			area      string
		)
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.Action, &sourceIDs,
			&resultID, &area, &entry.Model, &entry.Reasoning, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}

		if err := json.Unmarshal([]byte(sourceIDs), &entry.SourceIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal source_ids: %w", err)
		}
		if resultID.Valid {
			entry.ResultID = &resultID.String
		}
		entry.Area = memory.Area(area)

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (*memory.Chunk, error) {
	var (
		chunk            memory.Chunk
		embedding        []byte
		area             string
		consolidatedFrom sql.NullString
	)

	err := row.Scan(&chunk.ID, &chunk.Text, &embedding, &chunk.SourcePath,
		&chunk.Model, &chunk.UpdatedAt, &area, &chunk.Importance, &consolidatedFrom)
	if err != nil {
		return nil, err
	}

	if len(embedding) > 0 {
		chunk.Embedding, err = vector.DecodeFloat32(embedding)
		if err != nil {
			return nil, err
		}
	}

	chunk.Area = memory.Area(area)
	chunk.Importance = memory.ClampImportance(chunk.Importance)
	chunk.ConsolidatedFrom = unmarshalIDs(consolidatedFrom)

	return &chunk, nil
}

func marshalIDs(ids []string) (any, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func unmarshalIDs(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw.String), &ids); err != nil {
		return nil
	}
	return ids
}
