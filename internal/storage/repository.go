package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ttseval/internal/items"
)

// AnnotationRepository persists annotations in PostgreSQL.
type AnnotationRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewAnnotationRepository creates a new repository.
func NewAnnotationRepository(db *sql.DB) *AnnotationRepository {
	return &AnnotationRepository{db: db, now: time.Now}
}

// Put upserts the annotation, replacing any previous payload.
func (r *AnnotationRepository) Put(ctx context.Context, sheet, itemID string, ann items.Annotation) error {
	if ann == nil {
		ann = items.Annotation{}
	}
	payload, err := json.Marshal(ann)
	if err != nil {
		return fmt.Errorf("marshal annotation: %w", err)
	}

	const upsert = `
		INSERT INTO annotations (sheet_name, item_id, payload, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (sheet_name, item_id)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, upsert, sheet, itemID, payload, r.now().UTC()); err != nil {
		return fmt.Errorf("upsert annotation: %w", err)
	}
	return nil
}

// Get fetches a single annotation.
func (r *AnnotationRepository) Get(ctx context.Context, sheet, itemID string) (items.Annotation, error) {
	const query = `
		SELECT payload
		FROM annotations
		WHERE sheet_name = $1 AND item_id = $2
	`
	var payload []byte
	if err := r.db.QueryRowContext(ctx, query, sheet, itemID).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, items.ErrNotFound
		}
		return nil, fmt.Errorf("select annotation: %w", err)
	}

	var ann items.Annotation
	if err := json.Unmarshal(payload, &ann); err != nil {
		return nil, fmt.Errorf("unmarshal annotation: %w", err)
	}
	if ann == nil {
		ann = items.Annotation{}
	}
	return ann, nil
}

// Exists reports whether an annotation row is present.
func (r *AnnotationRepository) Exists(ctx context.Context, sheet, itemID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM annotations WHERE sheet_name = $1 AND item_id = $2
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, sheet, itemID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check annotation: %w", err)
	}
	return exists, nil
}

// Sheets lists the sheets that have at least one annotation.
func (r *AnnotationRepository) Sheets(ctx context.Context) ([]string, error) {
	const query = `
		SELECT DISTINCT sheet_name
		FROM annotations
		ORDER BY sheet_name ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select sheets: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan sheet: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return names, nil
}
