package attribute

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

// Create stores a new attribute and assigns its ID.
func (r *PostgresRepository) Create(ctx context.Context, attr *Attribute) error {
	query := `
		INSERT INTO attribute (type, name, summary, embedding)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		attr.Type, attr.Name, attr.Summary, pq.Array(attr.Embedding),
	).Scan(&attr.ID, &attr.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrDuplicateName
		}
		return fmt.Errorf("insert attribute: %w", err)
	}
	return nil
}

// GetByID retrieves an attribute by its ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*Attribute, error) {
	query := `
		SELECT id, type, name, summary, created_at
		FROM attribute
		WHERE id = $1`

	var attr Attribute
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&attr.ID, &attr.Type, &attr.Name, &attr.Summary, &attr.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttributeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select attribute: %w", err)
	}
	return &attr, nil
}

// Lookup returns up to limit attributes of the given type matching the
// fragment, in relevance order: exact name match first, then prefix matches,
// then substring matches, each group in name order.
func (r *PostgresRepository) Lookup(ctx context.Context, attrType, query string, limit int) ([]*Attribute, error) {
	if limit <= 0 {
		limit = 10
	}

	sqlQuery := `
		SELECT id, type, name, summary, created_at
		FROM attribute
		WHERE type = $1
		  AND ($2 = '' OR name ILIKE '%' || $2 || '%')
		ORDER BY
			CASE
				WHEN $2 = '' THEN 3
				WHEN lower(name) = lower($2) THEN 0
				WHEN name ILIKE $2 || '%' THEN 1
				ELSE 2
			END,
			name ASC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, sqlQuery, attrType, query, limit)
	if err != nil {
		return nil, fmt.Errorf("lookup attributes: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			r.logger.Warn("failed to close rows", "error", cerr)
		}
	}()

	var result []*Attribute
	for rows.Next() {
		var attr Attribute
		if err := rows.Scan(&attr.ID, &attr.Type, &attr.Name, &attr.Summary, &attr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attribute: %w", err)
		}
		result = append(result, &attr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attributes: %w", err)
	}
	return result, nil
}

// Delete removes an attribute and its experience associations.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attribute WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete attribute: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete attribute: %w", err)
	}
	if affected == 0 {
		return ErrAttributeNotFound
	}
	return nil
}
