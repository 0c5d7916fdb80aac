package expert

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/provenhq/expertrank/internal/attribute"
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

// CreateExpert stores a new expert and assigns its ID.
func (r *PostgresRepository) CreateExpert(ctx context.Context, e *Expert) error {
	query := `
		INSERT INTO expert (name, summary)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, e.Name, e.Summary).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert expert: %w", err)
	}
	return nil
}

// GetExpert retrieves an expert by ID.
func (r *PostgresRepository) GetExpert(ctx context.Context, id int64) (*Expert, error) {
	query := `
		SELECT id, name, summary, created_at, updated_at
		FROM expert
		WHERE id = $1`

	var e Expert
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&e.ID, &e.Name, &e.Summary, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrExpertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select expert: %w", err)
	}
	return &e, nil
}

// GetExpertsByID retrieves the named experts.
func (r *PostgresRepository) GetExpertsByID(ctx context.Context, ids []int64) (map[int64]*Expert, error) {
	if len(ids) == 0 {
		return map[int64]*Expert{}, nil
	}

	query := `
		SELECT id, name, summary, created_at, updated_at
		FROM expert
		WHERE id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("select experts: %w", err)
	}
	defer r.closeRows(rows)

	result := make(map[int64]*Expert, len(ids))
	for rows.Next() {
		var e Expert
		if err := rows.Scan(&e.ID, &e.Name, &e.Summary, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan expert: %w", err)
		}
		result[e.ID] = &e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experts: %w", err)
	}
	return result, nil
}

// ListExperts retrieves all experts in ID order.
func (r *PostgresRepository) ListExperts(ctx context.Context) ([]*Expert, error) {
	query := `
		SELECT id, name, summary, created_at, updated_at
		FROM expert
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list experts: %w", err)
	}
	defer r.closeRows(rows)

	var result []*Expert
	for rows.Next() {
		var e Expert
		if err := rows.Scan(&e.ID, &e.Name, &e.Summary, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan expert: %w", err)
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experts: %w", err)
	}
	return result, nil
}

// UpdateExpert updates an expert's name and summary.
func (r *PostgresRepository) UpdateExpert(ctx context.Context, e *Expert) error {
	query := `
		UPDATE expert
		SET name = $2, summary = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, e.ID, e.Name, e.Summary).
		Scan(&e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrExpertNotFound
	}
	if err != nil {
		return fmt.Errorf("update expert: %w", err)
	}
	return nil
}

// DeleteExpert removes an expert. Experiences and their associations cascade
// at the schema level.
func (r *PostgresRepository) DeleteExpert(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expert WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete expert: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expert: %w", err)
	}
	if affected == 0 {
		return ErrExpertNotFound
	}
	return nil
}

// CreateExperience stores a new experience and its attribute associations in
// one transaction.
func (r *PostgresRepository) CreateExperience(ctx context.Context, exp *Experience) error {
	if err := exp.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			r.logger.Warn("failed to rollback transaction", "error", rerr)
		}
	}()

	query := `
		INSERT INTO experience (expert_id, start_date, end_date, summary)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	var endDate any
	if exp.EndDate != nil {
		endDate = *exp.EndDate
	}
	err = tx.QueryRowContext(ctx, query, exp.ExpertID, exp.StartDate, endDate, exp.Summary).Scan(&exp.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
			return ErrExpertNotFound
		}
		return fmt.Errorf("insert experience: %w", err)
	}

	for _, a := range exp.Attributes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO experience_attribute (experience_id, attribute_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			exp.ID, a.ID,
		); err != nil {
			return fmt.Errorf("associate attribute %d: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetExperience retrieves an experience with its attributes.
func (r *PostgresRepository) GetExperience(ctx context.Context, id int64) (*Experience, error) {
	query := `
		SELECT id, expert_id, start_date, end_date, summary
		FROM experience
		WHERE id = $1`

	var exp Experience
	var endDate sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&exp.ID, &exp.ExpertID, &exp.StartDate, &endDate, &exp.Summary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrExperienceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select experience: %w", err)
	}
	if endDate.Valid {
		t := endDate.Time
		exp.EndDate = &t
	}

	attrs, err := r.experienceAttributes(ctx, id)
	if err != nil {
		return nil, err
	}
	exp.Attributes = attrs
	return &exp, nil
}

// ListExperiencesByExpert retrieves an expert's experiences in ID order.
func (r *PostgresRepository) ListExperiencesByExpert(ctx context.Context, expertID int64) ([]*Experience, error) {
	if _, err := r.GetExpert(ctx, expertID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, expert_id, start_date, end_date, summary
		FROM experience
		WHERE expert_id = $1
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, expertID)
	if err != nil {
		return nil, fmt.Errorf("list experiences: %w", err)
	}
	defer r.closeRows(rows)

	var result []*Experience
	for rows.Next() {
		var exp Experience
		var endDate sql.NullTime
		if err := rows.Scan(&exp.ID, &exp.ExpertID, &exp.StartDate, &endDate, &exp.Summary); err != nil {
			return nil, fmt.Errorf("scan experience: %w", err)
		}
		if endDate.Valid {
			t := endDate.Time
			exp.EndDate = &t
		}
		result = append(result, &exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiences: %w", err)
	}

	for _, exp := range result {
		attrs, err := r.experienceAttributes(ctx, exp.ID)
		if err != nil {
			return nil, err
		}
		exp.Attributes = attrs
	}
	return result, nil
}

// DeleteExperience removes an experience. Associations cascade at the schema
// level.
func (r *PostgresRepository) DeleteExperience(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM experience WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete experience: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete experience: %w", err)
	}
	if affected == 0 {
		return ErrExperienceNotFound
	}
	return nil
}

// SetExperienceAttributes replaces an experience's attribute set in one
// transaction.
func (r *PostgresRepository) SetExperienceAttributes(ctx context.Context, experienceID int64, attributeIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			r.logger.Warn("failed to rollback transaction", "error", rerr)
		}
	}()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM experience WHERE id = $1)`, experienceID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check experience: %w", err)
	}
	if !exists {
		return ErrExperienceNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM experience_attribute WHERE experience_id = $1`, experienceID,
	); err != nil {
		return fmt.Errorf("clear associations: %w", err)
	}

	for _, attrID := range attributeIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO experience_attribute (experience_id, attribute_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			experienceID, attrID,
		); err != nil {
			return fmt.Errorf("associate attribute %d: %w", attrID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// MatchExperiences returns every experience whose attribute set intersects
// attributeIDs, with the matched attributes attached. One query; rows are
// grouped in (expert_id, experience_id) order.
func (r *PostgresRepository) MatchExperiences(ctx context.Context, attributeIDs []int64) ([]ExperienceMatch, error) {
	if len(attributeIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT e.id, e.expert_id, e.start_date, e.end_date, e.summary,
		       a.id, a.type, a.name, a.summary
		FROM experience e
		JOIN experience_attribute ea ON ea.experience_id = e.id
		JOIN attribute a ON a.id = ea.attribute_id
		WHERE ea.attribute_id = ANY($1)
		ORDER BY e.expert_id ASC, e.id ASC, a.id ASC`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(attributeIDs))
	if err != nil {
		return nil, fmt.Errorf("match experiences: %w", err)
	}
	defer r.closeRows(rows)

	var result []ExperienceMatch
	var current *ExperienceMatch
	for rows.Next() {
		var (
			expID, expertID int64
			startDate       sql.NullTime
			endDate         sql.NullTime
			summary         string
			attr            attribute.Attribute
		)
		if err := rows.Scan(&expID, &expertID, &startDate, &endDate, &summary,
			&attr.ID, &attr.Type, &attr.Name, &attr.Summary); err != nil {
			return nil, fmt.Errorf("scan match row: %w", err)
		}

		if current == nil || current.ExperienceID != expID {
			result = append(result, ExperienceMatch{
				ExperienceID: expID,
				ExpertID:     expertID,
				StartDate:    startDate.Time,
				Summary:      summary,
			})
			current = &result[len(result)-1]
			if endDate.Valid {
				t := endDate.Time
				current.EndDate = &t
			}
		}
		current.Matched = append(current.Matched, attr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match rows: %w", err)
	}
	return result, nil
}

// experienceAttributes fetches the attributes associated with an experience.
func (r *PostgresRepository) experienceAttributes(ctx context.Context, experienceID int64) ([]attribute.Attribute, error) {
	query := `
		SELECT a.id, a.type, a.name, a.summary
		FROM attribute a
		JOIN experience_attribute ea ON ea.attribute_id = a.id
		WHERE ea.experience_id = $1
		ORDER BY a.id ASC`

	rows, err := r.db.QueryContext(ctx, query, experienceID)
	if err != nil {
		return nil, fmt.Errorf("select experience attributes: %w", err)
	}
	defer r.closeRows(rows)

	var attrs []attribute.Attribute
	for rows.Next() {
		var a attribute.Attribute
		if err := rows.Scan(&a.ID, &a.Type, &a.Name, &a.Summary); err != nil {
			return nil, fmt.Errorf("scan attribute: %w", err)
		}
		attrs = append(attrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attributes: %w", err)
	}
	return attrs, nil
}

func (r *PostgresRepository) closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		r.logger.Warn("failed to close rows", "error", err)
	}
}
