package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"handover/internal/queries/models"
	id "handover/pkg/domain"
	"handover/pkg/platform/sentinel"
)

const queryColumns = `q.id, q.builder_id, q.registration_id, q.subject, q.message, q.response,
	q.status, q.created_at, q.updated_at, q.responded_at,
	r.customer_name, r.customer_email, r.project_name`

const queryFrom = ` FROM homeowner_queries q
	LEFT JOIN homeowner_registrations r ON r.id = q.registration_id AND r.builder_id = q.builder_id`

// PostgresStore persists queries in homeowner_queries and joins the owning
// registration on read.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, q *models.Query) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO homeowner_queries
			(id, builder_id, registration_id, subject, message, response, status, created_at, updated_at, responded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		[16]byte(q.ID), [16]byte(q.BuilderID), [16]byte(q.RegistrationID), q.Subject, q.Message,
		nullable(q.Response), string(q.Status), q.CreatedAt, q.UpdatedAt, q.RespondedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return fmt.Errorf("query %s: %w", q.ID, sentinel.ErrConflict)
			case "23503":
				return fmt.Errorf("registration %s: %w", q.RegistrationID, sentinel.ErrNotFound)
			}
		}
		return fmt.Errorf("insert query: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, q *models.Query) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE homeowner_queries
		SET response = $3, status = $4, updated_at = $5, responded_at = $6
		WHERE id = $1 AND builder_id = $2`,
		[16]byte(q.ID), [16]byte(q.BuilderID), nullable(q.Response), string(q.Status), q.UpdatedAt, q.RespondedAt,
	)
	if err != nil {
		return fmt.Errorf("update query: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("query %s: %w", q.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, builderID id.BuilderID, queryID id.QueryID) (*models.Query, error) {
	q, err := scanQuery(s.pool.QueryRow(ctx,
		`SELECT `+queryColumns+queryFrom+` WHERE q.id = $1 AND q.builder_id = $2`,
		[16]byte(queryID), [16]byte(builderID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("query %s: %w", queryID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find query: %w", err)
	}
	return q, nil
}

func (s *PostgresStore) List(ctx context.Context, builderID id.BuilderID, filter models.ListFilter) ([]*models.Query, error) {
	var regID *[16]byte
	if !filter.RegistrationID.IsNil() {
		raw := [16]byte(filter.RegistrationID)
		regID = &raw
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+queryColumns+queryFrom+`
		 WHERE q.builder_id = $1
		   AND ($2 = '' OR q.status = $2)
		   AND ($3::uuid IS NULL OR q.registration_id = $3)
		 ORDER BY q.created_at DESC, q.id`,
		[16]byte(builderID), string(filter.Status), regID)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	defer rows.Close()

	out := []*models.Query{}
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan query: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queries: %w", err)
	}
	return out, nil
}

func scanQuery(row pgx.Row) (*models.Query, error) {
	var (
		q                         models.Query
		queryID, builderID, regID [16]byte
		response                  *string
		status                    string
		name, email, project      *string
	)
	if err := row.Scan(&queryID, &builderID, &regID, &q.Subject, &q.Message, &response,
		&status, &q.CreatedAt, &q.UpdatedAt, &q.RespondedAt,
		&name, &email, &project); err != nil {
		return nil, err
	}
	q.ID = id.QueryID(queryID)
	q.BuilderID = id.BuilderID(builderID)
	q.RegistrationID = id.RegistrationID(regID)
	q.Status = models.Status(status)
	if response != nil {
		q.Response = *response
	}
	if name != nil {
		q.Registration = &models.RegistrationSummary{
			CustomerName:  *name,
			CustomerEmail: deref(email),
			ProjectName:   deref(project),
		}
	}
	return &q, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
