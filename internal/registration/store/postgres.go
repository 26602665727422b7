package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"handover/internal/registration/models"
	id "handover/pkg/domain"
	"handover/pkg/platform/sentinel"
)

const registrationColumns = `id, builder_id, customer_name, customer_email, customer_phone,
	property_address, property_city, property_state, property_zip,
	project_name, settlement_date, notes,
	selected_items, documents_uploaded, item_details,
	status, created_at, updated_at, entitlement_sent_at, delivered_at`

// PostgresStore persists registrations in the homeowner_registrations table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, r *models.Registration) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO homeowner_registrations (`+registrationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		uuidArg(r.ID), uuidArg(r.BuilderID), r.CustomerName, r.CustomerEmail, r.CustomerPhone,
		r.PropertyAddress, r.PropertyCity, r.PropertyState, r.PropertyZip,
		nullableText(r.ProjectName), r.SettlementDate, nullableText(r.Notes),
		r.SelectedItems, r.DocumentsUploaded, r.ItemDetails,
		string(r.Status), r.CreatedAt, r.UpdatedAt, r.EntitlementSentAt, r.DeliveredAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("registration %s: %w", r.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

// Update applies the supplied columns in one statement scoped by id and builder.
func (s *PostgresStore) Update(ctx context.Context, builderID id.BuilderID, regID id.RegistrationID, p models.Payload, now time.Time) (*models.Registration, error) {
	cols := p.Columns()
	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+3)
	for _, c := range cols {
		args = append(args, c.Value)
		sets = append(sets, c.Name+" = $"+strconv.Itoa(len(args)))
	}
	args = append(args, now)
	sets = append(sets, "updated_at = $"+strconv.Itoa(len(args)))
	args = append(args, uuidArg(regID), uuidArg(builderID))

	query := `UPDATE homeowner_registrations SET ` + strings.Join(sets, ", ") +
		` WHERE id = $` + strconv.Itoa(len(args)-1) + ` AND builder_id = $` + strconv.Itoa(len(args)) +
		` RETURNING ` + registrationColumns

	r, err := scanRegistration(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("registration %s: %w", regID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("update registration: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, builderID id.BuilderID, regID id.RegistrationID) (*models.Registration, error) {
	r, err := scanRegistration(s.pool.QueryRow(ctx, `
		SELECT `+registrationColumns+`
		FROM homeowner_registrations
		WHERE id = $1 AND builder_id = $2`, uuidArg(regID), uuidArg(builderID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("registration %s: %w", regID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) List(ctx context.Context, builderID id.BuilderID, filter models.ListFilter) ([]*models.Registration, error) {
	filter = filter.Normalize()
	query := `SELECT ` + registrationColumns + ` FROM homeowner_registrations WHERE builder_id = $1`
	args := []any{uuidArg(builderID)}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filter.Query != "" {
		args = append(args, "%"+escapeLike(filter.Query)+"%")
		n := "$" + strconv.Itoa(len(args))
		query += ` AND (customer_name ILIKE ` + n + ` OR customer_email ILIKE ` + n +
			` OR property_address ILIKE ` + n + ` OR coalesce(project_name, '') ILIKE ` + n + `)`
	}
	args = append(args, filter.Limit, filter.Offset)
	query += ` ORDER BY created_at DESC, id LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	out := []*models.Registration{}
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context, builderID id.BuilderID) (map[models.Status]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT status, count(*)
		FROM homeowner_registrations
		WHERE builder_id = $1
		GROUP BY status`, uuidArg(builderID))
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan registration count: %w", err)
		}
		counts[models.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registration counts: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) Delete(ctx context.Context, builderID id.BuilderID, regID id.RegistrationID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM homeowner_registrations WHERE id = $1 AND builder_id = $2`,
		uuidArg(regID), uuidArg(builderID))
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("registration %s: %w", regID, sentinel.ErrNotFound)
	}
	return nil
}

func scanRegistration(row pgx.Row) (*models.Registration, error) {
	var (
		r                 models.Registration
		regID, builderID  [16]byte
		projectName, note *string
		settlement        models.Date
		status            string
	)
	err := row.Scan(
		&regID, &builderID, &r.CustomerName, &r.CustomerEmail, &r.CustomerPhone,
		&r.PropertyAddress, &r.PropertyCity, &r.PropertyState, &r.PropertyZip,
		&projectName, &settlement, &note,
		&r.SelectedItems, &r.DocumentsUploaded, &r.ItemDetails,
		&status, &r.CreatedAt, &r.UpdatedAt, &r.EntitlementSentAt, &r.DeliveredAt,
	)
	if err != nil {
		return nil, err
	}
	r.ID = id.RegistrationID(regID)
	r.BuilderID = id.BuilderID(builderID)
	r.Status = models.Status(status)
	if projectName != nil {
		r.ProjectName = *projectName
	}
	if note != nil {
		r.Notes = *note
	}
	if !settlement.IsZero() {
		r.SettlementDate = &settlement
	}
	if r.SelectedItems == nil {
		r.SelectedItems = map[string][]string{}
	}
	if r.DocumentsUploaded == nil {
		r.DocumentsUploaded = map[string][]string{}
	}
	if r.ItemDetails == nil {
		r.ItemDetails = map[string]models.ItemDetail{}
	}
	return &r, nil
}

// uuidArg passes typed IDs to pgx as plain 16-byte UUIDs.
func uuidArg[T ~[16]byte](v T) [16]byte {
	return [16]byte(v)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user text literal inside an ILIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
