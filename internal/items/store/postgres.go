package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"handover/internal/items/models"
	id "handover/pkg/domain"
	"handover/pkg/platform/sentinel"
)

const itemColumns = `id, builder_id, name, category, brand, model, description, price, status, created_at, updated_at`

// PostgresStore persists the catalog in builder_items.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, item *models.Item) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO builder_items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		[16]byte(item.ID), [16]byte(item.BuilderID), item.Name, item.Category,
		item.Brand, item.Model, item.Description, item.Price, string(item.Status),
		item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("item %s: %w", item.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, item *models.Item) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE builder_items
		SET name = $3, category = $4, brand = $5, model = $6, description = $7,
		    price = $8, status = $9, updated_at = $10
		WHERE id = $1 AND builder_id = $2`,
		[16]byte(item.ID), [16]byte(item.BuilderID), item.Name, item.Category,
		item.Brand, item.Model, item.Description, item.Price, string(item.Status), item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %s: %w", item.ID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, builderID id.BuilderID, itemID id.ItemID) (*models.Item, error) {
	item, err := scanItem(s.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM builder_items WHERE id = $1 AND builder_id = $2`,
		[16]byte(itemID), [16]byte(builderID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("item %s: %w", itemID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find item: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) FindByIDs(ctx context.Context, builderID id.BuilderID, ids []id.ItemID) ([]*models.Item, error) {
	raw := make([][16]byte, len(ids))
	for i, itemID := range ids {
		raw[i] = [16]byte(itemID)
	}
	return s.query(ctx,
		`SELECT `+itemColumns+` FROM builder_items
		 WHERE builder_id = $1 AND id = ANY($2)
		 ORDER BY category, name`,
		[16]byte(builderID), raw)
}

func (s *PostgresStore) List(ctx context.Context, builderID id.BuilderID, filter models.ListFilter) ([]*models.Item, error) {
	return s.query(ctx,
		`SELECT `+itemColumns+` FROM builder_items
		 WHERE builder_id = $1
		   AND ($2 = false OR status = 'active')
		   AND ($3 = '' OR category = $3)
		 ORDER BY category, name`,
		[16]byte(builderID), filter.ActiveOnly, filter.Category)
}

func (s *PostgresStore) Delete(ctx context.Context, builderID id.BuilderID, itemID id.ItemID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM builder_items WHERE id = $1 AND builder_id = $2`,
		[16]byte(itemID), [16]byte(builderID))
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %s: %w", itemID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]*models.Item, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	out := []*models.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return out, nil
}

func scanItem(row pgx.Row) (*models.Item, error) {
	var (
		item              models.Item
		itemID, builderID [16]byte
		status            string
	)
	if err := row.Scan(&itemID, &builderID, &item.Name, &item.Category,
		&item.Brand, &item.Model, &item.Description, &item.Price, &status,
		&item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.ID = id.ItemID(itemID)
	item.BuilderID = id.BuilderID(builderID)
	item.Status = models.Status(status)
	return &item, nil
}
