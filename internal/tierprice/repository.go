package tierprice

import (
	"context"
	"fmt"

	"github.com/catsync/catsync/internal/platform/db"
	"github.com/catsync/catsync/internal/shared"
)

// Repository persists tier prices in PostgreSQL.
type Repository struct {
	q      db.Queryer
	schema shared.SchemaVariant
}

// NewRepository constructs Repository.
func NewRepository(q db.Queryer, schema shared.SchemaVariant) *Repository {
	return &Repository{q: q, schema: schema}
}

// CustomerGroups loads all customer groups.
func (r *Repository) CustomerGroups(ctx context.Context) ([]CustomerGroup, error) {
	rows, err := r.q.Query(ctx, `SELECT customer_group_id, customer_group_code FROM customer_group`)
	if err != nil {
		return nil, fmt.Errorf("tierprice: customer groups: %w", err)
	}
	defer rows.Close()
	var groups []CustomerGroup
	for rows.Next() {
		var g CustomerGroup
		if err := rows.Scan(&g.ID, &g.Code); err != nil {
			return nil, fmt.Errorf("tierprice: scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// CreateCustomerGroup inserts a group bound to the default customer tax class.
func (r *Repository) CreateCustomerGroup(ctx context.Context, code string) (int64, error) {
	var taxClassID int64
	err := r.q.QueryRow(ctx,
		`SELECT class_id FROM tax_class WHERE class_type = 'CUSTOMER' ORDER BY class_id LIMIT 1`,
	).Scan(&taxClassID)
	if err != nil {
		return 0, fmt.Errorf("tierprice: customer tax class: %w", err)
	}
	var id int64
	err = r.q.QueryRow(ctx,
		`INSERT INTO customer_group (customer_group_code, tax_class_id) VALUES ($1, $2) RETURNING customer_group_id`,
		code, taxClassID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("tierprice: insert group: %w", err)
	}
	return id, nil
}

// DeleteTierPrices removes every tier row of a product.
func (r *Repository) DeleteTierPrices(ctx context.Context, linkID int64) error {
	query := fmt.Sprintf(`DELETE FROM catalog_product_entity_tier_price WHERE %s = $1`, r.schema.LinkColumn())
	if _, err := r.q.Exec(ctx, query, linkID); err != nil {
		return fmt.Errorf("tierprice: delete: %w", err)
	}
	return nil
}

// UpsertTierPrice writes one tier row keyed by its natural unique key.
func (r *Repository) UpsertTierPrice(ctx context.Context, row Row) error {
	link := r.schema.LinkColumn()
	allGroups := 0
	if row.AllGroups {
		allGroups = 1
	}
	query := fmt.Sprintf(`
		INSERT INTO catalog_product_entity_tier_price
			(%s, all_groups, customer_group_id, qty, value, website_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (%s, all_groups, customer_group_id, qty, website_id)
		DO UPDATE SET value = EXCLUDED.value`, link, link)
	if _, err := r.q.Exec(ctx, query, row.LinkID, allGroups, row.GroupID, row.Qty, row.Price, row.WebsiteID); err != nil {
		return fmt.Errorf("tierprice: upsert row: %w", err)
	}
	return nil
}
