package configurable

import (
	"context"
	"fmt"

	"github.com/catsync/catsync/internal/platform/db"
	"github.com/catsync/catsync/internal/shared"
	"github.com/catsync/catsync/internal/storescope"
)

// Repository persists configurable structures in PostgreSQL.
type Repository struct {
	q      db.Queryer
	schema shared.SchemaVariant
}

// NewRepository constructs Repository.
func NewRepository(q db.Queryer, schema shared.SchemaVariant) *Repository {
	return &Repository{q: q, schema: schema}
}

// ProductsBySKU loads entity id, link id and type for each found SKU.
func (r *Repository) ProductsBySKU(ctx context.Context, skus []string) (map[string]Product, error) {
	if len(skus) == 0 {
		return map[string]Product{}, nil
	}
	query := fmt.Sprintf(
		`SELECT entity_id, %s, sku, type_id FROM catalog_product_entity WHERE sku = ANY($1)`,
		r.schema.LinkColumn())
	rows, err := r.q.Query(ctx, query, skus)
	if err != nil {
		return nil, fmt.Errorf("configurable: lookup skus: %w", err)
	}
	defer rows.Close()
	out := make(map[string]Product, len(skus))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.LinkID, &p.SKU, &p.Type); err != nil {
			return nil, fmt.Errorf("configurable: scan product: %w", err)
		}
		out[p.SKU] = p
	}
	return out, rows.Err()
}

// HasChildValue reports whether the child stores a non-null admin value
// for the attribute.
func (r *Repository) HasChildValue(ctx context.Context, attributeID, childLinkID int64) (bool, error) {
	query := fmt.Sprintf(`
		SELECT EXISTS (
			SELECT 1 FROM catalog_product_entity_int
			WHERE attribute_id = $1 AND %s = $2 AND store_id = $3 AND value IS NOT NULL
		)`, r.schema.LinkColumn())
	var has bool
	if err := r.q.QueryRow(ctx, query, attributeID, childLinkID, storescope.AdminStoreID).Scan(&has); err != nil {
		return false, fmt.Errorf("configurable: child value: %w", err)
	}
	return has, nil
}

// FrontendLabel returns the attribute's default frontend label.
func (r *Repository) FrontendLabel(ctx context.Context, attributeID int64) (string, error) {
	var label string
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(frontend_label, attribute_code) FROM eav_attribute WHERE attribute_id = $1`,
		attributeID,
	).Scan(&label)
	if err != nil {
		return "", fmt.Errorf("configurable: frontend label: %w", err)
	}
	return label, nil
}

// UpsertSuperAttribute writes the super attribute row and its position.
func (r *Repository) UpsertSuperAttribute(ctx context.Context, parentLinkID, attributeID int64, position int) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO catalog_product_super_attribute (product_id, attribute_id, position)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id, attribute_id) DO UPDATE SET position = EXCLUDED.position
		RETURNING product_super_attribute_id`,
		parentLinkID, attributeID, position,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("configurable: super attribute: %w", err)
	}
	return id, nil
}

// UpsertSuperAttributeLabel writes one label row per store, each falling
// back to the attribute's default frontend label.
func (r *Repository) UpsertSuperAttributeLabel(ctx context.Context, superAttributeID int64, storeIDs []int64, label string) error {
	const query = `
		INSERT INTO catalog_product_super_attribute_label
			(product_super_attribute_id, store_id, use_default, value)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (product_super_attribute_id, store_id) DO UPDATE SET value = EXCLUDED.value`
	for _, storeID := range storeIDs {
		if _, err := r.q.Exec(ctx, query, superAttributeID, storeID, label); err != nil {
			return fmt.Errorf("configurable: super attribute label: %w", err)
		}
	}
	return nil
}

// CurrentChildren returns the child entity ids linked to the parent.
func (r *Repository) CurrentChildren(ctx context.Context, parentLinkID int64) ([]int64, error) {
	rows, err := r.q.Query(ctx,
		`SELECT product_id FROM catalog_product_super_link WHERE parent_id = $1`, parentLinkID)
	if err != nil {
		return nil, fmt.Errorf("configurable: current children: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("configurable: scan child: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RemoveChildren unlinks children from the parent in both link tables.
func (r *Repository) RemoveChildren(ctx context.Context, parentLinkID, parentID int64, childIDs []int64) error {
	if _, err := r.q.Exec(ctx,
		`DELETE FROM catalog_product_super_link WHERE parent_id = $1 AND product_id = ANY($2)`,
		parentLinkID, childIDs); err != nil {
		return fmt.Errorf("configurable: delete super links: %w", err)
	}
	if _, err := r.q.Exec(ctx,
		`DELETE FROM catalog_product_relation WHERE parent_id = $1 AND child_id = ANY($2)`,
		parentID, childIDs); err != nil {
		return fmt.Errorf("configurable: delete relations: %w", err)
	}
	return nil
}

// AddChild links one child in both link tables.
func (r *Repository) AddChild(ctx context.Context, parentLinkID, parentID, childID int64) error {
	if _, err := r.q.Exec(ctx, `
		INSERT INTO catalog_product_super_link (parent_id, product_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		parentLinkID, childID); err != nil {
		return fmt.Errorf("configurable: insert super link: %w", err)
	}
	if _, err := r.q.Exec(ctx, `
		INSERT INTO catalog_product_relation (parent_id, child_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		parentID, childID); err != nil {
		return fmt.Errorf("configurable: insert relation: %w", err)
	}
	return nil
}
