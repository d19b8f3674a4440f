package link

import (
	"context"
	"fmt"

	"github.com/catsync/catsync/internal/platform/db"
)

// Repository persists product links in PostgreSQL.
type Repository struct {
	q db.Queryer
}

// NewRepository constructs Repository.
func NewRepository(q db.Queryer) *Repository {
	return &Repository{q: q}
}

// ProductIDsBySKU resolves SKUs to entity ids; missing SKUs are absent
// from the result.
func (r *Repository) ProductIDsBySKU(ctx context.Context, skus []string) (map[string]int64, error) {
	if len(skus) == 0 {
		return map[string]int64{}, nil
	}
	rows, err := r.q.Query(ctx, `SELECT sku, entity_id FROM catalog_product_entity WHERE sku = ANY($1)`, skus)
	if err != nil {
		return nil, fmt.Errorf("link: lookup skus: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int64, len(skus))
	for rows.Next() {
		var (
			sku string
			id  int64
		)
		if err := rows.Scan(&sku, &id); err != nil {
			return nil, fmt.Errorf("link: scan sku: %w", err)
		}
		out[sku] = id
	}
	return out, rows.Err()
}

// Links loads the stored links of one type with their positions.
func (r *Repository) Links(ctx context.Context, productID int64, typ Type) ([]Link, error) {
	const query = `
		SELECT l.linked_product_id, COALESCE(pi.value, 0)
		FROM catalog_product_link l
		LEFT JOIN catalog_product_link_attribute_int pi
			ON pi.link_id = l.link_id
		WHERE l.product_id = $1 AND l.link_type_id = $2`
	rows, err := r.q.Query(ctx, query, productID, int(typ))
	if err != nil {
		return nil, fmt.Errorf("link: load: %w", err)
	}
	defer rows.Close()
	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.LinkedID, &l.Position); err != nil {
			return nil, fmt.Errorf("link: scan: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// DeleteLinks removes the given linked products for one type.
func (r *Repository) DeleteLinks(ctx context.Context, productID int64, typ Type, linkedIDs []int64) error {
	const query = `
		DELETE FROM catalog_product_link
		WHERE product_id = $1 AND link_type_id = $2 AND linked_product_id = ANY($3)`
	if _, err := r.q.Exec(ctx, query, productID, int(typ), linkedIDs); err != nil {
		return fmt.Errorf("link: delete: %w", err)
	}
	return nil
}

// InsertLink adds one link and its position attribute.
func (r *Repository) InsertLink(ctx context.Context, productID, linkedID int64, typ Type, position int) error {
	var linkID int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO catalog_product_link (product_id, linked_product_id, link_type_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id, linked_product_id, link_type_id) DO UPDATE SET link_type_id = EXCLUDED.link_type_id
		RETURNING link_id`,
		productID, linkedID, int(typ),
	).Scan(&linkID)
	if err != nil {
		return fmt.Errorf("link: insert: %w", err)
	}

	// The position attribute id differs per link type and install; look it
	// up by type and code.
	const posQuery = `
		INSERT INTO catalog_product_link_attribute_int (product_link_attribute_id, link_id, value)
		SELECT la.product_link_attribute_id, $1, $2
		FROM catalog_product_link_attribute la
		WHERE la.link_type_id = $3 AND la.product_link_attribute_code = 'position'
		ON CONFLICT (product_link_attribute_id, link_id) DO UPDATE SET value = EXCLUDED.value`
	if _, err := r.q.Exec(ctx, posQuery, linkID, position, int(typ)); err != nil {
		return fmt.Errorf("link: position: %w", err)
	}
	return nil
}
