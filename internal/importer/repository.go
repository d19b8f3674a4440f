package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/catsync/catsync/internal/platform/db"
	"github.com/catsync/catsync/internal/shared"
)

// Product is the identity of a catalog product as the batch sees it.
// ID is the immutable entity id; LinkID is whichever id the value
// tables reference under the active schema variant.
type Product struct {
	ID             int64
	LinkID         int64
	SKU            string
	TypeID         string
	AttributeSetID int64
}

// Repository reads and writes catalog_product_entity rows.
type Repository struct {
	q      db.Queryer
	schema shared.SchemaVariant
}

func NewRepository(q db.Queryer, schema shared.SchemaVariant) *Repository {
	return &Repository{q: q, schema: schema}
}

// DetectSchema probes the entity table for a row_id column, which only
// versioned catalogs carry.
func DetectSchema(ctx context.Context, q db.Queryer) (shared.SchemaVariant, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_name = 'catalog_product_entity' AND column_name = 'row_id'
		)`
	var versioned bool
	if err := q.QueryRow(ctx, query).Scan(&versioned); err != nil {
		return 0, fmt.Errorf("detect schema: %w", err)
	}
	if versioned {
		return shared.SchemaVersionedRow, nil
	}
	return shared.SchemaSingleID, nil
}

// ProductsBySKU loads the identities of all given SKUs that exist.
func (r *Repository) ProductsBySKU(ctx context.Context, skus []string) (map[string]Product, error) {
	if len(skus) == 0 {
		return map[string]Product{}, nil
	}
	query := fmt.Sprintf(`
		SELECT entity_id, %s, sku, type_id, attribute_set_id
		FROM catalog_product_entity
		WHERE sku = ANY($1)`, r.schema.LinkColumn())
	rows, err := r.q.Query(ctx, query, skus)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Product, len(skus))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.LinkID, &p.SKU, &p.TypeID, &p.AttributeSetID); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.SKU] = p
	}
	return out, rows.Err()
}

// InsertProduct creates a new entity row. Under the versioned schema a
// sequence row is allocated first and the entity references it.
func (r *Repository) InsertProduct(ctx context.Context, sku, typeID string, attributeSetID int64) (Product, error) {
	p := Product{SKU: sku, TypeID: typeID, AttributeSetID: attributeSetID}
	switch r.schema {
	case shared.SchemaVersionedRow:
		err := r.q.QueryRow(ctx,
			`INSERT INTO sequence_product DEFAULT VALUES RETURNING sequence_value`,
		).Scan(&p.ID)
		if err != nil {
			return Product{}, fmt.Errorf("allocate product id: %w", err)
		}
		err = r.q.QueryRow(ctx, `
			INSERT INTO catalog_product_entity
				(entity_id, attribute_set_id, type_id, sku, has_options, required_options, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 0, 0, NOW(), NOW())
			RETURNING row_id`,
			p.ID, attributeSetID, typeID, sku,
		).Scan(&p.LinkID)
		if err != nil {
			return Product{}, fmt.Errorf("insert product %s: %w", sku, err)
		}
	default:
		err := r.q.QueryRow(ctx, `
			INSERT INTO catalog_product_entity
				(attribute_set_id, type_id, sku, has_options, required_options, created_at, updated_at)
			VALUES ($1, $2, $3, 0, 0, NOW(), NOW())
			RETURNING entity_id`,
			attributeSetID, typeID, sku,
		).Scan(&p.ID)
		if err != nil {
			return Product{}, fmt.Errorf("insert product %s: %w", sku, err)
		}
		p.LinkID = p.ID
	}
	return p, nil
}

// Touch bumps updated_at so downstream indexers pick the product up.
func (r *Repository) Touch(ctx context.Context, productID int64) error {
	_, err := r.q.Exec(ctx,
		`UPDATE catalog_product_entity SET updated_at = $2 WHERE entity_id = $1`,
		productID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("touch product: %w", err)
	}
	return nil
}

// MarkConfigurable flips the entity row into a configurable parent.
func (r *Repository) MarkConfigurable(ctx context.Context, productID int64) error {
	_, err := r.q.Exec(ctx, `
		UPDATE catalog_product_entity
		SET type_id = 'configurable', has_options = 1, required_options = 1
		WHERE entity_id = $1`,
		productID)
	if err != nil {
		return fmt.Errorf("mark configurable: %w", err)
	}
	return nil
}

// AssignWebsite makes the product visible on a website. Assigning twice
// is a no-op.
func (r *Repository) AssignWebsite(ctx context.Context, productID, websiteID int64) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO catalog_product_website (product_id, website_id)
		VALUES ($1, $2)
		ON CONFLICT (product_id, website_id) DO NOTHING`,
		productID, websiteID)
	if err != nil {
		return fmt.Errorf("assign website: %w", err)
	}
	return nil
}

// URLKeys reads the effective url_key per store, falling back to the
// admin value where no store override exists.
func (r *Repository) URLKeys(ctx context.Context, attributeID, linkID int64, storeIDs []int64) (map[int64]string, error) {
	query := fmt.Sprintf(`
		SELECT store_id, value
		FROM catalog_product_entity_varchar
		WHERE attribute_id = $1 AND %s = $2 AND value IS NOT NULL`, r.schema.LinkColumn())
	rows, err := r.q.Query(ctx, query, attributeID, linkID)
	if err != nil {
		return nil, fmt.Errorf("load url keys: %w", err)
	}
	defer rows.Close()

	values := make(map[int64]string)
	for rows.Next() {
		var storeID int64
		var value string
		if err := rows.Scan(&storeID, &value); err != nil {
			return nil, fmt.Errorf("scan url key: %w", err)
		}
		values[storeID] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make(map[int64]string, len(storeIDs))
	for _, id := range storeIDs {
		if v, ok := values[id]; ok {
			out[id] = v
		} else if v, ok := values[0]; ok {
			out[id] = v
		}
	}
	return out, nil
}
