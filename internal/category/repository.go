package category

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/catsync/catsync/internal/platform/db"
	"github.com/catsync/catsync/internal/shared"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Repository persists categories in PostgreSQL.
type Repository struct {
	q      db.Queryer
	schema shared.SchemaVariant
	attrs  map[string]int64
}

// NewRepository constructs Repository.
func NewRepository(q db.Queryer, schema shared.SchemaVariant) *Repository {
	return &Repository{q: q, schema: schema}
}

// attributeIDs loads the category attribute ids used in lookups and
// creation, once per repository.
func (r *Repository) attributeIDs(ctx context.Context) (map[string]int64, error) {
	if r.attrs != nil {
		return r.attrs, nil
	}
	const query = `
		SELECT ea.attribute_code, ea.attribute_id
		FROM eav_attribute ea
		JOIN eav_entity_type et ON et.entity_type_id = ea.entity_type_id
		WHERE et.entity_type_code = 'catalog_category'
		  AND ea.attribute_code IN ('name', 'url_key', 'url_path', 'is_active', 'is_anchor', 'include_in_menu')`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("category: load attribute ids: %w", err)
	}
	defer rows.Close()
	attrs := make(map[string]int64, 6)
	for rows.Next() {
		var (
			code string
			id   int64
		)
		if err := rows.Scan(&code, &id); err != nil {
			return nil, fmt.Errorf("category: scan attribute id: %w", err)
		}
		attrs[code] = id
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.attrs = attrs
	return attrs, nil
}

// ChildByName finds a child by case-insensitive name in the first store
// that has a label for it.
func (r *Repository) ChildByName(ctx context.Context, parentID int64, name string, storeIDs []int64) (int64, bool, error) {
	attrs, err := r.attributeIDs(ctx)
	if err != nil {
		return 0, false, err
	}
	query := fmt.Sprintf(`
		SELECT c.entity_id
		FROM catalog_category_entity c
		JOIN catalog_category_entity_varchar v
			ON v.%s = c.%s AND v.attribute_id = $1
		WHERE c.parent_id = $2 AND v.store_id = ANY($3) AND LOWER(v.value) = LOWER($4)
		ORDER BY array_position($3, v.store_id)
		LIMIT 1`, r.schema.LinkColumn(), r.schema.LinkColumn())
	var id int64
	err = r.q.QueryRow(ctx, query, attrs["name"], parentID, storeIDs, name).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("category: child by name: %w", err)
	}
	return id, true, nil
}

// RootByName finds a tree root (direct child of the catalog root) by name.
func (r *Repository) RootByName(ctx context.Context, name string, storeIDs []int64) (int64, bool, error) {
	return r.ChildByName(ctx, rootCatalogID, name, storeIDs)
}

// NameOf returns the admin-store name of a category.
func (r *Repository) NameOf(ctx context.Context, categoryID int64) (string, bool, error) {
	attrs, err := r.attributeIDs(ctx)
	if err != nil {
		return "", false, err
	}
	query := fmt.Sprintf(`
		SELECT v.value
		FROM catalog_category_entity c
		JOIN catalog_category_entity_varchar v
			ON v.%s = c.%s AND v.attribute_id = $1 AND v.store_id = 0
		WHERE c.entity_id = $2`, r.schema.LinkColumn(), r.schema.LinkColumn())
	var name string
	if err := r.q.QueryRow(ctx, query, attrs["name"], categoryID).Scan(&name); err != nil {
		if isNoRows(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("category: name of %d: %w", categoryID, err)
	}
	return name, true, nil
}

// CreateChild inserts a category under parentID with the parsed flags and
// the given url key and url path. The new row inherits the parent's
// attribute set and sorts after its last sibling.
func (r *Repository) CreateChild(ctx context.Context, parentID int64, spec LevelSpec, urlKey, urlPath string) (int64, error) {
	attrs, err := r.attributeIDs(ctx)
	if err != nil {
		return 0, err
	}

	var (
		parentPath string
		attrSetID  int64
		level      int
		position   int
	)
	err = r.q.QueryRow(ctx, `
		SELECT p.path, p.attribute_set_id, p.level + 1,
		       COALESCE(MAX(c.position), 0) + 1
		FROM catalog_category_entity p
		LEFT JOIN catalog_category_entity c ON c.parent_id = p.entity_id
		WHERE p.entity_id = $1
		GROUP BY p.path, p.attribute_set_id, p.level`, parentID,
	).Scan(&parentPath, &attrSetID, &level, &position)
	if err != nil {
		return 0, fmt.Errorf("category: parent %d: %w", parentID, err)
	}

	now := time.Now().UTC()
	var id, linkID int64
	if r.schema == shared.SchemaVersionedRow {
		if err := r.q.QueryRow(ctx,
			`INSERT INTO sequence_catalog_category DEFAULT VALUES RETURNING sequence_value`,
		).Scan(&id); err != nil {
			return 0, fmt.Errorf("category: sequence: %w", err)
		}
		err = r.q.QueryRow(ctx, `
			INSERT INTO catalog_category_entity
				(entity_id, attribute_set_id, parent_id, path, position, level, children_count, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $7)
			RETURNING row_id`,
			id, attrSetID, parentID, parentPath, position, level, now,
		).Scan(&linkID)
		if err != nil {
			return 0, fmt.Errorf("category: insert entity: %w", err)
		}
	} else {
		err = r.q.QueryRow(ctx, `
			INSERT INTO catalog_category_entity
				(attribute_set_id, parent_id, path, position, level, children_count, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 0, $6, $6)
			RETURNING entity_id`,
			attrSetID, parentID, parentPath, position, level, now,
		).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("category: insert entity: %w", err)
		}
		linkID = id
	}

	path := fmt.Sprintf("%s/%d", parentPath, id)
	if _, err := r.q.Exec(ctx,
		`UPDATE catalog_category_entity SET path = $1 WHERE entity_id = $2`, path, id); err != nil {
		return 0, fmt.Errorf("category: set path: %w", err)
	}

	link := r.schema.LinkColumn()
	varcharQuery := fmt.Sprintf(`
		INSERT INTO catalog_category_entity_varchar (attribute_id, store_id, %s, value)
		VALUES ($1, 0, $2, $3)
		ON CONFLICT (attribute_id, store_id, %s) DO UPDATE SET value = EXCLUDED.value`, link, link)
	intQuery := fmt.Sprintf(`
		INSERT INTO catalog_category_entity_int (attribute_id, store_id, %s, value)
		VALUES ($1, 0, $2, $3)
		ON CONFLICT (attribute_id, store_id, %s) DO UPDATE SET value = EXCLUDED.value`, link, link)

	if _, err := r.q.Exec(ctx, varcharQuery, attrs["name"], linkID, spec.Name); err != nil {
		return 0, fmt.Errorf("category: name value: %w", err)
	}
	if _, err := r.q.Exec(ctx, varcharQuery, attrs["url_key"], linkID, urlKey); err != nil {
		return 0, fmt.Errorf("category: url key value: %w", err)
	}
	if _, err := r.q.Exec(ctx, varcharQuery, attrs["url_path"], linkID, urlPath); err != nil {
		return 0, fmt.Errorf("category: url path value: %w", err)
	}
	for code, on := range map[string]bool{
		"is_active":       spec.IsActive,
		"is_anchor":       spec.IsAnchor,
		"include_in_menu": spec.IncludeInMenu,
	} {
		v := 0
		if on {
			v = 1
		}
		if _, err := r.q.Exec(ctx, intQuery, attrs[code], linkID, v); err != nil {
			return 0, fmt.Errorf("category: %s value: %w", code, err)
		}
	}
	return id, nil
}

// UpsertStoreLabel writes the store-scoped name, url_key and url_path
// values of a category.
func (r *Repository) UpsertStoreLabel(ctx context.Context, categoryID, storeID int64, name, urlKey, urlPath string) error {
	attrs, err := r.attributeIDs(ctx)
	if err != nil {
		return err
	}
	link := r.schema.LinkColumn()
	query := fmt.Sprintf(`
		INSERT INTO catalog_category_entity_varchar (attribute_id, store_id, %s, value)
		SELECT $1, $2, %s, $4 FROM catalog_category_entity WHERE entity_id = $3
		ON CONFLICT (attribute_id, store_id, %s) DO UPDATE SET value = EXCLUDED.value`, link, link, link)
	for code, value := range map[string]string{"name": name, "url_key": urlKey, "url_path": urlPath} {
		if _, err := r.q.Exec(ctx, query, attrs[code], storeID, categoryID, value); err != nil {
			return fmt.Errorf("category: store %s value: %w", code, err)
		}
	}
	return nil
}

// AssignedCategories returns categoryID -> position for a product.
func (r *Repository) AssignedCategories(ctx context.Context, productID int64) (map[int64]int, error) {
	rows, err := r.q.Query(ctx,
		`SELECT category_id, position FROM catalog_category_product WHERE product_id = $1`, productID)
	if err != nil {
		return nil, fmt.Errorf("category: assignments: %w", err)
	}
	defer rows.Close()
	out := make(map[int64]int)
	for rows.Next() {
		var (
			id  int64
			pos int
		)
		if err := rows.Scan(&id, &pos); err != nil {
			return nil, fmt.Errorf("category: scan assignment: %w", err)
		}
		out[id] = pos
	}
	return out, rows.Err()
}

// AssignProduct upserts one assignment row.
func (r *Repository) AssignProduct(ctx context.Context, categoryID, productID int64, position int) error {
	const query = `
		INSERT INTO catalog_category_product (category_id, product_id, position)
		VALUES ($1, $2, $3)
		ON CONFLICT (category_id, product_id) DO UPDATE SET position = EXCLUDED.position`
	if _, err := r.q.Exec(ctx, query, categoryID, productID, position); err != nil {
		return fmt.Errorf("category: assign: %w", err)
	}
	return nil
}

// UnassignProduct removes one assignment row.
func (r *Repository) UnassignProduct(ctx context.Context, categoryID, productID int64) error {
	if _, err := r.q.Exec(ctx,
		`DELETE FROM catalog_category_product WHERE category_id = $1 AND product_id = $2`,
		categoryID, productID); err != nil {
		return fmt.Errorf("category: unassign: %w", err)
	}
	return nil
}
