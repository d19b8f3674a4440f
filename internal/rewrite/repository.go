package rewrite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/catsync/catsync/internal/platform/db"
	"github.com/catsync/catsync/internal/shared"
)

// Repository persists url rewrites in PostgreSQL.
type Repository struct {
	q      db.Queryer
	schema shared.SchemaVariant
}

// NewRepository constructs Repository.
func NewRepository(q db.Queryer, schema shared.SchemaVariant) *Repository {
	return &Repository{q: q, schema: schema}
}

func scanRewrite(row pgx.Row) (*Rewrite, error) {
	var rw Rewrite
	var catID *int64
	err := row.Scan(&rw.ID, &rw.EntityType, &rw.EntityID, &rw.RequestPath, &rw.TargetPath, &rw.StoreID, &catID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if catID != nil {
		rw.CategoryID = *catID
	}
	return &rw, nil
}

const rewriteColumns = `url_rewrite_id, entity_type, entity_id, request_path, target_path, store_id, category_id`

// FindByTarget finds the rewrite serving a target identity in a store.
func (r *Repository) FindByTarget(ctx context.Context, storeID int64, entityType string, entityID int64, targetPath string) (*Rewrite, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM url_rewrite
		WHERE store_id = $1 AND entity_type = $2 AND entity_id = $3 AND target_path = $4
		LIMIT 1`, rewriteColumns)
	rw, err := scanRewrite(r.q.QueryRow(ctx, query, storeID, entityType, entityID, targetPath))
	if err != nil {
		return nil, fmt.Errorf("rewrite: find by target: %w", err)
	}
	return rw, nil
}

// FindByRequestPath finds the rewrite occupying a request path in a store.
func (r *Repository) FindByRequestPath(ctx context.Context, storeID int64, requestPath string) (*Rewrite, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM url_rewrite
		WHERE store_id = $1 AND request_path = $2
		LIMIT 1`, rewriteColumns)
	rw, err := scanRewrite(r.q.QueryRow(ctx, query, storeID, requestPath))
	if err != nil {
		return nil, fmt.Errorf("rewrite: find by path: %w", err)
	}
	return rw, nil
}

// UpdateRequestPath moves an existing rewrite to a new request path.
func (r *Repository) UpdateRequestPath(ctx context.Context, id int64, requestPath string) error {
	if _, err := r.q.Exec(ctx,
		`UPDATE url_rewrite SET request_path = $1 WHERE url_rewrite_id = $2`, requestPath, id); err != nil {
		return fmt.Errorf("rewrite: update path: %w", err)
	}
	return nil
}

// Insert writes a fresh rewrite row. Unique violations on the request
// path bubble up for the resolver to classify.
func (r *Repository) Insert(ctx context.Context, rw Rewrite) error {
	var catID *int64
	if rw.CategoryID != 0 {
		catID = &rw.CategoryID
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO url_rewrite
			(entity_type, entity_id, request_path, target_path, redirect_type, store_id, is_autogenerated, category_id)
		VALUES ($1, $2, $3, $4, 0, $5, 1, $6)`,
		rw.EntityType, rw.EntityID, rw.RequestPath, rw.TargetPath, rw.StoreID, catID)
	return err
}

// CategoryPathSlug builds the url path prefix of a category by slugging
// the names along its tree path, skipping the reserved root levels.
func (r *Repository) CategoryPathSlug(ctx context.Context, categoryID, storeID int64) (string, error) {
	link := r.schema.LinkColumn()
	query := fmt.Sprintf(`
		WITH target AS (
			SELECT path FROM catalog_category_entity WHERE entity_id = $1
		)
		SELECT c.entity_id, COALESCE(sv.value, av.value, '')
		FROM catalog_category_entity c
		JOIN target t ON c.entity_id::text = ANY(string_to_array(t.path, '/'))
		JOIN eav_attribute ea ON ea.attribute_code = 'name'
			AND ea.entity_type_id = (SELECT entity_type_id FROM eav_entity_type WHERE entity_type_code = 'catalog_category')
		LEFT JOIN catalog_category_entity_varchar sv
			ON sv.%s = c.%s AND sv.attribute_id = ea.attribute_id AND sv.store_id = $2
		LEFT JOIN catalog_category_entity_varchar av
			ON av.%s = c.%s AND av.attribute_id = ea.attribute_id AND av.store_id = 0
		WHERE c.level >= 2
		ORDER BY c.level`, link, link, link, link)
	rows, err := r.q.Query(ctx, query, categoryID, storeID)
	if err != nil {
		return "", fmt.Errorf("rewrite: category path: %w", err)
	}
	defer rows.Close()
	var segments []string
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return "", fmt.Errorf("rewrite: scan category path: %w", err)
		}
		if name == "" {
			continue
		}
		segments = append(segments, shared.Slug(name))
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return strings.Join(segments, "/"), nil
}

// DeleteStaleCategoryRewrites removes category-prefixed rewrites of the
// product whose category is no longer assigned.
func (r *Repository) DeleteStaleCategoryRewrites(ctx context.Context, storeID, productID int64, keep []int64) error {
	const query = `
		DELETE FROM url_rewrite
		WHERE store_id = $1 AND entity_type = $2 AND entity_id = $3
		  AND category_id IS NOT NULL AND NOT (category_id = ANY($4))`
	if _, err := r.q.Exec(ctx, query, storeID, EntityTypeProduct, productID, keep); err != nil {
		return fmt.Errorf("rewrite: delete stale: %w", err)
	}
	return nil
}
