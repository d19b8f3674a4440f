package eav

import (
	"context"
	"fmt"
	"strings"

	"github.com/catsync/catsync/internal/platform/db"
	"github.com/catsync/catsync/internal/shared"
	"github.com/catsync/catsync/internal/storescope"
)

// Repository persists EAV metadata, options and values in PostgreSQL.
type Repository struct {
	q      db.Queryer
	schema shared.SchemaVariant
}

// NewRepository constructs Repository for the given schema variant.
func NewRepository(q db.Queryer, schema shared.SchemaVariant) *Repository {
	return &Repository{q: q, schema: schema}
}

// LoadAttributes reads the product attribute metadata.
func (r *Repository) LoadAttributes(ctx context.Context) ([]Attribute, error) {
	const query = `
		SELECT ea.attribute_id, ea.attribute_code, ea.backend_type, ea.frontend_input,
		       COALESCE(ea.source_model, ''), COALESCE(cea.is_global, 1), COALESCE(cea.apply_to, '')
		FROM eav_attribute ea
		JOIN eav_entity_type et ON et.entity_type_id = ea.entity_type_id
		LEFT JOIN catalog_eav_attribute cea ON cea.attribute_id = ea.attribute_id
		WHERE et.entity_type_code = 'catalog_product'`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("eav: load attributes: %w", err)
	}
	defer rows.Close()

	var attrs []Attribute
	for rows.Next() {
		var (
			a           Attribute
			backend     string
			sourceModel string
			scope       int
			applyTo     string
		)
		if err := rows.Scan(&a.ID, &a.Code, &backend, &a.Input, &sourceModel, &scope, &applyTo); err != nil {
			return nil, fmt.Errorf("eav: scan attribute: %w", err)
		}
		a.Backend = Backend(backend)
		a.Scope = storescope.Scope(scope)
		a.Source = classifySource(a.Input, sourceModel)
		if applyTo != "" {
			a.ApplyTo = strings.Split(applyTo, ",")
		}
		attrs = append(attrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eav: attributes: %w", err)
	}
	return attrs, nil
}

func classifySource(input, sourceModel string) Source {
	if input != "select" && input != "multiselect" && input != "boolean" {
		return SourceNone
	}
	switch {
	case sourceModel == "" || strings.Contains(sourceModel, "Source\\Table"):
		return SourceTable
	case strings.Contains(sourceModel, "Status"):
		return SourceStatus
	case strings.Contains(sourceModel, "Visibility"):
		return SourceVisibility
	case strings.Contains(sourceModel, "Boolean"):
		return SourceBoolean
	default:
		return SourceOther
	}
}

// Options loads every option of an attribute with its per-store labels.
func (r *Repository) Options(ctx context.Context, attributeID int64) ([]Option, error) {
	const query = `
		SELECT o.option_id, o.sort_order, v.store_id, v.value
		FROM eav_attribute_option o
		JOIN eav_attribute_option_value v ON v.option_id = o.option_id
		WHERE o.attribute_id = $1
		ORDER BY o.option_id, v.store_id`
	rows, err := r.q.Query(ctx, query, attributeID)
	if err != nil {
		return nil, fmt.Errorf("eav: load options: %w", err)
	}
	defer rows.Close()

	var opts []Option
	index := make(map[int64]int)
	for rows.Next() {
		var (
			id, storeID int64
			sortOrder   int
			label       string
		)
		if err := rows.Scan(&id, &sortOrder, &storeID, &label); err != nil {
			return nil, fmt.Errorf("eav: scan option: %w", err)
		}
		i, ok := index[id]
		if !ok {
			opts = append(opts, Option{ID: id, SortOrder: sortOrder, Labels: make(map[int64]string)})
			i = len(opts) - 1
			index[id] = i
		}
		opts[i].Labels[storeID] = label
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eav: options: %w", err)
	}
	return opts, nil
}

// CreateOption inserts a new option with its admin label.
func (r *Repository) CreateOption(ctx context.Context, attributeID int64, label string, sortOrder int) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx,
		`INSERT INTO eav_attribute_option (attribute_id, sort_order) VALUES ($1, $2) RETURNING option_id`,
		attributeID, sortOrder,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("eav: insert option: %w", err)
	}
	_, err = r.q.Exec(ctx,
		`INSERT INTO eav_attribute_option_value (option_id, store_id, value) VALUES ($1, $2, $3)`,
		id, storescope.AdminStoreID, label,
	)
	if err != nil {
		return 0, fmt.Errorf("eav: insert option label: %w", err)
	}
	return id, nil
}

func (r *Repository) valueTable(attr Attribute) string {
	return "catalog_product_entity_" + string(attr.Backend)
}

// UpsertValue writes one typed value row.
func (r *Repository) UpsertValue(ctx context.Context, attr Attribute, linkID, storeID int64, value any) error {
	link := r.schema.LinkColumn()
	query := fmt.Sprintf(`
		INSERT INTO %s (attribute_id, store_id, %s, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (attribute_id, store_id, %s) DO UPDATE SET value = EXCLUDED.value`,
		r.valueTable(attr), link, link)
	if _, err := r.q.Exec(ctx, query, attr.ID, storeID, linkID, value); err != nil {
		return fmt.Errorf("eav: upsert %s value for attribute %s: %w", attr.Backend, attr.Code, err)
	}
	return nil
}

// DeleteValue removes value rows; an empty storeIDs slice removes them for
// all stores.
func (r *Repository) DeleteValue(ctx context.Context, attr Attribute, linkID int64, storeIDs []int64) error {
	link := r.schema.LinkColumn()
	var err error
	if len(storeIDs) == 0 {
		query := fmt.Sprintf(`DELETE FROM %s WHERE attribute_id = $1 AND %s = $2`, r.valueTable(attr), link)
		_, err = r.q.Exec(ctx, query, attr.ID, linkID)
	} else {
		query := fmt.Sprintf(`DELETE FROM %s WHERE attribute_id = $1 AND %s = $2 AND store_id = ANY($3)`, r.valueTable(attr), link)
		_, err = r.q.Exec(ctx, query, attr.ID, linkID, storeIDs)
	}
	if err != nil {
		return fmt.Errorf("eav: delete %s value for attribute %s: %w", attr.Backend, attr.Code, err)
	}
	return nil
}

// DeleteValueOutsideAdmin removes per-store overrides after a global write.
func (r *Repository) DeleteValueOutsideAdmin(ctx context.Context, attr Attribute, linkID int64) error {
	link := r.schema.LinkColumn()
	query := fmt.Sprintf(`DELETE FROM %s WHERE attribute_id = $1 AND %s = $2 AND store_id <> $3`, r.valueTable(attr), link)
	if _, err := r.q.Exec(ctx, query, attr.ID, linkID, storescope.AdminStoreID); err != nil {
		return fmt.Errorf("eav: delete store overrides for attribute %s: %w", attr.Code, err)
	}
	return nil
}

// UpdateStatic writes a column on the entity table itself.
func (r *Repository) UpdateStatic(ctx context.Context, column string, linkID int64, value any) error {
	if !validStaticColumn(column) {
		return fmt.Errorf("%w: static column %q not writable", shared.ErrInput, column)
	}
	query := fmt.Sprintf(`UPDATE catalog_product_entity SET %s = $1 WHERE %s = $2`, column, r.schema.LinkColumn())
	if _, err := r.q.Exec(ctx, query, value, linkID); err != nil {
		return fmt.Errorf("eav: update static %s: %w", column, err)
	}
	return nil
}

func validStaticColumn(column string) bool {
	for _, r := range column {
		if r >= 'a' && r <= 'z' || r == '_' || r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return column != "" && column != "sku" && column != "entity_id" && column != "row_id"
}
