package stock

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/catsync/catsync/internal/platform/db"
)

// Repository persists stock rows in PostgreSQL.
type Repository struct {
	q db.Queryer
}

// NewRepository constructs Repository.
func NewRepository(q db.Queryer) *Repository {
	return &Repository{q: q}
}

const defaultStockID = 1

// UpsertStockItem writes the legacy stock item row for the default stock.
func (r *Repository) UpsertStockItem(ctx context.Context, productID int64, fields map[string]float64) error {
	cols := make([]string, 0, len(fields))
	for c := range fields {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	insertCols := []string{"product_id", "stock_id", "website_id"}
	args := []any{productID, defaultStockID, 0}
	placeholders := []string{"$1", "$2", "$3"}
	updates := make([]string, 0, len(cols))
	argCount := 4
	for _, c := range cols {
		insertCols = append(insertCols, c)
		placeholders = append(placeholders, "$"+strconv.Itoa(argCount))
		args = append(args, fields[c])
		updates = append(updates, c+" = EXCLUDED."+c)
		argCount++
	}

	query := fmt.Sprintf(`
		INSERT INTO cataloginventory_stock_item (%s) VALUES (%s)
		ON CONFLICT (product_id, stock_id) DO UPDATE SET %s`,
		strings.Join(insertCols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "))
	if _, err := r.q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("stock: stock item: %w", err)
	}
	return nil
}

// RefreshStockStatus rewrites the denormalized status row indexers read.
func (r *Repository) RefreshStockStatus(ctx context.Context, productID int64, qty float64, inStock bool) error {
	status := 0
	if inStock {
		status = 1
	}
	const query = `
		INSERT INTO cataloginventory_stock_status (product_id, website_id, stock_id, qty, stock_status)
		VALUES ($1, 0, $2, $3, $4)
		ON CONFLICT (product_id, website_id, stock_id) DO UPDATE
		SET qty = EXCLUDED.qty, stock_status = EXCLUDED.stock_status`
	if _, err := r.q.Exec(ctx, query, productID, defaultStockID, qty, status); err != nil {
		return fmt.Errorf("stock: stock status: %w", err)
	}
	return nil
}

// UpsertSourceItem mirrors quantity into the multi-source inventory table.
func (r *Repository) UpsertSourceItem(ctx context.Context, sku, sourceCode string, qty float64, inStock bool) error {
	status := 0
	if inStock {
		status = 1
	}
	const query = `
		INSERT INTO inventory_source_item (source_code, sku, quantity, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_code, sku) DO UPDATE SET quantity = EXCLUDED.quantity, status = EXCLUDED.status`
	if _, err := r.q.Exec(ctx, query, sourceCode, sku, qty, status); err != nil {
		return fmt.Errorf("stock: source item: %w", err)
	}
	return nil
}

// HasSourceItems reports whether the multi-source inventory table exists.
func HasSourceItems(ctx context.Context, q db.Queryer) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_name = 'inventory_source_item'
		)`
	var exists bool
	if err := q.QueryRow(ctx, query).Scan(&exists); err != nil {
		return false, fmt.Errorf("stock: detect source items: %w", err)
	}
	return exists, nil
}
