// Package stock synchronizes inventory rows for imported products.
package stock

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/catsync/catsync/internal/shared"
)

// columns lists the writable stock item columns. Anything else in the
// payload is rejected.
var columns = map[string]bool{
	"qty":                         true,
	"min_qty":                     true,
	"min_sale_qty":                true,
	"max_sale_qty":                true,
	"is_in_stock":                 true,
	"manage_stock":                true,
	"backorders":                  true,
	"notify_stock_qty":            true,
	"qty_increments":              true,
	"enable_qty_increments":       true,
	"use_config_min_qty":          true,
	"use_config_min_sale_qty":     true,
	"use_config_max_sale_qty":     true,
	"use_config_manage_stock":     true,
	"use_config_backorders":       true,
	"use_config_notify_stock_qty": true,
	"use_config_qty_increments":   true,
	"use_config_enable_qty_inc":   true,
}

// Port persists stock data.
type Port interface {
	UpsertStockItem(ctx context.Context, productID int64, fields map[string]float64) error
	RefreshStockStatus(ctx context.Context, productID int64, qty float64, inStock bool) error
	UpsertSourceItem(ctx context.Context, sku, sourceCode string, qty float64, inStock bool) error
}

// Config tunes the automatic stock behavior.
type Config struct {
	AutoManageStock bool
	AutoSetInStock  bool
	// SourceItems mirrors quantity into the multi-source inventory table
	// when it exists in the target schema.
	SourceItems bool
	SourceCode  string
}

// Resolver applies stock fields to a product.
type Resolver struct {
	port Port
	cfg  Config
}

// NewResolver constructs a Resolver.
func NewResolver(port Port, cfg Config) *Resolver {
	return &Resolver{port: port, cfg: cfg}
}

// Sync upserts the stock item derived from the raw payload fields.
func (r *Resolver) Sync(ctx context.Context, productID int64, sku string, raw map[string]string) error {
	if len(raw) == 0 {
		return nil
	}
	fields := make(map[string]float64, len(raw)+3)
	for col, v := range raw {
		if !columns[col] {
			return fmt.Errorf("%w: unknown stock column %q", shared.ErrInput, col)
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: stock column %s: cannot parse %q", shared.ErrInput, col, v)
		}
		fields[col] = f
	}

	qty, hasQty := fields["qty"]
	if hasQty && r.cfg.AutoManageStock {
		if _, set := fields["manage_stock"]; !set {
			fields["manage_stock"] = 1
			fields["use_config_manage_stock"] = 0
		}
	}
	if hasQty && r.cfg.AutoSetInStock {
		if _, set := fields["is_in_stock"]; !set {
			minQty := fields["min_qty"]
			if qty > minQty {
				fields["is_in_stock"] = 1
			} else {
				fields["is_in_stock"] = 0
			}
		}
	}

	if err := r.port.UpsertStockItem(ctx, productID, fields); err != nil {
		return fmt.Errorf("stock: upsert item: %w", err)
	}

	if hasQty {
		inStock := fields["is_in_stock"] > 0
		if err := r.port.RefreshStockStatus(ctx, productID, qty, inStock); err != nil {
			return fmt.Errorf("stock: refresh status: %w", err)
		}
		if r.cfg.SourceItems {
			if err := r.port.UpsertSourceItem(ctx, sku, r.cfg.SourceCode, qty, inStock); err != nil {
				return fmt.Errorf("stock: upsert source item: %w", err)
			}
		}
	}
	return nil
}

// Columns returns the writable column names, sorted, for integrator docs.
func Columns() []string {
	out := make([]string, 0, len(columns))
	for c := range columns {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
