// Package rewrite maintains url_rewrite rows for imported products and
// their category paths.
package rewrite

import (
	"context"
	"fmt"

	"github.com/catsync/catsync/internal/shared"
)

// EntityTypeProduct is the entity type stored on product rewrites.
const EntityTypeProduct = "product"

// Rewrite is one url rewrite row.
type Rewrite struct {
	ID          int64
	EntityType  string
	EntityID    int64
	RequestPath string
	TargetPath  string
	StoreID     int64
	CategoryID  int64
}

// Port persists rewrites.
type Port interface {
	FindByTarget(ctx context.Context, storeID int64, entityType string, entityID int64, targetPath string) (*Rewrite, error)
	FindByRequestPath(ctx context.Context, storeID int64, requestPath string) (*Rewrite, error)
	UpdateRequestPath(ctx context.Context, id int64, requestPath string) error
	Insert(ctx context.Context, rw Rewrite) error
	// CategoryPathSlug returns the slugged url path of the category chain
	// for one store, without the product segment.
	CategoryPathSlug(ctx context.Context, categoryID, storeID int64) (string, error)
	// DeleteStaleCategoryRewrites removes the product's category rewrites
	// whose category is not in keep.
	DeleteStaleCategoryRewrites(ctx context.Context, storeID, productID int64, keep []int64) error
}

// ErrOccupied marks a request path already serving another entity.
var ErrOccupied = fmt.Errorf("%w: request path occupied", shared.ErrState)

// Config tunes rewrite generation.
type Config struct {
	// CategoryRewrites also generates category-prefixed product paths.
	CategoryRewrites bool
	// PruneStale removes category rewrites for categories the product no
	// longer belongs to.
	PruneStale bool
	// Suffix is appended to request paths, usually ".html".
	Suffix string
}

// Resolver generates and reconciles product rewrites.
type Resolver struct {
	port Port
	cfg  Config
}

// NewResolver constructs a Resolver.
func NewResolver(port Port, cfg Config) *Resolver {
	if cfg.Suffix == "" {
		cfg.Suffix = ".html"
	}
	return &Resolver{port: port, cfg: cfg}
}

// ProductInput describes the rewrites one product should end with.
type ProductInput struct {
	ProductID int64
	// URLKeys maps store id to the effective url key for that store.
	URLKeys map[int64]string
	// CategoryIDs are the assigned categories; reserved ids must already
	// be filtered out by the caller.
	CategoryIDs []int64
}

// Sync writes the base rewrite and, when configured, one per category for
// every store present in URLKeys.
func (r *Resolver) Sync(ctx context.Context, in ProductInput) error {
	for storeID, urlKey := range in.URLKeys {
		if urlKey == "" {
			continue
		}
		base := Rewrite{
			EntityType:  EntityTypeProduct,
			EntityID:    in.ProductID,
			RequestPath: shared.Slug(urlKey) + r.cfg.Suffix,
			TargetPath:  fmt.Sprintf("catalog/product/view/id/%d", in.ProductID),
			StoreID:     storeID,
		}
		if err := r.upsert(ctx, base); err != nil {
			return err
		}

		if !r.cfg.CategoryRewrites {
			continue
		}
		for _, catID := range in.CategoryIDs {
			prefix, err := r.port.CategoryPathSlug(ctx, catID, storeID)
			if err != nil {
				return fmt.Errorf("rewrite: category path %d: %w", catID, err)
			}
			if prefix == "" {
				continue
			}
			rw := Rewrite{
				EntityType:  EntityTypeProduct,
				EntityID:    in.ProductID,
				RequestPath: prefix + "/" + shared.Slug(urlKey) + r.cfg.Suffix,
				TargetPath:  fmt.Sprintf("catalog/product/view/id/%d/category/%d", in.ProductID, catID),
				StoreID:     storeID,
				CategoryID:  catID,
			}
			if err := r.upsert(ctx, rw); err != nil {
				return err
			}
		}
		if r.cfg.PruneStale {
			if err := r.port.DeleteStaleCategoryRewrites(ctx, storeID, in.ProductID, in.CategoryIDs); err != nil {
				return fmt.Errorf("rewrite: prune: %w", err)
			}
		}
	}
	return nil
}

// upsert applies the conflict rules for one desired rewrite: an existing
// row for the same target moves to the new request path, a foreign row on
// the request path blocks, otherwise a fresh row is inserted.
func (r *Resolver) upsert(ctx context.Context, rw Rewrite) error {
	byTarget, err := r.port.FindByTarget(ctx, rw.StoreID, rw.EntityType, rw.EntityID, rw.TargetPath)
	if err != nil {
		return fmt.Errorf("rewrite: lookup target: %w", err)
	}
	byPath, err := r.port.FindByRequestPath(ctx, rw.StoreID, rw.RequestPath)
	if err != nil {
		return fmt.Errorf("rewrite: lookup path: %w", err)
	}

	switch {
	case byTarget != nil && byPath == nil:
		return r.port.UpdateRequestPath(ctx, byTarget.ID, rw.RequestPath)
	case byTarget != nil && byPath != nil && byTarget.ID == byPath.ID:
		return nil
	case byTarget != nil && byPath != nil:
		return fmt.Errorf("%w: %q in store %d points at entity %d", ErrOccupied, rw.RequestPath, rw.StoreID, byPath.EntityID)
	case byPath != nil:
		return fmt.Errorf("%w: %q in store %d points at entity %d", ErrOccupied, rw.RequestPath, rw.StoreID, byPath.EntityID)
	default:
		if err := r.port.Insert(ctx, rw); err != nil {
			if shared.IsUniqueViolation(err) {
				return fmt.Errorf("%w: %q in store %d was taken concurrently", ErrOccupied, rw.RequestPath, rw.StoreID)
			}
			return fmt.Errorf("rewrite: insert: %w", err)
		}
		return nil
	}
}
