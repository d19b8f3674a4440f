// Package configurable links simple children to configurable parents and
// maintains their super attributes.
package configurable

import (
	"context"
	"fmt"

	"github.com/catsync/catsync/internal/eav"
	"github.com/catsync/catsync/internal/shared"
	"github.com/catsync/catsync/internal/storescope"
)

// Product identifies a product entity for configurable work.
type Product struct {
	ID     int64
	LinkID int64
	SKU    string
	Type   string
}

// Port persists configurable structures.
type Port interface {
	ProductsBySKU(ctx context.Context, skus []string) (map[string]Product, error)
	HasChildValue(ctx context.Context, attributeID, childLinkID int64) (bool, error)
	FrontendLabel(ctx context.Context, attributeID int64) (string, error)
	UpsertSuperAttribute(ctx context.Context, parentLinkID, attributeID int64, position int) (int64, error)
	UpsertSuperAttributeLabel(ctx context.Context, superAttributeID int64, storeIDs []int64, label string) error
	CurrentChildren(ctx context.Context, parentLinkID int64) ([]int64, error)
	RemoveChildren(ctx context.Context, parentLinkID, parentID int64, childIDs []int64) error
	AddChild(ctx context.Context, parentLinkID, parentID, childID int64) error
}

// Resolver rebuilds the configurable structure of one parent.
type Resolver struct {
	port  Port
	attrs *eav.Catalog
}

// NewResolver constructs a Resolver.
func NewResolver(port Port, attrs *eav.Catalog) *Resolver {
	return &Resolver{port: port, attrs: attrs}
}

// Sync validates and writes super attributes and child links. The child
// set is rebuilt to exactly match childSKUs. Labels are written for every
// store in storeIDs.
func (r *Resolver) Sync(ctx context.Context, parent Product, superAttrs []string, childSKUs []string, storeIDs []int64) error {
	if parent.Type != "configurable" {
		return fmt.Errorf("%w: product %s is %s, not configurable", shared.ErrState, parent.SKU, parent.Type)
	}
	if len(superAttrs) == 0 {
		return fmt.Errorf("%w: configurable %s needs at least one super attribute", shared.ErrInput, parent.SKU)
	}

	children, err := r.port.ProductsBySKU(ctx, childSKUs)
	if err != nil {
		return fmt.Errorf("configurable: resolve children: %w", err)
	}
	resolved := make([]Product, 0, len(childSKUs))
	for _, sku := range childSKUs {
		child, ok := children[sku]
		if !ok {
			return fmt.Errorf("%w: child %q of %s", shared.ErrNotFound, sku, parent.SKU)
		}
		if child.Type == "configurable" {
			return fmt.Errorf("%w: child %s of %s is itself configurable", shared.ErrState, sku, parent.SKU)
		}
		resolved = append(resolved, child)
	}

	attrs := make([]eav.Attribute, 0, len(superAttrs))
	for _, code := range superAttrs {
		attr, ok := r.attrs.Get(code)
		if !ok {
			return fmt.Errorf("%w: super attribute %q", shared.ErrNotFound, code)
		}
		if attr.Scope != storescope.ScopeGlobal {
			return fmt.Errorf("%w: super attribute %s must be global scope", shared.ErrState, code)
		}
		if attr.Input != "select" {
			return fmt.Errorf("%w: super attribute %s must be a select", shared.ErrState, code)
		}
		for _, child := range resolved {
			has, err := r.port.HasChildValue(ctx, attr.ID, child.LinkID)
			if err != nil {
				return fmt.Errorf("configurable: check child value: %w", err)
			}
			if !has {
				return fmt.Errorf("%w: child %s has no value for super attribute %s", shared.ErrState, child.SKU, code)
			}
		}
		attrs = append(attrs, attr)
	}

	if len(storeIDs) == 0 {
		storeIDs = []int64{storescope.AdminStoreID}
	}
	for i, attr := range attrs {
		superID, err := r.port.UpsertSuperAttribute(ctx, parent.LinkID, attr.ID, i)
		if err != nil {
			return fmt.Errorf("configurable: super attribute %s: %w", attr.Code, err)
		}
		label, err := r.port.FrontendLabel(ctx, attr.ID)
		if err != nil {
			return fmt.Errorf("configurable: label for %s: %w", attr.Code, err)
		}
		if err := r.port.UpsertSuperAttributeLabel(ctx, superID, storeIDs, label); err != nil {
			return fmt.Errorf("configurable: label for %s: %w", attr.Code, err)
		}
	}

	current, err := r.port.CurrentChildren(ctx, parent.LinkID)
	if err != nil {
		return fmt.Errorf("configurable: current children: %w", err)
	}
	want := make(map[int64]bool, len(resolved))
	for _, child := range resolved {
		want[child.ID] = true
	}
	have := make(map[int64]bool, len(current))
	var stale []int64
	for _, id := range current {
		have[id] = true
		if !want[id] {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := r.port.RemoveChildren(ctx, parent.LinkID, parent.ID, stale); err != nil {
			return fmt.Errorf("configurable: remove children: %w", err)
		}
	}
	for _, child := range resolved {
		if have[child.ID] {
			continue
		}
		if err := r.port.AddChild(ctx, parent.LinkID, parent.ID, child.ID); err != nil {
			return fmt.Errorf("configurable: add child %s: %w", child.SKU, err)
		}
	}
	return nil
}
