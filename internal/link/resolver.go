// Package link synchronizes related, up-sell and cross-sell assignments.
package link

import (
	"context"
	"fmt"

	"github.com/catsync/catsync/internal/shared"
)

// Type is a product link type.
type Type int

const (
	TypeRelated   Type = 1
	TypeUpsell    Type = 4
	TypeCrosssell Type = 5
)

// Mode selects how incoming links combine with stored ones.
type Mode string

const (
	ModeAddition    Mode = "addition"
	ModeReplacement Mode = "replacement"
)

// Link is a stored link row.
type Link struct {
	LinkedID int64
	Position int
}

// Port persists product links.
type Port interface {
	ProductIDsBySKU(ctx context.Context, skus []string) (map[string]int64, error)
	Links(ctx context.Context, productID int64, typ Type) ([]Link, error)
	DeleteLinks(ctx context.Context, productID int64, typ Type, linkedIDs []int64) error
	InsertLink(ctx context.Context, productID, linkedID int64, typ Type, position int) error
}

// Resolver applies link lists to a product.
type Resolver struct {
	port Port
	mode Mode
}

// NewResolver constructs a Resolver.
func NewResolver(port Port, mode Mode) *Resolver {
	return &Resolver{port: port, mode: mode}
}

// Sync writes the links of one type. Unknown target SKUs and self links
// are dropped with a warning. Replacement mode removes stored links that
// are not in the list.
func (r *Resolver) Sync(ctx context.Context, productID int64, sku string, typ Type, skus []string) ([]string, error) {
	if len(skus) == 0 && r.mode != ModeReplacement {
		return nil, nil
	}

	ids, err := r.port.ProductIDsBySKU(ctx, skus)
	if err != nil {
		return nil, fmt.Errorf("link: resolve skus: %w", err)
	}

	var warnings []string
	targets := make([]int64, 0, len(skus))
	seen := make(map[int64]bool, len(skus))
	for _, target := range skus {
		id, ok := ids[target]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("link target %q not found", target))
			continue
		}
		if target == sku || id == productID {
			warnings = append(warnings, fmt.Sprintf("link target %q skipped: self reference", target))
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		targets = append(targets, id)
	}

	existing, err := r.port.Links(ctx, productID, typ)
	if err != nil {
		return warnings, fmt.Errorf("link: load existing: %w", err)
	}
	current := make(map[int64]bool, len(existing))
	maxPos := 0
	for _, l := range existing {
		current[l.LinkedID] = true
		if l.Position > maxPos {
			maxPos = l.Position
		}
	}

	if r.mode == ModeReplacement {
		var stale []int64
		for _, l := range existing {
			if !seen[l.LinkedID] {
				stale = append(stale, l.LinkedID)
			}
		}
		if len(stale) > 0 {
			if err := r.port.DeleteLinks(ctx, productID, typ, stale); err != nil {
				return warnings, fmt.Errorf("link: remove stale: %w", err)
			}
		}
	}

	pos := maxPos
	for _, id := range targets {
		if current[id] {
			continue
		}
		pos++
		if err := r.port.InsertLink(ctx, productID, id, typ, pos); err != nil {
			return warnings, fmt.Errorf("link: insert: %w", err)
		}
	}
	return warnings, nil
}

// ParseType maps a payload field name to the link type.
func ParseType(name string) (Type, error) {
	switch name {
	case "related":
		return TypeRelated, nil
	case "upsell":
		return TypeUpsell, nil
	case "crosssell":
		return TypeCrosssell, nil
	default:
		return 0, fmt.Errorf("%w: unknown link type %q", shared.ErrInput, name)
	}
}
