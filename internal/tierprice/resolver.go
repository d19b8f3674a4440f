// Package tierprice synchronizes quantity-break prices.
package tierprice

import (
	"context"
	"fmt"
	"strings"

	"github.com/catsync/catsync/internal/shared"
)

// Mode selects how incoming rows combine with stored ones.
type Mode string

const (
	ModeAddition    Mode = "addition"
	ModeReplacement Mode = "replacement"
)

// Input is one tier price from the payload.
type Input struct {
	Qty       float64
	Price     float64
	Group     string
	WebsiteID int64
}

// Row is a resolved tier price ready for storage.
type Row struct {
	LinkID    int64
	AllGroups bool
	GroupID   int64
	Qty       float64
	Price     float64
	WebsiteID int64
}

// CustomerGroup is one customer group.
type CustomerGroup struct {
	ID   int64
	Code string
}

// Port persists tier prices and customer groups.
type Port interface {
	CustomerGroups(ctx context.Context) ([]CustomerGroup, error)
	CreateCustomerGroup(ctx context.Context, code string) (int64, error)
	DeleteTierPrices(ctx context.Context, linkID int64) error
	UpsertTierPrice(ctx context.Context, row Row) error
}

// Resolver applies tier prices to a product.
type Resolver struct {
	port   Port
	mode   Mode
	groups []CustomerGroup
}

// NewResolver constructs a Resolver.
func NewResolver(port Port, mode Mode) *Resolver {
	return &Resolver{port: port, mode: mode}
}

// Sync validates and writes the tier prices of one product. Replacement
// mode clears stored rows first; addition upserts over what is there.
func (r *Resolver) Sync(ctx context.Context, linkID int64, inputs []Input) error {
	if len(inputs) == 0 {
		return nil
	}
	rows := make([]Row, 0, len(inputs))
	for _, in := range inputs {
		if in.Qty <= 0 {
			return fmt.Errorf("%w: tier price qty must be positive, got %v", shared.ErrInput, in.Qty)
		}
		if in.Price < 0 {
			return fmt.Errorf("%w: tier price must not be negative, got %v", shared.ErrInput, in.Price)
		}
		row := Row{LinkID: linkID, Qty: in.Qty, Price: in.Price, WebsiteID: in.WebsiteID}
		if in.Group == "" {
			row.AllGroups = true
		} else {
			id, err := r.groupID(ctx, in.Group)
			if err != nil {
				return err
			}
			row.GroupID = id
		}
		rows = append(rows, row)
	}

	if r.mode == ModeReplacement {
		if err := r.port.DeleteTierPrices(ctx, linkID); err != nil {
			return fmt.Errorf("tierprice: clear rows: %w", err)
		}
	}
	for _, row := range rows {
		if err := r.port.UpsertTierPrice(ctx, row); err != nil {
			return fmt.Errorf("tierprice: upsert: %w", err)
		}
	}
	return nil
}

func (r *Resolver) groupID(ctx context.Context, code string) (int64, error) {
	if r.groups == nil {
		groups, err := r.port.CustomerGroups(ctx)
		if err != nil {
			return 0, fmt.Errorf("tierprice: load customer groups: %w", err)
		}
		r.groups = groups
	}
	for _, g := range r.groups {
		if strings.EqualFold(g.Code, code) {
			return g.ID, nil
		}
	}
	id, err := r.port.CreateCustomerGroup(ctx, code)
	if err != nil {
		return 0, fmt.Errorf("tierprice: create customer group %q: %w", code, err)
	}
	r.groups = append(r.groups, CustomerGroup{ID: id, Code: code})
	return id, nil
}
