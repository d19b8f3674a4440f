package eav

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/catsync/catsync/internal/shared"
	"github.com/catsync/catsync/internal/storescope"
)

// IllegalAction selects what happens when a select label has no option and
// option creation is disallowed.
type IllegalAction string

const (
	IllegalIgnore      IllegalAction = "ignore"
	IllegalSkipProduct IllegalAction = "skip_product"
	IllegalSkipBatch   IllegalAction = "skip_batch"
)

// ErrOptionDropped signals the caller to drop the value and record a
// warning instead of failing the product.
var ErrOptionDropped = errors.New("option dropped")

// Option is one select option with its per-store labels.
type Option struct {
	ID        int64
	SortOrder int
	Labels    map[int64]string
}

// OptionPort loads and creates select options.
type OptionPort interface {
	Options(ctx context.Context, attributeID int64) ([]Option, error)
	CreateOption(ctx context.Context, attributeID int64, label string, sortOrder int) (int64, error)
}

// OptionResolver maps labels to option ids, creating options when the
// configuration allows it. Label matching is case-insensitive using
// unicode case folding, against the target store's label first and the
// admin label as fallback.
type OptionResolver struct {
	port     OptionPort
	allowNew bool
	action   IllegalAction
	cache    map[int64][]Option
	fold     cases.Caser
}

// NewOptionResolver constructs an OptionResolver.
func NewOptionResolver(port OptionPort, allowNew bool, action IllegalAction) *OptionResolver {
	return &OptionResolver{
		port:     port,
		allowNew: allowNew,
		action:   action,
		cache:    make(map[int64][]Option),
		fold:     cases.Fold(),
	}
}

// Resolve returns the option id for label on the given attribute. Numeric
// input matching an existing option id passes through unchanged.
func (r *OptionResolver) Resolve(ctx context.Context, attr Attribute, storeID int64, label string) (int64, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, fmt.Errorf("%w: attribute %s: empty option label", shared.ErrInput, attr.Code)
	}

	switch attr.Source {
	case SourceStatus, SourceVisibility, SourceBoolean:
		return resolveFixedSource(attr, label)
	case SourceOther:
		if id, err := strconv.ParseInt(label, 10, 64); err == nil {
			return id, nil
		}
		return 0, fmt.Errorf("%w: attribute %s: label %q needs a numeric value", shared.ErrIllegalValue, attr.Code, label)
	}

	opts, err := r.options(ctx, attr.ID)
	if err != nil {
		return 0, err
	}

	if id, err := strconv.ParseInt(label, 10, 64); err == nil {
		for _, o := range opts {
			if o.ID == id {
				return id, nil
			}
		}
	}

	folded := r.fold.String(label)
	for _, o := range opts {
		if l, ok := o.Labels[storeID]; ok && r.fold.String(l) == folded {
			return o.ID, nil
		}
		if l, ok := o.Labels[storescope.AdminStoreID]; ok && r.fold.String(l) == folded {
			return o.ID, nil
		}
	}

	if r.allowNew {
		sort := 0
		for _, o := range opts {
			if o.SortOrder > sort {
				sort = o.SortOrder
			}
		}
		id, err := r.port.CreateOption(ctx, attr.ID, label, sort+1)
		if err != nil {
			return 0, fmt.Errorf("eav: create option for %s: %w", attr.Code, err)
		}
		r.cache[attr.ID] = append(opts, Option{
			ID:        id,
			SortOrder: sort + 1,
			Labels:    map[int64]string{storescope.AdminStoreID: label},
		})
		return id, nil
	}

	miss := fmt.Errorf("%w: attribute %s has no option %q", shared.ErrIllegalValue, attr.Code, label)
	switch r.action {
	case IllegalSkipProduct:
		return 0, miss
	case IllegalSkipBatch:
		return 0, shared.AbortBatch(miss)
	default:
		return 0, fmt.Errorf("%w: %v", ErrOptionDropped, miss)
	}
}

func (r *OptionResolver) options(ctx context.Context, attributeID int64) ([]Option, error) {
	if opts, ok := r.cache[attributeID]; ok {
		return opts, nil
	}
	opts, err := r.port.Options(ctx, attributeID)
	if err != nil {
		return nil, fmt.Errorf("eav: load options: %w", err)
	}
	r.cache[attributeID] = opts
	return opts, nil
}

// resolveFixedSource handles attributes whose values come from a fixed
// source rather than the options table.
func resolveFixedSource(attr Attribute, label string) (int64, error) {
	key := strings.ToLower(strings.TrimSpace(label))
	var table map[string]int64
	switch attr.Source {
	case SourceStatus:
		table = map[string]int64{"enabled": 1, "disabled": 2, "1": 1, "2": 2}
	case SourceVisibility:
		table = map[string]int64{
			"not visible individually": 1,
			"catalog":                  2,
			"search":                   3,
			"catalog, search":          4,
			"1":                        1,
			"2":                        2,
			"3":                        3,
			"4":                        4,
		}
	case SourceBoolean:
		table = map[string]int64{"yes": 1, "no": 0, "true": 1, "false": 0, "1": 1, "0": 0}
	}
	if id, ok := table[key]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("%w: attribute %s: unknown value %q", shared.ErrIllegalValue, attr.Code, label)
}
