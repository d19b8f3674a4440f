package eav

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/catsync/catsync/internal/shared"
	"github.com/catsync/catsync/internal/storescope"
)

// FieldValue is one attribute assignment taken from an import record.
type FieldValue struct {
	Code   string
	Raw    string
	List   []string
	IsList bool
	Null   bool
	Delete bool
}

// ValuePort persists attribute values.
type ValuePort interface {
	UpsertValue(ctx context.Context, attr Attribute, linkID, storeID int64, value any) error
	// DeleteValue removes value rows; an empty storeIDs slice means all stores.
	DeleteValue(ctx context.Context, attr Attribute, linkID int64, storeIDs []int64) error
	DeleteValueOutsideAdmin(ctx context.Context, attr Attribute, linkID int64) error
	UpdateStatic(ctx context.Context, column string, linkID int64, value any) error
}

// Writer applies field values to a product across the store fan-out the
// attribute's scope dictates.
type Writer struct {
	values  ValuePort
	options *OptionResolver
	stores  *storescope.Catalog
}

// NewWriter constructs a Writer.
func NewWriter(values ValuePort, options *OptionResolver, stores *storescope.Catalog) *Writer {
	return &Writer{values: values, options: options, stores: stores}
}

// Apply writes one field value for the product identified by linkID.
// Returned warnings describe dropped option labels; the value itself was
// still written without them.
func (w *Writer) Apply(ctx context.Context, attr Attribute, linkID, storeID int64, val FieldValue) ([]string, error) {
	if attr.Backend == BackendStatic {
		return nil, w.applyStatic(ctx, attr, linkID, val)
	}

	stores := w.stores.StoresFor(attr.Scope, storeID)

	if val.Delete {
		if attr.Scope == storescope.ScopeGlobal {
			return nil, w.values.DeleteValue(ctx, attr, linkID, nil)
		}
		return nil, w.values.DeleteValue(ctx, attr, linkID, stores)
	}

	if val.Null {
		for _, sid := range stores {
			if err := w.values.UpsertValue(ctx, attr, linkID, sid, nil); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	stored, warnings, err := w.storedValue(ctx, attr, storeID, val)
	if err != nil {
		return warnings, err
	}
	switch stored {
	case skipValue:
		return warnings, nil
	case removeValue:
		if err := w.values.DeleteValue(ctx, attr, linkID, stores); err != nil {
			return warnings, err
		}
		return warnings, nil
	}

	for _, sid := range stores {
		if err := w.values.UpsertValue(ctx, attr, linkID, sid, stored); err != nil {
			return warnings, err
		}
	}
	// A global write supersedes any per-store overrides left behind.
	if attr.Scope == storescope.ScopeGlobal {
		if err := w.values.DeleteValueOutsideAdmin(ctx, attr, linkID); err != nil {
			return warnings, err
		}
	}
	return warnings, nil
}

type valueMarker int

// removeValue deletes the stored row; skipValue leaves it untouched.
var (
	removeValue any = valueMarker(1)
	skipValue   any = valueMarker(2)
)

func (w *Writer) storedValue(ctx context.Context, attr Attribute, storeID int64, val FieldValue) (any, []string, error) {
	if attr.IsMultiselect() {
		labels := val.List
		if !val.IsList {
			labels = splitList(val.Raw)
		}
		ids := make([]string, 0, len(labels))
		var warnings []string
		for _, label := range labels {
			id, err := w.options.Resolve(ctx, attr, storeID, label)
			if err != nil {
				if errors.Is(err, ErrOptionDropped) {
					warnings = append(warnings, fmt.Sprintf("attribute %s: dropped value %q", attr.Code, label))
					continue
				}
				return nil, warnings, err
			}
			ids = append(ids, strconv.FormatInt(id, 10))
		}
		if len(ids) == 0 {
			if len(labels) == 0 {
				return removeValue, warnings, nil
			}
			return skipValue, warnings, nil
		}
		return strings.Join(ids, ","), warnings, nil
	}

	if attr.IsSelect() {
		if val.Raw == "" {
			return nil, nil, nil
		}
		id, err := w.options.Resolve(ctx, attr, storeID, val.Raw)
		if err != nil {
			if errors.Is(err, ErrOptionDropped) {
				warning := fmt.Sprintf("attribute %s: dropped value %q", attr.Code, val.Raw)
				return skipValue, []string{warning}, nil
			}
			return nil, nil, err
		}
		return id, nil, nil
	}

	cast, err := CastValue(attr, val.Raw)
	if err != nil {
		return nil, nil, err
	}
	return cast, nil, nil
}

func (w *Writer) applyStatic(ctx context.Context, attr Attribute, linkID int64, val FieldValue) error {
	if attr.Code == "sku" {
		return fmt.Errorf("%w: sku cannot be rewritten through attribute values", shared.ErrInput)
	}
	if val.Delete || val.Null {
		return w.values.UpdateStatic(ctx, attr.Code, linkID, nil)
	}
	cast, err := CastValue(attr, val.Raw)
	if err != nil {
		return err
	}
	return w.values.UpdateStatic(ctx, attr.Code, linkID, cast)
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
