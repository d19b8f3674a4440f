// Package importer orchestrates bulk product synchronization batches.
package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/catsync/catsync/internal/shared"
)

// Value is one attribute value from a payload: a scalar, a list of
// labels, an explicit null, or one of the sentinels.
type Value struct {
	raw    string
	list   []string
	isList bool
	null   bool
	del    bool
}

// StringValue builds a scalar Value, mostly for tests and defaults.
func StringValue(s string) Value {
	switch s {
	case shared.SentinelDelete:
		return Value{del: true}
	case shared.SentinelNull:
		return Value{null: true}
	}
	return Value{raw: s}
}

// ListValue builds a list Value.
func ListValue(items ...string) Value {
	return Value{list: items, isList: true}
}

// NullValue builds an explicit null.
func NullValue() Value { return Value{null: true} }

// DeleteValue builds the delete sentinel.
func DeleteValue() Value { return Value{del: true} }

func (v Value) String() string   { return v.raw }
func (v Value) List() []string   { return v.list }
func (v Value) IsList() bool     { return v.isList }
func (v Value) IsNull() bool     { return v.null }
func (v Value) IsDelete() bool   { return v.del }
func (v Value) IsEmpty() bool    { return !v.isList && !v.null && !v.del && v.raw == "" }
func (v Value) IsSentinel() bool { return v.null || v.del }

// UnmarshalJSON accepts strings, numbers, booleans, nulls and flat arrays.
// The __DELETE__ and __NULL__ sentinels override everything else.
func (v *Value) UnmarshalJSON(data []byte) error {
	var any interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&any); err != nil {
		return err
	}
	return v.fromAny(any)
}

func (v *Value) fromAny(raw interface{}) error {
	switch t := raw.(type) {
	case nil:
		*v = Value{null: true}
	case string:
		*v = StringValue(t)
	case bool:
		*v = Value{raw: strconv.FormatBool(t)}
	case json.Number:
		*v = Value{raw: t.String()}
	case []interface{}:
		items := make([]string, 0, len(t))
		for _, item := range t {
			var iv Value
			if err := iv.fromAny(item); err != nil {
				return err
			}
			if iv.isList {
				return fmt.Errorf("nested lists are not supported")
			}
			items = append(items, iv.raw)
		}
		*v = Value{list: items, isList: true}
	default:
		return fmt.Errorf("unsupported value type %T", raw)
	}
	return nil
}

// MarshalJSON renders the value back into its payload form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch {
	case v.del:
		return json.Marshal(shared.SentinelDelete)
	case v.null:
		return json.Marshal(nil)
	case v.isList:
		return json.Marshal(v.list)
	default:
		return json.Marshal(v.raw)
	}
}

// TierPriceInput is one tier price row of a payload.
type TierPriceInput struct {
	Qty       float64 `json:"qty"`
	Price     float64 `json:"price"`
	Group     string  `json:"group,omitempty"`
	WebsiteID int64   `json:"website_id,omitempty"`
}

// ConfigurableInput describes a configurable parent's structure.
type ConfigurableInput struct {
	Attributes []string `json:"attributes"`
	Children   []string `json:"skus"`
}

// Record is one product of a batch. Reserved keys are lifted into their
// sections during decoding; every other key is an attribute value.
type Record struct {
	SKU          string
	Store        string
	Stock        map[string]Value
	TierPrices   []TierPriceInput
	Configurable *ConfigurableInput
	Categories   Value
	CategoryIDs  Value
	Links        map[string][]string
	Attributes   map[string]Value
}

var linkSections = map[string]bool{"related": true, "upsell": true, "crosssell": true}

// UnmarshalJSON splits the flat payload object into sections.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	r.Attributes = make(map[string]Value)
	r.Links = make(map[string][]string)
	for key, raw := range fields {
		switch {
		case key == "sku":
			if err := json.Unmarshal(raw, &r.SKU); err != nil {
				return fmt.Errorf("sku: %w", err)
			}
		case key == "store":
			var v Value
			if err := v.UnmarshalJSON(raw); err != nil {
				return fmt.Errorf("store: %w", err)
			}
			r.Store = v.String()
		case key == "stock":
			if err := json.Unmarshal(raw, &r.Stock); err != nil {
				return fmt.Errorf("stock: %w", err)
			}
		case key == "tier_prices":
			if err := json.Unmarshal(raw, &r.TierPrices); err != nil {
				return fmt.Errorf("tier_prices: %w", err)
			}
		case key == "configurable":
			if err := json.Unmarshal(raw, &r.Configurable); err != nil {
				return fmt.Errorf("configurable: %w", err)
			}
		case key == "categories":
			if err := r.Categories.UnmarshalJSON(raw); err != nil {
				return fmt.Errorf("categories: %w", err)
			}
		case key == "category_ids":
			if err := r.CategoryIDs.UnmarshalJSON(raw); err != nil {
				return fmt.Errorf("category_ids: %w", err)
			}
		case linkSections[key]:
			var skus []string
			if err := json.Unmarshal(raw, &skus); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			r.Links[key] = skus
		default:
			var v Value
			if err := v.UnmarshalJSON(raw); err != nil {
				return fmt.Errorf("attribute %s: %w", key, err)
			}
			r.Attributes[key] = v
		}
	}
	return nil
}

// CategoryPaths normalizes the categories field into path expressions.
func (r Record) CategoryPaths() []string {
	switch {
	case r.Categories.IsList():
		return r.Categories.List()
	case r.Categories.String() != "":
		return []string{r.Categories.String()}
	default:
		return nil
	}
}

// CategoryIDList normalizes the category_ids field into id strings.
func (r Record) CategoryIDList() []string {
	var raw []string
	if r.CategoryIDs.IsList() {
		raw = r.CategoryIDs.List()
	} else {
		raw = strings.Split(r.CategoryIDs.String(), ",")
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
