// Package eav implements the product attribute catalog: metadata, value
// casting, select option resolution and scoped value writes.
package eav

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/catsync/catsync/internal/shared"
	"github.com/catsync/catsync/internal/storescope"
)

// Backend identifies the typed value table an attribute stores into.
type Backend string

const (
	BackendStatic   Backend = "static"
	BackendDatetime Backend = "datetime"
	BackendDecimal  Backend = "decimal"
	BackendInt      Backend = "int"
	BackendText     Backend = "text"
	BackendVarchar  Backend = "varchar"
)

// Source classifies where a select attribute's labels come from.
type Source string

const (
	SourceNone       Source = ""
	SourceTable      Source = "table"
	SourceStatus     Source = "status"
	SourceVisibility Source = "visibility"
	SourceBoolean    Source = "boolean"
	SourceOther      Source = "other"
)

// Attribute is the metadata of one product attribute.
type Attribute struct {
	ID      int64
	Code    string
	Backend Backend
	Input   string
	Scope   storescope.Scope
	Source  Source
	ApplyTo []string
}

// IsSelect reports whether values resolve through options.
func (a Attribute) IsSelect() bool {
	return a.Input == "select" || a.Input == "multiselect" || a.Input == "boolean"
}

// IsMultiselect reports whether the stored value is a comma list of ids.
func (a Attribute) IsMultiselect() bool {
	return a.Input == "multiselect"
}

// AppliesTo reports whether the attribute may be set on the product type.
// An empty apply_to list means every type.
func (a Attribute) AppliesTo(productType string) bool {
	if len(a.ApplyTo) == 0 {
		return true
	}
	for _, t := range a.ApplyTo {
		if t == productType {
			return true
		}
	}
	return false
}

const datetimeLayout = "2006-01-02 15:04:05"

// CastValue converts raw text into the backend's storage representation.
// An empty string becomes NULL for non-text backends. Datetime accepts the
// canonical layout, a bare date, or unix seconds.
func CastValue(a Attribute, raw string) (any, error) {
	switch a.Backend {
	case BackendDatetime:
		if raw == "" {
			return nil, nil
		}
		if t, err := time.Parse(datetimeLayout, raw); err == nil {
			return t.Format(datetimeLayout), nil
		}
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			return t.Format(datetimeLayout), nil
		}
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC().Format(datetimeLayout), nil
		}
		return nil, fmt.Errorf("%w: attribute %s: cannot parse %q as datetime", shared.ErrInput, a.Code, raw)
	case BackendDecimal:
		if raw == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute %s: cannot parse %q as decimal", shared.ErrInput, a.Code, raw)
		}
		return f, nil
	case BackendInt:
		if raw == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute %s: cannot parse %q as int", shared.ErrInput, a.Code, raw)
		}
		return n, nil
	default:
		return raw, nil
	}
}

// Catalog indexes product attribute metadata by code.
type Catalog struct {
	byCode map[string]Attribute
}

// NewAttributeCatalog builds the index.
func NewAttributeCatalog(attrs []Attribute) *Catalog {
	byCode := make(map[string]Attribute, len(attrs))
	for _, a := range attrs {
		byCode[a.Code] = a
	}
	return &Catalog{byCode: byCode}
}

// Get returns the attribute with the given code.
func (c *Catalog) Get(code string) (Attribute, bool) {
	a, ok := c.byCode[code]
	return a, ok
}

// All returns every attribute, in no particular order.
func (c *Catalog) All() []Attribute {
	out := make([]Attribute, 0, len(c.byCode))
	for _, a := range c.byCode {
		out = append(out, a)
	}
	return out
}
