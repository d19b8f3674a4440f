package importer

import (
	"github.com/catsync/catsync/internal/category"
	"github.com/catsync/catsync/internal/eav"
	"github.com/catsync/catsync/internal/link"
	"github.com/catsync/catsync/internal/rewrite"
	"github.com/catsync/catsync/internal/stock"
	"github.com/catsync/catsync/internal/tierprice"
)

// EmptyValue selects what an empty string in a payload means.
type EmptyValue string

const (
	// EmptyValueSkip treats empty strings as "not provided".
	EmptyValueSkip EmptyValue = "skip"
	// EmptyValueWrite writes the empty value through to the backend.
	EmptyValueWrite EmptyValue = "write"
)

// Defaults are the field values applied to newly created products when
// the payload leaves them out. Empty strings disable a default.
type Defaults struct {
	TypeID         string
	AttributeSetID int64
	Status         string
	Visibility     string
	TaxClass       string
	// NewsFrom stamps news_from_date with the import time on creation.
	NewsFrom bool
}

// Config tunes a Service. The zero value is not usable; app wiring fills
// every field from the environment.
type Config struct {
	AllowNewValues bool
	IllegalAction  eav.IllegalAction
	EmptyValues    EmptyValue
	Defaults       Defaults

	Category category.Config
	Pricing  tierprice.Mode
	Related  link.Mode
	Stock    stock.Config
	Rewrite  rewrite.Config
}
