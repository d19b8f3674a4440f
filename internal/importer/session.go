package importer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/catsync/catsync/internal/category"
	"github.com/catsync/catsync/internal/configurable"
	"github.com/catsync/catsync/internal/eav"
	"github.com/catsync/catsync/internal/link"
	"github.com/catsync/catsync/internal/platform/db"
	"github.com/catsync/catsync/internal/rewrite"
	"github.com/catsync/catsync/internal/shared"
	"github.com/catsync/catsync/internal/stock"
	"github.com/catsync/catsync/internal/storescope"
	"github.com/catsync/catsync/internal/tierprice"
)

// Session is the read-mostly state one batch runs against: schema
// variant, store topology, attribute metadata and the identities of the
// SKUs the batch touches. Loaded once per batch from the pool; the
// product map is kept current as new entities are created.
type Session struct {
	BatchID     uuid.UUID
	Schema      shared.SchemaVariant
	Stores      *storescope.Catalog
	Attributes  *eav.Catalog
	SourceItems bool

	products map[string]Product
}

// Product returns the known identity for a SKU.
func (s *Session) Product(sku string) (Product, bool) {
	p, ok := s.products[sku]
	return p, ok
}

func (s *Session) setProduct(p Product) {
	s.products[p.SKU] = p
}

func (s *Service) loadSession(ctx context.Context, skus []string) (*Session, error) {
	q := s.pool
	schema, err := DetectSchema(ctx, q)
	if err != nil {
		return nil, err
	}

	// The remaining catalog loads are independent reads on the pool.
	var (
		stores      *storescope.Catalog
		attrs       []eav.Attribute
		sourceItems bool
		products    map[string]Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if stores, err = storescope.NewRepository(q).Load(gctx); err != nil {
			return fmt.Errorf("load stores: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if attrs, err = eav.NewRepository(q, schema).LoadAttributes(gctx); err != nil {
			return fmt.Errorf("load attributes: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		sourceItems, err = stock.HasSourceItems(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = NewRepository(q, schema).ProductsBySKU(gctx, skus)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Session{
		BatchID:     uuid.New(),
		Schema:      schema,
		Stores:      stores,
		Attributes:  eav.NewAttributeCatalog(attrs),
		SourceItems: sourceItems && s.cfg.Stock.SourceItems,
		products:    products,
	}, nil
}

// Ports are the persistence interfaces one product sync writes through.
// They are rebuilt per transaction so every product commits atomically.
type Ports struct {
	Products      EntityPort
	Values        eav.ValuePort
	Options       eav.OptionPort
	Stock         stock.Port
	TierPrices    tierprice.Port
	Links         link.Port
	Configurables configurable.Port
	Categories    category.Port
	Rewrites      rewrite.Port
}

// EntityPort covers the entity-table operations the orchestrator needs.
type EntityPort interface {
	InsertProduct(ctx context.Context, sku, typeID string, attributeSetID int64) (Product, error)
	MarkConfigurable(ctx context.Context, productID int64) error
	Touch(ctx context.Context, productID int64) error
	AssignWebsite(ctx context.Context, productID, websiteID int64) error
	URLKeys(ctx context.Context, attributeID, linkID int64, storeIDs []int64) (map[int64]string, error)
}

func defaultPorts(q db.Queryer, schema shared.SchemaVariant) Ports {
	eavRepo := eav.NewRepository(q, schema)
	return Ports{
		Products:      NewRepository(q, schema),
		Values:        eavRepo,
		Options:       eavRepo,
		Stock:         stock.NewRepository(q),
		TierPrices:    tierprice.NewRepository(q, schema),
		Links:         link.NewRepository(q),
		Configurables: configurable.NewRepository(q, schema),
		Categories:    category.NewRepository(q, schema),
		Rewrites:      rewrite.NewRepository(q, schema),
	}
}
