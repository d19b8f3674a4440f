package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

// Operation selects the write mode of a batch.
type Operation string

const (
	OpAdd    Operation = "add"
	OpUpdate Operation = "update"
	OpUpsert Operation = "upsert"
)

// ParseOperation validates an operation name from a request path.
func ParseOperation(name string) (Operation, error) {
	switch Operation(name) {
	case OpAdd, OpUpdate, OpUpsert:
		return Operation(name), nil
	default:
		return "", fmt.Errorf("%w: unknown operation %q", shared.ErrInput, name)
	}
}

// Outcome classifies what happened to one record.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeFailed  Outcome = "failed"
	OutcomeAborted Outcome = "aborted"
)

// ProductResult is the per-record entry of a batch response.
type ProductResult struct {
	SKU      string   `json:"sku"`
	ID       int64    `json:"id,omitempty"`
	New      bool     `json:"new,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// BatchResult summarizes a finished batch.
type BatchResult struct {
	BatchID  string          `json:"batch_id"`
	Results  []ProductResult `json:"results"`
	Created  int             `json:"created"`
	Updated  int             `json:"updated"`
	Failed   int             `json:"failed"`
	Aborted  bool            `json:"aborted,omitempty"`
	Duration time.Duration   `json:"-"`
}

// LogEntry is one per-record outcome handed to the batch log.
type LogEntry struct {
	BatchID   string
	SKU       string
	Operation string
	StoreID   int64
	Outcome   string
	Warning   string
	Error     string
}

// LogPort records batch outcomes. Implementations must tolerate being
// called after individual product transactions have committed.
type LogPort interface {
	Record(ctx context.Context, entries []LogEntry) error
}

// Metrics receives batch counters.
type Metrics interface {
	ObserveProduct(operation, outcome string)
	ObserveBatch(operation string, d time.Duration)
}

type nopLog struct{}

func (nopLog) Record(context.Context, []LogEntry) error { return nil }

type nopMetrics struct{}

func (nopMetrics) ObserveProduct(string, string)      {}
func (nopMetrics) ObserveBatch(string, time.Duration) {}

// Service runs import batches. Each product record syncs inside its own
// transaction; a failure rolls back that product only and the batch
// continues, except for abort-class attribute errors which stop it.
type Service struct {
	logger  *slog.Logger
	cfg     Config
	pool    *pgxpool.Pool
	logs    LogPort
	metrics Metrics

	inTx    func(ctx context.Context, fn func(db.Queryer) error) error
	ports   func(q db.Queryer, schema shared.SchemaVariant) Ports
	session func(ctx context.Context, skus []string) (*Session, error)
}

// NewService constructs a Service. logs and metrics may be nil.
func NewService(pool *pgxpool.Pool, logger *slog.Logger, cfg Config, logs LogPort, metrics Metrics) *Service {
	if logs == nil {
		logs = nopLog{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	s := &Service{
		logger:  logger,
		cfg:     cfg,
		pool:    pool,
		logs:    logs,
		metrics: metrics,
		ports:   defaultPorts,
	}
	s.inTx = func(ctx context.Context, fn func(db.Queryer) error) error {
		return db.WithTx(ctx, pool, func(tx pgx.Tx) error { return fn(tx) })
	}
	s.session = s.loadSession
	return s
}

// Import runs one batch. storeRef selects the target store by id or
// code; empty means the admin store. Per-record "store" fields override
// it. The returned error covers batch-level failures only; per-product
// failures land in the result entries.
func (s *Service) Import(ctx context.Context, op Operation, storeRef string, records []Record) (*BatchResult, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty batch", shared.ErrInput)
	}

	skus := make([]string, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec.SKU != "" && !seen[rec.SKU] {
			seen[rec.SKU] = true
			skus = append(skus, rec.SKU)
		}
	}

	sess, err := s.session(ctx, skus)
	if err != nil {
		return nil, err
	}

	batchStore, err := s.resolveStore(sess, storeRef)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	batch := &BatchResult{BatchID: sess.BatchID.String()}
	entries := make([]LogEntry, 0, len(records))

	for i, rec := range records {
		res := ProductResult{SKU: rec.SKU}
		outcome := s.syncOne(ctx, sess, op, batchStore, rec, &res, batch)
		batch.Results = append(batch.Results, res)
		s.metrics.ObserveProduct(string(op), string(outcome))
		entries = append(entries, LogEntry{
			BatchID:   batch.BatchID,
			SKU:       rec.SKU,
			Operation: string(op),
			StoreID:   batchStore.ID,
			Outcome:   string(outcome),
			Warning:   strings.Join(res.Warnings, "; "),
			Error:     res.Error,
		})
		if batch.Aborted {
			// The response stays parallel to the input; records behind
			// the abort point are reported, not silently dropped.
			for _, rest := range records[i+1:] {
				batch.Results = append(batch.Results, ProductResult{SKU: rest.SKU, Error: "batch aborted"})
				s.metrics.ObserveProduct(string(op), string(OutcomeAborted))
				entries = append(entries, LogEntry{
					BatchID:   batch.BatchID,
					SKU:       rest.SKU,
					Operation: string(op),
					StoreID:   batchStore.ID,
					Outcome:   string(OutcomeAborted),
					Error:     "batch aborted",
				})
			}
			break
		}
	}

	batch.Duration = time.Since(start)
	s.metrics.ObserveBatch(string(op), batch.Duration)
	if err := s.logs.Record(ctx, entries); err != nil {
		s.logger.Error("record batch log", "batch_id", batch.BatchID, "error", err)
	}
	s.logger.Info("batch finished",
		"batch_id", batch.BatchID,
		"operation", op,
		"records", len(records),
		"created", batch.Created,
		"updated", batch.Updated,
		"failed", batch.Failed,
		"aborted", batch.Aborted,
		"duration", batch.Duration,
	)
	return batch, nil
}

func (s *Service) resolveStore(sess *Session, ref string) (storescope.Store, error) {
	if ref == "" {
		if st, ok := sess.Stores.Store(storescope.AdminStoreID); ok {
			return st, nil
		}
		return storescope.Store{ID: storescope.AdminStoreID}, nil
	}
	return sess.Stores.Resolve(ref)
}

// syncOne wraps one record in its own transaction and translates the
// error into a result entry and outcome.
func (s *Service) syncOne(ctx context.Context, sess *Session, op Operation, batchStore storescope.Store, rec Record, res *ProductResult, batch *BatchResult) Outcome {
	if rec.SKU == "" {
		res.Error = "missing sku"
		batch.Failed++
		return OutcomeFailed
	}

	store := batchStore
	if rec.Store != "" {
		st, err := sess.Stores.Resolve(rec.Store)
		if err != nil {
			res.Error = err.Error()
			batch.Failed++
			return OutcomeFailed
		}
		store = st
	}

	var synced Product
	err := s.inTx(ctx, func(q db.Queryer) error {
		p, err := s.syncProduct(ctx, q, sess, op, store, rec, res)
		synced = p
		return err
	})
	if err != nil {
		if shared.IsBatchAbort(err) {
			res.Error = err.Error()
			batch.Failed++
			batch.Aborted = true
			return OutcomeAborted
		}
		res.Error = err.Error()
		batch.Failed++
		return OutcomeFailed
	}

	sess.setProduct(synced)
	if res.New {
		batch.Created++
		return OutcomeCreated
	}
	batch.Updated++
	return OutcomeUpdated
}

// syncProduct runs the fixed resolver sequence for one record: entity
// row, attribute values, stock, tier prices, configurable structure,
// categories, links and finally url rewrites.
func (s *Service) syncProduct(ctx context.Context, q db.Queryer, sess *Session, op Operation, store storescope.Store, rec Record, res *ProductResult) (Product, error) {
	p := s.ports(q, sess.Schema)

	product, exists := sess.Product(rec.SKU)
	switch op {
	case OpAdd:
		if exists {
			return Product{}, fmt.Errorf("%w: sku %s already exists", shared.ErrState, rec.SKU)
		}
	case OpUpdate:
		if !exists {
			return Product{}, fmt.Errorf("%w: sku %s", shared.ErrNotFound, rec.SKU)
		}
	}

	attrs := make(map[string]Value, len(rec.Attributes)+4)
	for k, v := range rec.Attributes {
		attrs[k] = v
	}
	typeID := popString(attrs, "type_id")
	if typeID == "" {
		if exists {
			typeID = product.TypeID
		} else {
			typeID = s.cfg.Defaults.TypeID
		}
	}

	if !exists {
		attrSetID := s.cfg.Defaults.AttributeSetID
		if raw := popString(attrs, "attribute_set_id"); raw != "" {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return Product{}, fmt.Errorf("%w: attribute_set_id: cannot parse %q", shared.ErrInput, raw)
			}
			attrSetID = n
		}
		if _, has := attrs["price"]; !has && typeID != "configurable" {
			return Product{}, fmt.Errorf("%w: sku %s: price is required for new products", shared.ErrInput, rec.SKU)
		}
		s.applyDefaults(attrs)

		created, err := p.Products.InsertProduct(ctx, rec.SKU, typeID, attrSetID)
		if err != nil {
			return Product{}, err
		}
		product = created
		res.New = true
	} else {
		popString(attrs, "attribute_set_id")
	}
	res.ID = product.ID

	urlKeyTouched, err := s.syncAttributes(ctx, p, sess, product, typeID, store, attrs, res)
	if err != nil {
		return Product{}, err
	}

	if err := s.syncStock(ctx, p, sess, product, rec); err != nil {
		return Product{}, err
	}

	if len(rec.TierPrices) > 0 {
		inputs := make([]tierprice.Input, 0, len(rec.TierPrices))
		for _, tp := range rec.TierPrices {
			inputs = append(inputs, tierprice.Input{
				Qty:       tp.Qty,
				Price:     tp.Price,
				Group:     tp.Group,
				WebsiteID: tp.WebsiteID,
			})
		}
		if err := tierprice.NewResolver(p.TierPrices, s.cfg.Pricing).Sync(ctx, product.LinkID, inputs); err != nil {
			return Product{}, err
		}
	}

	if typeID == "configurable" {
		if err := s.syncConfigurable(ctx, p, sess, product, store, rec, res); err != nil {
			return Product{}, err
		}
	}

	categoryIDs, categoriesSynced, err := s.syncCategories(ctx, p, sess, product, store, rec, res)
	if err != nil {
		return Product{}, err
	}

	if err := s.syncLinks(ctx, p, product, rec, res); err != nil {
		return Product{}, err
	}

	if urlKeyTouched {
		if err := s.syncRewrites(ctx, p, sess, product, store, categoryIDs, categoriesSynced); err != nil {
			return Product{}, err
		}
	}

	if res.New && store.WebsiteID != 0 {
		if err := p.Products.AssignWebsite(ctx, product.ID, store.WebsiteID); err != nil {
			return Product{}, err
		}
	}
	if err := p.Products.Touch(ctx, product.ID); err != nil {
		return Product{}, err
	}
	return product, nil
}

// applyDefaults injects status, visibility, tax class and a name-derived
// url_key into a new product's attribute set when absent.
func (s *Service) applyDefaults(attrs map[string]Value) {
	put := func(code, val string) {
		if val == "" {
			return
		}
		if _, has := attrs[code]; !has {
			attrs[code] = StringValue(val)
		}
	}
	put("status", s.cfg.Defaults.Status)
	put("visibility", s.cfg.Defaults.Visibility)
	put("tax_class_id", s.cfg.Defaults.TaxClass)
	if s.cfg.Defaults.NewsFrom {
		put("news_from_date", time.Now().Format("2006-01-02 15:04:05"))
	}
	if _, has := attrs["url_key"]; !has {
		if name, ok := attrs["name"]; ok && name.String() != "" {
			attrs["url_key"] = StringValue(shared.Slug(name.String()))
		}
	}
}

func (s *Service) syncAttributes(ctx context.Context, p Ports, sess *Session, product Product, typeID string, store storescope.Store, attrs map[string]Value, res *ProductResult) (bool, error) {
	options := eav.NewOptionResolver(p.Options, s.cfg.AllowNewValues, s.cfg.IllegalAction)
	writer := eav.NewWriter(p.Values, options, sess.Stores)

	codes := make([]string, 0, len(attrs))
	for code := range attrs {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	urlKeyTouched := false
	for _, code := range codes {
		val := attrs[code]
		attr, ok := sess.Attributes.Get(code)
		if !ok {
			return false, fmt.Errorf("%w: unknown attribute %q", shared.ErrInput, code)
		}
		if !attr.AppliesTo(typeID) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("attribute %s does not apply to type %s", code, typeID))
			continue
		}
		if val.IsEmpty() && s.cfg.EmptyValues != EmptyValueWrite {
			continue
		}
		warns, err := writer.Apply(ctx, attr, product.LinkID, store.ID, eav.FieldValue{
			Code:   code,
			Raw:    val.String(),
			List:   val.List(),
			IsList: val.IsList(),
			Null:   val.IsNull(),
			Delete: val.IsDelete(),
		})
		res.Warnings = append(res.Warnings, warns...)
		if err != nil {
			return false, err
		}
		if code == "url_key" && !val.IsDelete() && !val.IsNull() {
			urlKeyTouched = true
		}
	}
	return urlKeyTouched, nil
}

func (s *Service) syncStock(ctx context.Context, p Ports, sess *Session, product Product, rec Record) error {
	if len(rec.Stock) == 0 {
		return nil
	}
	raw := make(map[string]string, len(rec.Stock))
	for col, v := range rec.Stock {
		raw[col] = v.String()
	}
	cfg := s.cfg.Stock
	cfg.SourceItems = sess.SourceItems
	return stock.NewResolver(p.Stock, cfg).Sync(ctx, product.ID, product.SKU, raw)
}

func (s *Service) syncConfigurable(ctx context.Context, p Ports, sess *Session, product Product, store storescope.Store, rec Record, res *ProductResult) error {
	if rec.Configurable == nil || len(rec.Configurable.Attributes) == 0 || len(rec.Configurable.Children) == 0 {
		// A configurable parent without linkage data is allowed; the
		// caller may supply the structure in a later batch.
		s.logger.Debug("configurable without linkage data", "sku", product.SKU)
		return nil
	}
	// Idempotent; freshly inserted parents still need has_options and
	// required_options set.
	if err := p.Products.MarkConfigurable(ctx, product.ID); err != nil {
		return err
	}
	parent := configurable.Product{
		ID:     product.ID,
		LinkID: product.LinkID,
		SKU:    product.SKU,
		Type:   "configurable",
	}
	storeIDs := sess.Stores.StoresFor(storescope.ScopeStore, store.ID)
	return configurable.NewResolver(p.Configurables, sess.Attributes).
		Sync(ctx, parent, rec.Configurable.Attributes, rec.Configurable.Children, storeIDs)
}

func (s *Service) syncCategories(ctx context.Context, p Ports, sess *Session, product Product, store storescope.Store, rec Record, res *ProductResult) ([]int64, bool, error) {
	paths := rec.CategoryPaths()
	directIDs, warns := parseCategoryIDs(rec.CategoryIDList())
	res.Warnings = append(res.Warnings, warns...)
	if len(paths) == 0 && len(directIDs) == 0 {
		return nil, false, nil
	}
	catStore := store
	if len(paths) > 0 && catStore.ID == storescope.AdminStoreID {
		st, ok := sess.Stores.DefaultStore()
		if !ok {
			return nil, false, fmt.Errorf("%w: no store views configured for category import", shared.ErrState)
		}
		catStore = st
	}
	raw := strings.Join(paths, s.cfg.Category.Grammar.PathDelimiter)
	ids, warns, err := category.NewResolver(p.Categories, sess.Stores, s.cfg.Category).
		Sync(ctx, product.ID, raw, directIDs, catStore.ID)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		return nil, false, err
	}
	return ids, true, nil
}

// parseCategoryIDs splits the raw category_ids field into numeric ids,
// reporting everything else as a dropped warning.
func parseCategoryIDs(raw []string) ([]int64, []string) {
	var ids []int64
	var warns []string
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			warns = append(warns, fmt.Sprintf("category id %q is not numeric, dropped", s))
			continue
		}
		ids = append(ids, id)
	}
	return ids, warns
}

func (s *Service) syncLinks(ctx context.Context, p Ports, product Product, rec Record, res *ProductResult) error {
	for _, name := range []string{"related", "upsell", "crosssell"} {
		skus, ok := rec.Links[name]
		if !ok {
			continue
		}
		typ, err := link.ParseType(name)
		if err != nil {
			return err
		}
		warns, err := link.NewResolver(p.Links, s.cfg.Related).Sync(ctx, product.ID, product.SKU, typ, skus)
		res.Warnings = append(res.Warnings, warns...)
		if err != nil {
			return err
		}
	}
	return nil
}

// syncRewrites regenerates url rewrites for every store the url_key
// write touched. Rewrites never target the admin store.
func (s *Service) syncRewrites(ctx context.Context, p Ports, sess *Session, product Product, store storescope.Store, categoryIDs []int64, categoriesSynced bool) error {
	attr, ok := sess.Attributes.Get("url_key")
	if !ok {
		return nil
	}

	var storeIDs []int64
	if store.ID == storescope.AdminStoreID {
		storeIDs = sess.Stores.StoreIDs()
	} else {
		for _, id := range sess.Stores.StoresFor(attr.Scope, store.ID) {
			if id != storescope.AdminStoreID {
				storeIDs = append(storeIDs, id)
			}
		}
		if len(storeIDs) == 0 {
			storeIDs = sess.Stores.StoreIDs()
		}
	}
	if len(storeIDs) == 0 {
		return nil
	}

	urlKeys, err := p.Products.URLKeys(ctx, attr.ID, product.LinkID, storeIDs)
	if err != nil {
		return err
	}
	if len(urlKeys) == 0 {
		return nil
	}

	if !categoriesSynced {
		assigned, err := p.Categories.AssignedCategories(ctx, product.ID)
		if err != nil {
			return err
		}
		for id := range assigned {
			categoryIDs = append(categoryIDs, id)
		}
	}
	keep := categoryIDs[:0]
	for _, id := range categoryIDs {
		if !category.IsReserved(id) {
			keep = append(keep, id)
		}
	}
	sort.Slice(keep, func(i, j int) bool { return keep[i] < keep[j] })

	return rewrite.NewResolver(p.Rewrites, s.cfg.Rewrite).Sync(ctx, rewrite.ProductInput{
		ProductID:   product.ID,
		URLKeys:     urlKeys,
		CategoryIDs: keep,
	})
}

func popString(attrs map[string]Value, code string) string {
	v, ok := attrs[code]
	if !ok {
		return ""
	}
	delete(attrs, code)
	return v.String()
}
