package category

import (
	"context"
	"fmt"
	"strings"

	"github.com/catsync/catsync/internal/shared"
	"github.com/catsync/catsync/internal/storescope"
)

// Mode selects how resolved assignments combine with stored ones.
type Mode string

const (
	ModeAddition    Mode = "addition"
	ModeReplacement Mode = "replacement"
)

// Reserved category ids that are never assigned or rewritten.
const (
	rootCatalogID     int64 = 1
	defaultCategoryID int64 = 2
)

// IsReserved reports whether the category id is off limits for
// assignments and rewrites.
func IsReserved(id int64) bool {
	return id == rootCatalogID || id == defaultCategoryID
}

// Port persists categories and product assignments.
type Port interface {
	// ChildByName finds a child of parentID whose name matches
	// case-insensitively in any of the given stores (checked in order).
	ChildByName(ctx context.Context, parentID int64, name string, storeIDs []int64) (int64, bool, error)
	RootByName(ctx context.Context, name string, storeIDs []int64) (int64, bool, error)
	NameOf(ctx context.Context, categoryID int64) (string, bool, error)
	CreateChild(ctx context.Context, parentID int64, spec LevelSpec, urlKey, urlPath string) (int64, error)
	// UpsertStoreLabel writes store-scoped name, url_key and url_path
	// values for one category.
	UpsertStoreLabel(ctx context.Context, categoryID, storeID int64, name, urlKey, urlPath string) error
	AssignedCategories(ctx context.Context, productID int64) (map[int64]int, error)
	AssignProduct(ctx context.Context, categoryID, productID int64, position int) error
	UnassignProduct(ctx context.Context, categoryID, productID int64) error
}

// Config tunes resolution behavior.
type Config struct {
	Grammar  GrammarConfig
	Mode     Mode
	LastOnly bool
}

// Resolver resolves category paths and synchronizes assignments.
type Resolver struct {
	port   Port
	stores *storescope.Catalog
	cfg    Config
}

// NewResolver constructs a Resolver.
func NewResolver(port Port, stores *storescope.Catalog, cfg Config) *Resolver {
	return &Resolver{port: port, stores: stores, cfg: cfg}
}

// Sync parses raw paths, creates missing categories and reconciles the
// product's assignments. directIDs are pre-resolved category ids from the
// record; ids that do not exist are dropped with a warning. It returns
// the category ids now assigned and the warnings collected on the way.
func (r *Resolver) Sync(ctx context.Context, productID int64, raw string, directIDs []int64, storeID int64) ([]int64, []string, error) {
	specs, err := ParsePaths(raw, r.cfg.Grammar, func(sid int64) (string, error) {
		return r.rootName(ctx, sid)
	})
	if err != nil {
		return nil, nil, err
	}

	lookupStores := []int64{storeID, storescope.AdminStoreID}
	assign := make(map[int64]int)
	var order []int64
	for _, spec := range specs {
		ids, err := r.resolvePath(ctx, spec, storeID, lookupStores)
		if err != nil {
			return nil, nil, err
		}
		levels := spec.Levels
		if r.cfg.LastOnly {
			ids = ids[len(ids)-1:]
			levels = levels[len(levels)-1:]
		}
		for i, id := range ids {
			if IsReserved(id) {
				continue
			}
			if _, seen := assign[id]; !seen {
				order = append(order, id)
			}
			assign[id] = levels[i].Position
		}
	}

	var warnings []string
	for _, id := range directIDs {
		if IsReserved(id) {
			warnings = append(warnings, fmt.Sprintf("category id %d is reserved, dropped", id))
			continue
		}
		_, ok, err := r.port.NameOf(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("category: verify id %d: %w", id, err)
		}
		if !ok {
			warnings = append(warnings, fmt.Sprintf("category id %d does not exist, dropped", id))
			continue
		}
		if _, seen := assign[id]; !seen {
			order = append(order, id)
			assign[id] = 0
		}
	}

	existing, err := r.port.AssignedCategories(ctx, productID)
	if err != nil {
		return nil, nil, fmt.Errorf("category: load assignments: %w", err)
	}

	for _, id := range order {
		pos := assign[id]
		if cur, ok := existing[id]; ok && cur == pos {
			continue
		}
		if err := r.port.AssignProduct(ctx, id, productID, pos); err != nil {
			return nil, nil, fmt.Errorf("category: assign %d: %w", id, err)
		}
	}

	if r.cfg.Mode == ModeReplacement {
		for id := range existing {
			if IsReserved(id) {
				continue
			}
			if _, keep := assign[id]; keep {
				continue
			}
			if err := r.port.UnassignProduct(ctx, id, productID); err != nil {
				return nil, nil, fmt.Errorf("category: unassign %d: %w", id, err)
			}
		}
	}
	return order, warnings, nil
}

func (r *Resolver) rootName(ctx context.Context, storeID int64) (string, error) {
	rootID, err := r.stores.RootCategory(storeID)
	if err != nil {
		return "", err
	}
	name, ok, err := r.port.NameOf(ctx, rootID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("root category %d: %w", rootID, shared.ErrNotFound)
	}
	return name, nil
}

func (r *Resolver) resolvePath(ctx context.Context, spec PathSpec, storeID int64, lookupStores []int64) ([]int64, error) {
	var parent int64
	if spec.ExplicitRoot != "" {
		id, ok, err := r.port.RootByName(ctx, spec.ExplicitRoot, lookupStores)
		if err != nil {
			return nil, fmt.Errorf("category: root lookup: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: tree root %q", shared.ErrNotFound, spec.ExplicitRoot)
		}
		parent = id
	} else {
		root, err := r.stores.RootCategory(storeID)
		if err != nil {
			return nil, err
		}
		parent = root
	}

	ids := make([]int64, 0, len(spec.Levels))
	names := make([]string, 0, len(spec.Levels))
	storeNames := make([]string, 0, len(spec.Levels))
	for _, level := range spec.Levels {
		names = append(names, level.Name)
		label := level.Name
		if level.TranslatedName != "" {
			label = level.TranslatedName
		}
		storeNames = append(storeNames, label)

		id, ok, err := r.port.ChildByName(ctx, parent, level.Name, lookupStores)
		if err != nil {
			return nil, fmt.Errorf("category: lookup %q: %w", level.Name, err)
		}
		if !ok {
			if level.Translated {
				return nil, fmt.Errorf("%w: translated category %q under %d", shared.ErrNotFound, level.Name, parent)
			}
			urlPath := shared.SlugPath(strings.Join(names, "/"))
			id, err = r.port.CreateChild(ctx, parent, level, shared.Slug(level.Name), urlPath)
			if err != nil {
				return nil, fmt.Errorf("category: create %q: %w", level.Name, err)
			}
		}
		if level.TranslatedName != "" && storeID != storescope.AdminStoreID {
			storePath := shared.SlugPath(strings.Join(storeNames, "/"))
			err := r.port.UpsertStoreLabel(ctx, id, storeID, level.TranslatedName, shared.Slug(level.TranslatedName), storePath)
			if err != nil {
				return nil, fmt.Errorf("category: store label %q: %w", level.TranslatedName, err)
			}
		}
		ids = append(ids, id)
		parent = id
	}
	return ids, nil
}
