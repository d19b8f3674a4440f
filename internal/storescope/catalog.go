// Package storescope models the store/website topology and the store
// fan-out rules attribute scopes follow.
package storescope

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/catsync/catsync/internal/shared"
)

// Scope mirrors the attribute scope codes stored in the EAV metadata.
type Scope int

const (
	ScopeStore   Scope = 0
	ScopeGlobal  Scope = 1
	ScopeWebsite Scope = 2
)

func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeWebsite:
		return "website"
	default:
		return "store"
	}
}

// AdminStoreID is the implicit store holding default (global) values.
const AdminStoreID int64 = 0

// Store is one store view.
type Store struct {
	ID        int64
	Code      string
	Name      string
	WebsiteID int64
	GroupID   int64
}

// Group is a store group; it owns the root category of its stores.
type Group struct {
	ID             int64
	WebsiteID      int64
	RootCategoryID int64
}

// Website groups stores for website-scoped values.
type Website struct {
	ID             int64
	Code           string
	DefaultGroupID int64
}

// Catalog is an immutable snapshot of the store topology, loaded once per
// import session.
type Catalog struct {
	stores   map[int64]Store
	byCode   map[string]Store
	groups   map[int64]Group
	websites map[int64]Website
}

// NewCatalog builds a Catalog from the loaded rows.
func NewCatalog(stores []Store, groups []Group, websites []Website) *Catalog {
	c := &Catalog{
		stores:   make(map[int64]Store, len(stores)),
		byCode:   make(map[string]Store, len(stores)),
		groups:   make(map[int64]Group, len(groups)),
		websites: make(map[int64]Website, len(websites)),
	}
	for _, s := range stores {
		c.stores[s.ID] = s
		c.byCode[s.Code] = s
	}
	for _, g := range groups {
		c.groups[g.ID] = g
	}
	for _, w := range websites {
		c.websites[w.ID] = w
	}
	return c
}

// Store returns the store with the given id.
func (c *Catalog) Store(id int64) (Store, bool) {
	s, ok := c.stores[id]
	return s, ok
}

// Resolve accepts a numeric store id or a store code.
func (c *Catalog) Resolve(ref string) (Store, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		if s, ok := c.stores[id]; ok {
			return s, nil
		}
		return Store{}, fmt.Errorf("store %d: %w", id, shared.ErrNotFound)
	}
	if s, ok := c.byCode[ref]; ok {
		return s, nil
	}
	return Store{}, fmt.Errorf("store %q: %w", ref, shared.ErrNotFound)
}

// StoreIDs returns every store id except admin, sorted.
func (c *Catalog) StoreIDs() []int64 {
	ids := make([]int64, 0, len(c.stores))
	for id := range c.stores {
		if id == AdminStoreID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// DefaultStore returns the lowest-id store view other than admin. Batches
// targeting the admin store still need a concrete store for category roots.
func (c *Catalog) DefaultStore() (Store, bool) {
	ids := c.StoreIDs()
	if len(ids) == 0 {
		return Store{}, false
	}
	return c.stores[ids[0]], true
}

// WebsiteStores returns the ids of all store views under a website, sorted.
func (c *Catalog) WebsiteStores(websiteID int64) []int64 {
	var ids []int64
	for id, s := range c.stores {
		if id == AdminStoreID {
			continue
		}
		if s.WebsiteID == websiteID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RootCategory returns the root category id of the store's group. The admin
// store has no group; callers import into a concrete store for category work.
func (c *Catalog) RootCategory(storeID int64) (int64, error) {
	s, ok := c.stores[storeID]
	if !ok {
		return 0, fmt.Errorf("store %d: %w", storeID, shared.ErrNotFound)
	}
	g, ok := c.groups[s.GroupID]
	if !ok {
		return 0, fmt.Errorf("store group %d: %w", s.GroupID, shared.ErrNotFound)
	}
	return g.RootCategoryID, nil
}

// StoresFor expands a target store into the set of store ids a value write
// touches, according to the attribute scope. Global values live on the
// admin store only; website scope fans out to every sibling store view;
// store scope stays on the target. The admin store never fans out.
func (c *Catalog) StoresFor(scope Scope, storeID int64) []int64 {
	if storeID == AdminStoreID {
		return []int64{AdminStoreID}
	}
	switch scope {
	case ScopeGlobal:
		return []int64{AdminStoreID}
	case ScopeWebsite:
		s, ok := c.stores[storeID]
		if !ok {
			return nil
		}
		return c.WebsiteStores(s.WebsiteID)
	default:
		return []int64{storeID}
	}
}
