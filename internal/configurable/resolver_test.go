package configurable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catsync/catsync/internal/eav"
	"github.com/catsync/catsync/internal/shared"
	"github.com/catsync/catsync/internal/storescope"
)

type superKey struct {
	parentLinkID int64
	attributeID  int64
}

type memoryPort struct {
	products    map[string]Product
	childValues map[[2]int64]bool // attributeID, childLinkID
	supers      map[superKey]int           // position
	labels      map[int64]map[int64]string // superAttributeID -> storeID -> label
	children    map[int64][]int64 // parentLinkID -> child entity ids
	relations   map[[2]int64]bool
}

func newMemoryPort() *memoryPort {
	return &memoryPort{
		products:    make(map[string]Product),
		childValues: make(map[[2]int64]bool),
		supers:      make(map[superKey]int),
		labels:      make(map[int64]map[int64]string),
		children:    make(map[int64][]int64),
		relations:   make(map[[2]int64]bool),
	}
}

func (m *memoryPort) ProductsBySKU(_ context.Context, skus []string) (map[string]Product, error) {
	out := make(map[string]Product)
	for _, s := range skus {
		if p, ok := m.products[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

func (m *memoryPort) HasChildValue(_ context.Context, attributeID, childLinkID int64) (bool, error) {
	return m.childValues[[2]int64{attributeID, childLinkID}], nil
}

func (m *memoryPort) FrontendLabel(_ context.Context, attributeID int64) (string, error) {
	return "Label", nil
}

func (m *memoryPort) UpsertSuperAttribute(_ context.Context, parentLinkID, attributeID int64, position int) (int64, error) {
	m.supers[superKey{parentLinkID, attributeID}] = position
	return attributeID * 10, nil
}

func (m *memoryPort) UpsertSuperAttributeLabel(_ context.Context, superAttributeID int64, storeIDs []int64, label string) error {
	if m.labels[superAttributeID] == nil {
		m.labels[superAttributeID] = make(map[int64]string)
	}
	for _, sid := range storeIDs {
		m.labels[superAttributeID][sid] = label
	}
	return nil
}

func (m *memoryPort) CurrentChildren(_ context.Context, parentLinkID int64) ([]int64, error) {
	return m.children[parentLinkID], nil
}

func (m *memoryPort) RemoveChildren(_ context.Context, parentLinkID, parentID int64, childIDs []int64) error {
	remove := make(map[int64]bool)
	for _, id := range childIDs {
		remove[id] = true
		delete(m.relations, [2]int64{parentID, id})
	}
	var kept []int64
	for _, id := range m.children[parentLinkID] {
		if !remove[id] {
			kept = append(kept, id)
		}
	}
	m.children[parentLinkID] = kept
	return nil
}

func (m *memoryPort) AddChild(_ context.Context, parentLinkID, parentID, childID int64) error {
	m.children[parentLinkID] = append(m.children[parentLinkID], childID)
	m.relations[[2]int64{parentID, childID}] = true
	return nil
}

var (
	colorSuper = eav.Attribute{ID: 93, Code: "color", Input: "select", Scope: storescope.ScopeGlobal, Backend: eav.BackendInt}
	sizeSuper  = eav.Attribute{ID: 94, Code: "size", Input: "select", Scope: storescope.ScopeGlobal, Backend: eav.BackendInt}
)

func fixture() (*Resolver, *memoryPort, Product) {
	mem := newMemoryPort()
	parent := Product{ID: 100, LinkID: 100, SKU: "CONF", Type: "configurable"}
	mem.products["CONF"] = parent
	mem.products["C-RED"] = Product{ID: 101, LinkID: 101, SKU: "C-RED", Type: "simple"}
	mem.products["C-BLUE"] = Product{ID: 102, LinkID: 102, SKU: "C-BLUE", Type: "simple"}
	for _, child := range []int64{101, 102} {
		mem.childValues[[2]int64{93, child}] = true
		mem.childValues[[2]int64{94, child}] = true
	}
	catalog := eav.NewAttributeCatalog([]eav.Attribute{colorSuper, sizeSuper})
	return NewResolver(mem, catalog), mem, parent
}

func TestSyncBuildsStructure(t *testing.T) {
	r, mem, parent := fixture()

	err := r.Sync(context.Background(), parent, []string{"color", "size"}, []string{"C-RED", "C-BLUE"}, []int64{1, 2})
	require.NoError(t, err)

	require.Equal(t, 0, mem.supers[superKey{100, 93}])
	require.Equal(t, 1, mem.supers[superKey{100, 94}])
	require.Equal(t, "Label", mem.labels[930][1])
	require.Equal(t, "Label", mem.labels[930][2])
	require.ElementsMatch(t, []int64{101, 102}, mem.children[100])
	require.True(t, mem.relations[[2]int64{100, 101}])
}

func TestSyncRebuildRemovesStaleChildren(t *testing.T) {
	r, mem, parent := fixture()
	mem.children[100] = []int64{101, 999}
	mem.relations[[2]int64{100, 999}] = true

	err := r.Sync(context.Background(), parent, []string{"color"}, []string{"C-RED", "C-BLUE"}, []int64{1})
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{101, 102}, mem.children[100])
	require.False(t, mem.relations[[2]int64{100, 999}])
}

func TestSyncRejectsNonConfigurableParent(t *testing.T) {
	r, _, _ := fixture()
	err := r.Sync(context.Background(), Product{SKU: "S", Type: "simple"}, []string{"color"}, nil, nil)
	require.ErrorIs(t, err, shared.ErrState)
}

func TestSyncRejectsConfigurableChild(t *testing.T) {
	r, mem, parent := fixture()
	mem.products["NESTED"] = Product{ID: 103, LinkID: 103, SKU: "NESTED", Type: "configurable"}

	err := r.Sync(context.Background(), parent, []string{"color"}, []string{"NESTED"}, []int64{1})
	require.ErrorIs(t, err, shared.ErrState)
}

func TestSyncRejectsMissingChildValue(t *testing.T) {
	r, mem, parent := fixture()
	delete(mem.childValues, [2]int64{93, 102})

	err := r.Sync(context.Background(), parent, []string{"color"}, []string{"C-RED", "C-BLUE"}, []int64{1})
	require.ErrorIs(t, err, shared.ErrState)
}

func TestSyncRejectsBadSuperAttribute(t *testing.T) {
	mem := newMemoryPort()
	parent := Product{ID: 100, LinkID: 100, SKU: "CONF", Type: "configurable"}
	storeScoped := eav.Attribute{ID: 95, Code: "shade", Input: "select", Scope: storescope.ScopeStore}
	textAttr := eav.Attribute{ID: 96, Code: "note", Input: "text", Scope: storescope.ScopeGlobal}
	r := NewResolver(mem, eav.NewAttributeCatalog([]eav.Attribute{storeScoped, textAttr}))

	require.ErrorIs(t, r.Sync(context.Background(), parent, []string{"shade"}, nil, nil), shared.ErrState)
	require.ErrorIs(t, r.Sync(context.Background(), parent, []string{"note"}, nil, nil), shared.ErrState)
	require.ErrorIs(t, r.Sync(context.Background(), parent, []string{"ghost"}, nil, nil), shared.ErrNotFound)
}

func TestSyncRejectsUnknownChild(t *testing.T) {
	r, _, parent := fixture()
	err := r.Sync(context.Background(), parent, []string{"color"}, []string{"GHOST"}, []int64{1})
	require.ErrorIs(t, err, shared.ErrNotFound)
}
