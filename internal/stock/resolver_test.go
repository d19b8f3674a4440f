package stock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catsync/catsync/internal/shared"
)

type memoryPort struct {
	items   map[int64]map[string]float64
	status  map[int64][2]float64 // qty, status
	sources map[string][2]float64
}

func newMemoryPort() *memoryPort {
	return &memoryPort{
		items:   make(map[int64]map[string]float64),
		status:  make(map[int64][2]float64),
		sources: make(map[string][2]float64),
	}
}

func (m *memoryPort) UpsertStockItem(_ context.Context, productID int64, fields map[string]float64) error {
	cur, ok := m.items[productID]
	if !ok {
		cur = make(map[string]float64)
		m.items[productID] = cur
	}
	for k, v := range fields {
		cur[k] = v
	}
	return nil
}

func (m *memoryPort) RefreshStockStatus(_ context.Context, productID int64, qty float64, inStock bool) error {
	status := 0.0
	if inStock {
		status = 1
	}
	m.status[productID] = [2]float64{qty, status}
	return nil
}

func (m *memoryPort) UpsertSourceItem(_ context.Context, sku, sourceCode string, qty float64, inStock bool) error {
	status := 0.0
	if inStock {
		status = 1
	}
	m.sources[sourceCode+"/"+sku] = [2]float64{qty, status}
	return nil
}

func TestSyncAutoBehavior(t *testing.T) {
	mem := newMemoryPort()
	r := NewResolver(mem, Config{AutoManageStock: true, AutoSetInStock: true})

	err := r.Sync(context.Background(), 500, "SKU-1", map[string]string{"qty": "12", "min_qty": "2"})
	require.NoError(t, err)

	item := mem.items[500]
	require.Equal(t, 12.0, item["qty"])
	require.Equal(t, 1.0, item["manage_stock"])
	require.Equal(t, 0.0, item["use_config_manage_stock"])
	require.Equal(t, 1.0, item["is_in_stock"])
	require.Equal(t, [2]float64{12, 1}, mem.status[500])
}

func TestSyncQtyAtMinIsOutOfStock(t *testing.T) {
	mem := newMemoryPort()
	r := NewResolver(mem, Config{AutoSetInStock: true})

	err := r.Sync(context.Background(), 500, "SKU-1", map[string]string{"qty": "2", "min_qty": "2"})
	require.NoError(t, err)
	require.Equal(t, 0.0, mem.items[500]["is_in_stock"])
}

func TestSyncExplicitValuesWin(t *testing.T) {
	mem := newMemoryPort()
	r := NewResolver(mem, Config{AutoManageStock: true, AutoSetInStock: true})

	err := r.Sync(context.Background(), 500, "SKU-1", map[string]string{
		"qty": "0", "is_in_stock": "1", "manage_stock": "0",
	})
	require.NoError(t, err)
	item := mem.items[500]
	require.Equal(t, 1.0, item["is_in_stock"])
	require.Equal(t, 0.0, item["manage_stock"])
	_, set := item["use_config_manage_stock"]
	require.False(t, set)
}

func TestSyncRejectsUnknownColumn(t *testing.T) {
	r := NewResolver(newMemoryPort(), Config{})
	err := r.Sync(context.Background(), 500, "SKU-1", map[string]string{"warehouse": "3"})
	require.ErrorIs(t, err, shared.ErrInput)

	err = r.Sync(context.Background(), 500, "SKU-1", map[string]string{"qty": "many"})
	require.ErrorIs(t, err, shared.ErrInput)
}

func TestSyncMirrorsSourceItem(t *testing.T) {
	mem := newMemoryPort()
	r := NewResolver(mem, Config{AutoSetInStock: true, SourceItems: true, SourceCode: "default"})

	err := r.Sync(context.Background(), 500, "SKU-1", map[string]string{"qty": "7"})
	require.NoError(t, err)
	require.Equal(t, [2]float64{7, 1}, mem.sources["default/SKU-1"])
}

func TestSyncEmptyPayloadIsNoop(t *testing.T) {
	mem := newMemoryPort()
	r := NewResolver(mem, Config{AutoManageStock: true})
	require.NoError(t, r.Sync(context.Background(), 500, "SKU-1", nil))
	require.Empty(t, mem.items)
}
