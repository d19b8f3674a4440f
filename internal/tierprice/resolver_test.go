package tierprice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catsync/catsync/internal/shared"
)

type memoryPort struct {
	groups  []CustomerGroup
	nextID  int64
	rows    map[Row]bool
	deleted int
}

func newMemoryPort(groups ...CustomerGroup) *memoryPort {
	return &memoryPort{groups: groups, nextID: 100, rows: make(map[Row]bool)}
}

func (m *memoryPort) CustomerGroups(context.Context) ([]CustomerGroup, error) {
	return m.groups, nil
}

func (m *memoryPort) CreateCustomerGroup(_ context.Context, code string) (int64, error) {
	m.nextID++
	m.groups = append(m.groups, CustomerGroup{ID: m.nextID, Code: code})
	return m.nextID, nil
}

func (m *memoryPort) DeleteTierPrices(_ context.Context, linkID int64) error {
	m.deleted++
	for row := range m.rows {
		if row.LinkID == linkID {
			delete(m.rows, row)
		}
	}
	return nil
}

func (m *memoryPort) UpsertTierPrice(_ context.Context, row Row) error {
	price := row.Price
	row.Price = 0
	for existing := range m.rows {
		key := existing
		key.Price = 0
		if key == row {
			delete(m.rows, existing)
		}
	}
	row.Price = price
	m.rows[row] = true
	return nil
}

func TestSyncResolvesAndCreatesGroups(t *testing.T) {
	mem := newMemoryPort(CustomerGroup{ID: 2, Code: "Wholesale"})
	r := NewResolver(mem, ModeAddition)

	err := r.Sync(context.Background(), 500, []Input{
		{Qty: 10, Price: 8.5, Group: "wholesale"},
		{Qty: 5, Price: 9.0, Group: "VIP"},
		{Qty: 1, Price: 10.0},
	})
	require.NoError(t, err)
	require.Len(t, mem.rows, 3)
	require.True(t, mem.rows[Row{LinkID: 500, GroupID: 2, Qty: 10, Price: 8.5}])
	require.True(t, mem.rows[Row{LinkID: 500, GroupID: 101, Qty: 5, Price: 9.0}])
	require.True(t, mem.rows[Row{LinkID: 500, AllGroups: true, Qty: 1, Price: 10.0}])
	require.Equal(t, "VIP", mem.groups[len(mem.groups)-1].Code)
}

func TestSyncReplacementClearsFirst(t *testing.T) {
	mem := newMemoryPort()
	mem.rows[Row{LinkID: 500, AllGroups: true, Qty: 3, Price: 7}] = true
	r := NewResolver(mem, ModeReplacement)

	err := r.Sync(context.Background(), 500, []Input{{Qty: 10, Price: 5}})
	require.NoError(t, err)
	require.Equal(t, 1, mem.deleted)
	require.Len(t, mem.rows, 1)
	require.True(t, mem.rows[Row{LinkID: 500, AllGroups: true, Qty: 10, Price: 5}])
}

func TestSyncAdditionUpdatesExistingTier(t *testing.T) {
	mem := newMemoryPort()
	mem.rows[Row{LinkID: 500, AllGroups: true, Qty: 10, Price: 7}] = true
	r := NewResolver(mem, ModeAddition)

	err := r.Sync(context.Background(), 500, []Input{{Qty: 10, Price: 6}})
	require.NoError(t, err)
	require.Len(t, mem.rows, 1)
	require.True(t, mem.rows[Row{LinkID: 500, AllGroups: true, Qty: 10, Price: 6}])
}

func TestSyncValidation(t *testing.T) {
	r := NewResolver(newMemoryPort(), ModeAddition)

	err := r.Sync(context.Background(), 500, []Input{{Qty: 0, Price: 5}})
	require.ErrorIs(t, err, shared.ErrInput)

	err = r.Sync(context.Background(), 500, []Input{{Qty: 1, Price: -1}})
	require.ErrorIs(t, err, shared.ErrInput)
}

func TestSyncEmptyIsNoop(t *testing.T) {
	mem := newMemoryPort()
	r := NewResolver(mem, ModeReplacement)
	require.NoError(t, r.Sync(context.Background(), 500, nil))
	require.Zero(t, mem.deleted)
}
