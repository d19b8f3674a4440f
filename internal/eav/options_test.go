package eav

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catsync/catsync/internal/shared"
)

type memoryOptions struct {
	options map[int64][]Option
	nextID  int64
	created []string
}

func newMemoryOptions(opts map[int64][]Option) *memoryOptions {
	return &memoryOptions{options: opts, nextID: 1000}
}

func (m *memoryOptions) Options(_ context.Context, attributeID int64) ([]Option, error) {
	return m.options[attributeID], nil
}

func (m *memoryOptions) CreateOption(_ context.Context, attributeID int64, label string, sortOrder int) (int64, error) {
	m.nextID++
	m.options[attributeID] = append(m.options[attributeID], Option{
		ID:        m.nextID,
		SortOrder: sortOrder,
		Labels:    map[int64]string{0: label},
	})
	m.created = append(m.created, label)
	return m.nextID, nil
}

var colorAttr = Attribute{ID: 93, Code: "color", Input: "select", Source: SourceTable}

func colorOptions() map[int64][]Option {
	return map[int64][]Option{
		93: {
			{ID: 10, SortOrder: 1, Labels: map[int64]string{0: "Red", 2: "Rot"}},
			{ID: 11, SortOrder: 2, Labels: map[int64]string{0: "Blue"}},
		},
	}
}

func TestResolveMatchesCaseInsensitive(t *testing.T) {
	r := NewOptionResolver(newMemoryOptions(colorOptions()), false, IllegalSkipProduct)

	id, err := r.Resolve(context.Background(), colorAttr, 0, "red")
	require.NoError(t, err)
	require.Equal(t, int64(10), id)

	id, err = r.Resolve(context.Background(), colorAttr, 2, "ROT")
	require.NoError(t, err)
	require.Equal(t, int64(10), id)

	id, err = r.Resolve(context.Background(), colorAttr, 0, "BLUE")
	require.NoError(t, err)
	require.Equal(t, int64(11), id)
}

func TestResolveNumericOptionID(t *testing.T) {
	r := NewOptionResolver(newMemoryOptions(colorOptions()), false, IllegalSkipProduct)

	id, err := r.Resolve(context.Background(), colorAttr, 0, "11")
	require.NoError(t, err)
	require.Equal(t, int64(11), id)

	// Numeric but not an option id falls back to label matching and misses.
	_, err = r.Resolve(context.Background(), colorAttr, 0, "999")
	require.ErrorIs(t, err, shared.ErrIllegalValue)
}

func TestResolveCreatesWhenAllowed(t *testing.T) {
	mem := newMemoryOptions(colorOptions())
	r := NewOptionResolver(mem, true, IllegalSkipProduct)

	id, err := r.Resolve(context.Background(), colorAttr, 0, "Green")
	require.NoError(t, err)
	require.Equal(t, []string{"Green"}, mem.created)

	// Second resolve hits the cached created option.
	again, err := r.Resolve(context.Background(), colorAttr, 0, "green")
	require.NoError(t, err)
	require.Equal(t, id, again)
	require.Len(t, mem.created, 1)
}

func TestResolveIllegalActions(t *testing.T) {
	ctx := context.Background()

	r := NewOptionResolver(newMemoryOptions(colorOptions()), false, IllegalIgnore)
	_, err := r.Resolve(ctx, colorAttr, 0, "Green")
	require.True(t, errors.Is(err, ErrOptionDropped))

	r = NewOptionResolver(newMemoryOptions(colorOptions()), false, IllegalSkipProduct)
	_, err = r.Resolve(ctx, colorAttr, 0, "Green")
	require.ErrorIs(t, err, shared.ErrIllegalValue)
	require.False(t, shared.IsBatchAbort(err))

	r = NewOptionResolver(newMemoryOptions(colorOptions()), false, IllegalSkipBatch)
	_, err = r.Resolve(ctx, colorAttr, 0, "Green")
	require.True(t, shared.IsBatchAbort(err))
}

func TestResolveFixedSources(t *testing.T) {
	ctx := context.Background()
	r := NewOptionResolver(newMemoryOptions(nil), false, IllegalSkipProduct)

	status := Attribute{ID: 97, Code: "status", Input: "select", Source: SourceStatus}
	id, err := r.Resolve(ctx, status, 0, "Enabled")
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	visibility := Attribute{ID: 99, Code: "visibility", Input: "select", Source: SourceVisibility}
	id, err = r.Resolve(ctx, visibility, 0, "Catalog, Search")
	require.NoError(t, err)
	require.Equal(t, int64(4), id)

	boolean := Attribute{ID: 121, Code: "is_returnable", Input: "boolean", Source: SourceBoolean}
	id, err = r.Resolve(ctx, boolean, 0, "Yes")
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	_, err = r.Resolve(ctx, status, 0, "Archived")
	require.ErrorIs(t, err, shared.ErrIllegalValue)
}
