package eav

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catsync/catsync/internal/storescope"
)

type valueKey struct {
	attrID  int64
	storeID int64
	linkID  int64
}

type memoryValues struct {
	rows    map[valueKey]any
	statics map[string]any
}

func newMemoryValues() *memoryValues {
	return &memoryValues{rows: make(map[valueKey]any), statics: make(map[string]any)}
}

func (m *memoryValues) UpsertValue(_ context.Context, attr Attribute, linkID, storeID int64, value any) error {
	m.rows[valueKey{attr.ID, storeID, linkID}] = value
	return nil
}

func (m *memoryValues) DeleteValue(_ context.Context, attr Attribute, linkID int64, storeIDs []int64) error {
	for k := range m.rows {
		if k.attrID != attr.ID || k.linkID != linkID {
			continue
		}
		if len(storeIDs) == 0 {
			delete(m.rows, k)
			continue
		}
		for _, sid := range storeIDs {
			if k.storeID == sid {
				delete(m.rows, k)
			}
		}
	}
	return nil
}

func (m *memoryValues) DeleteValueOutsideAdmin(_ context.Context, attr Attribute, linkID int64) error {
	for k := range m.rows {
		if k.attrID == attr.ID && k.linkID == linkID && k.storeID != 0 {
			delete(m.rows, k)
		}
	}
	return nil
}

func (m *memoryValues) UpdateStatic(_ context.Context, column string, linkID int64, value any) error {
	m.statics[fmt.Sprintf("%s/%d", column, linkID)] = value
	return nil
}

func writerFixture(t *testing.T, allowNew bool, action IllegalAction) (*Writer, *memoryValues) {
	t.Helper()
	values := newMemoryValues()
	options := NewOptionResolver(newMemoryOptions(colorOptions()), allowNew, action)
	stores := storescope.NewCatalog(
		[]storescope.Store{
			{ID: 0, Code: "admin"},
			{ID: 1, Code: "default", WebsiteID: 1, GroupID: 1},
			{ID: 2, Code: "de", WebsiteID: 1, GroupID: 1},
		},
		[]storescope.Group{{ID: 1, WebsiteID: 1, RootCategoryID: 2}},
		[]storescope.Website{{ID: 1, Code: "base", DefaultGroupID: 1}},
	)
	return NewWriter(values, options, stores), values
}

func TestApplyWebsiteScopeFansOut(t *testing.T) {
	w, values := writerFixture(t, false, IllegalSkipProduct)
	price := Attribute{ID: 77, Code: "price", Backend: BackendDecimal, Scope: storescope.ScopeWebsite}

	warnings, err := w.Apply(context.Background(), price, 500, 2, FieldValue{Code: "price", Raw: "12.50"})
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, 12.5, values.rows[valueKey{77, 1, 500}])
	require.Equal(t, 12.5, values.rows[valueKey{77, 2, 500}])
	_, onAdmin := values.rows[valueKey{77, 0, 500}]
	require.False(t, onAdmin)
}

func TestApplyGlobalScopeClearsOverrides(t *testing.T) {
	w, values := writerFixture(t, false, IllegalSkipProduct)
	weight := Attribute{ID: 82, Code: "weight", Backend: BackendDecimal, Scope: storescope.ScopeGlobal}

	// Stale per-store override left behind by an earlier direct write.
	values.rows[valueKey{82, 2, 500}] = 9.0

	_, err := w.Apply(context.Background(), weight, 500, 2, FieldValue{Code: "weight", Raw: "1.25"})
	require.NoError(t, err)
	require.Equal(t, 1.25, values.rows[valueKey{82, 0, 500}])
	_, overridden := values.rows[valueKey{82, 2, 500}]
	require.False(t, overridden)
}

func TestApplyDeleteSentinel(t *testing.T) {
	w, values := writerFixture(t, false, IllegalSkipProduct)
	name := Attribute{ID: 73, Code: "name", Backend: BackendVarchar, Scope: storescope.ScopeStore}

	values.rows[valueKey{73, 0, 500}] = "Old"
	values.rows[valueKey{73, 2, 500}] = "Alt"

	_, err := w.Apply(context.Background(), name, 500, 2, FieldValue{Code: "name", Delete: true})
	require.NoError(t, err)
	_, ok := values.rows[valueKey{73, 2, 500}]
	require.False(t, ok)
	// Store-scoped delete leaves the admin row alone.
	require.Equal(t, "Old", values.rows[valueKey{73, 0, 500}])
}

func TestApplyGlobalDeleteRemovesAllStores(t *testing.T) {
	w, values := writerFixture(t, false, IllegalSkipProduct)
	weight := Attribute{ID: 82, Code: "weight", Backend: BackendDecimal, Scope: storescope.ScopeGlobal}

	values.rows[valueKey{82, 0, 500}] = 1.0
	values.rows[valueKey{82, 2, 500}] = 2.0

	_, err := w.Apply(context.Background(), weight, 500, 2, FieldValue{Code: "weight", Delete: true})
	require.NoError(t, err)
	require.Empty(t, values.rows)
}

func TestApplyNullSentinel(t *testing.T) {
	w, values := writerFixture(t, false, IllegalSkipProduct)
	name := Attribute{ID: 73, Code: "name", Backend: BackendVarchar, Scope: storescope.ScopeStore}

	_, err := w.Apply(context.Background(), name, 500, 2, FieldValue{Code: "name", Null: true})
	require.NoError(t, err)
	v, ok := values.rows[valueKey{73, 2, 500}]
	require.True(t, ok)
	require.Nil(t, v)
}

func TestApplyMultiselect(t *testing.T) {
	w, values := writerFixture(t, false, IllegalIgnore)
	attr := Attribute{ID: 93, Code: "color", Backend: BackendVarchar, Input: "multiselect", Source: SourceTable, Scope: storescope.ScopeStore}

	warnings, err := w.Apply(context.Background(), attr, 500, 1, FieldValue{
		Code: "color", IsList: true, List: []string{"Blue", "Green", "Red"},
	})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "Green")
	require.Equal(t, "11,10", values.rows[valueKey{93, 1, 500}])
}

func TestApplyMultiselectEmptyListDeletesRow(t *testing.T) {
	w, values := writerFixture(t, false, IllegalIgnore)
	attr := Attribute{ID: 93, Code: "color", Backend: BackendVarchar, Input: "multiselect", Source: SourceTable, Scope: storescope.ScopeStore}

	values.rows[valueKey{93, 1, 500}] = "10"
	_, err := w.Apply(context.Background(), attr, 500, 1, FieldValue{Code: "color", IsList: true, List: nil})
	require.NoError(t, err)
	_, ok := values.rows[valueKey{93, 1, 500}]
	require.False(t, ok)
}

func TestApplyDroppedSelectLeavesValueUntouched(t *testing.T) {
	w, values := writerFixture(t, false, IllegalIgnore)
	attr := Attribute{ID: 93, Code: "color", Backend: BackendInt, Input: "select", Source: SourceTable, Scope: storescope.ScopeStore}

	values.rows[valueKey{93, 1, 500}] = int64(10)
	warnings, err := w.Apply(context.Background(), attr, 500, 1, FieldValue{Code: "color", Raw: "Green"})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Equal(t, int64(10), values.rows[valueKey{93, 1, 500}])
}

func TestApplyStatic(t *testing.T) {
	w, values := writerFixture(t, false, IllegalSkipProduct)

	attrSet := Attribute{ID: 0, Code: "attribute_set_id", Backend: BackendStatic}
	_, err := w.Apply(context.Background(), attrSet, 500, 0, FieldValue{Code: "attribute_set_id", Raw: "9"})
	require.NoError(t, err)
	require.Equal(t, "9", values.statics["attribute_set_id/500"])

	sku := Attribute{ID: 0, Code: "sku", Backend: BackendStatic}
	_, err = w.Apply(context.Background(), sku, 500, 0, FieldValue{Code: "sku", Delete: true})
	require.Error(t, err)
}
