package storescope

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testCatalog() *Catalog {
	return NewCatalog(
		[]Store{
			{ID: 0, Code: "admin", WebsiteID: 0, GroupID: 0},
			{ID: 1, Code: "default", WebsiteID: 1, GroupID: 1},
			{ID: 2, Code: "de", WebsiteID: 1, GroupID: 1},
			{ID: 3, Code: "b2b", WebsiteID: 2, GroupID: 2},
		},
		[]Group{
			{ID: 1, WebsiteID: 1, RootCategoryID: 2},
			{ID: 2, WebsiteID: 2, RootCategoryID: 40},
		},
		[]Website{
			{ID: 1, Code: "base", DefaultGroupID: 1},
			{ID: 2, Code: "b2b", DefaultGroupID: 2},
		},
	)
}

func TestResolveByIDAndCode(t *testing.T) {
	c := testCatalog()

	s, err := c.Resolve("2")
	require.NoError(t, err)
	require.Equal(t, "de", s.Code)

	s, err = c.Resolve("b2b")
	require.NoError(t, err)
	require.Equal(t, int64(3), s.ID)

	_, err = c.Resolve("missing")
	require.Error(t, err)
}

func TestStoresForScopes(t *testing.T) {
	c := testCatalog()

	require.Equal(t, []int64{0}, c.StoresFor(ScopeGlobal, 2))
	require.Equal(t, []int64{2}, c.StoresFor(ScopeStore, 2))
	require.Equal(t, []int64{1, 2}, c.StoresFor(ScopeWebsite, 2))
	require.Equal(t, []int64{3}, c.StoresFor(ScopeWebsite, 3))
}

func TestStoresForAdminNeverFansOut(t *testing.T) {
	c := testCatalog()
	for _, scope := range []Scope{ScopeStore, ScopeGlobal, ScopeWebsite} {
		require.Equal(t, []int64{0}, c.StoresFor(scope, 0))
	}
}

func TestRootCategory(t *testing.T) {
	c := testCatalog()

	root, err := c.RootCategory(3)
	require.NoError(t, err)
	require.Equal(t, int64(40), root)

	_, err = c.RootCategory(99)
	require.Error(t, err)
}
