package metadata

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList_Defaults(t *testing.T) {
	store := newTestStore(t)
	insertRecord(t, store, "@b", "zeta", "1.0.0")
	insertRecord(t, store, "@a", "alpha", "1.0.0")
	insertRecord(t, store, "@a", "alpha", "2.0.0")

	result, err := store.List(ListFilter{}, SortDefault, PageRequest{})
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.TotalCount)
	assert.Equal(t, 1, result.Page)
	assert.Equal(t, DefaultPerPage, result.PerPage)
	assert.Equal(t, 1, result.TotalPages)
	assert.False(t, result.HasNext)
	assert.False(t, result.HasPrev)

	// namespace, then name, then descending version.
	require.Len(t, result.Records, 3)
	assert.Equal(t, "@a", result.Records[0].Namespace)
	assert.Equal(t, "2.0.0", result.Records[0].Version)
	assert.Equal(t, "1.0.0", result.Records[1].Version)
	assert.Equal(t, "@b", result.Records[2].Namespace)
}

func TestList_NamespaceFilter(t *testing.T) {
	store := newTestStore(t)
	insertRecord(t, store, "@a", "one", "1.0.0")
	insertRecord(t, store, "@b", "two", "1.0.0")

	result, err := store.List(ListFilter{Namespace: "@a"}, SortDefault, PageRequest{})
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "one", result.Records[0].Name)
}

func TestList_NamePrefixFilter(t *testing.T) {
	store := newTestStore(t)
	insertRecord(t, store, "@a", "deploy-service", "1.0.0")
	insertRecord(t, store, "@a", "deploy-worker", "1.0.0")
	insertRecord(t, store, "@a", "onboarding", "1.0.0")

	result, err := store.List(ListFilter{Name: "deploy"}, SortDefault, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.TotalCount)

	// LIKE metacharacters in the filter match literally.
	result, err = store.List(ListFilter{Name: "%"}, SortDefault, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.TotalCount)
}

func TestList_PaginationInvariants(t *testing.T) {
	store := newTestStore(t)
	for i := 0; i < 23; i++ {
		insertRecord(t, store, "@a", fmt.Sprintf("path-%02d", i), "1.0.0")
	}

	perPage := 5
	var seen int
	page := 1
	for {
		result, err := store.List(ListFilter{}, SortDefault, PageRequest{Page: page, PerPage: perPage})
		require.NoError(t, err)

		assert.Equal(t, int64(23), result.TotalCount)
		assert.Equal(t, 5, result.TotalPages)
		assert.Equal(t, page == 1, !result.HasPrev, "has_prev is false iff page == 1")
		assert.Equal(t, page == result.TotalPages, !result.HasNext, "has_next is false iff page == total_pages")

		seen += len(result.Records)
		if !result.HasNext {
			break
		}
		page++
	}
	assert.Equal(t, 23, seen, "pages sum to total_count")
}

func TestList_EmptyResult(t *testing.T) {
	store := newTestStore(t)

	result, err := store.List(ListFilter{Namespace: "@nobody"}, SortDefault, PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Equal(t, int64(0), result.TotalCount)
	assert.Equal(t, 0, result.TotalPages)
	assert.False(t, result.HasNext)
	assert.False(t, result.HasPrev)

	// has_prev is derived from the page number alone, including on a page
	// past an empty dataset.
	result, err = store.List(ListFilter{Namespace: "@nobody"}, SortDefault, PageRequest{Page: 2})
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.False(t, result.HasNext)
	assert.True(t, result.HasPrev)
}

func TestList_PageBeyondEnd(t *testing.T) {
	store := newTestStore(t)
	insertRecord(t, store, "@a", "one", "1.0.0")

	result, err := store.List(ListFilter{}, SortDefault, PageRequest{Page: 5, PerPage: 10})
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Equal(t, int64(1), result.TotalCount)
	assert.False(t, result.HasNext)
	assert.True(t, result.HasPrev)
}

func TestList_SortFields(t *testing.T) {
	store := newTestStore(t)
	insertRecord(t, store, "@b", "alpha", "1.0.0")
	insertRecord(t, store, "@a", "beta", "3.0.0")

	byName, err := store.List(ListFilter{}, SortName, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, "alpha", byName.Records[0].Name)

	byVersion, err := store.List(ListFilter{}, SortVersion, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, "3.0.0", byVersion.Records[0].Version)

	byModified, err := store.List(ListFilter{}, SortLastModified, PageRequest{})
	require.NoError(t, err)
	require.Len(t, byModified.Records, 2)
}

func TestValidSortField(t *testing.T) {
	assert.True(t, ValidSortField(SortDefault))
	assert.True(t, ValidSortField(SortName))
	assert.True(t, ValidSortField(SortVersion))
	assert.True(t, ValidSortField(SortLastModified))
	assert.False(t, ValidSortField(SortField("bogus")))
}
