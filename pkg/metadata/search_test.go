package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, store *Store, query string, limit int) []PathRecord {
	t.Helper()
	seq, err := store.Search(query, limit)
	require.NoError(t, err)
	var out []PathRecord
	for rec := range seq {
		out = append(out, rec)
	}
	return out
}

func TestSearch_NameOutranksDescription(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Insert(&PathRecord{
		Namespace: "@a", Name: "deploy-guide", Version: "1.0.0", Location: "x",
	}))
	require.NoError(t, store.Insert(&PathRecord{
		Namespace: "@a", Name: "onboarding", Version: "1.0.0", Location: "y",
		Description: "how to deploy things",
	}))

	results := collect(t, store, "deploy", 10)
	require.Len(t, results, 2)
	assert.Equal(t, "deploy-guide", results[0].Name)
	assert.Equal(t, "onboarding", results[1].Name)
}

func TestSearch_TagMatch(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Insert(&PathRecord{
		Namespace: "@a", Name: "svc-setup", Version: "1.0.0", Location: "x",
		Tags: JSONStringSlice{"kubernetes", "deploy"},
	}))

	results := collect(t, store, "kubernetes", 10)
	require.Len(t, results, 1)
	assert.Equal(t, "svc-setup", results[0].Name)
}

func TestSearch_NamespaceMatch(t *testing.T) {
	store := newTestStore(t)
	insertRecord(t, store, "@platform", "hello", "1.0.0")

	results := collect(t, store, "platform", 10)
	require.Len(t, results, 1)
}

func TestSearch_NoMatches(t *testing.T) {
	store := newTestStore(t)
	insertRecord(t, store, "@a", "hello", "1.0.0")

	assert.Empty(t, collect(t, store, "zzz-nothing", 10))
	assert.Empty(t, collect(t, store, "   ", 10))
}

func TestSearch_LimitBoundsResults(t *testing.T) {
	store := newTestStore(t)
	insertRecord(t, store, "@a", "deploy-one", "1.0.0")
	insertRecord(t, store, "@a", "deploy-two", "1.0.0")
	insertRecord(t, store, "@a", "deploy-three", "1.0.0")

	assert.Len(t, collect(t, store, "deploy", 2), 2)
}

func TestSearch_SingleUseSequence(t *testing.T) {
	store := newTestStore(t)
	insertRecord(t, store, "@a", "hello", "1.0.0")

	seq, err := store.Search("hello", 10)
	require.NoError(t, err)

	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second, "sequence is not restartable")
}

func TestSearch_CaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	insertRecord(t, store, "@a", "Deploy-Guide", "1.0.0")

	assert.Len(t, collect(t, store, "DEPLOY", 10), 1)
}
