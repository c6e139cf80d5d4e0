package content

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemStore(t *testing.T) *FSStore {
	t.Helper()
	store, err := NewFSStoreWithFs(afero.NewMemMapFs(), "content")
	require.NoError(t, err)
	return store
}

func TestKey(t *testing.T) {
	assert.Equal(t, "@team/hello/1.0.0_ab12.md", Key("@team", "hello", "1.0.0", "ab12"))
}

func TestParseKey(t *testing.T) {
	ns, name, version, ok := ParseKey("@team/hello/1.0.0_ab12.md")
	require.True(t, ok)
	assert.Equal(t, "@team", ns)
	assert.Equal(t, "hello", name)
	assert.Equal(t, "1.0.0", version)

	ns, name, version, ok = ParseKey("@team/hello/1.0.0-rc.1_ab12.md")
	require.True(t, ok)
	assert.Equal(t, "1.0.0-rc.1", version)

	bad := []string{
		"", "x", "a/b", "a/b/c", "a/b/c/d_e.md",
		"/b/1.0.0_ab12.md", "a/b/.md",
		"a/b/1.0.0.md",  // no record id suffix
		"a/b/1.0.0_.md", // empty record id
		"a/b/_ab12.md",  // empty version
	}
	for _, key := range bad {
		_, _, _, ok := ParseKey(key)
		assert.False(t, ok, "key %q should not parse", key)
	}
}

func TestFSStore_RoundTrip(t *testing.T) {
	store := newMemStore(t)
	ctx := context.Background()

	location, err := store.Put(ctx, Key("@team", "hello", "1.0.0", "rec1"), []byte("---\ntitle: hi\n---\n"))
	require.NoError(t, err)

	data, err := store.Get(ctx, location)
	require.NoError(t, err)
	assert.Equal(t, []byte("---\ntitle: hi\n---\n"), data)
}

func TestFSStore_PutOverwritesSameKey(t *testing.T) {
	store := newMemStore(t)
	ctx := context.Background()
	key := Key("@team", "hello", "1.0.0", "rec1")

	_, err := store.Put(ctx, key, []byte("first"))
	require.NoError(t, err)
	location, err := store.Put(ctx, key, []byte("second"))
	require.NoError(t, err)

	data, err := store.Get(ctx, location)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}

func TestFSStore_GetNotFound(t *testing.T) {
	store := newMemStore(t)
	_, err := store.Get(context.Background(), "@team/missing/1.0.0.md")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFSStore_DeleteAbsentIsNil(t *testing.T) {
	store := newMemStore(t)
	assert.NoError(t, store.Delete(context.Background(), "@team/missing/1.0.0.md"))
}

func TestFSStore_Delete(t *testing.T) {
	store := newMemStore(t)
	ctx := context.Background()
	key := Key("@team", "hello", "1.0.0", "rec1")

	_, err := store.Put(ctx, key, []byte("data"))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, key))

	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFSStore_Walk(t *testing.T) {
	store := newMemStore(t)
	ctx := context.Background()

	_, err := store.Put(ctx, Key("@a", "one", "1.0.0", "rec1"), []byte("1"))
	require.NoError(t, err)
	_, err = store.Put(ctx, Key("@b", "two", "2.0.0", "rec2"), []byte("2"))
	require.NoError(t, err)

	seen := map[string]bool{}
	err = store.Walk(ctx, func(key string, modified time.Time) error {
		seen[key] = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, seen["@a/one/1.0.0_rec1.md"])
	assert.True(t, seen["@b/two/2.0.0_rec2.md"])
	assert.Len(t, seen, 2)
}

func TestFSStore_URI(t *testing.T) {
	store := newMemStore(t)
	assert.Equal(t, "file://content/@team/hello/1.0.0.md", store.URI("@team/hello/1.0.0.md"))
}
