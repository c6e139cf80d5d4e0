package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/spf13/afero"

	"github.com/goldenpathdev/registry/pkg/authority"
	"github.com/goldenpathdev/registry/pkg/content"
	"github.com/goldenpathdev/registry/pkg/metadata"
	"github.com/goldenpathdev/registry/pkg/registry"
)

const sampleDoc = "---\ntitle: Deploy a service\ntags: [deploy]\n---\n\n# Deploy\n"

type apiEnv struct {
	ts    *httptest.Server
	keys  *authority.DBAuthority
	index *metadata.Store
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	index := metadata.NewStore(db)
	require.NoError(t, index.AutoMigrate())

	keys := authority.NewDBAuthority(db, nil)
	require.NoError(t, keys.AutoMigrate())

	blobs, err := content.NewFSStoreWithFs(afero.NewMemMapFs(), "content")
	require.NoError(t, err)

	auth := authority.NewCachedAuthority(keys, time.Minute)
	svc := registry.NewService(index, blobs, auth, nil)

	ts := httptest.NewServer(New(svc, index, keys, auth, nil).Router())
	t.Cleanup(ts.Close)

	return &apiEnv{ts: ts, keys: keys, index: index}
}

// newUserKey provisions a user and returns a live API key for them.
func (e *apiEnv) newUserKey(t *testing.T, userID, namespace string) string {
	t.Helper()
	ctx := context.Background()
	user, err := e.keys.EnsureUser(ctx, userID, userID+"@example.com", namespace)
	require.NoError(t, err)
	plaintext, _, err := e.keys.CreateKey(ctx, user.UserID, "test", nil)
	require.NoError(t, err)
	return plaintext
}

func (e *apiEnv) do(t *testing.T, req *http.Request, apiKey string) (*http.Response, map[string]any) {
	t.Helper()
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), "body: %s", raw)
	}
	return resp, body
}

// publish uploads a document as multipart form data.
func (e *apiEnv) publish(t *testing.T, apiKey, name, version, doc string) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name+".md")
	require.NoError(t, err)
	_, err = part.Write([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("name", name))
	require.NoError(t, mw.WriteField("version", version))
	require.NoError(t, mw.WriteField("description", "How to ship a service"))
	require.NoError(t, mw.WriteField("tags", "deploy, ci"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, e.ts.URL+"/api/v1/golden-paths", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(t, req, apiKey)
}

func (e *apiEnv) get(t *testing.T, path string, apiKey string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.ts.URL+path, nil)
	require.NoError(t, err)
	return e.do(t, req, apiKey)
}

func (e *apiEnv) delete(t *testing.T, path string, apiKey string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, e.ts.URL+path, nil)
	require.NoError(t, err)
	return e.do(t, req, apiKey)
}

func TestHealth(t *testing.T) {
	env := newAPIEnv(t)
	resp, body := env.get(t, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestPublishAndFetch(t *testing.T) {
	env := newAPIEnv(t)
	key := env.newUserKey(t, "alice", "@alice")

	resp, body := env.publish(t, key, "deploy", "1.0.0", sampleDoc)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %v", body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "@alice", body["namespace"])
	assert.Equal(t, "@alice/deploy:1.0.0", body["path"])

	// Reads are public.
	resp, body = env.get(t, "/api/v1/golden-paths/@alice/deploy?version=1.0.0", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, sampleDoc, body["content"])
	assert.Equal(t, "1.0.0", body["version"])
	_, err := time.Parse(time.RFC3339, body["last_modified"].(string))
	assert.NoError(t, err)
}

func TestFetchDefaultsToLatest(t *testing.T) {
	env := newAPIEnv(t)
	key := env.newUserKey(t, "alice", "@alice")

	for _, v := range []string{"1.0.0", "2.0.0", "1.5.0"} {
		resp, _ := env.publish(t, key, "deploy", v, sampleDoc)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := env.get(t, "/api/v1/golden-paths/@alice/deploy", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2.0.0", body["version"])
}

func TestPublishRequiresAuth(t *testing.T) {
	env := newAPIEnv(t)

	resp, body := env.publish(t, "", "deploy", "1.0.0", sampleDoc)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "API key required", body["detail"])
}

func TestInvalidKeyRejected(t *testing.T) {
	env := newAPIEnv(t)
	env.newUserKey(t, "alice", "@alice")

	resp, body := env.publish(t, "gp_live_not-a-real-key-at-all", "deploy", "1.0.0", sampleDoc)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid API key", body["detail"])
}

func TestPublishDuplicateVersionConflicts(t *testing.T) {
	env := newAPIEnv(t)
	key := env.newUserKey(t, "alice", "@alice")

	resp, _ := env.publish(t, key, "deploy", "1.0.0", sampleDoc)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.publish(t, key, "deploy", "1.0.0", "---\ntitle: Other\n---\n\n# Other\n")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["detail"], "already exists")

	// The rejected publish did not replace the stored content.
	resp, body = env.get(t, "/api/v1/golden-paths/@alice/deploy?version=1.0.0", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, sampleDoc, body["content"])
}

func TestPublishValidationErrors(t *testing.T) {
	env := newAPIEnv(t)
	key := env.newUserKey(t, "alice", "@alice")

	resp, body := env.publish(t, key, "deploy", "not-semver", sampleDoc)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body["detail"], "version")

	resp, body = env.publish(t, key, "deploy", "1.0.0", "no frontmatter here")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body["detail"], "file")
}

func TestFetchNotFound(t *testing.T) {
	env := newAPIEnv(t)

	resp, _ := env.get(t, "/api/v1/golden-paths/@ghost/nothing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListAndPagination(t *testing.T) {
	env := newAPIEnv(t)
	key := env.newUserKey(t, "alice", "@alice")

	for i := 0; i < 5; i++ {
		resp, _ := env.publish(t, key, fmt.Sprintf("path-%d", i), "1.0.0", sampleDoc)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := env.get(t, "/api/v1/golden-paths?per_page=2&page=2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(5), body["total_count"])
	assert.Equal(t, float64(3), body["total_pages"])
	assert.Equal(t, true, body["has_next"])
	assert.Equal(t, true, body["has_prev"])
	assert.Len(t, body["paths"], 2)

	resp, _ = env.get(t, "/api/v1/golden-paths?page=0", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = env.get(t, "/api/v1/golden-paths?sort_by=bogus", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestListNamespaceFilter(t *testing.T) {
	env := newAPIEnv(t)
	alice := env.newUserKey(t, "alice", "@alice")
	bob := env.newUserKey(t, "bob", "@bob")

	resp, _ := env.publish(t, alice, "deploy", "1.0.0", sampleDoc)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.publish(t, bob, "deploy", "1.0.0", sampleDoc)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.get(t, "/api/v1/golden-paths?namespace="+url.QueryEscape("@alice"), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["total_count"])
}

func TestSearch(t *testing.T) {
	env := newAPIEnv(t)
	key := env.newUserKey(t, "alice", "@alice")

	resp, _ := env.publish(t, key, "deploy-service", "1.0.0", sampleDoc)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.publish(t, key, "rotate-secrets", "1.0.0", sampleDoc)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.get(t, "/api/v1/search?q=rotate", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	results := body["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, "rotate-secrets", first["name"])
}

func TestDeleteOwnership(t *testing.T) {
	env := newAPIEnv(t)
	alice := env.newUserKey(t, "alice", "@alice")
	bob := env.newUserKey(t, "bob", "@bob")

	resp, _ := env.publish(t, alice, "deploy", "1.0.0", sampleDoc)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.delete(t, "/api/v1/golden-paths/@alice/deploy?version=1.0.0", bob)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.delete(t, "/api/v1/golden-paths/@alice/deploy?version=1.0.0", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := env.delete(t, "/api/v1/golden-paths/@alice/deploy?version=1.0.0", alice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []any{"1.0.0"}, body["deleted"])

	resp, _ = env.get(t, "/api/v1/golden-paths/@alice/deploy?version=1.0.0", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteAllVersions(t *testing.T) {
	env := newAPIEnv(t)
	key := env.newUserKey(t, "alice", "@alice")

	for _, v := range []string{"1.0.0", "2.0.0"} {
		resp, _ := env.publish(t, key, "deploy", v, sampleDoc)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := env.delete(t, "/api/v1/golden-paths/@alice/deploy", key)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["deleted"], 2)
	assert.Contains(t, body["message"], "all versions")

	resp, _ = env.get(t, "/api/v1/golden-paths/@alice/deploy", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIKeyLifecycle(t *testing.T) {
	env := newAPIEnv(t)
	key := env.newUserKey(t, "alice", "@alice")

	// Mint a second key.
	payload := bytes.NewBufferString(`{"name":"ci","scopes":["read"]}`)
	req, err := http.NewRequest(http.MethodPost, env.ts.URL+"/api/v1/users/me/api-keys/", payload)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, body := env.do(t, req, key)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	minted := body["api_key"].(string)
	keyID := body["key_id"].(string)
	assert.Contains(t, minted, "gp_live_")
	assert.NotEqual(t, minted, body["key_prefix"])

	resp, body = env.get(t, "/api/v1/users/me/api-keys/", key)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["total"])
	// Stored keys never expose a hash or plaintext.
	for _, k := range body["api_keys"].([]any) {
		entry := k.(map[string]any)
		assert.NotContains(t, entry, "key_hash")
	}

	resp, _ = env.delete(t, "/api/v1/users/me/api-keys/"+keyID, key)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = env.delete(t, "/api/v1/users/me/api-keys/"+keyID, key)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "API key not found or already deleted", body["detail"])
}

func TestAPIKeysRequireAuth(t *testing.T) {
	env := newAPIEnv(t)

	resp, _ := env.get(t, "/api/v1/users/me/api-keys/", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
