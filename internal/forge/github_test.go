package forge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitHub_ListOpenPRs_FiltersByHeadPrefix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/repos/acme/widget/pulls", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"number": 1, "head": map[string]string{"ref": "release-plz-2026-07-30"}, "base": map[string]string{"ref": "main"}},
			{"number": 2, "head": map[string]string{"ref": "feature/x"}, "base": map[string]string{"ref": "main"}},
		})
	}))
	defer srv.Close()

	gh := NewGitHub(srv.URL, "acme", "widget", "tok", nil)
	prs, err := gh.ListOpenPRs(context.Background(), "release-plz-")
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Equal(t, 1, prs[0].Number)
}

func TestGitHub_AddLabels_PostsNamesDirectly(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gh := NewGitHub(srv.URL, "acme", "widget", "tok", nil)
	err := gh.AddLabels(context.Background(), 7, []string{"release"})
	require.NoError(t, err)
	assert.Equal(t, "/repos/acme/widget/issues/7/labels", gotPath)
	assert.Equal(t, []any{"release"}, gotBody["labels"])
}

func TestGitHub_CreateRelease_MakeLatestAsString(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gh := NewGitHub(srv.URL, "acme", "widget", "tok", nil)
	makeLatest := true
	err := gh.CreateRelease(context.Background(), ReleaseInput{TagName: "v1.0.0", MakeLatest: &makeLatest})
	require.NoError(t, err)
	assert.Equal(t, "true", gotBody["make_latest"])
}

func TestGitHub_ForbiddenResponseWrapsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"no access"}`))
	}))
	defer srv.Close()

	gh := NewGitHub(srv.URL, "acme", "widget", "tok", nil)
	_, err := gh.GetPR(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")
}
