package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/sidechain/ranking/internal/cli/client"
	"github.com/zfogg/sidechain/ranking/internal/cli/config"
)

// serve points the client at handler for the duration of the test
func serve(t *testing.T, actor string, handler http.HandlerFunc) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	require.NoError(t, config.Init(filepath.Join(t.TempDir(), "config.toml")))
	config.Set("api.base_url", srv.URL)
	config.Set("api.user_id", actor)
	client.Reset()
	t.Cleanup(client.Reset)
}

func TestGetTrendingHashtags(t *testing.T) {
	serve(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/trending/hashtags", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Empty(t, r.URL.Query().Get("timeframe"), "zero timeframe keeps the server default")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":"h1","name":"synthwave","score":12.5,"rank":1}],"cached":true,"degraded":false}`))
	})

	res, err := GetTrendingHashtags(ListParams{Limit: 5})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "synthwave", res.Items[0].Name)
	assert.True(t, res.Cached)
}

func TestParseError_Degraded(t *testing.T) {
	serve(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"code":"SERVICE_UNAVAILABLE","message":"engagement store is temporarily unavailable","degraded":true,"items":[]}`))
	})

	_, err := GetTrendingUsers(ListParams{})
	require.Error(t, err)
	assert.True(t, IsDegraded(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "SERVICE_UNAVAILABLE", apiErr.Code)
}

func TestParseError_InvalidParameter(t *testing.T) {
	serve(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"INVALID_PARAMETER","message":"must be between 1 and 168","field":"hours"}`))
	})

	_, err := GetTrendVelocity("hashtag", "synthwave", 500)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "hours", apiErr.Field)
	assert.False(t, IsDegraded(err))
}

func TestMutationsSendActor(t *testing.T) {
	serve(t, "u1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "u1", r.Header.Get(client.ActorHeader))
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/v1/posts/p9/like", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"liked":false,"changed":true}`))
	})

	changed, err := UnlikePost("p9")
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestInvalidateCache(t *testing.T) {
	serve(t, "", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"deleted":3,"patterns":["trending:*"]}`))
	})

	deleted, err := InvalidateCache([]string{"trending:*"})
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
}

func TestGetHealth_Unhealthy(t *testing.T) {
	serve(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unhealthy","checks":{"database":"dial tcp: refused","redis":"ok"}}`))
	})

	health, err := GetHealth()
	require.Error(t, err)
	require.NotNil(t, health)
	assert.Equal(t, "dial tcp: refused", health.Checks["database"])
}

func TestIsNotFound(t *testing.T) {
	serve(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"NOT_FOUND","message":"post not found"}`))
	})

	_, err := GetPost("missing")
	assert.True(t, IsNotFound(err))
}
