package database

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tax-intake/internal/common/config"
)

type esRequest struct {
	method string
	path   string
	body   string
}

func fakeElasticsearch(t *testing.T, existsStatus, createStatus int) (*ElasticsearchClient, *[]esRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []esRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, esRequest{method: r.Method, path: r.URL.Path, body: string(body)})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(existsStatus)
		case http.MethodPut:
			w.WriteHeader(createStatus)
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		default:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(server.Close)

	client, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{server.URL}})
	require.NoError(t, err)
	return client, &requests
}

func TestEnsureIndex_CreatesMissingIndex(t *testing.T) {
	client, requests := fakeElasticsearch(t, http.StatusNotFound, http.StatusOK)

	err := client.EnsureIndex(context.Background(), "questionnaire-events", EventIndexMapping)
	require.NoError(t, err)

	require.Len(t, *requests, 2)
	assert.Equal(t, http.MethodHead, (*requests)[0].method)
	assert.Equal(t, http.MethodPut, (*requests)[1].method)
	assert.Equal(t, "/questionnaire-events", (*requests)[1].path)
	assert.Contains(t, (*requests)[1].body, `"occurredAt": {"type": "date"}`)
}

func TestEnsureIndex_ExistingIndexUntouched(t *testing.T) {
	client, requests := fakeElasticsearch(t, http.StatusOK, http.StatusOK)

	require.NoError(t, client.EnsureIndex(context.Background(), "questionnaire-events", EventIndexMapping))
	assert.Len(t, *requests, 1)
}

func TestEnsureIndex_CreateRace(t *testing.T) {
	client, _ := fakeElasticsearch(t, http.StatusNotFound, http.StatusBadRequest)

	assert.NoError(t, client.EnsureIndex(context.Background(), "questionnaire-events", EventIndexMapping))
}

func TestEnsureIndex_Failure(t *testing.T) {
	client, _ := fakeElasticsearch(t, http.StatusInternalServerError, http.StatusOK)

	err := client.EnsureIndex(context.Background(), "questionnaire-events", EventIndexMapping)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check index")
}

func TestRedis_Ping(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewRedis(config.RedisConfig{Address: mr.Addr()})
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))

	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}
