package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readwell/tomes"
	"github.com/readwell/tomes/pkg/config"
	"github.com/readwell/tomes/pkg/embedder"
	"github.com/readwell/tomes/pkg/ingest"
	"github.com/readwell/tomes/pkg/types"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Storage:   config.StorageConfig{InMemory: true},
		Graph:     config.GraphConfig{Backend: "memory"},
		Embedding: config.EmbeddingConfig{Provider: "hash", Dimensions: 64},
		Synthesis: config.SynthesisConfig{Provider: "none"},
		Ingest:    config.IngestConfig{ChunkSize: 200, ChunkOverlap: 40, Workers: 2},
		Server:    config.ServerConfig{Host: "localhost", Port: 0, Mode: gin.TestMode},
	}

	ctx := context.Background()
	lib, err := tomes.Open(ctx, cfg, nil, tomes.WithEmbedder(embedder.NewHashEmbedder(64)))
	require.NoError(t, err)
	t.Cleanup(func() { lib.Close(ctx) })

	_, err = lib.AddBook(ctx, &types.Book{
		Slug: "whole-brain-child", Title: "The Whole-Brain Child",
		Author: "Daniel J. Siegel", Subject: "parenting",
	}, []ingest.ChapterText{
		{Number: 1, Title: "Two Brains", Text: "When a child is upset, connect with the right brain first. " +
			"Emotion coaching means acknowledging the feeling before correcting the behavior."},
	})
	require.NoError(t, err)

	curationYAML := `source: whole-brain-child
concepts:
  - id: emotion-coaching
    name: Emotion Coaching
    chunks: [whole-brain-child-ch1-0001]
topics:
  - slug: emotion-coaching
    name: Emotion Coaching
    subject: parenting
`
	path := filepath.Join(t.TempDir(), "wbc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(curationYAML), 0o644))
	_, err = lib.Curate(ctx, path)
	require.NoError(t, err)

	srv := New(cfg, lib, nil)
	srv.Setup()
	return srv
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSearchEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/search",
		`{"query": "emotion coaching for an upset child", "detail": "summaries", "limit": 5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp types.RetrievalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, types.StateCompleted, resp.State)
	assert.NotEmpty(t, resp.Entries)
}

func TestSearchEndpointRejectsEmptyQuery(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/search", `{"query": "   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchEndpointRejectsUnknownSource(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodPost, "/api/v1/search",
		`{"query": "discipline", "sources": ["no-such-book"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdviseEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/advise",
		`{"question": "how do I help an upset child with emotion coaching"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var advice struct {
		Narrative string `json:"narrative"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &advice))
	assert.NotEmpty(t, advice.Narrative)
}

func TestTraceEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/trace",
		`{"concept": "emotion-coaching", "depth": 1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	missing := doRequest(t, srv, http.MethodPost, "/api/v1/trace",
		`{"concept": "does-not-exist"}`)
	assert.Equal(t, http.StatusNotFound, missing.Code)

	badKind := doRequest(t, srv, http.MethodPost, "/api/v1/trace",
		`{"concept": "emotion-coaching", "relationships": ["friends-with"]}`)
	assert.Equal(t, http.StatusBadRequest, badKind.Code)
}

func TestCompareEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/compare",
		`{"topic": "emotion coaching"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result struct {
		UniqueInsights map[string][]string `json:"unique_insights"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Contains(t, result.UniqueInsights, "whole-brain-child")
}

func TestExploreEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/explore?detail=summaries", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Kind    string `json:"kind"`
		Entries []struct {
			Name string `json:"name"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "subjects", result.Kind)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "parenting", result.Entries[0].Name)

	unknown := doRequest(t, srv, http.MethodGet, "/api/v1/explore?path=astrology", "")
	assert.Equal(t, http.StatusBadRequest, unknown.Code)
}

func TestTopicsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/topics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Topics []types.Topic `json:"topics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Topics, 1)
	assert.Equal(t, "emotion-coaching", resp.Topics[0].Slug)
}

func TestSearchEndpointTopicScope(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/search",
		`{"query": "emotion coaching for an upset child", "topics": ["emotion-coaching"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp types.RetrievalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Entries)

	unknown := doRequest(t, srv, http.MethodPost, "/api/v1/search",
		`{"query": "anything", "topics": ["numerology"]}`)
	assert.Equal(t, http.StatusBadRequest, unknown.Code)
}

func TestBooksEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/books", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Books []types.Book `json:"books"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Books, 1)
	assert.Equal(t, "whole-brain-child", resp.Books[0].Slug)
}
