package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botgpt/botgpt/internal/testutils"
	"github.com/botgpt/botgpt/pkg/llm"
)

func TestListModels(t *testing.T) {
	fake := &testutils.FakeLLM{
		Models: []llm.Model{
			{ID: "llama3-70b-8192", Name: "llama3-70b-8192"},
			{ID: "llama3-8b-8192", Name: "llama3-8b-8192"},
		},
	}
	srv, _ := testutils.GetTestMockServer(t, fake)

	req := httptest.NewRequest("GET", "/api/models", nil)
	w := httptest.NewRecorder()
	srv.Mux().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Models []llm.Model `json:"models"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Models, 2)
	assert.Equal(t, "llama3-70b-8192", resp.Models[0].ID)
}

func TestListModels_SecondCallServedFromCache(t *testing.T) {
	fake := &testutils.FakeLLM{
		Models: []llm.Model{{ID: "llama3-70b-8192", Name: "llama3-70b-8192"}},
	}
	srv, _ := testutils.GetTestMockServer(t, fake)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/api/models", nil)
		w := httptest.NewRecorder()
		srv.Mux().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	// A failing provider no longer matters, the cache keeps serving
	fake.Err = assert.AnError
	req := httptest.NewRequest("GET", "/api/models", nil)
	w := httptest.NewRecorder()
	srv.Mux().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListModels_ProviderFailure(t *testing.T) {
	fake := &testutils.FakeLLM{Err: assert.AnError}
	srv, _ := testutils.GetTestMockServer(t, fake)

	req := httptest.NewRequest("GET", "/api/models", nil)
	w := httptest.NewRecorder()
	srv.Mux().ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
