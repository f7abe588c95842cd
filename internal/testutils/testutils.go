// Package testutils holds shared test fixtures: an in-memory store, a fake
// generation client and a fully routed test server.
package testutils

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/cors"

	"github.com/botgpt/botgpt/pkg/chat"
	"github.com/botgpt/botgpt/pkg/config"
	"github.com/botgpt/botgpt/pkg/llm"
	"github.com/botgpt/botgpt/pkg/metrics"
	"github.com/botgpt/botgpt/pkg/models"
	"github.com/botgpt/botgpt/pkg/server"
	"github.com/botgpt/botgpt/pkg/store"
)

// FakeLLM implements llm.Client for tests. It records every request it
// receives and plays back canned replies.
type FakeLLM struct {
	Reply      string
	Err        error
	StreamToks []string
	StreamErr  error
	Models     []llm.Model

	Requests []llm.ChatRequest
}

// Chat records the request and returns the canned reply
func (f *FakeLLM) Chat(ctx context.Context, request llm.ChatRequest) (*llm.ChatResponse, error) {
	f.Requests = append(f.Requests, request)
	if f.Err != nil {
		return nil, f.Err
	}
	return &llm.ChatResponse{
		ID:      "fake-completion",
		Model:   request.Model,
		Message: llm.Message{Role: llm.RoleAssistant, Content: f.Reply},
		Usage:   llm.Usage{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 8},
	}, nil
}

// ChatStream records the request and plays back StreamToks as chunks
func (f *FakeLLM) ChatStream(ctx context.Context, request llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	f.Requests = append(f.Requests, request)
	if f.Err != nil {
		return nil, f.Err
	}

	chunkChan := make(chan llm.StreamChunk, len(f.StreamToks)+1)
	go func() {
		defer close(chunkChan)
		for _, tok := range f.StreamToks {
			chunkChan <- llm.StreamChunk{
				ID:    "fake-stream",
				Model: request.Model,
				Delta: llm.Delta{Content: tok},
			}
		}
		if f.StreamErr != nil {
			chunkChan <- llm.StreamChunk{Error: f.StreamErr, Done: true}
			return
		}
		chunkChan <- llm.StreamChunk{
			ID:    "fake-stream",
			Model: request.Model,
			Usage: llm.Usage{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 8},
			Done:  true,
		}
	}()
	return chunkChan, nil
}

// ListModels returns the canned model list
func (f *FakeLLM) ListModels(ctx context.Context) ([]llm.Model, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Models, nil
}

// GetRequestPayload converts a given object into a reader of that obect as json payload
func GetRequestPayload(payload interface{}) io.Reader {
	bytes, _ := json.Marshal(payload)
	return strings.NewReader(string(bytes))
}

// GetTestMockServer creates the mocked server for tests, backed by an
// in-memory store and the given fake client
func GetTestMockServer(t *testing.T, client llm.Client) (*server.Server, *store.Store) {
	st := store.New(models.InitializeTestDB(t))
	pipeline := chat.NewPipeline(st, client, chat.Config{Model: "test-model"})

	corsOptions := config.CorsConfig([]string{"localhost"})
	srv := server.NewServer("TEST_SERVER", cors.New(corsOptions), 4, 10*time.Second)

	server.SetupRoutes(srv.Mux(), st, pipeline, client)
	metrics.AddBuildInfoMetric()
	metrics.RegisterTurnMetrics()
	return srv, st
}
