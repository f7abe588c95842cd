// Package groq implements llm.Client against the Groq cloud API, which is
// OpenAI-compatible, using the official OpenAI Go SDK.
package groq

import (
	"context"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/botgpt/botgpt/pkg/llm"
	"github.com/botgpt/botgpt/pkg/logging"
)

const (
	defaultAPIBaseURL = "https://api.groq.com/openai/v1"
	defaultModel      = "llama3-70b-8192"
)

// Client implements the llm.Client interface for Groq.
type Client struct {
	model  string
	openai *openai.Client
}

// Config defines the settings for the Groq client wrapper.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewClient builds a new llm.Client backed by the Groq API. Unset fields
// fall back to viper (GROQ_API_KEY, GROQ_BASE_URL, GROQ_MODEL).
func NewClient(cfg Config) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = viper.GetString("GROQ_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = viper.GetString("GROQ_BASE_URL")
	}
	baseURL := normalizeBaseURL(cfg.BaseURL)
	if cfg.Model == "" {
		model := viper.GetString("GROQ_MODEL")
		if model == "" {
			model = defaultModel
		}
		cfg.Model = model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	opts := []option.RequestOption{
		option.WithHTTPClient(httpClient),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	opts = append(opts, option.WithBaseURL(baseURL))

	groqClient := openai.NewClient(opts...)

	logging.Debugf("Initialized Groq client (model=%s, base=%s, timeout=%s)",
		cfg.Model, baseURL, cfg.Timeout)

	return &Client{
		model:  cfg.Model,
		openai: &groqClient,
	}
}

// Chat sends a non-streaming chat completion request.
func (c *Client) Chat(ctx context.Context, request llm.ChatRequest) (*llm.ChatResponse, error) {
	if request.Model == "" {
		request.Model = c.model
	}

	params := c.buildChatParams(request)

	resp, err := c.openai.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "groq chat completion failed")
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, errors.New("groq returned an empty response")
	}

	message := convertFromAPIMessage(resp.Choices[0].Message)

	return &llm.ChatResponse{
		ID:      resp.ID,
		Model:   resp.Model,
		Message: message,
		Usage:   convertUsage(resp.Usage),
	}, nil
}

// ChatStream starts a streaming chat completion and returns incremental chunks.
func (c *Client) ChatStream(ctx context.Context, request llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	if request.Model == "" {
		request.Model = c.model
	}

	params := c.buildChatParams(request)

	stream := c.openai.Chat.Completions.NewStreaming(ctx, params)
	chunkChan := make(chan llm.StreamChunk, 10)

	go func() {
		defer close(chunkChan)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				if chunk.Usage.TotalTokens > 0 {
					chunkChan <- llm.StreamChunk{
						ID:    chunk.ID,
						Model: chunk.Model,
						Usage: convertUsage(chunk.Usage),
						Done:  true,
					}
				}
				continue
			}
			for _, choice := range chunk.Choices {
				chunkChan <- llm.StreamChunk{
					ID:    chunk.ID,
					Model: chunk.Model,
					Delta: llm.Delta{Role: choice.Delta.Role, Content: choice.Delta.Content},
					Usage: convertUsage(chunk.Usage),
					Done:  choice.FinishReason != "",
				}
			}
		}

		if err := stream.Err(); err != nil {
			chunkChan <- llm.StreamChunk{
				Error: errors.Wrap(err, "groq streaming error"),
				Done:  true,
			}
		}
	}()

	return chunkChan, nil
}

// ListModels lists the models visible to the configured API key.
func (c *Client) ListModels(ctx context.Context) ([]llm.Model, error) {
	resp, err := c.openai.Models.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list Groq models")
	}

	if resp == nil || len(resp.Data) == 0 {
		return nil, errors.New("groq returned no models")
	}

	models := make([]llm.Model, len(resp.Data))
	for i, m := range resp.Data {
		models[i] = llm.Model{
			ID:          m.ID,
			Name:        m.ID,
			Description: string(m.Object),
		}
	}
	return models, nil
}

func (c *Client) buildChatParams(req llm.ChatRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: convertMessages(req.Messages),
	}

	if req.Temperature != nil {
		params.Temperature = param.NewOpt(*req.Temperature)
	}
	if req.MaxTokens != nil {
		params.MaxTokens = param.NewOpt(int64(*req.MaxTokens))
	}
	if req.TopP != nil {
		params.TopP = param.NewOpt(*req.TopP)
	}
	if len(req.Stop) == 1 {
		params.Stop.OfString = param.NewOpt(req.Stop[0])
	} else if len(req.Stop) > 1 {
		params.Stop.OfStringArray = req.Stop
	}

	return params
}

func convertMessages(messages []llm.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			union := openai.SystemMessage(msg.Content)
			if msg.Name != "" && union.OfSystem != nil {
				union.OfSystem.Name = param.NewOpt(msg.Name)
			}
			result = append(result, union)
		case llm.RoleAssistant:
			union := openai.ChatCompletionMessageParamOfAssistant(msg.Content)
			if msg.Name != "" && union.OfAssistant != nil {
				union.OfAssistant.Name = param.NewOpt(msg.Name)
			}
			result = append(result, union)
		default:
			// user and anything unknown
			union := openai.UserMessage(msg.Content)
			if msg.Name != "" && union.OfUser != nil {
				union.OfUser.Name = param.NewOpt(msg.Name)
			}
			result = append(result, union)
		}
	}
	return result
}

func convertFromAPIMessage(msg openai.ChatCompletionMessage) llm.Message {
	return llm.Message{
		Role:    strings.ToLower(string(msg.Role)),
		Content: msg.Content,
	}
}

func convertUsage(usage openai.CompletionUsage) llm.Usage {
	return llm.Usage{
		PromptTokens:     int(usage.PromptTokens),
		CompletionTokens: int(usage.CompletionTokens),
		TotalTokens:      int(usage.TotalTokens),
	}
}

func normalizeBaseURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultAPIBaseURL
	}
	trimmed = strings.TrimRight(trimmed, "/")
	if !strings.HasSuffix(trimmed, "/v1") {
		trimmed += "/v1"
	}
	return trimmed
}
