// Package chat sequences a conversation turn: load the bounded history,
// generate a reply, persist the user/assistant message pair.
package chat

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/botgpt/botgpt/pkg/llm"
	"github.com/botgpt/botgpt/pkg/logging"
	"github.com/botgpt/botgpt/pkg/metrics"
	"github.com/botgpt/botgpt/pkg/models"
	"github.com/botgpt/botgpt/pkg/store"
)

// FallbackReply is returned to the end user when generation fails. The turn
// is still persisted; the underlying cause is reported, not stored.
const FallbackReply = "Sorry, I encountered an error processing your request. Please try again."

// Config holds pipeline configuration
type Config struct {
	// SystemPrompt for the assistant persona
	SystemPrompt string

	// Model requested from the generation service
	Model string

	// HistoryWindow is the number of recent messages given as context
	HistoryWindow int

	// LLM parameters
	Temperature *float64
	MaxTokens   *int
}

// Pipeline runs conversation turns against a store and an LLM client
type Pipeline struct {
	store  *store.Store
	client llm.Client
	config Config
}

// NewPipeline creates a pipeline instance
func NewPipeline(st *store.Store, client llm.Client, cfg Config) *Pipeline {
	// Set defaults
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = SystemPrompt
	}
	if cfg.HistoryWindow == 0 {
		cfg.HistoryWindow = defaultHistoryWindow
	}
	if cfg.Temperature == nil {
		cfg.Temperature = float64Ptr(0.7)
	}
	if cfg.MaxTokens == nil {
		cfg.MaxTokens = intPtr(1024)
	}

	return &Pipeline{
		store:  st,
		client: client,
		config: cfg,
	}
}

// Result is the terminal output of a turn. The pipeline always produces a
// reply string; Cause is set when the turn degraded to the fallback.
type Result struct {
	Reply            string
	UserMessage      models.Message
	AssistantMessage models.Message
	Cause            error
}

// Degraded reports whether the reply is the fallback rather than a
// generated answer
func (r Result) Degraded() bool {
	return r.Cause != nil
}

// turnState is the record threaded through the pipeline stages
type turnState struct {
	conversationID uuid.UUID
	userMessage    string
	history        []llm.Message
	reply          string
	usage          llm.Usage
	cause          error
}

type stage func(context.Context, turnState) turnState

// Run executes one turn: loadHistory -> generateReply -> persistTurn.
// No stage aborts the flow; failures degrade the reply and are carried in
// Result.Cause. Only a persistence failure is returned as an error.
func (p *Pipeline) Run(ctx context.Context, conversationID uuid.UUID, userMessage string) (Result, error) {
	state := turnState{
		conversationID: conversationID,
		userMessage:    userMessage,
	}
	for _, step := range []stage{p.loadHistory, p.generateReply} {
		state = step(ctx, state)
	}

	userMsg, assistantMsg, err := p.CompleteTurn(ctx, conversationID, userMessage, state.reply, state.usage)
	if err != nil {
		return Result{}, err
	}

	metrics.ObserveTurn(state.cause != nil)

	return Result{
		Reply:            state.reply,
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Cause:            state.cause,
	}, nil
}

// loadHistory reads the bounded history. A read failure is recorded and the
// turn continues with an empty history.
func (p *Pipeline) loadHistory(ctx context.Context, state turnState) turnState {
	messages, err := p.store.RecentMessages(state.conversationID, p.config.HistoryWindow)
	if err != nil {
		logging.Errorf(err, "Failed loading history for conversation %s", state.conversationID)
		state.history = nil
		state.cause = err
		return state
	}

	history := make([]llm.Message, len(messages))
	for i, msg := range messages {
		history[i] = llm.Message{Role: string(msg.Role), Content: msg.Content}
	}
	state.history = history

	logging.Debugf("Loaded %d messages of history for conversation %s", len(history), state.conversationID)
	return state
}

// generateReply calls the generation service. When an earlier stage already
// failed it passes through straight to the fallback; a generation failure
// likewise substitutes the fallback and records the cause.
func (p *Pipeline) generateReply(ctx context.Context, state turnState) turnState {
	if state.cause != nil {
		state.reply = FallbackReply
		return state
	}

	response, err := p.client.Chat(ctx, llm.ChatRequest{
		Model:       p.config.Model,
		Messages:    buildMessages(p.config.SystemPrompt, state.history, state.userMessage, p.config.HistoryWindow),
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	})
	if err != nil {
		logging.Errorf(err, "Failed generating reply for conversation %s", state.conversationID)
		metrics.ObserveGenerationFailure()
		state.reply = FallbackReply
		state.cause = err
		return state
	}

	state.reply = response.Message.Content
	state.usage = response.Usage
	return state
}

// CompleteTurn persists one user/assistant message pair, refreshes the
// conversation's updated_at and sets the title on the first turn. It is the
// only place a turn is written; the synchronous, SSE and WebSocket paths
// all funnel through it.
func (p *Pipeline) CompleteTurn(ctx context.Context, conversationID uuid.UUID, userMessage, reply string, usage llm.Usage) (models.Message, models.Message, error) {
	userMsg, err := p.store.CreateMessage(conversationID, models.MessageRoleUser, userMessage, usage.PromptTokens)
	if err != nil {
		return models.Message{}, models.Message{}, errors.Wrap(err, "failed saving user message")
	}

	assistantMsg, err := p.store.CreateMessage(conversationID, models.MessageRoleAssistant, reply, usage.CompletionTokens)
	if err != nil {
		return models.Message{}, models.Message{}, errors.Wrap(err, "failed saving assistant message")
	}

	conversation, err := p.store.GetConversation(conversationID)
	if err != nil {
		logging.Errorf(err, "Failed reloading conversation %s after turn", conversationID)
		return userMsg, assistantMsg, nil
	}
	if conversation.Title == models.DefaultConversationTitle {
		title := TitleFromMessage(userMessage)
		if err := p.store.UpdateConversationTitle(conversationID, title); err != nil {
			logging.Errorf(err, "Failed updating title for conversation %s", conversationID)
		} else {
			logging.Debugf("Set title for conversation %s: %q", conversationID, title)
		}
	}

	return userMsg, assistantMsg, nil
}

// OpenStream starts a streaming generation for one turn. The caller is
// responsible for accumulating the chunks and finishing the turn through
// CompleteTurn.
func (p *Pipeline) OpenStream(ctx context.Context, conversationID uuid.UUID, userMessage string) (<-chan llm.StreamChunk, error) {
	state := p.loadHistory(ctx, turnState{
		conversationID: conversationID,
		userMessage:    userMessage,
	})

	return p.client.ChatStream(ctx, llm.ChatRequest{
		Model:       p.config.Model,
		Messages:    buildMessages(p.config.SystemPrompt, state.history, userMessage, p.config.HistoryWindow),
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
		Stream:      true,
	})
}

func float64Ptr(f float64) *float64 {
	return &f
}

func intPtr(i int) *int {
	return &i
}
