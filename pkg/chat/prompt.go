package chat

import (
	"github.com/botgpt/botgpt/pkg/llm"
)

// SystemPrompt is the fixed instruction sent with every generation request.
const SystemPrompt = `You are BOT GPT, a helpful and knowledgeable AI assistant.
You provide clear, accurate, and helpful responses to user questions.
You are friendly but professional, and you aim to be concise while being thorough.
If you don't know something, you say so honestly.`

// defaultHistoryWindow is the number of recent messages kept as context.
const defaultHistoryWindow = 10

// windowHistory returns at most the last limit entries of history in their
// original order. A limit <= 0 disables the window.
func windowHistory(history []llm.Message, limit int) []llm.Message {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}

// buildMessages assembles the prompt: system instruction, the bounded
// history, then the new user message. The window is re-applied here even if
// the caller already sliced, so an oversized history can never leak through.
func buildMessages(systemPrompt string, history []llm.Message, userMessage string, window int) []llm.Message {
	recent := windowHistory(history, window)
	messages := make([]llm.Message, 0, len(recent)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	messages = append(messages, recent...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userMessage})
	return messages
}
