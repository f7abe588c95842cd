package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/botgpt/botgpt/pkg/chat"
	"github.com/botgpt/botgpt/pkg/llm"
	"github.com/botgpt/botgpt/pkg/logging"
	"github.com/botgpt/botgpt/pkg/models"
	"github.com/botgpt/botgpt/pkg/store"
)

// MessagesHandler handles message endpoints nested under a conversation
type MessagesHandler struct {
	store    *store.Store
	pipeline *chat.Pipeline
	upgrader websocket.Upgrader
}

// NewMessagesHandler creates a new messages handler
func NewMessagesHandler(st *store.Store, pipeline *chat.Pipeline) *MessagesHandler {
	return &MessagesHandler{
		store:    st,
		pipeline: pipeline,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}
}

// Routes returns message routes
func (h *MessagesHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListMessages)
	r.Post("/", h.SendMessage)
	r.Post("/stream", h.StreamMessage)
	r.Get("/ws", h.StreamWS)

	return r
}

// SendMessageRequest represents a request to send a message
type SendMessageRequest struct {
	Message string `json:"message"`
}

// SendMessageResponse represents the response to sending a message
type SendMessageResponse struct {
	Response         string         `json:"response"`
	UserMessage      models.Message `json:"userMessage"`
	AssistantMessage models.Message `json:"aiMessage"`
}

// ListMessages returns all messages in a conversation in chronological order
func (h *MessagesHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	convID, ok := h.conversationFromURL(w, r)
	if !ok {
		return
	}

	messages, err := h.store.Messages(convID)
	if err != nil {
		logging.Errorf(err, "Failed to list messages")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to list messages"})
		return
	}

	render.JSON(w, r, messages)
}

// SendMessage appends a user message to the conversation and returns the
// generated reply together with both persisted messages
func (h *MessagesHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	convID, ok := h.conversationFromURL(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Invalid request body"})
		return
	}

	if req.Message == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Message is required"})
		return
	}

	result, err := h.pipeline.Run(r.Context(), convID, req.Message)
	if err != nil {
		logging.Errorf(err, "Failed to process message")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to process message"})
		return
	}

	logging.Debugf("Message processed: conversation=%s degraded=%t", convID, result.Degraded())

	render.JSON(w, r, SendMessageResponse{
		Response:         result.Reply,
		UserMessage:      result.UserMessage,
		AssistantMessage: result.AssistantMessage,
	})
}

// StreamMessage streams the reply token by token as server-sent events and
// persists the full turn once the stream ends. The stream is terminated
// with a literal [DONE] frame.
func (h *MessagesHandler) StreamMessage(w http.ResponseWriter, r *http.Request) {
	convID, ok := h.conversationFromURL(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.Message == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Message is required"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	streamChan, err := h.pipeline.OpenStream(r.Context(), convID, req.Message)
	if err != nil {
		logging.Errorf(err, "Failed to start stream for conversation %s", convID)
		writeSSE(w, flusher, map[string]string{"error": "Failed to generate response"})
		fmt.Fprintf(w, "data: [DONE]\n\n")
		flusher.Flush()
		return
	}

	var content strings.Builder
	var usage llm.Usage
	failed := false
	for chunk := range streamChan {
		if chunk.Error != nil {
			logging.Errorf(chunk.Error, "Stream failed for conversation %s", convID)
			writeSSE(w, flusher, map[string]string{"error": "Failed to generate response"})
			failed = true
			break
		}
		if chunk.Usage.TotalTokens > 0 {
			usage = chunk.Usage
		}
		if chunk.Delta.Content != "" {
			content.WriteString(chunk.Delta.Content)
			writeSSE(w, flusher, map[string]string{"token": chunk.Delta.Content})
		}
	}

	reply := content.String()
	if failed || reply == "" {
		reply = chat.FallbackReply
	}

	// The client connection may be gone; persist with a fresh context.
	if _, _, err := h.pipeline.CompleteTurn(context.Background(), convID, req.Message, reply, usage); err != nil {
		logging.Errorf(err, "Failed to persist streamed turn for conversation %s", convID)
	}

	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// StreamWS streams replies over a WebSocket connection. Each incoming JSON
// frame {"message": ...} runs one turn; tokens are forwarded as they arrive.
func (h *MessagesHandler) StreamWS(w http.ResponseWriter, r *http.Request) {
	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}
	if _, err := h.store.GetConversation(convID); err != nil {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Errorf(err, "Failed to upgrade to WebSocket")
		return
	}
	defer conn.Close()

	logging.Debugf("WebSocket connection established: conversation=%s", convID)

	for {
		var req SendMessageRequest
		err := conn.ReadJSON(&req)
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debugf("WebSocket closed normally")
			} else {
				logging.Errorf(err, "WebSocket read error")
			}
			break
		}

		if req.Message == "" {
			conn.WriteJSON(map[string]string{"error": "Message is required"})
			continue
		}

		streamChan, err := h.pipeline.OpenStream(context.Background(), convID, req.Message)
		if err != nil {
			conn.WriteJSON(map[string]string{"error": "Failed to generate response"})
			continue
		}

		var content strings.Builder
		var usage llm.Usage
		failed := false
		for chunk := range streamChan {
			if chunk.Error != nil {
				conn.WriteJSON(map[string]interface{}{
					"type":  "error",
					"error": chunk.Error.Error(),
				})
				failed = true
				break
			}
			if chunk.Usage.TotalTokens > 0 {
				usage = chunk.Usage
			}
			if chunk.Delta.Content != "" {
				content.WriteString(chunk.Delta.Content)
				conn.WriteJSON(map[string]interface{}{
					"type":    "content",
					"content": chunk.Delta.Content,
				})
			}
		}

		reply := content.String()
		if failed || reply == "" {
			reply = chat.FallbackReply
		}

		userMsg, assistantMsg, err := h.pipeline.CompleteTurn(context.Background(), convID, req.Message, reply, usage)
		if err != nil {
			logging.Errorf(err, "Failed to persist streamed turn for conversation %s", convID)
			conn.WriteJSON(map[string]string{"error": "Failed to save messages"})
			continue
		}

		conn.WriteJSON(map[string]interface{}{
			"type":        "done",
			"userMessage": userMsg,
			"aiMessage":   assistantMsg,
		})
	}
}

// conversationFromURL parses and validates the conversation from the URL,
// writing the error response itself when the lookup fails
func (h *MessagesHandler) conversationFromURL(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Invalid conversation ID"})
		return uuid.Nil, false
	}

	if _, err := h.store.GetConversation(convID); err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Conversation not found"})
			return uuid.Nil, false
		}
		logging.Errorf(err, "Failed to get conversation")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to get conversation"})
		return uuid.Nil, false
	}

	return convID, true
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Errorf(err, "Failed to marshal SSE payload")
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
