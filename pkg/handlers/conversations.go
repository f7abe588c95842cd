package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/botgpt/botgpt/pkg/chat"
	"github.com/botgpt/botgpt/pkg/logging"
	"github.com/botgpt/botgpt/pkg/models"
	"github.com/botgpt/botgpt/pkg/store"
)

// ConversationsHandler handles conversation endpoints
type ConversationsHandler struct {
	store    *store.Store
	pipeline *chat.Pipeline
}

// NewConversationsHandler creates a new conversations handler
func NewConversationsHandler(st *store.Store, pipeline *chat.Pipeline) *ConversationsHandler {
	return &ConversationsHandler{
		store:    st,
		pipeline: pipeline,
	}
}

// Routes returns conversation routes
func (h *ConversationsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListConversations)
	r.Post("/", h.CreateConversation)
	r.Get("/{id}", h.GetConversation)
	r.Delete("/{id}", h.DeleteConversation)

	return r
}

// CreateConversationRequest represents a request to create a conversation
// with an opening message
type CreateConversationRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
	Mode    string `json:"mode"`
}

// CreateConversationResponse is returned after the first turn completed
type CreateConversationResponse struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Response       string    `json:"response"`
}

// CreateConversation creates a new conversation and runs the first turn
// with the opening message
func (h *ConversationsHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
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

	mode := models.ConversationMode(req.Mode)
	if req.Mode == "" {
		mode = models.ModeOpen
	}
	if !mode.Valid() {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Invalid conversation mode"})
		return
	}

	user, err := h.resolveUser(req.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "User not found"})
			return
		}
		logging.Errorf(err, "Failed to resolve user")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to resolve user"})
		return
	}

	conversation, err := h.store.CreateConversation(user.ID, mode)
	if err != nil {
		logging.Errorf(err, "Failed to create conversation")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to create conversation"})
		return
	}

	result, err := h.pipeline.Run(r.Context(), conversation.ID, req.Message)
	if err != nil {
		logging.Errorf(err, "Failed to process opening message")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to process message"})
		return
	}

	logging.Debugf("Created conversation: %s for user: %s", conversation.ID, user.ID)

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, CreateConversationResponse{
		ConversationID: conversation.ID,
		Response:       result.Reply,
	})
}

// ListConversations returns all conversations for a user, most recently
// updated first. Without a user_id query parameter the demo user is assumed.
func (h *ConversationsHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user, err := h.resolveUser(r.URL.Query().Get("user_id"))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "User not found"})
			return
		}
		logging.Errorf(err, "Failed to resolve user")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to resolve user"})
		return
	}

	conversations, err := h.store.ListConversations(user.ID)
	if err != nil {
		logging.Errorf(err, "Failed to list conversations")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to list conversations"})
		return
	}

	render.JSON(w, r, conversations)
}

// GetConversation returns a specific conversation with its full history
func (h *ConversationsHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Invalid conversation ID"})
		return
	}

	conversation, err := h.store.GetConversationWithMessages(convID)
	if err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Conversation not found"})
			return
		}
		logging.Errorf(err, "Failed to get conversation")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to get conversation"})
		return
	}

	render.JSON(w, r, conversation)
}

// DeleteConversation deletes a conversation and all of its messages
func (h *ConversationsHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	convID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Invalid conversation ID"})
		return
	}

	if err := h.store.DeleteConversation(convID); err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Conversation not found"})
			return
		}
		logging.Errorf(err, "Failed to delete conversation")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to delete conversation"})
		return
	}

	logging.Debugf("Deleted conversation: %s", convID)

	render.JSON(w, r, map[string]interface{}{
		"success": true,
		"message": "Conversation deleted",
	})
}

// resolveUser looks up the user by ID, falling back to the demo user when
// no ID is given
func (h *ConversationsHandler) resolveUser(userID string) (models.User, error) {
	if userID == "" {
		return h.store.FindUserByEmail(viper.GetString("DEMO_USER_EMAIL"))
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return models.User{}, store.ErrUserNotFound
	}
	return h.store.FindUserByID(id)
}
