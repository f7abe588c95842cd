package handlers

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/botgpt/botgpt/pkg/logging"
	"github.com/botgpt/botgpt/pkg/store"
)

// UsersHandler handles user management endpoints
type UsersHandler struct {
	store *store.Store
}

// NewUsersHandler creates a new users handler
func NewUsersHandler(st *store.Store) *UsersHandler {
	return &UsersHandler{
		store: st,
	}
}

// Routes returns user management routes
func (h *UsersHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListUsers)
	r.Delete("/{id}", h.DeleteUser)

	return r
}

// InitDemoUser creates the demo user if it does not exist yet and returns
// it. The endpoint is idempotent; the frontend calls it on every start.
func (h *UsersHandler) InitDemoUser(w http.ResponseWriter, r *http.Request) {
	email := viper.GetString("DEMO_USER_EMAIL")

	user, err := h.store.EnsureUser(email)
	if err != nil {
		logging.Errorf(err, "Failed to initialize demo user")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to initialize demo user"})
		return
	}

	logging.Debugf("Demo user ready: %s", user.ID)
	render.JSON(w, r, map[string]interface{}{"user": user})
}

// ListUsers returns all users in the system
func (h *UsersHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		logging.Errorf(err, "Failed to list users")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to list users"})
		return
	}

	render.JSON(w, r, users)
}

// DeleteUser deletes a user by ID together with all of their conversations
func (h *UsersHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	userID, err := uuid.Parse(idStr)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "Invalid user ID"})
		return
	}

	if err := h.store.DeleteUser(userID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "User not found"})
			return
		}
		logging.Errorf(err, "Failed to delete user")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to delete user"})
		return
	}

	logging.Debugf("User deleted successfully: %s", userID)
	w.WriteHeader(http.StatusNoContent)
}
