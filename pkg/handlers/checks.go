package handlers

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"

	"github.com/botgpt/botgpt/pkg/logging"
	"github.com/botgpt/botgpt/pkg/store"
)

// ChecksHandler is the handler responsible for k8s checks
type ChecksHandler struct {
	store *store.Store
}

// NewChecksHandler initializes a new handler
func NewChecksHandler(st *store.Store) *ChecksHandler {
	return &ChecksHandler{store: st}
}

// Routes returns the routes for the ChecksHandler
func (e *ChecksHandler) Routes() *chi.Mux {
	router := chi.NewRouter()
	router.Get("/liveness", e.Liveness)
	router.Get("/readiness", e.Readiness)
	return router
}

// Health is a plain health endpoint for clients and load balancers
func (e *ChecksHandler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "healthy"})
}

// Liveness is a check that describes if the application has started
func (e *ChecksHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	// We use the stricter readiness check also for liveness to make
	// K8s restart the pod if something is wrong with the DB connection.
	e.Readiness(w, r)
}

// Readiness is a check if application can handle requests
func (e *ChecksHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if err := e.store.Ping(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, err := w.Write([]byte("OK"))
	if err != nil {
		logging.Errorf(err, "Error writing OK to response body")
	}
}
