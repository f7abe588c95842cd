package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	gocache "github.com/patrickmn/go-cache"
	"github.com/spf13/viper"

	"github.com/botgpt/botgpt/pkg/llm"
	"github.com/botgpt/botgpt/pkg/logging"
)

const modelCacheKey = "models"

// ModelsHandler exposes the provider's model catalog. The upstream list is
// cached so browsing the model picker does not hammer the provider.
type ModelsHandler struct {
	client llm.Client
	cache  *gocache.Cache
}

// NewModelsHandler creates a new models handler
func NewModelsHandler(client llm.Client) *ModelsHandler {
	ttl, err := time.ParseDuration(viper.GetString("MODEL_CACHE_TTL"))
	if err != nil {
		ttl = 5 * time.Minute
	}
	return &ModelsHandler{
		client: client,
		cache:  gocache.New(ttl, 10*time.Minute),
	}
}

// Routes returns model routes
func (h *ModelsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListModels)

	return r
}

// ListModels returns the models available at the provider
func (h *ModelsHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	if cached, found := h.cache.Get(modelCacheKey); found {
		render.JSON(w, r, map[string]interface{}{"models": cached})
		return
	}

	models, err := h.client.ListModels(r.Context())
	if err != nil {
		logging.Errorf(err, "Failed to list models")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Failed to list models"})
		return
	}

	h.cache.SetDefault(modelCacheKey, models)
	render.JSON(w, r, map[string]interface{}{"models": models})
}
