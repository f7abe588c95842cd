package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/botgpt/botgpt/pkg/chat"
	"github.com/botgpt/botgpt/pkg/config"
	"github.com/botgpt/botgpt/pkg/handlers"
	"github.com/botgpt/botgpt/pkg/llm"
	"github.com/botgpt/botgpt/pkg/logging"
	"github.com/botgpt/botgpt/pkg/store"
)

// SetupRoutes adds all routes that the server should listen to
func SetupRoutes(mux *chi.Mux, st *store.Store, pipeline *chat.Pipeline, client llm.Client) {
	ch := handlers.NewChecksHandler(st)
	usersHandler := handlers.NewUsersHandler(st)
	modelsHandler := handlers.NewModelsHandler(client)
	conversationsHandler := handlers.NewConversationsHandler(st, pipeline)
	messagesHandler := handlers.NewMessagesHandler(st, pipeline)

	mux.Get("/health", ch.Health)
	mux.Mount("/checks", ch.Routes())
	mux.Mount("/metrics", promhttp.Handler())

	mux.
		With(RequestLogger()).
		Route(config.APIPrefix, func(r chi.Router) {
			r.Post("/init", usersHandler.InitDemoUser)
			r.Mount("/users", usersHandler.Routes())
			r.Mount("/models", modelsHandler.Routes())
		})

	mux.
		With(RequestLogger()).
		Group(func(r chi.Router) {
			r.Mount("/conversations", conversationsHandler.Routes())
			r.Route("/conversations/{id}/messages", func(r chi.Router) {
				r.Mount("/", messagesHandler.Routes())
			})
		})

	// Displays all API paths when debug enabled
	walkFunc := func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		route = strings.Replace(route, "/*/", "/", -1)
		logging.Debugf("%s %s\n", method, route)
		return nil
	}
	if err := chi.Walk(mux, walkFunc); err != nil {
		logging.Errorf(err, "logging error")
	}
}
