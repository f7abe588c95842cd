package main

import (
	"context"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/botgpt/botgpt/pkg/chat"
	"github.com/botgpt/botgpt/pkg/config"
	"github.com/botgpt/botgpt/pkg/llm/groq"
	"github.com/botgpt/botgpt/pkg/logging"
	"github.com/botgpt/botgpt/pkg/metrics"
	"github.com/botgpt/botgpt/pkg/server"
	"github.com/botgpt/botgpt/pkg/store"
)

func main() {
	config.SetupEnv()
	config.SetupLogger()
	defer zap.L().Sync() //nolint:errcheck

	st, err := store.Open(viper.GetString("DB_PATH"))
	if err != nil {
		logging.Fatalf(err, "Failed opening database")
	}

	demoEmail := viper.GetString("DEMO_USER_EMAIL")
	if _, err := st.EnsureUser(demoEmail); err != nil {
		logging.Fatalf(err, "Failed creating demo user %s", demoEmail)
	}
	logging.Infof("Demo user ready: %s", demoEmail)

	client := groq.NewClient(groq.Config{
		Timeout: viper.GetDuration("LLM_TIMEOUT"),
	})

	pipeline := chat.NewPipeline(st, client, chat.Config{
		Model:         viper.GetString("GROQ_MODEL"),
		HistoryWindow: viper.GetInt("HISTORY_WINDOW"),
	})

	corsOptions := config.CorsConfig(strings.Split(viper.GetString("CORS_HOSTS"), " "))
	srv := server.NewServer(config.Name,
		cors.New(corsOptions),
		viper.GetInt("HTTP_MAX_PARALLEL_REQUESTS"),
		viper.GetDuration("HTTP_REQUEST_TIMEOUT"),
	)

	server.SetupRoutes(srv.Mux(), st, pipeline, client)
	metrics.AddBuildInfoMetric()
	metrics.RegisterTurnMetrics()

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := viper.GetString("HOST") + ":" + viper.GetString("PORT")
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Mux(),
	}

	go func() {
		logging.Infof("Listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf(err, "Server failed")
		}
	}()

	<-runCtx.Done()
	logging.Infof("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Errorf(err, "Graceful shutdown failed")
	}
}
