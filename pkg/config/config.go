package config

import (
	"fmt"
	"runtime"

	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Build information. Populated at build-time.
var (
	Name      string = "botgpt"
	Version   string
	Branch    string
	Commit    string
	BuildUser string
	GoVersion = runtime.Version()
)

const (
	// EnvPrefix is a prefix to all ENV variables used in this app
	EnvPrefix = "BOTGPT"
	// APIPrefix URL prefix for account/management endpoints
	APIPrefix = "/api"

	// ##### GENERAL VARIABLES
	// Debug is a flag used to display debug messages
	Debug = false
	// DebugCORS is a flag used to display CORS debug messages
	DebugCORS = false
	// HumanReadableLogs set to true disables JSON formatting of logging
	HumanReadableLogs = false
	// DefaultHost default host for the service
	DefaultHost = "localhost"
	// DefaultPort default port the service is served on
	DefaultPort = "8080"
	// DefaultCorsHosts default cors hosts for local development
	DefaultCorsHosts = "http://localhost:3000 http://localhost:5173"

	// ##### DATABASE VARIABLES

	// DefaultDBPath is the sqlite database file, created on first run
	DefaultDBPath = "bot_gpt.db"
	// DefaultDemoUserEmail is the single demo account (no auth for simplicity)
	DefaultDemoUserEmail = "demo@botgpt.ai"

	// ##### GENERATION VARIABLES

	// DefaultGroqBaseURL is the Groq OpenAI-compatible endpoint
	DefaultGroqBaseURL = "https://api.groq.com/openai/v1"
	// DefaultGroqModel is the chat model used for replies
	DefaultGroqModel = "llama3-70b-8192"
	// DefaultHistoryWindow is the number of recent messages given to the model
	DefaultHistoryWindow = 10
	// DefaultModelCacheTTL is how long the provider model list is cached
	DefaultModelCacheTTL = "5m"
)

func bindEnvVariable(name string, fallback interface{}) {
	if fallback != "" {
		viper.SetDefault(name, fallback)
	}
	err := viper.BindEnv(name)
	if err != nil {
		// cannot use logging.Errorf due to import cycle
		fmt.Printf("Error binding Env Variable: %v", err)
	}
}

// SetupEnv configures the app to read ENV variables
func SetupEnv() {
	// .env is optional; ignore a missing file
	_ = godotenv.Load()

	viper.SetEnvPrefix(EnvPrefix)
	// General
	bindEnvVariable("DEBUG", Debug)
	bindEnvVariable("HUMAN_READABLE_LOGS", HumanReadableLogs)
	bindEnvVariable("DEBUG_CORS", DebugCORS)
	bindEnvVariable("HOST", DefaultHost)
	bindEnvVariable("PORT", DefaultPort)
	bindEnvVariable("CORS_HOSTS", DefaultCorsHosts)
	bindEnvVariable("HTTP_MAX_PARALLEL_REQUESTS", 8)
	bindEnvVariable("HTTP_REQUEST_TIMEOUT", "60s")
	// Database
	bindEnvVariable("DB_PATH", DefaultDBPath)
	bindEnvVariable("DEMO_USER_EMAIL", DefaultDemoUserEmail)
	// Generation
	bindEnvVariable("GROQ_MODEL", DefaultGroqModel)
	bindEnvVariable("GROQ_BASE_URL", DefaultGroqBaseURL)
	bindEnvVariable("LLM_TIMEOUT", "2m")
	bindEnvVariable("HISTORY_WINDOW", DefaultHistoryWindow)
	bindEnvVariable("MODEL_CACHE_TTL", DefaultModelCacheTTL)
	// GROQ_API_KEY keeps its conventional unprefixed name
	if err := viper.BindEnv("GROQ_API_KEY", "GROQ_API_KEY"); err != nil {
		fmt.Printf("Error binding Env Variable: %v", err)
	}
}

// CorsConfig stores default configuration for CORS middleware
func CorsConfig(corsHosts []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   corsHosts,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-Language"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true, // header "Access-Control-Allow-Credentials" is not present if this is set to false
		MaxAge:           300,  // Maximum value not ignored by any of major browsers
		Debug:            viper.GetBool("DEBUG_CORS"),
	}
}
