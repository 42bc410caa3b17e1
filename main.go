package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"

	"github.com/voice-journal/core/internal/core"
	"github.com/voice-journal/core/internal/journal/model"
	pkgredis "github.com/voice-journal/core/pkg/redis"
)

// AppConfig defines all configurable parameters of the service, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment core.Environment `envconfig:"APP_ENV" default:"development"`
	LogLevel    string           `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis        pkgredis.Config
	StoreBackend string `envconfig:"STORE_BACKEND" default:"redis"`
	HTTPAddr     string `envconfig:"HTTP_ADDR" default:":8080"`

	// LLM provider, only needed by the model extractor
	APIKey  string `envconfig:"GEMINI_API_KEY"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Journal configs
	Extractor    model.ExtractorConfig
	Conversation model.ConversationConfig
	Cache        model.CacheConfig
	Memory       model.MemoryConfig
}

func loadConfig(envFile string) (AppConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return AppConfig{}, err
		}
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "journal",
		Short:         "Voice journaling session core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String("env-file", ".env", "dotenv file to load before reading the environment")
	cmd.AddCommand(newServeCmd(), newDemoCmd())
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
