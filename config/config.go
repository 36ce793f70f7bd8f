package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"aptchat/logging"
)

// Upstream modes for the /api/chat proxy.
const (
	UpstreamForward = "forward" // Relay the payload to chat.upstream_url
	UpstreamBuiltin = "builtin" // Answer with the built-in responder
)

// LLMConfig configures the OpenAI-compatible model used by the built-in responder.
type LLMConfig struct {
	APIKey    string `mapstructure:"api_key"`     // Resolved from the variable named by APIKeyEnv when empty
	APIKeyEnv string `mapstructure:"api_key_env"` // Name of the environment variable holding the key
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
}

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`
	Database struct {
		DSN string `mapstructure:"dsn"` // "memory" or a SQLite file path
	} `mapstructure:"database"`
	Backend struct {
		BaseURL string        `mapstructure:"base_url"` // Serves /api/get_assessment_step
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"backend"`
	Chat struct {
		ProxyURL     string        `mapstructure:"proxy_url"`     // Base URL the relay posts /api/chat to
		UpstreamURL  string        `mapstructure:"upstream_url"`  // Where the proxy forwards payloads
		UpstreamMode string        `mapstructure:"upstream_mode"` // forward | builtin
		Timeout      time.Duration `mapstructure:"timeout"`
	} `mapstructure:"chat"`
	Assessment struct {
		Debounce      time.Duration `mapstructure:"debounce"`
		CatalogFile   string        `mapstructure:"catalog_file"`
		LocalFallback bool          `mapstructure:"local_fallback"`
	} `mapstructure:"assessment"`
	Scenario struct {
		Delay time.Duration `mapstructure:"delay"`
	} `mapstructure:"scenario"`
	Training struct {
		Source string `mapstructure:"source"` // URL or file path of the training resource
		File   string `mapstructure:"file"`   // Served at /training_data.json when set
	} `mapstructure:"training"`
	Session struct {
		TTL time.Duration `mapstructure:"ttl"`
	} `mapstructure:"session"`
	LLM LLMConfig `mapstructure:"llm"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// AppConfig is the global configuration instance.
var AppConfig Config

// LoadConfig loads configuration into AppConfig from .env, config.yaml and environment
// variables. An explicit file path takes precedence over the search path.
func LoadConfig(configFile string) error {
	cfg, err := Load(configFile)
	if err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

// Load reads configuration without touching AppConfig.
func Load(configFile string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.L().Warnf("[Config] Failed to load .env file: %v", err)
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")    // Name of config file (without extension)
		v.SetConfigType("yaml")      // REQUIRED if the config file does not have the extension in the name
		v.AddConfigPath("./config")  // Path to look for the config file in
		v.AddConfigPath(".")         // Optionally look for config in the working directory
		v.AddConfigPath("../config") // For running from locations like tests
	}

	setDefaults(v)

	v.SetEnvPrefix("APTCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			logging.L().Warnf("[Config] Configuration file (config.yaml) not found. Using environment variables and defaults.")
		} else {
			return Config{}, fmt.Errorf("error reading configuration file: %w", err)
		}
	} else {
		logging.L().Infof("[Config] Using configuration file %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Environment variable overrides
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Server.Port = port
		logging.L().Infof("[Config] Server port overridden by environment variable SERVER_PORT: %s", port)
	}

	if cfg.LLM.APIKey == "" && cfg.LLM.APIKeyEnv != "" {
		if key := os.Getenv(cfg.LLM.APIKeyEnv); key != "" {
			cfg.LLM.APIKey = key
			logging.L().Infof("[Config] Loaded LLM API key from environment variable '%s'.", cfg.LLM.APIKeyEnv)
		} else {
			logging.L().Debugf("[Config] LLM API key (env var '%s') is not set.", cfg.LLM.APIKeyEnv)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("database.dsn", "memory")
	v.SetDefault("backend.base_url", "http://127.0.0.1:8000")
	v.SetDefault("backend.timeout", 15*time.Second)
	v.SetDefault("chat.proxy_url", "http://127.0.0.1:8080")
	v.SetDefault("chat.upstream_url", "http://127.0.0.1:8000/")
	v.SetDefault("chat.upstream_mode", UpstreamForward)
	v.SetDefault("chat.timeout", 60*time.Second)
	v.SetDefault("assessment.debounce", 300*time.Millisecond)
	v.SetDefault("assessment.catalog_file", "")
	v.SetDefault("assessment.local_fallback", false)
	v.SetDefault("scenario.delay", 2*time.Second)
	v.SetDefault("training.source", "http://127.0.0.1:8080/training_data.json")
	v.SetDefault("training.file", "")
	v.SetDefault("session.ttl", 2*time.Hour)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("log.level", "info")
}

// Validate checks values that would otherwise fail much later at request time.
func (c Config) Validate() error {
	var errs []error
	switch c.Chat.UpstreamMode {
	case UpstreamForward, UpstreamBuiltin:
	default:
		errs = append(errs, fmt.Errorf("chat.upstream_mode must be %q or %q, got %q", UpstreamForward, UpstreamBuiltin, c.Chat.UpstreamMode))
	}
	if c.Assessment.Debounce < 0 {
		errs = append(errs, errors.New("assessment.debounce must not be negative"))
	}
	if c.Scenario.Delay < 0 {
		errs = append(errs, errors.New("scenario.delay must not be negative"))
	}
	if c.Assessment.LocalFallback && c.Assessment.CatalogFile == "" {
		errs = append(errs, errors.New("assessment.local_fallback requires assessment.catalog_file"))
	}
	return errors.Join(errs...)
}
