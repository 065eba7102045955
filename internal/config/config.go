package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int `koanf:"port"`
	} `koanf:"server"`

	AI struct {
		Model          string            `koanf:"model"`
		FallbackModels []string          `koanf:"fallback_models"`
		MaxTokens      int               `koanf:"max_tokens"`
		Temperature    float64           `koanf:"temperature"`
		Profiles       map[string]string `koanf:"profiles"`
	} `koanf:"ai"`

	// Context controls how large the inbox snapshot handed to the
	// model is allowed to grow.
	Context struct {
		ThreadLimit             int `koanf:"thread_limit"`
		TopLeadsLimit           int `koanf:"top_leads_limit"`
		LeadIndexLimit          int `koanf:"lead_index_limit"`
		DetailLimit             int `koanf:"detail_limit"`
		DetailExtraLimit        int `koanf:"detail_extra_limit"`
		MessagesPerConversation int `koanf:"messages_per_conversation"`
		TodayFocusLimit         int `koanf:"today_focus_limit"`
	} `koanf:"context"`

	Knowledge struct {
		Path string `koanf:"path"`
	} `koanf:"knowledge"`

	Corpus struct {
		ThreadLimit  int `koanf:"thread_limit"`
		SampleLimit  int `koanf:"sample_limit"`
		MessageLimit int `koanf:"message_limit"`
		WindowDays   int `koanf:"window_days"`
	} `koanf:"corpus"`

	Ideas struct {
		CacheMin        int `koanf:"cache_min"`
		CacheWindowDays int `koanf:"cache_window_days"`
	} `koanf:"ideas"`

	YouTube struct {
		RatePerSec int `koanf:"rate_per_sec"`
	} `koanf:"youtube"`

	Webhook struct {
		VerifyToken string `koanf:"verify_token"`
	} `koanf:"webhook"`

	Storage struct {
		BaseURL string `koanf:"base_url"`
		Bucket  string `koanf:"bucket"`
	} `koanf:"storage"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.port":                       8090,
		"ai.model":                          "claude-sonnet-4-20250514",
		"ai.fallback_models":                []string{"claude-3-7-sonnet-20250219", "claude-3-5-haiku-20241022"},
		"ai.max_tokens":                     1024,
		"ai.temperature":                    0.3,
		"context.thread_limit":              220,
		"context.top_leads_limit":           18,
		"context.lead_index_limit":          60,
		"context.detail_limit":              18,
		"context.detail_extra_limit":        6,
		"context.messages_per_conversation": 14,
		"context.today_focus_limit":         10,
		"knowledge.path":                    "./acqdata/knowledge.md",
		"corpus.thread_limit":               1200,
		"corpus.sample_limit":               180,
		"corpus.message_limit":              12000,
		"corpus.window_days":                180,
		"ideas.cache_min":                   10,
		"ideas.cache_window_days":           7,
		"youtube.rate_per_sec":              5,
		"storage.bucket":                    "acq-media",
	}
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	k.Load(confmap.Provider(defaults(), "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		// Try default locations - prioritize acqdata for containerized environments
		defaultPaths := []string{"./acqdata/acqboard.toml", "./acqboard.toml", "$HOME/.acqboard.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix ACQ_
	k.Load(env.Provider("ACQ_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "ACQ_")), "_", ".", -1)
	}), nil)

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# ACQ Configuration

[server]
port = 8090

[ai]
model = "claude-sonnet-4-20250514"
fallback_models = ["claude-3-7-sonnet-20250219", "claude-3-5-haiku-20241022"]
max_tokens = 1024
temperature = 0.3

[context]
thread_limit = 220
top_leads_limit = 18
messages_per_conversation = 14

[knowledge]
path = "./acqdata/knowledge.md"

[webhook]
verify_token = "change-me"
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.AI.Model == "" {
		return fmt.Errorf("ai.model is required")
	}
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", config.Server.Port)
	}
	if config.Context.ThreadLimit <= 0 {
		return fmt.Errorf("context.thread_limit must be positive")
	}
	if config.Context.TopLeadsLimit <= 0 {
		return fmt.Errorf("context.top_leads_limit must be positive")
	}
	if config.Ideas.CacheWindowDays <= 0 {
		return fmt.Errorf("ideas.cache_window_days must be positive")
	}
	return nil
}
