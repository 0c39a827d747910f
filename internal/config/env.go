package config

import (
	"errors"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Provider kinds understood by the decision source factory.
const (
	ProviderOpenAI           = "openai"
	ProviderAnthropic        = "anthropic"
	ProviderGrok             = "grok"
	ProviderOpenAICompatible = "openai_compatible"
)

var defaultModels = map[string]string{
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-3-5-sonnet-20240620",
	ProviderGrok:      "grok-latest",
}

var defaultAPIURLs = map[string]string{
	ProviderOpenAI:    "https://api.openai.com/v1",
	ProviderAnthropic: "https://api.anthropic.com",
	ProviderGrok:      "https://api.x.ai/v1",
}

// providerKeyEnv 是未配置 api_key_env 时按 provider 查找的环境变量。
var providerKeyEnv = map[string]string{
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderGrok:      "GROK_API_KEY",
}

// LoadEnv loads KEY=VALUE pairs from the given .env files into the process
// environment without overriding variables that are already set. Missing files are ignored.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// applyEnvOverrides 将环境变量合并到配置中；环境变量优先级最高。
func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("USE_TESTNET")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Exchange.Testnet = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("API_KEY")); v != "" {
		c.Exchange.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("API_SECRET")); v != "" {
		c.Exchange.APISecret = v
	}
	if v := strings.TrimSpace(os.Getenv("WEBHOOK_SECRET")); v != "" {
		c.Webhook.Secret = v
	}
	if v := strings.TrimSpace(os.Getenv("GROK_BASE_URL")); v != "" {
		for id, src := range c.Sources {
			if src.Provider == ProviderGrok {
				src.APIURL = v
				c.Sources[id] = src
			}
		}
	}
}

// ResolveSources returns the enabled sources sorted by id. Sources whose API key
// cannot be resolved are reported in skipped instead of failing the load.
func (c *Config) ResolveSources() (resolved []ResolvedSource, skipped []string) {
	ids := make([]string, 0, len(c.Sources))
	for id := range c.Sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		src := c.Sources[id]
		if !src.Enabled {
			continue
		}
		key := resolveAPIKey(src)
		if key == "" {
			skipped = append(skipped, describeSource(id, src))
			continue
		}
		headers := make(map[string]string, len(src.Headers))
		for k, v := range src.Headers {
			headers[k] = v
		}
		resolved = append(resolved, ResolvedSource{
			ID:             id,
			Provider:       src.Provider,
			Model:          src.Model,
			APIURL:         strings.TrimRight(src.APIURL, "/"),
			APIKey:         key,
			Headers:        headers,
			Temperature:    src.Temperature,
			TopP:           src.TopP,
			MaxTokens:      src.MaxTokens,
			TimeoutSeconds: src.TimeoutSeconds,
		})
	}
	return resolved, skipped
}

func resolveAPIKey(src SourceConfig) string {
	if key := strings.TrimSpace(src.APIKey); key != "" {
		return key
	}
	if env := strings.TrimSpace(src.APIKeyEnv); env != "" {
		return strings.TrimSpace(os.Getenv(env))
	}
	if env, ok := providerKeyEnv[src.Provider]; ok {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}
