package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. SKILLGATE_LLM_API_KEY.
const EnvPrefix = "skillgate"

// Profile is the configuration to start the gateway.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// DSN points to where skillgate stores its data
	DSN string
	// Version is the current version of server
	Version string

	LogLevel  string // debug, info, warn, error
	LogFormat string // text or json

	LLMProvider          string // openai, azure, deepseek, ollama
	LLMModel             string
	LLMAPIKey            string
	LLMBaseURL           string
	LLMAPIVersion        string // azure only
	LLMMaxTokens         int
	LLMTemperature       float64
	LLMTimeout           time.Duration
	LLMRequestsPerSecond float64

	EmbeddingEnabled    bool
	EmbeddingProvider   string // openai, azure, siliconflow, ollama
	EmbeddingModel      string
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	EmbeddingDimensions int

	QueryCacheSize    int
	QueryCacheTTL     time.Duration
	SemanticCacheSize int
	SemanticCacheTTL  time.Duration
	SemanticThreshold float64

	HistoryMaxTurns            int
	HistorySummarizeAfter      int
	HistoryMaxToolResultTokens int
	HistoryMaxMessages         int

	MaxToolCalls   int
	MaxResultChars int
	DefaultSkill   string

	APIRequestsPerSecond float64
	APIBurst             int
	SessionIdleTimeout   time.Duration
}

type flagDef struct {
	key   string
	value any
	usage string
}

// flags lists every setting with its default. Keys are also config-file keys
// and map to SKILLGATE_<KEY> with dots and dashes replaced by underscores.
var flags = []flagDef{
	{"mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`},
	{"addr", "", "address of server"},
	{"port", 8081, "port of server"},
	{"data", "", "data directory"},
	{"driver", "sqlite", "database driver (sqlite or postgres)"},
	{"dsn", "", "database source name"},
	{"log-level", "info", "log level (debug, info, warn, error)"},
	{"log-format", "text", "log format (text or json)"},

	{"llm-provider", "openai", "LLM provider (openai, azure, deepseek, ollama)"},
	{"llm-model", "gpt-4o-mini", "LLM model or azure deployment"},
	{"llm-api-key", "", "LLM API key"},
	{"llm-base-url", "", "LLM base URL or azure endpoint"},
	{"llm-api-version", "", "azure API version"},
	{"llm-max-tokens", 2048, "max completion tokens"},
	{"llm-temperature", 0.3, "sampling temperature"},
	{"llm-timeout", 60 * time.Second, "per completion timeout"},
	{"llm-rps", 0.0, "completion requests per second, 0 for unlimited"},

	{"embedding-enabled", true, "enable the semantic cache"},
	{"embedding-provider", "openai", "embedding provider (openai, azure, siliconflow, ollama)"},
	{"embedding-model", "text-embedding-3-small", "embedding model"},
	{"embedding-api-key", "", "embedding API key, defaults to the LLM key"},
	{"embedding-base-url", "", "embedding base URL, defaults to the LLM base URL"},
	{"embedding-dimensions", 1536, "embedding vector dimensions"},

	{"query-cache-size", 100, "exact query cache capacity"},
	{"query-cache-ttl", time.Hour, "exact query cache entry lifetime"},
	{"semantic-cache-size", 200, "semantic cache capacity"},
	{"semantic-cache-ttl", 2 * time.Hour, "semantic cache entry lifetime"},
	{"semantic-threshold", 0.92, "minimum cosine similarity for a semantic hit"},

	{"history-max-turns", 10, "user turns sent in full before folding"},
	{"history-summarize-after", 5, "recent turns kept once folding starts"},
	{"history-max-tool-result-tokens", 500, "per tool message token budget"},
	{"history-max-messages", 50, "retained transcript length"},

	{"max-tool-calls", 5, "completion rounds per turn"},
	{"max-result-chars", 2000, "tool result size budget"},
	{"default-skill", "sales_analyst", "skill used when nothing matches"},

	{"api-rps", 10.0, "HTTP requests per second per client, 0 for unlimited"},
	{"api-burst", 20, "HTTP request burst per client"},
	{"session-idle-timeout", 30 * time.Minute, "drop sessions idle for longer than this"},
}

// BindFlags registers every setting on fs and binds it into v together with
// its environment variable.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	for _, f := range flags {
		switch d := f.value.(type) {
		case string:
			fs.String(f.key, d, f.usage)
		case int:
			fs.Int(f.key, d, f.usage)
		case float64:
			fs.Float64(f.key, d, f.usage)
		case bool:
			fs.Bool(f.key, d, f.usage)
		case time.Duration:
			fs.Duration(f.key, d, f.usage)
		default:
			return fmt.Errorf("unsupported flag type for %s", f.key)
		}
		if err := v.BindPFlag(f.key, fs.Lookup(f.key)); err != nil {
			return errors.Wrapf(err, "bind flag %s", f.key)
		}
	}
	SetDefaults(v)
	return nil
}

// SetDefaults registers defaults and environment lookup on v.
func SetDefaults(v *viper.Viper) {
	for _, f := range flags {
		v.SetDefault(f.key, f.value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
}

// FromViper builds a profile from the resolved settings in v.
func FromViper(v *viper.Viper) *Profile {
	p := &Profile{
		Mode:      v.GetString("mode"),
		Addr:      v.GetString("addr"),
		Port:      v.GetInt("port"),
		Data:      v.GetString("data"),
		Driver:    v.GetString("driver"),
		DSN:       v.GetString("dsn"),
		LogLevel:  v.GetString("log-level"),
		LogFormat: v.GetString("log-format"),

		LLMProvider:          v.GetString("llm-provider"),
		LLMModel:             v.GetString("llm-model"),
		LLMAPIKey:            v.GetString("llm-api-key"),
		LLMBaseURL:           v.GetString("llm-base-url"),
		LLMAPIVersion:        v.GetString("llm-api-version"),
		LLMMaxTokens:         v.GetInt("llm-max-tokens"),
		LLMTemperature:       v.GetFloat64("llm-temperature"),
		LLMTimeout:           v.GetDuration("llm-timeout"),
		LLMRequestsPerSecond: v.GetFloat64("llm-rps"),

		EmbeddingEnabled:    v.GetBool("embedding-enabled"),
		EmbeddingProvider:   v.GetString("embedding-provider"),
		EmbeddingModel:      v.GetString("embedding-model"),
		EmbeddingAPIKey:     v.GetString("embedding-api-key"),
		EmbeddingBaseURL:    v.GetString("embedding-base-url"),
		EmbeddingDimensions: v.GetInt("embedding-dimensions"),

		QueryCacheSize:    v.GetInt("query-cache-size"),
		QueryCacheTTL:     v.GetDuration("query-cache-ttl"),
		SemanticCacheSize: v.GetInt("semantic-cache-size"),
		SemanticCacheTTL:  v.GetDuration("semantic-cache-ttl"),
		SemanticThreshold: v.GetFloat64("semantic-threshold"),

		HistoryMaxTurns:            v.GetInt("history-max-turns"),
		HistorySummarizeAfter:      v.GetInt("history-summarize-after"),
		HistoryMaxToolResultTokens: v.GetInt("history-max-tool-result-tokens"),
		HistoryMaxMessages:         v.GetInt("history-max-messages"),

		MaxToolCalls:   v.GetInt("max-tool-calls"),
		MaxResultChars: v.GetInt("max-result-chars"),
		DefaultSkill:   v.GetString("default-skill"),

		APIRequestsPerSecond: v.GetFloat64("api-rps"),
		APIBurst:             v.GetInt("api-burst"),
		SessionIdleTimeout:   v.GetDuration("session-idle-timeout"),
	}

	if p.EmbeddingAPIKey == "" && p.EmbeddingProvider == p.LLMProvider {
		p.EmbeddingAPIKey = p.LLMAPIKey
	}
	if p.EmbeddingBaseURL == "" && p.EmbeddingProvider == p.LLMProvider {
		p.EmbeddingBaseURL = p.LLMBaseURL
	}
	return p
}

// Default returns a profile holding every default setting.
func Default() *Profile {
	v := viper.New()
	for _, f := range flags {
		v.SetDefault(f.key, f.value)
	}
	return FromViper(v)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAIEnabled reports whether a completion backend is configured.
func (p *Profile) IsAIEnabled() bool {
	return p.LLMAPIKey != "" || p.LLMProvider == "ollama"
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

// Validate normalizes the profile and reports configuration errors.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	switch p.Driver {
	case "sqlite":
		if p.DSN == "" {
			if p.Data == "" {
				p.Data = "."
			}
			dataDir, err := checkDataDir(p.Data)
			if err != nil {
				slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
				return err
			}
			p.Data = dataDir
			p.DSN = filepath.Join(dataDir, fmt.Sprintf("skillgate_%s.db", p.Mode))
		}
	case "postgres":
		if p.DSN == "" {
			return errors.New("dsn is required for postgres")
		}
	default:
		return errors.Errorf("unsupported driver: %s", p.Driver)
	}

	switch p.LogFormat {
	case "text", "json":
	default:
		return errors.Errorf("unsupported log format: %s", p.LogFormat)
	}

	if p.MaxToolCalls <= 0 {
		return errors.New("max-tool-calls must be positive")
	}
	if p.SemanticThreshold <= 0 || p.SemanticThreshold > 1 {
		return errors.Errorf("semantic-threshold must be in (0, 1], got %v", p.SemanticThreshold)
	}
	if p.QueryCacheSize <= 0 || p.SemanticCacheSize <= 0 {
		return errors.New("cache sizes must be positive")
	}
	if p.APIRequestsPerSecond < 0 || p.APIBurst < 0 {
		return errors.New("api-rps and api-burst must not be negative")
	}
	if p.HistorySummarizeAfter > p.HistoryMaxTurns {
		return errors.Errorf("history-summarize-after (%d) exceeds history-max-turns (%d)",
			p.HistorySummarizeAfter, p.HistoryMaxTurns)
	}
	return nil
}
