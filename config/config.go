package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/davitran/docchat-be/types"
)

type Config struct {
	Port          string                      `mapstructure:"port"`
	UploadDir     string                      `mapstructure:"upload_dir"`
	MongoURI      string                      `mapstructure:"MONGODB_URI"`
	MongoDatabase string                      `mapstructure:"mongo_database"`
	AIProvider    string                      `mapstructure:"ai_provider"`
	Gemini        GeminiConfig                `mapstructure:"gemini"`
	OpenAI        OpenAIConfig                `mapstructure:"openai"`
	Document      types.DocumentServiceConfig `mapstructure:"document"`
	Embedding     types.EmbeddingConfig       `mapstructure:"embedding"`
	RateLimit     types.RateLimitConfig       `mapstructure:"rate_limit"`
}

type GeminiConfig struct {
	APIKeys         []string `mapstructure:"-"`
	APIKeysRaw      string   `mapstructure:"GEMINI_API_KEYS"`
	ModelCandidates []string `mapstructure:"model_candidates"`
	EmbeddingModel  string   `mapstructure:"embedding_model"`
}

type OpenAIConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"OPENAI_API_KEY"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	v.BindEnv("MONGODB_URI")
	v.BindEnv("gemini.GEMINI_API_KEYS", "GEMINI_API_KEYS")
	v.BindEnv("openai.OPENAI_API_KEY", "OPENAI_API_KEY")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for _, key := range strings.Split(config.Gemini.APIKeysRaw, ",") {
		if key = strings.TrimSpace(key); key != "" {
			config.Gemini.APIKeys = append(config.Gemini.APIKeys, key)
		}
	}
	applyDefaults(&config)

	return &config, nil
}

func applyDefaults(c *Config) {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.UploadDir == "" {
		c.UploadDir = "uploads"
	}
	if c.MongoDatabase == "" {
		c.MongoDatabase = "docchat"
	}
	if c.AIProvider == "" {
		c.AIProvider = "gemini"
	}
	if len(c.Gemini.ModelCandidates) == 0 {
		c.Gemini.ModelCandidates = []string{"gemini-1.5-flash", "gemini-1.5-pro"}
	}
	if c.Gemini.EmbeddingModel == "" {
		c.Gemini.EmbeddingModel = "embedding-001"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.EmbeddingModel == "" {
		c.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if c.Document.ChunkSize == 0 {
		c.Document.ChunkSize = 800
	}
	if c.Document.ChunkOverlap == 0 {
		c.Document.ChunkOverlap = 100
	}
	if c.Document.MaxChunks == 0 {
		c.Document.MaxChunks = 5
	}
	if c.Document.SimilarityThreshold == 0 {
		c.Document.SimilarityThreshold = 0.3
	}
	if c.Document.ContextBudget == 0 {
		c.Document.ContextBudget = 12000
	}
	if c.Document.MaxUploadBytes == 0 {
		c.Document.MaxUploadBytes = 10 << 20
	}
	if c.Document.AnswerTimeoutSecs == 0 {
		c.Document.AnswerTimeoutSecs = 60
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = 5
	}
	if c.Embedding.BatchIntervalMs == 0 {
		c.Embedding.BatchIntervalMs = 1000
	}
	if c.Embedding.MaxRetries == 0 {
		c.Embedding.MaxRetries = 3
	}
	if c.Embedding.TimeoutSecs == 0 {
		c.Embedding.TimeoutSecs = 30
	}
	if c.Embedding.StaleAfterSecs == 0 {
		c.Embedding.StaleAfterSecs = 600
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 10
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 20
	}
}
