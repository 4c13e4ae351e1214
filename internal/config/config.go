package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the process configuration shared by the server and the CLI.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	News      NewsConfig      `yaml:"news"`
	LLM       LLMConfig       `yaml:"llm"`
	Sentiment SentimentConfig `yaml:"sentiment"`
	Predictor PredictorConfig `yaml:"predictor"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port         string        `yaml:"port"`
	DataDir      string        `yaml:"data_dir"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CORSOrigins  []string      `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Name string `yaml:"name"` // file name under server.data_dir
}

type NewsConfig struct {
	APIKey        string `yaml:"api_key"`
	APIURL        string `yaml:"api_url"`
	Query         string `yaml:"query"`
	PageSize      int    `yaml:"page_size"` // 1..100
	DaysBack      int    `yaml:"days_back"` // 1..30
	GoogleNewsURL string `yaml:"google_news_url"`
}

type LLMConfig struct {
	Host        string        `yaml:"host"` // Ollama base URL, the client appends /v1
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"` // 0..2
	Timeout     time.Duration `yaml:"timeout"`
}

type SentimentConfig struct {
	Analyzer          string        `yaml:"analyzer"` // lexicon | llm
	PositiveThreshold float64       `yaml:"positive_threshold"`
	NegativeThreshold float64       `yaml:"negative_threshold"`
	Workers           int           `yaml:"workers"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
}

type PredictorConfig struct {
	Prior float64 `yaml:"prior"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"` // empty disables redis
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"` // empty disables auth on mutating routes
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | text
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			DataDir:      "./data",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			CORSOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Database: DatabaseConfig{Name: "news.db"},
		News: NewsConfig{
			APIURL:        "https://newsapi.org/v2/everything",
			Query:         "technology",
			PageSize:      20,
			DaysBack:      1,
			GoogleNewsURL: "https://news.google.com/topstories?hl=en-US&gl=US&ceid=US:en",
		},
		LLM: LLMConfig{
			Host:        "http://localhost:11434",
			Model:       "llama3.2",
			Temperature: 0.3,
			Timeout:     60 * time.Second,
		},
		Sentiment: SentimentConfig{
			Analyzer:          "lexicon",
			PositiveThreshold: 0.1,
			NegativeThreshold: -0.1,
			Workers:           4,
			CacheTTL:          time.Hour,
		},
		Predictor: PredictorConfig{Prior: 0.5},
		RateLimit: RateLimitConfig{RequestsPerMinute: 60, Burst: 10},
		Logging:   LoggingConfig{Level: "INFO", Format: "json"},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, a .env file in the working directory and finally the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	// a missing .env is the common case
	_ = godotenv.Load()

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvOrDefault("PORT", cfg.Server.Port)
	cfg.Server.DataDir = getEnvOrDefault("DATA_DIR", cfg.Server.DataDir)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.Server.CORSOrigins = strings.Split(origins, ",")
	}

	cfg.Database.Name = getEnvOrDefault("DB_NAME", cfg.Database.Name)

	cfg.News.APIKey = getEnvOrDefault("NEWSAPI_KEY", cfg.News.APIKey)
	cfg.News.Query = getEnvOrDefault("NEWS_QUERY", cfg.News.Query)
	cfg.News.PageSize = getEnvInt("NEWS_PAGE_SIZE", cfg.News.PageSize)
	cfg.News.DaysBack = getEnvInt("NEWS_DAYS_BACK", cfg.News.DaysBack)

	cfg.LLM.Host = getEnvOrDefault("OLLAMA_HOST", cfg.LLM.Host)
	cfg.LLM.Model = getEnvOrDefault("OLLAMA_MODEL", cfg.LLM.Model)
	cfg.LLM.Temperature = getEnvFloat("OLLAMA_TEMPERATURE", cfg.LLM.Temperature)

	cfg.Sentiment.Analyzer = getEnvOrDefault("ANALYZER", cfg.Sentiment.Analyzer)
	cfg.Sentiment.PositiveThreshold = getEnvFloat("SENTIMENT_POSITIVE_THRESHOLD", cfg.Sentiment.PositiveThreshold)
	cfg.Sentiment.NegativeThreshold = getEnvFloat("SENTIMENT_NEGATIVE_THRESHOLD", cfg.Sentiment.NegativeThreshold)

	cfg.Predictor.Prior = getEnvFloat("PREDICTOR_PRIOR", cfg.Predictor.Prior)

	cfg.Redis.Addr = getEnvOrDefault("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)

	cfg.Auth.JWTSecret = getEnvOrDefault("JWT_SECRET", cfg.Auth.JWTSecret)

	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnvOrDefault("LOG_FORMAT", cfg.Logging.Format)
}

// DatabasePath is the sqlite file location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Server.DataDir, c.Database.Name)
}

// Redacted returns a copy that is safe to log.
func (c *Config) Redacted() Config {
	out := *c
	out.News.APIKey = mask(out.News.APIKey)
	out.Redis.Password = mask(out.Redis.Password)
	out.Auth.JWTSecret = mask(out.Auth.JWTSecret)
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
