package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	CSV      CSVConfig      `mapstructure:"csv"`
	Churn    ChurnConfig    `mapstructure:"churn"`
	NLQ      NLQConfig      `mapstructure:"nlq"`
	Prompts  PromptsConfig  `mapstructure:"prompts"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type GeminiConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	Model           string  `mapstructure:"model"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
	LogPreviewLen   int     `mapstructure:"log_preview_len"`
}

// CSVConfig holds the free tier upload limits.
type CSVConfig struct {
	MaxFileSizeMB int `mapstructure:"max_file_size_mb"`
	MaxRows       int `mapstructure:"max_rows"`
	MaxColumns    int `mapstructure:"max_columns"`
	MinRows       int `mapstructure:"min_rows"`
}

// ChurnConfig holds the probability cutoffs for derived risk buckets.
type ChurnConfig struct {
	HighThreshold   float64 `mapstructure:"high_threshold"`
	MediumThreshold float64 `mapstructure:"medium_threshold"`
}

type NLQConfig struct {
	HistoryLimit      int      `mapstructure:"history_limit"`
	MessageMaxLen     int      `mapstructure:"message_max_len"`
	FullTableKeywords []string `mapstructure:"full_table_keywords"`
}

type PromptsConfig struct {
	Dir string `mapstructure:"dir"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "churnguard")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.max_output_tokens", 8192)
	v.SetDefault("gemini.temperature", 0.7)
	v.SetDefault("gemini.log_preview_len", 500)
	v.SetDefault("csv.max_file_size_mb", 10)
	v.SetDefault("csv.max_rows", 100)
	v.SetDefault("csv.max_columns", 30)
	v.SetDefault("csv.min_rows", 1)
	v.SetDefault("churn.high_threshold", 0.7)
	v.SetDefault("churn.medium_threshold", 0.4)
	v.SetDefault("nlq.history_limit", 4)
	v.SetDefault("nlq.message_max_len", 500)
	v.SetDefault("prompts.dir", "resources/prompts")

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file when present; env and defaults carry an
	// install without one.
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		dbConfig.UseInMemory = config.Database.UseInMemory
		config.Database = dbConfig
	}

	// Get other environment variables
	if apiKey := v.GetString("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}

	if model := v.GetString("GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}

	return &config, nil
}
