package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

func MustLoadConfig(path string) error {
	// Set default values
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", "5432")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "v0hub")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("github.api_url", "https://api.github.com")
	viper.SetDefault("chat.api_url", "https://api.v0.dev/v1")
	viper.SetDefault("env", "development")

	// reading from YAML
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	if path == "" {
		path = "./config"
	}
	viper.AddConfigPath(path)

	// Try to read config file, but don't fail if not found
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file, %w", err)
		}
	}

	// override through .env if presents
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Explicit environment variable bindings
	bindEnvWithDefault("server.host", "SERVER_HOST")
	bindEnvWithDefault("server.port", "SERVER_PORT")
	bindEnvWithDefault("redis.addr", "REDIS_ADDR")
	bindEnvWithDefault("redis.password", "REDIS_PASSWORD")
	bindEnvWithDefault("database.host", "DB_HOST")
	bindEnvWithDefault("database.port", "DB_PORT")
	bindEnvWithDefault("database.user", "DB_USER")
	bindEnvWithDefault("database.password", "DB_PASSWORD")
	bindEnvWithDefault("database.dbname", "DB_NAME")
	bindEnvWithDefault("database.sslmode", "DB_SSLMODE")
	bindEnvWithDefault("github.api_url", "GITHUB_API_URL")
	bindEnvWithDefault("github.token", "GITHUB_TOKEN")
	bindEnvWithDefault("chat.api_url", "V0_API_URL")
	bindEnvWithDefault("chat.system_key", "V0_API_KEY")
	bindEnvWithDefault("security.token_key", "TOKEN_ENCRYPTION_KEY")
	bindEnvWithDefault("env", "ENV")

	return nil
}

func bindEnvWithDefault(key, envVar string) {
	if val := os.Getenv(envVar); val != "" {
		viper.Set(key, val)
	}
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	GitHub   GitHubConfig   `mapstructure:"github"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Security SecurityConfig `mapstructure:"security"`
	ENV      string         `mapstructure:"env"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// GitHubConfig points the branch resolver at the repository directory.
// Token is optional: without it branch listing falls back to the REST API.
type GitHubConfig struct {
	APIURL string `mapstructure:"api_url"`
	Token  string `mapstructure:"token"`
}

// ChatConfig holds the chat-creation API endpoint and the system-wide key
// used for public chats.
type ChatConfig struct {
	APIURL    string `mapstructure:"api_url"`
	SystemKey string `mapstructure:"system_key"`
}

type SecurityConfig struct {
	// TokenKey is the hex-encoded 32-byte key used to encrypt user API
	// tokens at rest.
	TokenKey string `mapstructure:"token_key"`
}

// GetConfig returns the config struct populated from viper.
func GetConfig() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return &cfg, nil
}
