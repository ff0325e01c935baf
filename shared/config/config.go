package config

import (
	"fmt"
	"os"
	"path"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Public  Public
	Private Private
}

type Public struct {
	Port      int    `yaml:"port" envconfig:"PORT" validate:"required"`
	LogLevel  string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" envconfig:"LOG_FORMAT"`

	// live updates
	KeepAliveInterval time.Duration `yaml:"keep_alive_interval" envconfig:"KEEP_ALIVE_INTERVAL" validate:"required"`
	ChannelBufferSize int           `yaml:"channel_buffer_size" envconfig:"CHANNEL_BUFFER_SIZE" validate:"required,min=1"`

	AllowedOrigins  []string      `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`

	// usernames inserted at startup if missing
	SeedUsers []string `yaml:"seed_users" envconfig:"SEED_USERS"`
}

type Private struct {
	Pg           Pg     `yaml:"pg" envconfig:"DB"`
	SeedPassword string `yaml:"seed_password" envconfig:"SEED_PASSWORD"`
}

// Pg env overrides are DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME.
type Pg struct {
	Host     string `yaml:"host" envconfig:"HOST" validate:"required"`
	Port     int    `yaml:"port" envconfig:"PORT" validate:"required"`
	User     string `yaml:"user" envconfig:"USER" validate:"required"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	Dbname   string `yaml:"dbname" envconfig:"NAME" validate:"required"`
}

func (c *Config) ShutdownTimeout() time.Duration {
	if c.Public.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return c.Public.ShutdownTimeout
}

func mustLoadPath(configPath string, output interface{}) {
	// check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file does not exist: " + configPath)
	}
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		panic("can't read config file: " + configPath)
	}

	if err := yaml.Unmarshal(configFile, output); err != nil {
		panic(fmt.Sprintf("can't unmarshal config file %s: %v", configPath, err))
	}
}

// applyEnv overrides yaml values with environment variables (and .env if present).
// Variables that are not set leave the yaml value untouched.
func applyEnv(cfg *Config) error {
	_ = godotenv.Load() // .env is optional

	if err := envconfig.Process("", &cfg.Public); err != nil {
		return fmt.Errorf("public env overrides: %w", err)
	}
	if err := envconfig.Process("", &cfg.Private); err != nil {
		return fmt.Errorf("private env overrides: %w", err)
	}
	return nil
}

func validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(cfg.Public); err != nil {
		return err
	}
	return v.Struct(cfg.Private)
}

// MustLoad reads public.yaml and private.yaml from configFolder, applies
// environment overrides and panics if a required field is missing.
func MustLoad(configFolder string) *Config {
	var public Public
	mustLoadPath(path.Join(configFolder, "public.yaml"), &public)

	var private Private
	mustLoadPath(path.Join(configFolder, "private.yaml"), &private)

	cfg := &Config{Public: public, Private: private}
	if err := applyEnv(cfg); err != nil {
		panic(err.Error())
	}
	if err := validate(cfg); err != nil {
		panic("invalid config: " + err.Error())
	}
	return cfg
}
