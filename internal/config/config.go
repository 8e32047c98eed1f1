package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	RolloutScopeConfigPathEnvVar = "ROLLOUT_SCOPE_CONFIG_PATH" // Environment variable for config path
)

// ErrInvalidConfig is returned when a loaded configuration fails validation
var ErrInvalidConfig = fmt.Errorf("invalid configuration")

// Config holds all configuration for the application
type Config struct {
	// Debug enables verbose logging and additional debug information
	Debug bool `mapstructure:"debug"`

	Log     LogConfig     `mapstructure:"log"`
	Verify  VerifyConfig  `mapstructure:"verify"`
	Kube    KubeConfig    `mapstructure:"kube"`
	Server  ServerConfig  `mapstructure:"server"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// LogConfig controls the logger
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
	// File enables rotated file output when set
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
}

// VerifyConfig controls the verification poll loop
type VerifyConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// Kinds restricts verification to these kinds
	Kinds []string `mapstructure:"kinds" validate:"dive,required"`
	// Expressions registers expression verifiers for additional kinds
	Expressions []ExpressionConfig `mapstructure:"expressions" validate:"dive"`
}

// ExpressionConfig describes one expression verifier
type ExpressionConfig struct {
	// APIVersion may be "*" or empty to match any version
	APIVersion string `mapstructure:"api_version"`
	Kind       string `mapstructure:"kind" validate:"required"`
	Expression string `mapstructure:"expression" validate:"required"`
}

// KubeConfig selects how the cluster is queried
type KubeConfig struct {
	Kubeconfig string `mapstructure:"kubeconfig"`
	Context    string `mapstructure:"context"`
	Namespace  string `mapstructure:"namespace"`
	Backend    string `mapstructure:"backend" validate:"oneof=kubectl dynamic"`
}

// ServerConfig holds the API server settings
type ServerConfig struct {
	Host    string        `mapstructure:"host"`
	Port    int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// TracingConfig enables span export
type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Output is "stderr", "stdout" or a file path
	Output string `mapstructure:"output"`
}

// Load initializes and returns the configuration from all sources:
// 1. Command-line flags (highest priority, applied by the caller)
// 2. Environment variables (prefixed with ROLLOUT_SCOPE_)
// 3. Configuration file (lowest priority)
func Load(configPath string) (*Config, error) {
	// Check for environment variable config path if not explicitly provided
	if configPath == "" {
		if envPath := os.Getenv(RolloutScopeConfigPathEnvVar); envPath != "" {
			if _, err := os.Stat(envPath); os.IsNotExist(err) {
				return nil, fmt.Errorf("config file specified in %s not found: %s", RolloutScopeConfigPathEnvVar, envPath)
			}
			configPath = envPath
		}
	} else {
		// Verify explicitly provided config file exists
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
	}
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config.yml in the current directory
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ROLLOUT_SCOPE")
	v.AutomaticEnv()
	// Replace dots with underscores in env vars
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		} else if configPath != "" {
			// Only error if config file was explicitly specified
			return nil, fmt.Errorf("specified config file not found: %s", configPath)
		}
		// If no config file was specified, we'll use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Default returns the configuration used when no file or environment is present
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	// Defaults always decode
	_ = v.Unmarshal(&config)
	return &config
}

// Validate checks the configuration against its struct constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// setDefaults sets default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)

	// Verify defaults
	v.SetDefault("verify.poll_interval", "5s")
	v.SetDefault("verify.timeout", "5m")
	v.SetDefault("verify.kinds", []string{"deployment"})

	// Kube defaults
	v.SetDefault("kube.kubeconfig", "")
	v.SetDefault("kube.context", "")
	v.SetDefault("kube.namespace", "default")
	v.SetDefault("kube.backend", "kubectl")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout", "30s")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.output", "stderr")
}
