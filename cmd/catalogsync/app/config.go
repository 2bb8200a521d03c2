package app

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/catalogsync/pkg/constants"
	"github.com/agentstation/catalogsync/pkg/reconciler"
)

// Config holds the application configuration loaded from config files,
// environment variables and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Catalog configuration
	CatalogRoot    string
	Concurrency    int
	Timeout        time.Duration
	ProvenanceFile string
	Generators     map[string]reconciler.GeneratorConfig

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables
// 3. .env files
// 4. Config file (~/.catalogsync.yaml or ./.catalogsync.yaml)
// 5. Defaults
func LoadConfig() (*Config, error) {
	return loadConfig("")
}

// loadConfig loads the configuration, reading configFile when given.
func loadConfig(configFile string) (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	v.SetDefault("catalog_root", ".")
	v.SetDefault("concurrency", constants.DefaultConcurrency)
	v.SetDefault("timeout", constants.CommandTimeout)
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")

	if configFile == "" {
		configFile = v.GetString("config")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".catalogsync")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	config := &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no_color"),
		Format:  v.GetString("format"),

		ConfigFile: v.ConfigFileUsed(),

		CatalogRoot:    v.GetString("catalog_root"),
		Concurrency:    v.GetInt("concurrency"),
		Timeout:        v.GetDuration("timeout"),
		ProvenanceFile: v.GetString("provenance_file"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
		LogOutput: v.GetString("log_output"),
	}

	generators, err := loadGenerators(v)
	if err != nil {
		return nil, err
	}
	config.Generators = generators

	return config, nil
}

// loadGenerators decodes the per-generator options. Each entry starts
// from the defaults so omitted keys keep their default values.
func loadGenerators(v *viper.Viper) (map[string]reconciler.GeneratorConfig, error) {
	out := make(map[string]reconciler.GeneratorConfig)
	for name := range v.GetStringMap("generators") {
		cfg := reconciler.DefaultGeneratorConfig(name)
		if err := v.UnmarshalKey("generators."+name, &cfg); err != nil {
			return nil, err
		}
		if cfg.Name == "" {
			cfg.Name = name
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		out[name] = cfg
	}
	return out, nil
}

// Generator returns the options for the named generator, or its defaults.
func (c *Config) Generator(name string) reconciler.GeneratorConfig {
	if cfg, ok := c.Generators[name]; ok {
		return cfg
	}
	return reconciler.DefaultGeneratorConfig(name)
}

// UpdateFromFlags updates config values from parsed command flags.
// Flag values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel, root string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if root != "" {
		c.CatalogRoot = root
	}
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}
