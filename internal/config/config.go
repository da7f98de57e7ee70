package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Match      MatchConfig      `yaml:"match" mapstructure:"match"`
	Edudata    EdudataConfig    `yaml:"edudata" mapstructure:"edudata"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Boundaries BoundariesConfig `yaml:"boundaries" mapstructure:"boundaries"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// SQLitePath is the database file for the sqlite driver.
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// MatchConfig configures the resolution engine.
type MatchConfig struct {
	// MinOverlapTokens is the input-token floor for the word-overlap
	// rules; shorter inputs only match via exact or substring rules.
	MinOverlapTokens int `yaml:"min_overlap_tokens" mapstructure:"min_overlap_tokens"`
}

// EdudataConfig configures the Urban Institute Education Data API client.
type EdudataConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec     float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	DirectoryYear  int     `yaml:"directory_year" mapstructure:"directory_year"`
	MaxConcurrency int     `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// SalesforceConfig holds Salesforce JWT auth settings for the CRM
// alias sync.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// BoundariesConfig configures the NCES EDGE boundary loader.
type BoundariesConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	TempDir string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// ServerConfig configures the report server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEAMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "leamatch.db")
	v.SetDefault("match.min_overlap_tokens", 2)
	v.SetDefault("edudata.base_url", "https://educationdata.urban.org")
	v.SetDefault("edudata.rate_per_sec", 5)
	v.SetDefault("edudata.directory_year", 2022)
	v.SetDefault("edudata.max_concurrency", 4)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("boundaries.base_url", "https://nces.ed.gov")
	v.SetDefault("boundaries.temp_dir", "/tmp/leamatch")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields a command mode requires. Modes: "match",
// "load", "crm", "boundaries", "serve".
func (c *Config) Validate(mode string) error {
	var missing []string

	needStore := func() {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				missing = append(missing, "store.database_url is required")
			}
		case "sqlite":
			if c.Store.SQLitePath == "" {
				missing = append(missing, "store.sqlite_path is required")
			}
		default:
			missing = append(missing, "store.driver must be postgres or sqlite")
		}
	}

	switch mode {
	case "match":
		needStore()
		if c.Match.MinOverlapTokens < 1 {
			missing = append(missing, "match.min_overlap_tokens must be >= 1")
		}
	case "load":
		needStore()
		if c.Edudata.BaseURL == "" {
			missing = append(missing, "edudata.base_url is required")
		}
		if c.Edudata.MaxConcurrency < 1 || c.Edudata.MaxConcurrency > 16 {
			missing = append(missing, "edudata.max_concurrency must be between 1 and 16")
		}
	case "crm":
		needStore()
		if c.Salesforce.ClientID == "" {
			missing = append(missing, "salesforce.client_id is required")
		}
		if c.Salesforce.Username == "" {
			missing = append(missing, "salesforce.username is required")
		}
		if c.Salesforce.KeyPath == "" {
			missing = append(missing, "salesforce.key_path is required")
		}
	case "boundaries":
		// Boundary geometries need the Postgres COPY path.
		if c.Store.Driver != "postgres" || c.Store.DatabaseURL == "" {
			missing = append(missing, "boundaries require store.driver=postgres and store.database_url")
		}
	case "serve":
		needStore()
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
