package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode      Mode   `mapstructure:"mode"`
	HTTPAddr  string `mapstructure:"http_addr"`
	PublicURL string `mapstructure:"public_url"`

	DBDriver string `mapstructure:"db_driver"`
	DBDSN    string `mapstructure:"db_dsn"`

	BlobDriver   string `mapstructure:"blob_driver"`    // fs|minio
	BlobBasePath string `mapstructure:"blob_base_path"` // for fs

	MinioEndpoint  string `mapstructure:"minio_endpoint"`
	MinioAccessKey string `mapstructure:"minio_access_key"`
	MinioSecretKey string `mapstructure:"minio_secret_key"`
	MinioBucket    string `mapstructure:"minio_bucket"`

	AuthHMACSecret string        `mapstructure:"auth_hmac_secret"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	EnableLogin    bool          `mapstructure:"enable_login"`
	RoleFromDB     bool          `mapstructure:"role_from_db"`

	CORSOrigins string `mapstructure:"cors_origins"`

	LogLevel string `mapstructure:"log_level"` // debug|info|warn|error
	LogFile  string `mapstructure:"log_file"`  // empty: stdout

	PDFBrowser    string        `mapstructure:"pdf_browser"` // chromium binary; empty: HTML reports only
	ReportTimeout time.Duration `mapstructure:"report_timeout"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("mode", string(ModeOffline))
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("public_url", "")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_dsn", "")
	v.SetDefault("blob_driver", "fs")
	v.SetDefault("blob_base_path", "./data")
	v.SetDefault("minio_endpoint", "")
	v.SetDefault("minio_access_key", "")
	v.SetDefault("minio_secret_key", "")
	v.SetDefault("minio_bucket", "coach-reports")
	v.SetDefault("auth_hmac_secret", devHMACSecret)
	v.SetDefault("token_ttl", 8*time.Hour)
	v.SetDefault("enable_login", true)
	v.SetDefault("role_from_db", true)
	v.SetDefault("cors_origins", "http://localhost:3000")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("pdf_browser", "")
	v.SetDefault("report_timeout", 30*time.Second)
}

// Load reads defaults, then the optional YAML file at path, then environment
// variables (HTTP_ADDR, DB_DRIVER, ...), later sources winning.
func Load(path string) (Config, error) {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

const devHMACSecret = "supersecret-dev-key"

func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("http_addr: must be specified")
	}
	switch c.Mode {
	case ModeOffline, ModeOnline:
	default:
		return fmt.Errorf("mode: unsupported value '%s'", c.Mode)
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("db_driver: unsupported value '%s'", c.DBDriver)
	}
	switch c.BlobDriver {
	case "fs":
	case "minio":
		if c.MinioEndpoint == "" || c.MinioBucket == "" {
			return errors.New("minio: endpoint and bucket must be specified")
		}
	default:
		return fmt.Errorf("blob_driver: unsupported value '%s'", c.BlobDriver)
	}
	valid := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !valid[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level: unsupported level '%s'", c.LogLevel)
	}
	if strings.TrimSpace(c.AuthHMACSecret) == "" {
		return errors.New("auth_hmac_secret: must not be empty")
	}
	if c.Mode == ModeOnline && c.AuthHMACSecret == devHMACSecret {
		return errors.New("auth_hmac_secret: must be set in online mode")
	}
	return nil
}

// Origins splits the comma separated CORS origin list.
func (c Config) Origins() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
