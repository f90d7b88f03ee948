// Package config loads server settings from defaults, an optional YAML file
// and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dukerupert/habitflow/internal/day"
)

type Config struct {
	Port             string   `yaml:"port"`
	DBPath           string   `yaml:"db_path"`
	LogLevel         string   `yaml:"log_level"`
	LogFile          string   `yaml:"log_file"`
	JWTSecret        string   `yaml:"jwt_secret"`
	ClientURL        string   `yaml:"client_url"`
	CORSOrigins      []string `yaml:"cors_origins"`
	PostmarkToken    string   `yaml:"postmark_token"`
	FromEmail        string   `yaml:"from_email"`
	GeminiAPIKey     string   `yaml:"gemini_api_key"`
	GeminiModel      string   `yaml:"gemini_model"`
	DefaultTimezone  string   `yaml:"default_timezone"`
	RemindersEnabled bool     `yaml:"reminders_enabled"`

	Push   PushConfig   `yaml:"push"`
	Backup BackupConfig `yaml:"backup"`
}

// PushConfig holds the VAPID key pair for web push reminders.
type PushConfig struct {
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	Subscriber      string `yaml:"subscriber"`
}

// BackupConfig holds encrypted backup settings. Backups stay disabled until
// a bucket, credentials and passphrase are set.
type BackupConfig struct {
	S3Endpoint    string        `yaml:"s3_endpoint"`
	S3Bucket      string        `yaml:"s3_bucket"`
	S3Region      string        `yaml:"s3_region"`
	S3AccessKey   string        `yaml:"s3_access_key"`
	S3SecretKey   string        `yaml:"s3_secret_key"`
	Passphrase    string        `yaml:"passphrase"`
	RetentionDays int           `yaml:"retention_days"`
	Interval      time.Duration `yaml:"interval"`
}

// ErrMissingJWTSecret is returned by Validate when no signing secret is set.
var ErrMissingJWTSecret = errors.New("jwt_secret is required")

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:             "5000",
		DBPath:           "habitflow.db",
		LogLevel:         "info",
		ClientURL:        "http://localhost:4200",
		FromEmail:        "reminders@habitflow.app",
		GeminiModel:      "gemini-2.5-flash-lite",
		DefaultTimezone:  day.DefaultTimezone,
		RemindersEnabled: true,
		Backup: BackupConfig{
			S3Region:      "us-east-1",
			RetentionDays: 30,
			Interval:      24 * time.Hour,
		},
	}
}

// LoadDotenv loads a .env file if one exists. Variables already set in the
// environment win.
func LoadDotenv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// Load builds the configuration. path names an optional YAML file; when empty
// HABITFLOW_CONFIG is consulted.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("HABITFLOW_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Push.Subscriber == "" {
		cfg.Push.Subscriber = cfg.FromEmail
	}
	return cfg, nil
}

// Validate checks settings the server cannot run without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return ErrMissingJWTSecret
	}
	if c.DefaultTimezone != "" && !day.ValidTimezone(c.DefaultTimezone) {
		return fmt.Errorf("unknown default_timezone %q", c.DefaultTimezone)
	}
	if (c.Push.VAPIDPublicKey == "") != (c.Push.VAPIDPrivateKey == "") {
		return errors.New("push.vapid_public_key and push.vapid_private_key must be set together")
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("backup.retention_days must not be negative, got %d", c.Backup.RetentionDays)
	}
	return nil
}

// AllowedOrigins returns the CORS allowlist: the local dev client, the
// client URL and any extra origins, without duplicates or trailing slashes.
func (c Config) AllowedOrigins() []string {
	seen := make(map[string]bool)
	var out []string
	for _, o := range append([]string{"http://localhost:4200", c.ClientURL}, c.CORSOrigins...) {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	return out
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Port, "HABITFLOW_PORT", "PORT")
	setString(&cfg.DBPath, "HABITFLOW_DB_PATH")
	setString(&cfg.LogLevel, "HABITFLOW_LOG_LEVEL")
	setString(&cfg.LogFile, "HABITFLOW_LOG_FILE")
	setString(&cfg.JWTSecret, "HABITFLOW_JWT_SECRET", "JWT_SECRET")
	setString(&cfg.ClientURL, "HABITFLOW_CLIENT_URL", "CLIENT_URL")
	setString(&cfg.PostmarkToken, "HABITFLOW_POSTMARK_TOKEN", "POSTMARK_SERVER_TOKEN")
	setString(&cfg.FromEmail, "HABITFLOW_FROM_EMAIL")
	setString(&cfg.GeminiAPIKey, "HABITFLOW_GEMINI_API_KEY", "GEMINI_API_KEY")
	setString(&cfg.GeminiModel, "HABITFLOW_GEMINI_MODEL")
	setString(&cfg.DefaultTimezone, "HABITFLOW_DEFAULT_TIMEZONE")
	setString(&cfg.Push.VAPIDPublicKey, "HABITFLOW_VAPID_PUBLIC_KEY")
	setString(&cfg.Push.VAPIDPrivateKey, "HABITFLOW_VAPID_PRIVATE_KEY")
	setString(&cfg.Push.Subscriber, "HABITFLOW_VAPID_SUBSCRIBER")
	setString(&cfg.Backup.S3Endpoint, "HABITFLOW_S3_ENDPOINT")
	setString(&cfg.Backup.S3Bucket, "HABITFLOW_S3_BUCKET")
	setString(&cfg.Backup.S3Region, "HABITFLOW_S3_REGION")
	setString(&cfg.Backup.S3AccessKey, "HABITFLOW_S3_ACCESS_KEY")
	setString(&cfg.Backup.S3SecretKey, "HABITFLOW_S3_SECRET_KEY")
	setString(&cfg.Backup.Passphrase, "HABITFLOW_BACKUP_PASSPHRASE")

	if v := lookup("HABITFLOW_CORS_ORIGINS", "CORS_ORIGIN"); v != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	if v := lookup("HABITFLOW_REMINDERS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse HABITFLOW_REMINDERS_ENABLED: %w", err)
		}
		cfg.RemindersEnabled = b
	}

	if v := lookup("HABITFLOW_BACKUP_RETENTION_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse HABITFLOW_BACKUP_RETENTION_DAYS: %w", err)
		}
		cfg.Backup.RetentionDays = n
	}

	if v := lookup("HABITFLOW_BACKUP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse HABITFLOW_BACKUP_INTERVAL: %w", err)
		}
		cfg.Backup.Interval = d
	}
	return nil
}

func setString(dst *string, keys ...string) {
	if v := lookup(keys...); v != "" {
		*dst = v
	}
}

// lookup returns the first non-empty variable among keys.
func lookup(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
