// Package config loads settings from a YAML file, an optional .env file and
// KIDSBANK_* environment variables, in increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dvloznov/kids-bank/internal/domain"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "KIDSBANK_"

// Config is the full application configuration.
type Config struct {
	Log      LogConfig          `yaml:"log"`
	Store    StoreConfig        `yaml:"store"`
	Sync     SyncConfig         `yaml:"sync"`
	Cloud    domain.CloudConfig `yaml:"cloud"`
	Kafka    KafkaConfig        `yaml:"kafka"`
	BigQuery BigQueryConfig     `yaml:"bigquery"`
	Notion   NotionConfig       `yaml:"notion"`
	Gemini   GeminiConfig       `yaml:"gemini"`
	API      APIConfig          `yaml:"api"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// JSON switches from the console writer to JSON lines.
	JSON bool `yaml:"json"`
}

type StoreConfig struct {
	// Driver is sqlite3 or postgres.
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type SyncConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	// QueueSize bounds pending sync runs.
	QueueSize int `yaml:"queue_size"`
	// HistorySize bounds the recorded run history.
	HistorySize int `yaml:"history_size"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Device  string   `yaml:"device"`
}

// Enabled reports whether telemetry should be forwarded.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type BigQueryConfig struct {
	ProjectID string `yaml:"project_id"`
	DatasetID string `yaml:"dataset_id"`
}

type NotionConfig struct {
	Token            string `yaml:"token"`
	AccountsDBID     string `yaml:"accounts_db_id"`
	TransactionsDBID string `yaml:"transactions_db_id"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type APIConfig struct {
	Port string `yaml:"port"`
	// Token, when set, is required as a bearer token on /api/ routes.
	Token string `yaml:"token"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Log:   LogConfig{Level: "info"},
		Store: StoreConfig{Driver: "sqlite3", DSN: "kidsbank.db"},
		Sync: SyncConfig{
			Debounce:    2 * time.Second,
			QueueSize:   4,
			HistorySize: 100,
		},
		Kafka:  KafkaConfig{Topic: "kidsbank_events"},
		Gemini: GeminiConfig{Model: "gemini-2.5-flash"},
		API:    APIConfig{Port: "8080"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty or the file does not exist), the .env file at envFile and
// the process environment.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("Load: read %s: %w", path, err)
		default:
			if err := Parse(data, &cfg); err != nil {
				return cfg, fmt.Errorf("Load: %s: %w", path, err)
			}
		}
	}

	if envFile != "" {
		// godotenv never overrides variables already set in the process.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("Load: env file %s: %w", envFile, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, fmt.Errorf("Load: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML over cfg, rejecting unknown fields.
func Parse(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("Parse: %w", err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	str("LOG_LEVEL", &cfg.Log.Level)
	str("STORE_DRIVER", &cfg.Store.Driver)
	str("STORE_DSN", &cfg.Store.DSN)
	str("CLOUD_PAR_URL", &cfg.Cloud.ParURL)
	str("CLOUD_ENDPOINT", &cfg.Cloud.Endpoint)
	str("CLOUD_BUCKET", &cfg.Cloud.Bucket)
	str("CLOUD_REGION", &cfg.Cloud.Region)
	str("CLOUD_PROVIDER", &cfg.Cloud.Provider)
	str("CLOUD_ACCESS_KEY_ID", &cfg.Cloud.AccessKeyID)
	str("CLOUD_SECRET_ACCESS_KEY", &cfg.Cloud.SecretAccessKey)
	str("CLOUD_CREDENTIALS_FILE", &cfg.Cloud.CredentialsFile)
	str("KAFKA_TOPIC", &cfg.Kafka.Topic)
	str("KAFKA_DEVICE", &cfg.Kafka.Device)
	str("BIGQUERY_PROJECT_ID", &cfg.BigQuery.ProjectID)
	str("BIGQUERY_DATASET_ID", &cfg.BigQuery.DatasetID)
	str("NOTION_TOKEN", &cfg.Notion.Token)
	str("NOTION_ACCOUNTS_DB_ID", &cfg.Notion.AccountsDBID)
	str("NOTION_TRANSACTIONS_DB_ID", &cfg.Notion.TransactionsDBID)
	str("GEMINI_API_KEY", &cfg.Gemini.APIKey)
	str("GEMINI_MODEL", &cfg.Gemini.Model)
	str("API_PORT", &cfg.API.Port)
	str("API_TOKEN", &cfg.API.Token)

	// Same variable the GCS upload tooling has always read.
	if v, ok := lookup("GCS_BUCKET"); ok && cfg.Cloud.Bucket == "" {
		cfg.Cloud.Bucket = v
	}

	if v, ok := lookup(EnvPrefix + "KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "LOG_JSON"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("applyEnv: %sLOG_JSON: %w", EnvPrefix, err)
		}
		cfg.Log.JSON = b
	}
	if v, ok := lookup(EnvPrefix + "SYNC_DEBOUNCE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("applyEnv: %sSYNC_DEBOUNCE: %w", EnvPrefix, err)
		}
		cfg.Sync.Debounce = d
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
