package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      LogConfig
	Database DatabaseConfig
	Archive  ArchiveConfig
	Retrieve RetrieveConfig
	Measure  MeasureConfig
	Metrics  MetricsConfig
}

type LogConfig struct {
	Format string
	Level  string
}

type DatabaseConfig struct {
	// CredentialsPath points at the YAML key/value credentials document.
	// DSN, when set, wins over the credentials file.
	CredentialsPath string
	DSN             string
}

type ArchiveConfig struct {
	BaseURL  string
	Username string
	Timeout  time.Duration
}

type RetrieveConfig struct {
	BatchSize int
	// Skip is the number of leading batches to skip when re-running after
	// a crash. Operator-provided unless Resume is set.
	Skip   int
	Resume bool
	// WaitTime is the pause between status polls against the archive.
	WaitTime           time.Duration
	RequestNumbersPath string
	RemotePathsPath    string
	TemplatePath       string
	ScriptPath         string
}

type MeasureConfig struct {
	Workers int
	DataDir string
	// ReconnectMin/Max bound the jittered pause before redialing the
	// database after a dropped connection.
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

type MetricsConfig struct {
	Enabled bool
	Addr    string
}

// MustLoad reads configuration from the environment with defaults matching
// the historical in-source constants of the survey scripts.
func MustLoad() Config {
	log.Println("[config] loading")

	return Config{
		Log: LogConfig{
			Format: getenvDefault("LOG_FORMAT", "text"),
			Level:  getenvDefault("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			CredentialsPath: getenvDefault("DB_CREDENTIALS", "db/credentials.yaml"),
			DSN:             os.Getenv("DATABASE_DSN"),
		},
		Archive: ArchiveConfig{
			BaseURL:  getenvDefault("ARCHIVE_URL", "https://dataportal.eso.org"),
			Username: os.Getenv("ARCHIVE_USERNAME"),
			Timeout:  parseDuration(getenvDefault("ARCHIVE_TIMEOUT", "120s")),
		},
		Retrieve: RetrieveConfig{
			BatchSize:          parseInt(getenvDefault("BATCH_SIZE", "2500")),
			Skip:               parseInt(getenvDefault("SKIP", "0")),
			Resume:             os.Getenv("RESUME") == "true",
			WaitTime:           parseDuration(getenvDefault("WAIT_TIME", "60s")),
			RequestNumbersPath: getenvDefault("REQUEST_NUMBERS_PATH", "eso_retrieve_request_numbers.json"),
			RemotePathsPath:    getenvDefault("REMOTE_PATHS_PATH", "eso_retrieve_paths.json"),
			TemplatePath:       getenvDefault("TEMPLATE_PATH", "download_template.sh"),
			ScriptPath:         getenvDefault("SCRIPT_PATH", filepath.Join("data", "spectra", "download_spectra.sh")),
		},
		Measure: MeasureConfig{
			Workers:      parseInt(getenvDefault("WORKERS", "4")),
			DataDir:      getenvDefault("DATA_DIR", filepath.Join("data", "spectra")),
			ReconnectMin: parseDuration(getenvDefault("RECONNECT_MIN", "5s")),
			ReconnectMax: parseDuration(getenvDefault("RECONNECT_MAX", "10s")),
		},
		Metrics: MetricsConfig{
			Enabled: os.Getenv("METRICS_ENABLED") == "true",
			Addr:    getenvDefault("METRICS_ADDR", ":9464"),
		},
	}
}

// Credentials is the structured key/value credentials document shared with
// the ingestion tooling.
type Credentials struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DBName   string `yaml:"dbname"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// LoadCredentials reads the YAML credentials file at path.
func LoadCredentials(path string) (Credentials, error) {
	var creds Credentials

	data, err := os.ReadFile(path)
	if err != nil {
		return creds, fmt.Errorf("read credentials %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("parse credentials %s: %w", path, err)
	}

	if creds.Port == 0 {
		creds.Port = 5432
	}

	return creds, nil
}

// DSN renders the credentials as a postgres connection URL.
func (c Credentials) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   "/" + c.DBName,
	}
	return u.String()
}

// ResolveDSN returns the explicit DSN when present, otherwise loads and
// renders the credentials file.
func (c DatabaseConfig) ResolveDSN() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	creds, err := LoadCredentials(c.CredentialsPath)
	if err != nil {
		return "", err
	}
	return creds.DSN(), nil
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func parseInt(v string) int {
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return parsed
}

func parseDuration(v string) time.Duration {
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return parsed
}
