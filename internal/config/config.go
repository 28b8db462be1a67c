package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DefaultSourceURL is the Kandilli Observatory latest-earthquakes page.
const DefaultSourceURL = "http://www.koeri.boun.edu.tr/scripts/lst0.asp"

// Config holds all service settings, populated from environment variables.
type Config struct {
	SourceURL     string
	SourceCharset string
	FetchTimeout  time.Duration
	FetchRetries  int
	FetchBackoff  time.Duration
	HeaderLines   int

	DataDir     string
	CSVPath     string
	JSONPath    string
	FrontendDir string

	HTTPAddr        string
	RunInterval     time.Duration
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Optional Kafka record publishing.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := parsePositiveDuration("FETCH_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	fetchRetries, err := strconv.Atoi(sharedcfg.EnvOrDefault("FETCH_RETRIES", "0"))
	if err != nil || fetchRetries < 0 {
		return nil, errors.New("invalid FETCH_RETRIES")
	}

	fetchBackoff, err := parsePositiveDuration("FETCH_BACKOFF", "1s")
	if err != nil {
		return nil, err
	}

	runInterval, err := parsePositiveDuration("RUN_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}

	headerLines, err := strconv.Atoi(sharedcfg.EnvOrDefault("HEADER_LINES", "7"))
	if err != nil || headerLines < 0 {
		return nil, errors.New("invalid HEADER_LINES")
	}

	dataDir := sharedcfg.EnvOrDefault("DATA_DIR", "data")

	cfg := &Config{
		SourceURL:     sharedcfg.EnvOrDefault("SOURCE_URL", DefaultSourceURL),
		SourceCharset: os.Getenv("SOURCE_CHARSET"),
		FetchTimeout:  fetchTimeout,
		FetchRetries:  fetchRetries,
		FetchBackoff:  fetchBackoff,
		HeaderLines:   headerLines,

		DataDir:     dataDir,
		CSVPath:     sharedcfg.EnvOrDefault("CSV_PATH", filepath.Join(dataDir, "quakes.csv")),
		JSONPath:    sharedcfg.EnvOrDefault("JSON_PATH", filepath.Join(dataDir, "quakes.json")),
		FrontendDir: sharedcfg.EnvOrDefault("FRONTEND_DIR", "frontend"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8000"),
		RunInterval:     runInterval,
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "seismic-records"),
	}

	if u, err := url.Parse(cfg.SourceURL); err != nil || !u.IsAbs() {
		return nil, errors.New("SOURCE_URL must be an absolute URL")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is empty")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
