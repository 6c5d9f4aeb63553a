package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/crash-mapper/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upload handling.
	MaxUploadBytes  int64
	UploadCacheSize int

	// Rendering and classification.
	TileURL          string
	ClassifierConfig string

	// Optional publishing of classified records.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

const (
	defaultMaxUploadBytes  = 10 << 20
	defaultUploadCacheSize = 1
)

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	maxUpload, err := parsePositiveInt("MAX_UPLOAD_BYTES", defaultMaxUploadBytes)
	if err != nil {
		return nil, err
	}

	cacheSize, err := parsePositiveInt("UPLOAD_CACHE_SIZE", defaultUploadCacheSize)
	if err != nil {
		return nil, err
	}

	kafkaEnabled := false
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled, err = strconv.ParseBool(v)
		if err != nil {
			return nil, errors.New("invalid KAFKA_ENABLED")
		}
	}

	cfg := &Config{
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,
		MaxUploadBytes:   int64(maxUpload),
		UploadCacheSize:  cacheSize,
		TileURL:          os.Getenv("TILE_URL"),
		ClassifierConfig: os.Getenv("CLASSIFIER_CONFIG"),
		KafkaEnabled:     kafkaEnabled,
		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:       sharedcfg.EnvOrDefault("KAFKA_TOPIC", "crash-records"),
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
		}
	}

	return cfg, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

// directionFile is the on-disk shape of CLASSIFIER_CONFIG.
type directionFile struct {
	North []string `yaml:"north"`
	South []string `yaml:"south"`
}

// LoadDirectionSets returns the classifier direction sets. An empty path
// selects the built-in sets; otherwise the YAML file at path must define
// disjoint, non-empty north and south lists.
func LoadDirectionSets(path string) (domain.DirectionSets, error) {
	if path == "" {
		return domain.DefaultDirectionSets(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.DirectionSets{}, fmt.Errorf("read CLASSIFIER_CONFIG: %w", err)
	}

	var f directionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return domain.DirectionSets{}, fmt.Errorf("parse CLASSIFIER_CONFIG %s: %w", path, err)
	}
	sets, err := domain.NewDirectionSets(f.North, f.South)
	if err != nil {
		return domain.DirectionSets{}, fmt.Errorf("CLASSIFIER_CONFIG %s: %w", path, err)
	}
	return sets, nil
}
