// Package config loads and validates typed service configuration via Viper.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Search    SearchConfig    `mapstructure:"search"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Server    ServerConfig    `mapstructure:"server"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// StorageConfig selects and parameterizes the batch-file object store.
type StorageConfig struct {
	Provider      string           `mapstructure:"provider"`
	GCS           GCSStorageConfig `mapstructure:"gcs"`
	SourcePrefix  string           `mapstructure:"source_prefix"`
	ArchivePrefix string           `mapstructure:"archive_prefix"`
	ScratchDir    string           `mapstructure:"scratch_dir"`
}

// GCSStorageConfig holds GCS connection parameters.
type GCSStorageConfig struct {
	BucketName string `mapstructure:"bucket_name"`
}

// PipelineConfig governs fetch/parse concurrency and timeouts.
type PipelineConfig struct {
	FetchConcurrency int           `mapstructure:"fetch_concurrency"`
	QueueFactor      int           `mapstructure:"queue_factor"`
	ParseWorkers     int           `mapstructure:"parse_workers"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	ParseTimeout     time.Duration `mapstructure:"parse_timeout"`
	UserAgent        string        `mapstructure:"user_agent"`
}

// MongoConfig controls access to the document store.
type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// SearchConfig names the Atlas search indexes the query service uses.
type SearchConfig struct {
	KeywordIndex string `mapstructure:"keyword_index"`
	VectorIndex  string `mapstructure:"vector_index"`
}

// EmbeddingConfig parameterizes the embedding provider.
type EmbeddingConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
	AuthToken  string `mapstructure:"auth_token"`
}

// PublisherConfig selects the batch completion notification channel.
type PublisherConfig struct {
	Provider string             `mapstructure:"provider"`
	GCP      GCPPublisherConfig `mapstructure:"gcp"`
}

// GCPPublisherConfig holds Pub/Sub topic metadata.
type GCPPublisherConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// ServerConfig controls HTTP query service behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// Load builds a Config from the provided Viper instance.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDerivedDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDerivedDefaults() {
	if c.Pipeline.ParseWorkers <= 0 {
		c.Pipeline.ParseWorkers = runtime.NumCPU()
	}
	if c.Pipeline.QueueFactor <= 0 {
		c.Pipeline.QueueFactor = 2
	}
}

// Validate enforces required values and reasonable limits. Missing required
// configuration is a startup-fatal condition, not a per-item error.
func (c Config) Validate() error {
	if c.Mongo.URI == "" {
		return fmt.Errorf("mongo.uri must be set")
	}
	if c.Mongo.Database == "" || c.Mongo.Collection == "" {
		return fmt.Errorf("mongo.database and mongo.collection must be set")
	}
	switch c.Storage.Provider {
	case "gcs":
		if c.Storage.GCS.BucketName == "" {
			return fmt.Errorf("storage provider is 'gcs' but storage.gcs.bucket_name is not set")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	if c.Pipeline.FetchConcurrency <= 0 {
		return fmt.Errorf("pipeline.fetch_concurrency must be > 0")
	}
	if c.Pipeline.FetchTimeout <= 0 {
		return fmt.Errorf("pipeline.fetch_timeout must be > 0")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be > 0")
	}
	if c.Publisher.Provider == "pubsub" &&
		(c.Publisher.GCP.ProjectID == "" || c.Publisher.GCP.TopicID == "") {
		return fmt.Errorf("publisher provider is 'pubsub' but project_id or topic_id is not set")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}
