// Package config is responsible for initializing the application's
// configuration. It uses the Viper library to read settings from a config
// file and environment variables, providing a unified configuration system.
package config

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/gdeltlens/news-pipeline/internal/logging"
)

// InitConfig initializes the application's configuration using Viper.
// It sets up default values, defines configuration search paths, and enables
// reading from environment variables. It is called once at startup so that
// configuration is loaded before any service is constructed.
func InitConfig() {
	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/news-pipeline/")
	viper.AddConfigPath("$HOME/.news-pipeline")

	// --- Defaults ---
	viper.SetDefault("logging.development", false)

	viper.SetDefault("storage.provider", "gcs")
	viper.SetDefault("storage.gcs.bucket_name", "")
	viper.SetDefault("storage.source_prefix", "cleaned_data/")
	viper.SetDefault("storage.archive_prefix", "backup_data/")
	viper.SetDefault("storage.scratch_dir", "")

	viper.SetDefault("pipeline.fetch_concurrency", 10)
	viper.SetDefault("pipeline.queue_factor", 2)
	viper.SetDefault("pipeline.parse_workers", 0) // 0 = one per CPU
	viper.SetDefault("pipeline.fetch_timeout", "20s")
	viper.SetDefault("pipeline.parse_timeout", "30s")
	viper.SetDefault("pipeline.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/100.0.4896.75 Safari/537.36")

	viper.SetDefault("mongo.uri", "")
	viper.SetDefault("mongo.database", "news_database")
	viper.SetDefault("mongo.collection", "articles")

	viper.SetDefault("search.keyword_index", "default")
	viper.SetDefault("search.vector_index", "vector_index")

	viper.SetDefault("embedding.endpoint", "")
	viper.SetDefault("embedding.model", "all-mpnet-base-v2")
	viper.SetDefault("embedding.dimensions", 768)
	viper.SetDefault("embedding.auth_token", "")

	viper.SetDefault("publisher.provider", "noop")
	viper.SetDefault("publisher.gcp.project_id", "")
	viper.SetDefault("publisher.gcp.topic_id", "")

	viper.SetDefault("server.port", 5001)

	// --- Environment variables ---
	viper.SetEnvPrefix("NEWSPIPE") // e.g. NEWSPIPE_MONGO_URI=...
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logging.L.Warn("Config file not found; using defaults and environment variables.")
		} else {
			logging.L.Error("Error reading config file", zap.Error(err))
		}
	} else {
		logging.L.Info("Using config file", zap.String("path", viper.ConfigFileUsed()))
	}
}
