package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/mekobeko2222/bubbles-ecommerce-app/internal/retention"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
	TokenTTL string `yaml:"token_ttl"`
}

type YamlFirebaseConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
}

type YamlSweepConfig struct {
	Schedule string `yaml:"schedule"`
	Timezone string `yaml:"timezone"`
	QueueTTL string `yaml:"queue_ttl"`
	TokenTTL string `yaml:"token_ttl"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID              string             `yaml:"project_id"`
	ListenAddr             string             `yaml:"listen_addr"`
	LogLevel               string             `yaml:"log_level"`
	TopicID                string             `yaml:"topic_id"`
	SubscriptionID         string             `yaml:"subscription_id"`
	SubscriptionDLQTopicID string             `yaml:"subscription_dlq_topic_id"`
	CustomerTopic          string             `yaml:"customer_topic"`
	CorsConfig             YamlCorsConfig     `yaml:"cors"`
	RedisConfig            YamlRedisConfig    `yaml:"redis"`
	FirebaseConfig         YamlFirebaseConfig `yaml:"firebase"`
	SweepConfig            YamlSweepConfig    `yaml:"sweep"`
	NumPipelineWorkers     int                `yaml:"num_pipeline_workers"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:      baseCfg.ProjectID,
		ListenAddr:     baseCfg.ListenAddr,
		TopicID:        baseCfg.TopicID,
		SubscriptionID: baseCfg.SubscriptionID,
		CustomerTopic:  baseCfg.CustomerTopic,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
		},
		Firebase: FirebaseConfig{
			CredentialsFile: baseCfg.FirebaseConfig.CredentialsFile,
		},
		Sweep: retention.Config{
			Schedule: baseCfg.SweepConfig.Schedule,
			Timezone: baseCfg.SweepConfig.Timezone,
		},
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,
	}

	if baseCfg.LogLevel != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(baseCfg.LogLevel)); err != nil {
			return nil, fmt.Errorf("invalid log_level %q: %w", baseCfg.LogLevel, err)
		}
	}

	var err error
	if cfg.Redis.TokenTTL, err = parseDuration("redis.token_ttl", baseCfg.RedisConfig.TokenTTL); err != nil {
		return nil, err
	}
	if cfg.Sweep.QueueTTL, err = parseDuration("sweep.queue_ttl", baseCfg.SweepConfig.QueueTTL); err != nil {
		return nil, err
	}
	if cfg.Sweep.TokenTTL, err = parseDuration("sweep.token_ttl", baseCfg.SweepConfig.TokenTTL); err != nil {
		return nil, err
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"subscription_id", cfg.SubscriptionID,
	)

	return cfg, nil
}

// parseDuration treats an empty value as unset.
func parseDuration(key, val string) (time.Duration, error) {
	if val == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	return d, nil
}
