package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"gopkg.in/yaml.v3"

	"github.com/mekobeko2222/bubbles-ecommerce-app/notificationservice/config"
)

func TestNewConfigFromYaml(t *testing.T) {
	logger := newTestLogger()

	t.Run("Success - maps all fields correctly", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{
			ProjectID:              "yaml-project",
			ListenAddr:             ":9000",
			LogLevel:               "warn",
			TopicID:                "yaml-topic",
			SubscriptionID:         "yaml-subscription",
			SubscriptionDLQTopicID: "yaml-dlq",
			CustomerTopic:          "yaml-customers",
			NumPipelineWorkers:     5,
			CorsConfig: config.YamlCorsConfig{
				AllowedOrigins: []string{"http://yaml.com"},
				Role:           "editor",
			},
			RedisConfig: config.YamlRedisConfig{
				Addr:     "redis:6379",
				Enabled:  true,
				TokenTTL: "2m",
			},
			FirebaseConfig: config.YamlFirebaseConfig{CredentialsFile: "sa.json"},
			SweepConfig: config.YamlSweepConfig{
				Schedule: "0 3 * * *",
				Timezone: "UTC",
				QueueTTL: "168h",
				TokenTTL: "720h",
			},
		}

		cfg, err := config.NewConfigFromYaml(yamlCfg, logger)

		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "yaml-project", cfg.ProjectID)
		assert.Equal(t, ":9000", cfg.ListenAddr)
		assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
		assert.Equal(t, "yaml-topic", cfg.TopicID)
		assert.Equal(t, "yaml-subscription", cfg.SubscriptionID)
		assert.Equal(t, "yaml-dlq", cfg.SubscriptionDLQTopicID)
		assert.Equal(t, "yaml-customers", cfg.CustomerTopic)
		assert.Equal(t, 5, cfg.NumPipelineWorkers)

		assert.Equal(t, []string{"http://yaml.com"}, cfg.CorsConfig.AllowedOrigins)
		assert.Equal(t, middleware.CorsRoleEditor, cfg.CorsConfig.Role)

		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, 2*time.Minute, cfg.Redis.TokenTTL)
		assert.Equal(t, "sa.json", cfg.Firebase.CredentialsFile)
		assert.Equal(t, "0 3 * * *", cfg.Sweep.Schedule)
		assert.Equal(t, 7*24*time.Hour, cfg.Sweep.QueueTTL)
		assert.Equal(t, 30*24*time.Hour, cfg.Sweep.TokenTTL)

		assert.NotNil(t, cfg.PubsubConsumerConfig)
	})

	t.Run("Success - Handles missing optional fields gracefully", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{
			ProjectID:      "minimal-project",
			SubscriptionID: "minimal-sub",
		}

		cfg, err := config.NewConfigFromYaml(yamlCfg, logger)

		require.NoError(t, err)
		assert.Equal(t, "minimal-project", cfg.ProjectID)
		assert.Equal(t, 0, cfg.NumPipelineWorkers)
		assert.Empty(t, cfg.ListenAddr)
		assert.Zero(t, cfg.Sweep.QueueTTL)
	})

	t.Run("Failure - Bad duration", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{SweepConfig: config.YamlSweepConfig{QueueTTL: "a week"}}

		_, err := config.NewConfigFromYaml(yamlCfg, logger)

		assert.ErrorContains(t, err, "sweep.queue_ttl")
	})

	t.Run("Decodes from YAML", func(t *testing.T) {
		raw := []byte(`
project_id: "p"
subscription_id: "s"
topic_id: "t"
sweep:
  schedule: "0 0 * * *"
  timezone: "Africa/Cairo"
redis:
  enabled: false
`)
		var yamlCfg config.YamlConfig
		require.NoError(t, yaml.Unmarshal(raw, &yamlCfg))

		cfg, err := config.NewConfigFromYaml(&yamlCfg, logger)

		require.NoError(t, err)
		assert.Equal(t, "Africa/Cairo", cfg.Sweep.Timezone)
		assert.Equal(t, "t", cfg.TopicID)
	})
}
