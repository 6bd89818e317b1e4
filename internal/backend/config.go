package backend

import (
	"errors"
	"fmt"

	"cashflow/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	c := Config{
		Type:         BackendType(appConfig.DataBackend),
		SQLiteDBPath: appConfig.SQLiteDBPath,
		SeedDir:      appConfig.SeedDir,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		ReportCache:    CacheType(appConfig.ReportCache),
		ReportCacheTTL: appConfig.ReportCacheTTL,
		RedisURL:       appConfig.RedisURL,

		ClassifierKeywordsFile: appConfig.ClassifierKeywordsFile,
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return errors.New("SQLite database path is required for sqlite backend")
	}
	if c.ReportCache != "" && !c.ReportCache.IsValid() {
		return fmt.Errorf("invalid report cache: %s", c.ReportCache)
	}
	if c.ReportCache == RedisCache && c.RedisURL == "" {
		return errors.New("REDIS_URL is required for the redis report cache")
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return errors.New("AMQP exchange and queue are required when AMQP_URL is set")
	}
	return nil
}

