package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	MongoURI   string
	DataDir    string
	APIBaseURL string
	APIKey     string
	Models     []string
	logger     *zap.Logger
}

var (
	configInstance *Config
	once           sync.Once
)

func InitConfig() (*Config, error) {
	var initErr error

	once.Do(func() {
		config := zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		logger, err := config.Build()
		if err != nil {
			logger = zap.NewNop()
			initErr = fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer logger.Sync()

		// Load .env file
		if err := godotenv.Load(); err != nil {
			if os.IsNotExist(err) {
				logger.Warn("No .env file found; falling back to system environment variables")
			} else {
				initErr = fmt.Errorf("failed to load .env file: %w", err)
				logger.Error("Config file load error", zap.Error(err))
				return
			}
		} else {
			logger.Debug("Successfully loaded .env file")
		}

		mongoURI := os.Getenv("MONGO_URI")
		if mongoURI == "" {
			logger.Warn("MONGO_URI not set in environment variables")
		}

		dataDir := os.Getenv("PARLEY_DATA_DIR")
		if dataDir == "" {
			dataDir, err = os.Getwd()
			if err != nil {
				initErr = fmt.Errorf("failed to resolve data directory: %w", err)
				return
			}
		}

		var models []string
		if raw := os.Getenv("PARLEY_MODELS"); raw != "" {
			for _, m := range strings.Split(raw, ",") {
				if m = strings.TrimSpace(m); m != "" {
					models = append(models, m)
				}
			}
		}

		configInstance = &Config{
			MongoURI:   mongoURI,
			DataDir:    dataDir,
			APIBaseURL: os.Getenv("PARLEY_API"),
			APIKey:     os.Getenv("PARLEY_API_KEY"),
			Models:     models,
			logger:     logger,
		}

		// Deployment configs pass secrets as #{VAR}# references.
		for _, ref := range []*string{&configInstance.MongoURI, &configInstance.APIKey} {
			if *ref == "" {
				continue
			}
			resolved, err := configInstance.ResolveEnvironmentVariable(*ref)
			if err != nil {
				initErr = fmt.Errorf("failed to resolve config reference: %w", err)
				configInstance = nil
				return
			}
			*ref = resolved
		}
	})

	if initErr != nil {
		return nil, initErr
	}
	if configInstance == nil {
		return nil, fmt.Errorf("configuration initialization failed unexpectedly")
	}

	return configInstance, nil
}

func (c *Config) ResolveEnvironmentVariable(value string) (string, error) {
	const prefix, suffix = "#{", "}#"
	if strings.HasPrefix(value, prefix) && strings.HasSuffix(value, suffix) {
		varName := strings.TrimSuffix(strings.TrimPrefix(value, prefix), suffix)
		if varName == "" {
			return "", fmt.Errorf("empty variable name in reference: %s", value)
		}

		resolved := os.Getenv(varName)
		if resolved == "" {
			c.logger.Warn("Environment variable not found for reference",
				zap.String("reference", value),
				zap.String("var_name", varName))
			return "", fmt.Errorf("environment variable '%s' not found", varName)
		}

		c.logger.Debug("Resolved environment variable",
			zap.String("var_name", varName),
			zap.String("resolved", maskKey(resolved)))
		return resolved, nil
	}

	c.logger.Debug("Using raw value", zap.String("value", maskKey(value)))
	return value, nil
}

func maskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
