package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/feeld/ledgerd/pkg/log"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Logger is the logging interface used throughout the module. It is an
// alias for pkg/log's interface so call sites can keep writing `Logger`
// the way the rest of the codebase does.
type Logger = log.Logger

const (
	configDirPathEnv     = "LEDGERD_CONFIG_DIR_PATH"
	defaultConfigDirPath = "."
)

// Config represents the overall application configuration: where the
// ledger is stored, how transfers are priced and split, and where the
// HTTP and metrics listeners bind.
type Config struct {
	dbConf            DatabaseConfig
	logConf           log.Config
	feePolicy         FeePolicy
	splitPolicy       SplitPolicy
	vaults            VaultRegistry
	bootstrapSecrets  map[string]string
	httpListenAddr    string
	metricsListenAddr string
}

// LoadConfig builds configuration from environment variables, a .env
// file, and the policy.yaml file in the config directory.
func LoadConfig(logger Logger) (*Config, error) {
	logger = logger.WithName("config")

	configDirPath := os.Getenv(configDirPathEnv)
	if configDirPath == "" {
		configDirPath = defaultConfigDirPath
	}

	configDotEnvPath := filepath.Join(configDirPath, ".env")
	logger.Info("loading .env file", "path", configDotEnvPath)
	if err := godotenv.Load(configDotEnvPath); err != nil {
		logger.Warn(".env file not found")
	}

	var dbConf DatabaseConfig
	dbURL := os.Getenv("LEDGERD_DATABASE_URL")
	if dbURL != "" {
		var err error
		dbConf, err = ParseConnectionString(dbURL)
		if err != nil {
			logger.Error("failed to parse connection string", "err", err)
			return nil, err
		}
	} else if err := cleanenv.ReadEnv(&dbConf); err != nil {
		logger.Error("failed to read database env", "err", err)
		return nil, err
	}

	var logConf log.Config
	if err := cleanenv.ReadEnv(&logConf); err != nil {
		logger.Error("failed to read log env", "err", err)
		return nil, err
	}

	feePolicy, splitPolicy, vaults, err := LoadPolicyConfig(configDirPath)
	if err != nil {
		logger.Error("failed to load policy config", "err", err)
		return nil, err
	}

	bootstrapSecrets, err := parseBootstrapSecrets(os.Getenv("LEDGERD_BOOTSTRAP_SECRETS"))
	if err != nil {
		logger.Error("failed to parse bootstrap secrets", "err", err)
		return nil, err
	}

	httpListenAddr := os.Getenv("LEDGERD_HTTP_LISTEN_ADDR")
	if httpListenAddr == "" {
		httpListenAddr = ":8000"
	}
	metricsListenAddr := os.Getenv("LEDGERD_METRICS_LISTEN_ADDR")
	if metricsListenAddr == "" {
		metricsListenAddr = ":4242"
	}

	config := Config{
		dbConf:            dbConf,
		logConf:           logConf,
		feePolicy:         feePolicy,
		splitPolicy:       splitPolicy,
		vaults:            vaults,
		bootstrapSecrets:  bootstrapSecrets,
		httpListenAddr:    httpListenAddr,
		metricsListenAddr: metricsListenAddr,
	}

	return &config, nil
}

// parseBootstrapSecrets decodes LEDGERD_BOOTSTRAP_SECRETS, a
// comma-separated list of account=secret pairs used to pre-register
// accounts without going through POST /accounts. An empty value yields
// an empty map.
func parseBootstrapSecrets(raw string) (map[string]string, error) {
	secrets := make(map[string]string)
	if raw == "" {
		return secrets, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		account, secret, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found || account == "" || secret == "" {
			return nil, fmt.Errorf("config: malformed bootstrap secret entry %q, want account=secret", pair)
		}
		secrets[account] = secret
	}
	return secrets, nil
}
