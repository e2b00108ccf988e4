package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/joho/godotenv"
)

// parseEnv overlays fields whose environment variable is set.
func parseEnv(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("%w: parse env: %w", common.ErrorConfig, err)
	}
	return nil
}

// loadSecrets reads TOKEN_ALGORITHM and SECRET_KEY from the dotenv file at
// SecretsPath. Values present in the file win.
func loadSecrets(config *Config) error {
	if config.SecretsPath == "" {
		return nil
	}

	secrets, err := godotenv.Read(config.SecretsPath)
	if err != nil {
		return fmt.Errorf("%w: read secrets file: %w", common.ErrorConfig, err)
	}

	if v := secrets["TOKEN_ALGORITHM"]; v != "" {
		config.TokenAlgorithm = v
	}
	if v := secrets["SECRET_KEY"]; v != "" {
		config.SecretKey = v
	}
	return nil
}
