package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations
// accept "1s"-style strings or integer nanoseconds.
type JsonConfig struct {
	HTTPAddress        string         `json:"http_address"`
	GRPCAddress        string         `json:"grpc_address"`
	UserStorage        string         `json:"user_storage"`
	DatabaseDSN        string         `json:"database_dsn"`
	TokenCache         string         `json:"token_cache"`
	RedisAddr          string         `json:"redis_addr"`
	RedisPassword      string         `json:"redis_password"`
	RedisDB            int            `json:"redis_db"`
	KafkaBrokers       []string       `json:"kafka_brokers"`
	KafkaTopic         string         `json:"kafka_topic"`
	KafkaRetryInterval timex.Duration `json:"kafka_retry_interval"`
	ImageStorage       string         `json:"image_storage"`
	ImageStoragePath   string         `json:"image_storage_path"`
	S3User             string         `json:"s3_user"`
	S3Password         string         `json:"s3_password"`
	S3Bucket           string         `json:"s3_bucket"`
	S3Region           string         `json:"s3_region"`
	S3BaseEndpoint     string         `json:"s3_base_endpoint"`
	SecretsPath        string         `json:"secrets_path"`
	BcryptCost         int            `json:"bcrypt_cost"`
	OperationTimeout   timex.Duration `json:"operation_timeout"`
	UploadTimeout      timex.Duration `json:"upload_timeout"`
	ReadinessInterval  timex.Duration `json:"readiness_interval"`
	MetricsEnabled     bool           `json:"metrics_enabled"`
	MetricsPrefix      string         `json:"metrics_prefix"`
	MetricsEndpoint    string         `json:"metrics_endpoint"`
	MetricsInsecure    bool           `json:"metrics_insecure"`
	MetricsInterval    timex.Duration `json:"metrics_interval"`
	LogBackend         string         `json:"log_backend"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}

// parseJson overlays values from the file named by -c/-config. Empty
// values in the file keep what is already set. Secrets are never read
// from this file.
func parseJson(config *Config) error {

	jsonConfigFile := flagx.JsonConfigFlags()

	if jsonConfigFile == "" {
		return nil
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		return fmt.Errorf("%w: read config file: %w", common.ErrorConfig, err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("%w: parse config file: %w", common.ErrorConfig, err)
	}

	setString(&config.HTTPAddress, c.HTTPAddress)
	setString(&config.GRPCAddress, c.GRPCAddress)
	setString(&config.UserStorage, c.UserStorage)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.TokenCache, c.TokenCache)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setInt(&config.RedisDB, c.RedisDB)
	if len(c.KafkaBrokers) > 0 {
		config.KafkaBrokers = c.KafkaBrokers
	}
	setString(&config.KafkaTopic, c.KafkaTopic)
	setDuration(&config.KafkaRetryInterval, c.KafkaRetryInterval)
	setString(&config.ImageStorage, c.ImageStorage)
	setString(&config.ImageStoragePath, c.ImageStoragePath)
	setString(&config.S3User, c.S3User)
	setString(&config.S3Password, c.S3Password)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.SecretsPath, c.SecretsPath)
	setInt(&config.BcryptCost, c.BcryptCost)
	setDuration(&config.OperationTimeout, c.OperationTimeout)
	setDuration(&config.UploadTimeout, c.UploadTimeout)
	setDuration(&config.ReadinessInterval, c.ReadinessInterval)
	config.MetricsEnabled = config.MetricsEnabled || c.MetricsEnabled
	setString(&config.MetricsPrefix, c.MetricsPrefix)
	setString(&config.MetricsEndpoint, c.MetricsEndpoint)
	config.MetricsInsecure = config.MetricsInsecure || c.MetricsInsecure
	setDuration(&config.MetricsInterval, c.MetricsInterval)
	setString(&config.LogBackend, c.LogBackend)

	return nil
}
