package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8000")
//	-g string   gRPC health bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-r string   Redis address
//	-b string   Kafka brokers, comma separated
//	-t string   Kafka topic
//	-i string   local image storage directory
//	-k string   path to the dotenv secrets file
//	-s string   JWT HMAC secret key
//	-l string   log backend (slog|zerolog)
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-d", "-r", "-b", "-t", "-i", "-k", "-s", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddress, "a", config.HTTPAddress, "HTTP address and port to run server")
	fs.StringVar(&config.GRPCAddress, "g", config.GRPCAddress, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	brokers := fs.String("b", strings.Join(config.KafkaBrokers, ","), "kafka brokers, comma separated")
	fs.StringVar(&config.KafkaTopic, "t", config.KafkaTopic, "kafka topic")
	fs.StringVar(&config.ImageStoragePath, "i", config.ImageStoragePath, "image storage directory")
	fs.StringVar(&config.SecretsPath, "k", config.SecretsPath, "secrets file path")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.LogBackend, "l", config.LogBackend, "log backend")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: parse flags: %w", common.ErrorConfig, err)
	}

	if *brokers != "" {
		config.KafkaBrokers = strings.Split(*brokers, ",")
	}
	return nil
}
