package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// App mode & server
	Mode       string
	ServerAddr string

	// Context scope: the store only answers requests bound to this context.
	ContextID string

	// Client mode: which store node to talk to and as whom.
	StoreURL     string
	SessionToken string

	// Kafka
	KafkaBroker    string
	KafkaTopic     string
	KafkaGroupID   string
	KafkaPartition int
	KafkaReadTO    time.Duration
	KafkaWriteTO   time.Duration

	// Cassandra
	CassandraHost     string
	CassandraKeyspace string
	CassandraUsername string
	CassandraPassword string
	CassandraTimeout  time.Duration
	CassandraDC       string

	// Chain (tip transfers)
	ChainRPCURL       string
	ChainPrivateKey   string
	TokenAddress      string
	TokenDecimals     int
	ChainConfirmTO    time.Duration
	ChainPollInterval time.Duration

	// Image hosting
	ImageHostURL string
	ImageHostKey string
}

var cfg *Config

// Init loads the config using Viper and returns it
func Init() *Config {
	viper.SetDefault("MODE", "server")
	viper.SetDefault("SERVER_ADDR", ":8080")
	viper.SetDefault("CONTEXT_ID", "default-context")

	viper.SetDefault("STORE_URL", "https://localhost:8080")
	// SESSION_TOKEN has no default: without one the client is limited to
	// public reads.

	viper.SetDefault("KAFKA_BROKER", "localhost:29092")
	viper.SetDefault("KAFKA_TOPIC", "post-events")
	viper.SetDefault("KAFKA_GROUP_ID", "fanout-group")
	viper.SetDefault("KAFKA_PARTITION", 0)
	viper.SetDefault("KAFKA_READ_TIMEOUT", "10s")
	viper.SetDefault("KAFKA_WRITE_TIMEOUT", "10s")

	viper.SetDefault("CASSANDRA_HOST", "localhost")
	viper.SetDefault("CASSANDRA_KEYSPACE", "contextfeed")
	viper.SetDefault("CASSANDRA_TIMEOUT", "10s")
	// Optional: Cassandra username/password/DC can be empty

	viper.SetDefault("CHAIN_RPC_URL", "http://localhost:8545")
	viper.SetDefault("TOKEN_DECIMALS", 6)
	viper.SetDefault("CHAIN_CONFIRM_TIMEOUT", "90s")
	viper.SetDefault("CHAIN_POLL_INTERVAL", "2s")

	viper.SetDefault("IMAGE_HOST_URL", "https://api.imgbb.com/1/upload")
	// IMAGE_HOST_KEY has no default: uploads are disabled without one.

	// Load env variables
	viper.AutomaticEnv()

	// Optional config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	_ = viper.ReadInConfig() // ignore error if no file

	cfg = &Config{
		Mode:              viper.GetString("MODE"),
		ServerAddr:        viper.GetString("SERVER_ADDR"),
		ContextID:         viper.GetString("CONTEXT_ID"),
		StoreURL:          viper.GetString("STORE_URL"),
		SessionToken:      viper.GetString("SESSION_TOKEN"),
		KafkaBroker:       viper.GetString("KAFKA_BROKER"),
		KafkaTopic:        viper.GetString("KAFKA_TOPIC"),
		KafkaGroupID:      viper.GetString("KAFKA_GROUP_ID"),
		KafkaPartition:    viper.GetInt("KAFKA_PARTITION"),
		KafkaReadTO:       parseDuration(viper.GetString("KAFKA_READ_TIMEOUT"), 10*time.Second),
		KafkaWriteTO:      parseDuration(viper.GetString("KAFKA_WRITE_TIMEOUT"), 10*time.Second),
		CassandraHost:     viper.GetString("CASSANDRA_HOST"),
		CassandraKeyspace: viper.GetString("CASSANDRA_KEYSPACE"),
		CassandraUsername: viper.GetString("CASSANDRA_USERNAME"),
		CassandraPassword: viper.GetString("CASSANDRA_PASSWORD"),
		CassandraTimeout:  parseDuration(viper.GetString("CASSANDRA_TIMEOUT"), 10*time.Second),
		CassandraDC:       viper.GetString("CASSANDRA_DC"),
		ChainRPCURL:       viper.GetString("CHAIN_RPC_URL"),
		ChainPrivateKey:   viper.GetString("CHAIN_PRIVATE_KEY"),
		TokenAddress:      viper.GetString("TOKEN_ADDRESS"),
		TokenDecimals:     viper.GetInt("TOKEN_DECIMALS"),
		ChainConfirmTO:    parseDuration(viper.GetString("CHAIN_CONFIRM_TIMEOUT"), 90*time.Second),
		ChainPollInterval: parseDuration(viper.GetString("CHAIN_POLL_INTERVAL"), 2*time.Second),
		ImageHostURL:      viper.GetString("IMAGE_HOST_URL"),
		ImageHostKey:      viper.GetString("IMAGE_HOST_KEY"),
	}

	return cfg
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

// Get returns the loaded config instance
func Get() *Config {
	return cfg
}
