package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"example.com/contextfeed/cmd/client"
	"example.com/contextfeed/cmd/server"
	"example.com/contextfeed/cmd/worker"
	appkafka "example.com/contextfeed/internal/broker"
	config "example.com/contextfeed/internal/init"
	"example.com/contextfeed/internal/store"
)

func main() {
	// Initialize application configuration
	cfg := config.Init()
	mode := cfg.Mode

	// Setup OS signal handling for graceful shutdown (SIGINT, SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Client mode talks to a store node over HTTP; it needs neither
	// Cassandra nor Kafka.
	if mode == "client" {
		if err := client.Run(ctx, cfg, os.Args[1:]); err != nil {
			log.Fatalf("client action failed: %v", err)
		}
		return
	}

	// Initialize Cassandra store connection
	st, err := store.New()
	if err != nil {
		log.Fatalf("Cassandra connection failed: %v", err)
	}
	defer st.Close()

	// Configure Kafka client parameters
	kafkaCfg := appkafka.KafkaConfig{
		Brokers:      []string{cfg.KafkaBroker},
		Topic:        cfg.KafkaTopic,
		Partition:    cfg.KafkaPartition,
		GroupID:      cfg.KafkaGroupID,
		WriteTimeout: cfg.KafkaWriteTO,
		ReadTimeout:  cfg.KafkaReadTO,
	}

	var kafkaWriter appkafka.KafkaWriter
	var kafkaReader appkafka.KafkaReader

	// Initialize Kafka writer for server mode
	if mode == "server" {
		kafkaWriter, err = appkafka.NewKafkaWriter(kafkaCfg)
		if err != nil {
			log.Fatalf("Kafka writer init failed: %v", err)
		}
		defer kafkaWriter.Close()
	} else {
		// Initialize Kafka reader for worker mode
		kafkaReader = appkafka.NewKafkaReader(kafkaCfg)
		defer kafkaReader.Close()
	}

	// Run application depending on selected mode
	switch mode {
	case "server":
		// Start the store node that serves the social API
		server.Run(ctx, st, kafkaWriter, cfg.ServerAddr, cfg.ContextID, cfg.TokenDecimals)
	case "worker":
		// Start the worker that fans posts out to follower feeds
		w := worker.New(st, kafkaReader, 0, 0)
		w.Run(ctx)
	default:
		log.Fatalf("unknown mode: %s", mode)
	}

	log.Println("Shutdown completed")
}
