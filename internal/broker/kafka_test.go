package appkafka

import (
	"testing"
	"time"
)

func TestKafkaConfig_DefaultsFilled(t *testing.T) {
	cfg := KafkaConfig{}
	cfg.applyDefaults()

	if len(cfg.Brokers) != 1 || cfg.Brokers[0] != defaultBroker {
		t.Errorf("expected default broker %s, got %v", defaultBroker, cfg.Brokers)
	}
	if cfg.Topic != defaultTopic {
		t.Errorf("expected default topic %s, got %s", defaultTopic, cfg.Topic)
	}
	if cfg.GroupID != defaultGroup {
		t.Errorf("expected default group %s, got %s", defaultGroup, cfg.GroupID)
	}
	if cfg.WriteTimeout != 10*time.Second {
		t.Errorf("expected default write timeout, got %v", cfg.WriteTimeout)
	}
}

func TestKafkaConfig_ExplicitValuesKept(t *testing.T) {
	cfg := KafkaConfig{
		Brokers:      []string{"kafka-1:9092"},
		Topic:        "custom-events",
		GroupID:      "custom-group",
		WriteTimeout: time.Second,
	}
	cfg.applyDefaults()

	if cfg.Brokers[0] != "kafka-1:9092" || cfg.Topic != "custom-events" ||
		cfg.GroupID != "custom-group" || cfg.WriteTimeout != time.Second {
		t.Errorf("explicit config was overwritten: %+v", cfg)
	}
}
