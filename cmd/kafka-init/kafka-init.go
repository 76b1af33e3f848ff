package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	config "github.com/NordCoder/alert-notifier/internal/config/alert-notifier"
	"github.com/NordCoder/alert-notifier/internal/repository/kafka"
	"go.uber.org/zap"
)

// kafka-init creates the dispatch report topic ahead of the first deploy.
func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/alert-notifier.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal(err)
	}

	l, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	spec := kafka.TopicSpec{
		Name:              cfg.Reports.Topic,
		NumPartitions:     envInt("KAFKA_PARTITIONS", 1),
		ReplicationFactor: envInt("KAFKA_RF", 1),
		MaxWait:           30 * time.Second,
	}
	if err := kafka.EnsureTopic(ctx, cfg.Reports.Brokers, spec, l); err != nil {
		l.Fatal("ensure topic", zap.String("topic", spec.Name), zap.Error(err))
	}
	l.Info("kafka-init ok", zap.String("topic", spec.Name), zap.Strings("brokers", cfg.Reports.Brokers))
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, _ := strconv.Atoi(v); n > 0 {
			return n
		}
	}
	return def
}
