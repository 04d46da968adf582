package kafka

import (
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// TopicConfig defines Kafka topic configuration
type TopicConfig struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	RetentionMs       int64
	CleanupPolicy     string
}

// Topics defines all Kafka topics used by AccountPulse
var Topics = map[string]TopicConfig{
	TopicChurnScored: {
		Name:              TopicChurnScored,
		Partitions:        6,
		ReplicationFactor: 3,
		RetentionMs:       2592000000, // 30 days
		CleanupPolicy:     "delete",
	},
	TopicUpsellScored: {
		Name:              TopicUpsellScored,
		Partitions:        6,
		ReplicationFactor: 3,
		RetentionMs:       2592000000, // 30 days
		CleanupPolicy:     "delete",
	},
	TopicAccountAtRisk: {
		Name:              TopicAccountAtRisk,
		Partitions:        3,
		ReplicationFactor: 3,
		RetentionMs:       7776000000, // 90 days
		CleanupPolicy:     "delete",
	},
}

// Topic names. Keys are account IDs so per-account ordering holds.
const (
	TopicChurnScored   = "score.churn.computed"
	TopicUpsellScored  = "score.upsell.computed"
	TopicAccountAtRisk = "account.at_risk"
)

// EnsureTopics creates any missing topics against the cluster controller.
func EnsureTopics(brokers []string) error {
	if len(brokers) == 0 {
		return ErrInvalidBrokers
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to get kafka controller: %w", err)
	}

	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	configs := make([]kafka.TopicConfig, 0, len(Topics))
	for _, tc := range Topics {
		configs = append(configs, kafka.TopicConfig{
			Topic:             tc.Name,
			NumPartitions:     tc.Partitions,
			ReplicationFactor: tc.ReplicationFactor,
			ConfigEntries: []kafka.ConfigEntry{
				{ConfigName: "retention.ms", ConfigValue: strconv.FormatInt(tc.RetentionMs, 10)},
				{ConfigName: "cleanup.policy", ConfigValue: tc.CleanupPolicy},
			},
		})
	}

	if err := controllerConn.CreateTopics(configs...); err != nil {
		return fmt.Errorf("failed to create topics: %w", err)
	}
	return nil
}
