package kafka

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

type TopicSpec struct {
	Name              string
	Partitions        int32
	ReplicationFactor int16
	Retention         time.Duration
}

// EnsureTopic 主题不存在时创建；已存在（包括并发创建）视为成功
func EnsureTopic(brokers []string, clientID string, spec TopicSpec) error {
	if len(brokers) == 0 {
		return errors.New("kafka brokers is empty")
	}
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return errors.New("kafka topic is empty")
	}
	if spec.Partitions <= 0 {
		spec.Partitions = 1
	}
	if spec.ReplicationFactor <= 0 {
		spec.ReplicationFactor = 1
	}
	if spec.Retention <= 0 {
		spec.Retention = 7 * 24 * time.Hour
	}

	admin, err := sarama.NewClusterAdmin(brokers, newSaramaConfig(clientID))
	if err != nil {
		return err
	}
	defer admin.Close()

	topics, err := admin.ListTopics()
	if err != nil {
		return err
	}
	if _, ok := topics[name]; ok {
		return nil
	}

	retention := strconv.FormatInt(spec.Retention.Milliseconds(), 10)
	td := &sarama.TopicDetail{
		NumPartitions:     spec.Partitions,
		ReplicationFactor: spec.ReplicationFactor,
		ConfigEntries: map[string]*string{
			"retention.ms": &retention,
		},
	}
	if err := admin.CreateTopic(name, td, false); err != nil {
		if errors.Is(err, sarama.ErrTopicAlreadyExists) {
			return nil
		}
		return err
	}
	return nil
}
