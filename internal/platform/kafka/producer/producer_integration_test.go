//go:build integration

package producer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"privata/internal/platform/kafka/producer"
	"privata/pkg/testutil/containers"
)

// Justification: the producer's contract is broker acknowledgement, which only
// a real Kafka-protocol broker can confirm.
type ProducerIntegrationSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
}

func TestProducerIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerIntegrationSuite))
}

func (s *ProducerIntegrationSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())
	prod, err := producer.New(producer.Config{
		Brokers:         s.kafka.Brokers,
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}, nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *ProducerIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		_ = s.producer.Close()
	}
}

func (s *ProducerIntegrationSuite) TestProduceDeliversKeyValueAndHeaders() {
	ctx := context.Background()
	topic := "producer-roundtrip"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1, 1))

	err := s.producer.Produce(ctx, &producer.Message{
		Topic:   topic,
		Key:     []byte("evt-1"),
		Value:   []byte(`{"action":"READ"}`),
		Headers: map[string]string{"event_type": "READ"},
	})
	s.Require().NoError(err)

	consumer, err := s.kafka.NewConsumer("producer-roundtrip-group", topic)
	s.Require().NoError(err)
	defer consumer.Close()

	record := s.kafka.WaitForMessage(ctx, consumer, 10*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == "evt-1"
	})
	s.Require().NotNil(record)
	s.JSONEq(`{"action":"READ"}`, string(record.Value))
	s.Require().Len(record.Headers, 1)
	s.Equal("event_type", record.Headers[0].Key)
	s.Equal("READ", string(record.Headers[0].Value))
}

func (s *ProducerIntegrationSuite) TestHealthyUntilClosed() {
	ctx := context.Background()
	prod, err := producer.New(producer.Config{Brokers: s.kafka.Brokers}, nil)
	s.Require().NoError(err)

	s.True(prod.Healthy(ctx))
	s.Require().NoError(prod.Close())
	s.False(prod.Healthy(ctx))
	s.ErrorIs(prod.Produce(ctx, &producer.Message{Topic: "x"}), producer.ErrClosed)
}

func (s *ProducerIntegrationSuite) TestNewRequiresBrokers() {
	_, err := producer.New(producer.Config{}, nil)
	s.Error(err)
}
