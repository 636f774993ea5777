//go:build integration

package worker_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"privata/internal/platform/kafka/producer"
	audit "privata/pkg/platform/audit"
	outboxpostgres "privata/pkg/platform/audit/outbox/store/postgres"
	"privata/pkg/platform/audit/outbox/worker"
	auditpostgres "privata/pkg/platform/audit/store/postgres"
	"privata/pkg/testutil/containers"
)

// Justification: end-to-end check that an audit row committed with the outbox
// reaches Kafka and is marked processed.
type WorkerIntegrationSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	kafka    *containers.KafkaContainer
	outbox   *outboxpostgres.Store
	audit    *auditpostgres.Store
	producer *producer.Producer
}

func TestWorkerIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(WorkerIntegrationSuite))
}

func (s *WorkerIntegrationSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.kafka = mgr.GetKafka(s.T())
	s.outbox = outboxpostgres.New(s.postgres.DB)
	s.audit = auditpostgres.New(s.postgres.DB, auditpostgres.WithOutbox())

	prod, err := producer.New(producer.Config{
		Brokers:         s.kafka.Brokers,
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}, nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *WorkerIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		_ = s.producer.Close()
	}
}

func (s *WorkerIntegrationSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *WorkerIntegrationSuite) TestAuditEventReachesKafka() {
	ctx := context.Background()
	topic := "audit-outbox-flow"
	s.Require().NoError(s.kafka.CreateTopic(ctx, topic, 1, 1))

	now := time.Now().UTC()
	event := audit.Event{
		ID:            uuid.New(),
		Timestamp:     now,
		Action:        audit.ActionErasure,
		EntityType:    "patient",
		SubjectID:     "user-9",
		Framework:     audit.FrameworkGDPR,
		RetentionDate: now.AddDate(7, 0, 0),
	}
	s.Require().NoError(s.audit.Append(ctx, event))

	pending, err := s.outbox.CountPending(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), pending)

	w := worker.New(s.outbox, s.producer, worker.WithTopic(topic), worker.WithPollInterval(50*time.Millisecond))
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- w.Run(runCtx) }()

	s.Eventually(func() bool {
		count, _ := s.outbox.CountPending(ctx)
		return count == 0
	}, 10*time.Second, 50*time.Millisecond)
	cancel()
	s.Require().NoError(<-done)

	consumer, err := s.kafka.NewConsumer("audit-outbox-flow-consumer", topic)
	s.Require().NoError(err)
	defer consumer.Close()

	record := s.kafka.WaitForMessage(ctx, consumer, 10*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == event.ID.String()
	})
	s.Require().NotNil(record)

	var got audit.Event
	s.Require().NoError(json.Unmarshal(record.Value, &got))
	s.Equal(audit.ActionErasure, got.Action)
	s.Equal("user-9", got.SubjectID)
}
