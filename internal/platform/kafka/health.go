// Package kafka holds broker-level helpers shared by the producer and the
// health endpoint.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// ErrNoBrokers is reported when the cluster metadata lists no brokers.
var ErrNoBrokers = errors.New("kafka cluster reports no brokers")

// BrokerCheck asks the cluster for its metadata over an existing client.
type BrokerCheck struct {
	admin *kadm.Client
	topic string
}

// NewBrokerCheck builds a readiness check on client. When topic is set the
// check also fails while the topic reports a load error.
func NewBrokerCheck(client *kgo.Client, topic string) *BrokerCheck {
	return &BrokerCheck{admin: kadm.NewClient(client), topic: topic}
}

func (c *BrokerCheck) Check(ctx context.Context) error {
	if c.topic == "" {
		brokers, err := c.admin.ListBrokers(ctx)
		if err != nil {
			return fmt.Errorf("list kafka brokers: %w", err)
		}
		if len(brokers) == 0 {
			return ErrNoBrokers
		}
		return nil
	}

	md, err := c.admin.Metadata(ctx, c.topic)
	if err != nil {
		return fmt.Errorf("kafka metadata: %w", err)
	}
	if len(md.Brokers) == 0 {
		return ErrNoBrokers
	}
	// Unknown topics are auto-created on first publish.
	if td, ok := md.Topics[c.topic]; ok && td.Err != nil && !errors.Is(td.Err, kerr.UnknownTopicOrPartition) {
		return fmt.Errorf("kafka topic %s: %w", c.topic, td.Err)
	}
	return nil
}
