//go:build integration

package audit_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"enrolld/internal/audit"
	"enrolld/pkg/testutil/containers"
)

const testTopic = "enrolld.audit.test"

type PublisherSuite struct {
	suite.Suite
	redpanda  *containers.RedpandaContainer
	publisher *audit.Publisher
	consumer  *kgo.Client
}

func TestPublisherSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupSuite() {
	s.redpanda = containers.NewRedpandaContainer(s.T())

	publisher, err := audit.NewPublisher([]string{s.redpanda.Broker}, testTopic)
	s.Require().NoError(err)
	s.publisher = publisher
	s.Require().NoError(s.publisher.EnsureTopic(context.Background(), 1, 1))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Broker),
		kgo.ConsumeTopics(testTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	s.consumer = consumer
}

func (s *PublisherSuite) TearDownSuite() {
	if s.consumer != nil {
		s.consumer.Close()
	}
	if s.publisher != nil {
		_ = s.publisher.Close(context.Background())
	}
}

func (s *PublisherSuite) TestEnsureTopicIsIdempotent() {
	s.Require().NoError(s.publisher.EnsureTopic(context.Background(), 1, 1))
}

func (s *PublisherSuite) TestPublishedEventRoundTrips() {
	ctx := context.Background()

	s.publisher.Publish(ctx, "onboarding_process_started", map[string]string{
		"process_id": "proc-42",
		"user_id":    "user-1",
	})

	record := s.nextRecord(10 * time.Second)
	s.Equal("proc-42", string(record.Key), "events are keyed by process")

	var event audit.Event
	s.Require().NoError(json.Unmarshal(record.Value, &event))
	s.Equal("onboarding_process_started", event.Type)
	s.Equal("proc-42", event.Fields["process_id"])
	s.Equal("user-1", event.Fields["user_id"])
	s.False(event.Timestamp.IsZero())
}

func (s *PublisherSuite) TestEventWithoutProcessKeysByType() {
	ctx := context.Background()

	s.publisher.Publish(ctx, "reconciliation_sweep_finished", nil)

	record := s.nextRecord(10 * time.Second)
	s.Equal("reconciliation_sweep_finished", string(record.Key))
}

func (s *PublisherSuite) nextRecord(timeout time.Duration) *kgo.Record {
	s.T().Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fetches := s.consumer.PollFetches(ctx)
	s.Require().NoError(fetches.Err())
	records := fetches.Records()
	s.Require().NotEmpty(records, "expected an audit record on the topic")
	return records[0]
}
