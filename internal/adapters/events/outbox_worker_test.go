package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/ports"
)

type fakeOutbox struct {
	mu           sync.Mutex
	records      []ports.OutboxRecord
	published    []uuid.UUID
	failed       []uuid.UUID
	deadLettered []uuid.UUID
}

func (f *fakeOutbox) Enqueue(context.Context, ports.OutboxEvent) error { return nil }

func (f *fakeOutbox) ClaimUnpublished(_ context.Context, limit int, _ string, _ time.Time) ([]ports.OutboxRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.records) > limit {
		return append([]ports.OutboxRecord(nil), f.records[:limit]...), nil
	}
	return append([]ports.OutboxRecord(nil), f.records...), nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, id uuid.UUID, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, id)
	return nil
}

func (f *fakeOutbox) MarkFailed(_ context.Context, id uuid.UUID, _, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeOutbox) MarkDeadLettered(_ context.Context, id uuid.UUID, _, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadLettered = append(f.deadLettered, id)
	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	keys []string
	fail map[string]bool
}

func (p *fakePublisher) Publish(_ context.Context, eventType string, _ []byte, partitionKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[eventType] {
		return errors.New("broker unavailable")
	}
	p.keys = append(p.keys, partitionKey)
	return nil
}

func TestOutboxWorkerPublishesRetriesAndDeadLetters(t *testing.T) {
	t.Parallel()

	ok := ports.OutboxRecord{OutboxID: uuid.New(), EventType: "license.activated", PartitionKey: "lic-1", Payload: []byte(`{}`)}
	retry := ports.OutboxRecord{OutboxID: uuid.New(), EventType: "trial.issued", PartitionKey: "lic-2", Payload: []byte(`{}`)}
	lastTry := ports.OutboxRecord{OutboxID: uuid.New(), EventType: "trial.issued", PartitionKey: "lic-3", RetryCount: 2, Payload: []byte(`{}`)}
	exhausted := ports.OutboxRecord{OutboxID: uuid.New(), EventType: "license.activated", PartitionKey: "lic-4", RetryCount: 3}

	outbox := &fakeOutbox{records: []ports.OutboxRecord{ok, retry, lastTry, exhausted}}
	publisher := &fakePublisher{fail: map[string]bool{"trial.issued": true}}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	outcomes := map[string]int{}
	worker := NewOutboxWorker(logger, outbox, publisher, time.Second, 10, time.Second, 3).
		WithOutcomeRecorder(func(outcome string) { outcomes[outcome]++ })

	res, err := worker.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("process once: %v", err)
	}
	if res != (BatchResult{Claimed: 4, Published: 1, Failed: 2, DeadLettered: 2}) {
		t.Fatalf("unexpected batch result: %+v", res)
	}
	if len(outbox.published) != 1 || outbox.published[0] != ok.OutboxID {
		t.Fatalf("unexpected published: %v", outbox.published)
	}
	if len(outbox.failed) != 1 || outbox.failed[0] != retry.OutboxID {
		t.Fatalf("unexpected failed: %v", outbox.failed)
	}
	if len(outbox.deadLettered) != 2 {
		t.Fatalf("unexpected dead-lettered: %v", outbox.deadLettered)
	}
	if len(publisher.keys) != 1 || publisher.keys[0] != "lic-1" {
		t.Fatalf("partition key must reach the publisher, got %v", publisher.keys)
	}
	if outcomes["published"] != 1 || outcomes["failed"] != 1 || outcomes["dead_lettered"] != 2 {
		t.Fatalf("unexpected recorded outcomes: %v", outcomes)
	}
}

func TestKafkaPublisherRequiresBrokers(t *testing.T) {
	t.Parallel()

	if _, err := NewKafkaPublisher(nil, nil); err == nil {
		t.Fatalf("expected error without brokers")
	}
	p, err := NewKafkaPublisher([]string{"localhost:9092"}, nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer p.Close()
	if got := p.topicFor("license.activated"); got != "planner.license.lifecycle.v1" {
		t.Fatalf("unexpected topic %q", got)
	}
	if got := p.topicFor("custom.event"); got != "custom.event" {
		t.Fatalf("unmapped events fall back to their type, got %q", got)
	}
}
