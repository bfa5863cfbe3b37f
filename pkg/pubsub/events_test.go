package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
)

type fakePublishResult struct {
	err error
}

func (r fakePublishResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "server-id", nil
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []*pubsub.Message
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, msg *pubsub.Message) publishResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return fakePublishResult{err: f.err}
}

func TestPublishJSONWrapsEnvelope(t *testing.T) {
	fake := &fakePublisher{}
	p := newEventPublisher(fake, nil)
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	if err := p.PublishJSON(context.Background(), "committed", at, map[string]int{"updated": 2}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	p.Flush(context.Background())

	if len(fake.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(fake.messages))
	}
	msg := fake.messages[0]
	if msg.Attributes["kind"] != "committed" || msg.Attributes["event_id"] == "" {
		t.Fatalf("unexpected attributes %v", msg.Attributes)
	}

	var env struct {
		EventID    string         `json:"event_id"`
		Kind       string         `json:"kind"`
		OccurredAt time.Time      `json:"occurred_at"`
		Data       map[string]int `json:"data"`
	}
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.EventID != msg.Attributes["event_id"] || !env.OccurredAt.Equal(at) || env.Data["updated"] != 2 {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestPublishFailureDoesNotSurface(t *testing.T) {
	fake := &fakePublisher{err: errors.New("topic deleted")}
	p := newEventPublisher(fake, nil)

	if err := p.PublishJSON(context.Background(), "price_updated", time.Now(), []string{"1"}); err != nil {
		t.Fatalf("delivery failures must not be returned, got %v", err)
	}
	p.Flush(context.Background())
}

func TestPublishJSONRejectsUnencodableData(t *testing.T) {
	p := newEventPublisher(&fakePublisher{}, nil)
	if err := p.PublishJSON(context.Background(), "bad", time.Now(), make(chan int)); err == nil {
		t.Fatalf("expected encode error")
	}
}

func TestDisabledPublisherIsNoop(t *testing.T) {
	p := NewEventPublisher(nil, nil)
	if err := p.PublishJSON(context.Background(), "committed", time.Now(), nil); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	var nilPub *EventPublisher
	nilPub.Flush(context.Background())
}

func TestTopicResourceName(t *testing.T) {
	if got := topicResourceName("proj", "cesta-catalog-events"); got != "projects/proj/topics/cesta-catalog-events" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := topicResourceName("proj", "projects/other/topics/t"); got != "projects/other/topics/t" {
		t.Fatalf("full names should pass through, got %q", got)
	}
	if got := topicResourceName("", "t"); got != "" {
		t.Fatalf("missing project should yield empty name, got %q", got)
	}
}
