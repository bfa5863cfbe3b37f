package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/cestaprecios/pkg/logger"
)

const defaultPublishTimeout = 15 * time.Second

type publisher interface {
	Publish(context.Context, *pubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// Envelope is the JSON body of every published event.
type Envelope struct {
	EventID    string    `json:"event_id"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// EventPublisher fans domain events out to a topic without blocking the caller.
// Failures are logged; delivery is best effort.
type EventPublisher struct {
	pub     publisher
	logg    *logger.Logger
	timeout time.Duration
	pending chan struct{}
}

func NewEventPublisher(p *pubsub.Publisher, logg *logger.Logger) *EventPublisher {
	var pub publisher
	if p != nil {
		pub = &gcpPublisher{Publisher: p}
	}
	return newEventPublisher(pub, logg)
}

func newEventPublisher(pub publisher, logg *logger.Logger) *EventPublisher {
	if logg == nil {
		logg = logger.Nop()
	}
	return &EventPublisher{pub: pub, logg: logg, timeout: defaultPublishTimeout, pending: make(chan struct{}, 64)}
}

// PublishJSON enqueues data under kind. The returned error covers encoding only.
func (p *EventPublisher) PublishJSON(ctx context.Context, kind string, occurredAt time.Time, data any) error {
	if p == nil || p.pub == nil {
		return nil
	}
	env := Envelope{EventID: uuid.NewString(), Kind: kind, OccurredAt: occurredAt.UTC(), Data: data}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", kind, err)
	}

	msg := &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"event_id": env.EventID,
			"kind":     kind,
		},
	}
	result := p.pub.Publish(context.WithoutCancel(ctx), msg)

	p.pending <- struct{}{}
	go func() {
		defer func() { <-p.pending }()
		waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
		defer cancel()
		logCtx := p.logg.WithFields(ctx, map[string]any{"event_id": env.EventID, "kind": kind})
		if _, err := result.Get(waitCtx); err != nil {
			p.logg.Error(logCtx, "pubsub.publish_failed", err)
			return
		}
		p.logg.Debug(logCtx, "pubsub.published")
	}()
	return nil
}

// Flush waits for in-flight publishes or until ctx is done.
func (p *EventPublisher) Flush(ctx context.Context) {
	if p == nil {
		return
	}
	for i := 0; i < cap(p.pending); i++ {
		select {
		case p.pending <- struct{}{}:
		case <-ctx.Done():
			for ; i > 0; i-- {
				<-p.pending
			}
			return
		}
	}
	for i := 0; i < cap(p.pending); i++ {
		<-p.pending
	}
}

type gcpPublisher struct {
	*pubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}
