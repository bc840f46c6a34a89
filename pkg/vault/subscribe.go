package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Subscription represents an active Pub/Sub subscription to commit events.
// Caller must call Close() when done to clean up resources.
// Subscriptions deliver full artifact objects via the Events() channel.
type Subscription struct {
	events <-chan *Artifact
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of artifact commit events.
// The channel is closed when the subscription is closed or the context is
// cancelled.
func (s *Subscription) Events() <-chan *Artifact {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures and other non-fatal issues.
// The subscription continues after errors - messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// DecisionSubscription represents an active Pub/Sub subscription to
// governance decision events.
type DecisionSubscription struct {
	events <-chan *Decision
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of decision events.
func (s *DecisionSubscription) Events() <-chan *Decision {
	return s.events
}

// Errors returns the channel of subscription errors.
func (s *DecisionSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
func (s *DecisionSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeArtifactEvents subscribes to commit events for this instance.
// Returns a Subscription that delivers full artifact objects.
// Caller must call subscription.Close() when done.
// Context cancellation also stops the subscription.
//
// Events are delivered on a buffered channel (size 10) to prevent blocking.
// If the subscriber is too slow, events may be dropped by Redis Pub/Sub
// (at-most-once delivery).
func (c *Client) SubscribeArtifactEvents(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, ArtifactEventsChannel(c.instanceName))

	eventsChan := make(chan *Artifact, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var artifact Artifact
				if err := json.Unmarshal([]byte(msg.Payload), &artifact); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal artifact event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &artifact:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// SubscribeDecisionEvents subscribes to governance decision events for this
// instance. Returns a DecisionSubscription that delivers full decision
// objects. Caller must call subscription.Close() when done.
func (c *Client) SubscribeDecisionEvents(ctx context.Context) (*DecisionSubscription, error) {
	pubsub := c.rdb.Subscribe(ctx, DecisionEventsChannel(c.instanceName))

	eventsChan := make(chan *Decision, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var decision Decision
				if err := json.Unmarshal([]byte(msg.Payload), &decision); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal decision event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &decision:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &DecisionSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
