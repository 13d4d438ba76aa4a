package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05.000000000Z07:00", s)
}

// RedisTransport fans Progress Channel events out across process
// boundaries using Redis pub/sub, one channel per project. It has no
// corpus precedent to ground on directly (no example repo imports
// go-redis); it follows the redis-go client's documented Publish/
// Subscribe API and reuses this package's Event envelope for the wire
// format.
type RedisTransport struct {
	client *redis.Client
}

// NewRedisTransport wraps an already-configured redis.Client.
func NewRedisTransport(client *redis.Client) *RedisTransport {
	return &RedisTransport{client: client}
}

func channelName(projectID string) string {
	return "progress:" + projectID
}

type wireEvent struct {
	Type      EventType       `json:"type"`
	ProjectID string          `json:"projectId"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Publish serializes event and publishes it to the project's channel.
func (t *RedisTransport) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("progress: marshal payload: %w", err)
	}
	wire := wireEvent{
		Type:      event.Type,
		ProjectID: event.ProjectID,
		Timestamp: event.Timestamp.Format("2006-01-02T15:04:05.000000000Z07:00"),
		Payload:   payload,
	}
	raw, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("progress: marshal event: %w", err)
	}
	return t.client.Publish(ctx, channelName(event.ProjectID), raw).Err()
}

// Subscribe returns a channel of decoded Events for projectID and a
// closer to stop the subscription. Callers should range over the
// channel until it closes (on Close or context cancellation).
func (t *RedisTransport) Subscribe(ctx context.Context, projectID string) (<-chan Event, func() error, error) {
	sub := t.client.Subscribe(ctx, channelName(projectID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("progress: subscribe %s: %w", projectID, err)
	}

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			event, err := decodeWireEvent(msg.Payload)
			if err != nil {
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, sub.Close, nil
}

func decodeWireEvent(raw string) (Event, error) {
	var wire wireEvent
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return Event{}, err
	}

	event := Event{Type: wire.Type, ProjectID: wire.ProjectID}
	if ts, err := parseTimestamp(wire.Timestamp); err == nil {
		event.Timestamp = ts
	}

	switch wire.Type {
	case EventProgressUpdate:
		var p ProgressUpdate
		if err := json.Unmarshal(wire.Payload, &p); err != nil {
			return Event{}, err
		}
		event.Payload = p
	case EventPartialFinding:
		var p PartialFinding
		if err := json.Unmarshal(wire.Payload, &p); err != nil {
			return Event{}, err
		}
		event.Payload = p
	case EventJobCompletion:
		var p JobCompletion
		if err := json.Unmarshal(wire.Payload, &p); err != nil {
			return Event{}, err
		}
		event.Payload = p
	default:
		return Event{}, fmt.Errorf("progress: unknown event type %q", wire.Type)
	}
	return event, nil
}
