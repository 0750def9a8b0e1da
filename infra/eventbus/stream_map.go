package eventbus

import (
	"fmt"
	"strings"

	"github.com/amirasaad/crossledger/pkg/domain/events"
)

// streamNameFor returns the stream carrying one event type, e.g.
// "crossledger:events:cross:closed".
func streamNameFor(prefix string, eventType events.EventType) string {
	return nameFor(prefix, eventType)
}

// dlqStreamName returns the DLQ stream name for the given event type.
func dlqStreamName(prefix string, eventType events.EventType) string {
	return nameFor(prefix+":dlq", eventType)
}

func nameFor(prefix string, eventType events.EventType) string {
	parts := strings.Split(eventType.String(), ".")
	if len(parts) == 2 {
		return fmt.Sprintf(
			"%s:%s:%s",
			prefix,
			strings.ToLower(parts[0]),
			strings.ToLower(parts[1]))
	}
	return fmt.Sprintf("%s:%s", prefix, strings.ToLower(eventType.String()))
}
