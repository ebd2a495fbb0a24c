package kafkax

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

const (
	headerEventID   = "event_id"
	headerEventType = "event_type"
)

// EventMeta is the canonical metadata carried on Kafka messages across services.
// Consumers dedupe on EventID, so producers must always set it.
type EventMeta struct {
	EventID   string
	EventType string
}

// EventHeaders builds the standard metadata headers for an outgoing message.
func EventHeaders(eventID, eventType string) []kafka.Header {
	return []kafka.Header{
		{Key: headerEventID, Value: []byte(eventID)},
		{Key: headerEventType, Value: []byte(eventType)},
	}
}

func ExtractEventMeta(msg kafka.Message) EventMeta {
	eventID := HeaderValue(msg.Headers, headerEventID)
	eventType := HeaderValue(msg.Headers, headerEventType)
	if eventID == "" {
		eventID = string(msg.Key)
	}
	if eventType == "" {
		eventType = msg.Topic
	}
	return EventMeta{EventID: eventID, EventType: eventType}
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
