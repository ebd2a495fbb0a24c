package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Topics produced by the reservation service.
const (
	TopicReservationAwaitingConfirmation = "reservation.awaiting_confirmation.v1"
	TopicReservationConfirmed            = "reservation.confirmed.v1"
	TopicReservationCancelled            = "reservation.cancelled.v1"
	TopicReservationReleased             = "reservation.released.v1"
	TopicReceiptRequested                = "billing.receipt.requested.v1"
)
