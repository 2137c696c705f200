package queue

import "encoding/json"

// StatusEvent notifies downstream consumers that a document's ingestion
// status changed.
type StatusEvent struct {
	EventID    string `json:"eventId"`
	DocumentID int64  `json:"documentId"`
	Status     string `json:"status"`
	OccurredAt string `json:"occurredAt"`
	Version    int    `json:"version"`
}

// EncodeStatusEvent returns the JSON representation of an event.
func EncodeStatusEvent(event StatusEvent) ([]byte, error) {
	return json.Marshal(event)
}

// DecodeStatusEvent parses a JSON payload into a StatusEvent. This service
// only publishes; the decoder is the contract for queue consumers (and the
// roundtrip tests) so the wire shape cannot drift from the struct tags.
func DecodeStatusEvent(payload []byte) (StatusEvent, error) {
	var event StatusEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return StatusEvent{}, err
	}
	return event, nil
}
