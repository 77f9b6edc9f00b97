package models

// LiveEvent is pushed over websocket live views. Items carries the full
// snapshot, never a delta.
type LiveEvent struct {
	Type  string `json:"type"`
	Kind  string `json:"kind"`
	Items any    `json:"items,omitempty"`
	Error string `json:"error,omitempty"`
}

// DomainEvent is published to the message broker after a committed write.
type DomainEvent struct {
	Name       string `json:"name"`
	OccurredAt string `json:"occurred_at"`
	ActorID    string `json:"actor_id,omitempty"`
	Payload    any    `json:"payload"`
}
