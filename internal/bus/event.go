package bus

import "time"

// Event is a message published on the bus. Kind is a dotted name whose
// first segment is the namespace: "wa." carries raw protocol events into
// the reconciliation engine; "contact.", "chat.", "message.", "sync." and
// "session." carry normalized domain events out to subscribers.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
