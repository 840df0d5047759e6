package models

// Message is a single conversation entry. Messages are immutable once
// stored except for the embedded poll, whose vote map is mutated in place
// by the vote reconciler.
type Message struct {
	ID           string `json:"id"`
	Conversation string `json:"conversation"`
	Sender       string `json:"sender"`
	// Text is optional; a message may carry only an image or a poll.
	Text string `json:"text,omitempty"`
	// Image is an opaque reference (URL or storage path) to an attachment.
	Image string `json:"image,omitempty"`
	// TS is the server-assigned creation timestamp (ns).
	TS int64 `json:"ts"`
	// Seq is the per-conversation sequence assigned with TS; together they
	// define the authoritative ordering.
	Seq uint64 `json:"seq,omitempty"`
	// CorrelationID is the client-generated id carried from the optimistic
	// send through to the confirmed record, used by overlays to reconcile
	// pending copies. Never used for identity heuristics on text content.
	CorrelationID string `json:"correlation_id,omitempty"`
	Poll          *Poll  `json:"poll,omitempty"`
}

// HasContent reports whether the message carries anything sendable.
func (m *Message) HasContent() bool {
	return m.Text != "" || m.Image != "" || m.Poll != nil
}
