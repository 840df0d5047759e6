package models

// Conversation kinds.
const (
	ConversationDirect   = "direct"
	ConversationCrewDate = "crew_date"
)

// Conversation is the metadata document for a message thread between a
// fixed set of participants. Conversations are created implicitly on first
// use and never explicitly deleted in normal flow.
type Conversation struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind"`
	Participants []string `json:"participants"`
	// Crew and Date are set for crew_date conversations only.
	Crew string `json:"crew,omitempty"`
	Date string `json:"date,omitempty"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
	// Updated timestamp (ns) - last time metadata or conversation activity changed
	UpdatedTS int64 `json:"updated_ts,omitempty"`
	// LastSeq is a per-conversation sequence number, incremented and
	// persisted with each appended message.
	LastSeq uint64 `json:"last_seq,omitempty"`
}

// HasParticipant reports whether uid belongs to the conversation.
func (c *Conversation) HasParticipant(uid string) bool {
	for _, p := range c.Participants {
		if p == uid {
			return true
		}
	}
	return false
}

// TypingState is the small per-participant presence document. Kept
// separate from the conversation meta so presence writes never contend
// with message appends.
type TypingState struct {
	Conversation string `json:"conversation"`
	User         string `json:"user"`
	Typing       bool   `json:"typing"`
	// UpdatedTS is the last transition time (ns); the sweeper clears flags
	// whose update is older than the stale threshold.
	UpdatedTS int64 `json:"updated_ts"`
}

// ReadState records a participant's last-read watermark for a conversation.
type ReadState struct {
	Conversation string `json:"conversation"`
	User         string `json:"user"`
	LastReadTS   int64  `json:"last_read_ts"`
}
