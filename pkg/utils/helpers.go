package utils

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

var idSeq uint64

// GenMessageID generates a unique message ID using the current UTC
// nanosecond timestamp and an atomic sequence number.
// The format is "msg-<timestamp>-<seq>".
func GenMessageID() string {
	n := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&idSeq, 1)
	return fmt.Sprintf("msg-%d-%d", n, s)
}

// ToRawMessages converts a slice of JSON-encoded strings to a slice of json.RawMessage.
func ToRawMessages(vals []string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(vals))
	for _, s := range vals {
		out = append(out, json.RawMessage(s))
	}
	return out
}
