package session

import (
	"fmt"
	"sort"
	"strings"
)

// Conversation kinds.
const (
	KindDirect   = "direct"
	KindCrewDate = "crew_date"
)

// DirectKey derives the canonical id for a 1:1 conversation. Pure and
// commutative: DirectKey(a, b) == DirectKey(b, a). The kind prefix
// keeps direct ids out of the crew-date namespace, so no crew/date
// pair can alias a user pair.
func DirectKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return "dm_" + strings.Join(ids, "_")
}

// CrewDateKey derives the canonical id for a crew's conversation on a
// given date (YYYY-MM-DD).
func CrewDateKey(crewID, date string) string {
	return fmt.Sprintf("crew_%s_%s", crewID, date)
}
