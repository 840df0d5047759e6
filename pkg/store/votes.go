package store

import (
	"fmt"

	"github.com/samsmithyeah/flock-sub002/pkg/logger"
	"github.com/samsmithyeah/flock-sub002/pkg/models"
	"github.com/samsmithyeah/flock-sub002/pkg/store/feed"
	"github.com/samsmithyeah/flock-sub002/pkg/telemetry"
)

// CastVote applies one vote intent to the poll on message msgID as a
// transaction: read the current poll, toggle or move the caller's vote,
// write back. Repeating the same intent is a no-op at the model level
// (toggle semantics), so retried requests converge. The committed state
// goes out on the votes topic only.
func CastVote(convID, userID, msgID string, option int) (*models.Message, error) {
	tr := telemetry.Track("store.cast_vote")
	defer tr.Finish()

	if _, err := RequireParticipant(convID, userID); err != nil {
		return nil, err
	}
	tr.Mark("participant_checked")

	m, err := UpdateMessage(convID, msgID, feed.TopicVotes, func(m *models.Message) error {
		if m.Poll == nil {
			return fmt.Errorf("message %s has no poll", msgID)
		}
		return m.Poll.Apply(option, userID)
	})
	if err != nil {
		return nil, err
	}
	votesApplied.Inc()
	logger.Info("vote_applied", "conversation", convID, "message", msgID, "user", userID, "option", option, "revision", m.Poll.Revision)
	return m, nil
}
