package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/samsmithyeah/flock-sub002/pkg/models"
)

// openTestStore opens a fresh pebble instance for one test. The store
// handle is package-global, so tests must not run in parallel.
func openTestStore(t *testing.T) {
	t.Helper()
	require.NoError(t, Open(t.TempDir()))
	t.Cleanup(func() {
		require.NoError(t, Close())
	})
}

func seedConversation(t *testing.T, id string, participants ...string) *models.Conversation {
	t.Helper()
	c, err := EnsureConversation(id, "direct", participants)
	require.NoError(t, err)
	return c
}

func TestEnsureConversationIdempotent(t *testing.T) {
	openTestStore(t)

	first := seedConversation(t, "alice_bob", "bob", "alice")
	require.Equal(t, []string{"alice", "bob"}, first.Participants, "participants are stored sorted")

	again, err := EnsureConversation("alice_bob", "direct", []string{"alice", "bob"})
	require.NoError(t, err)
	require.Equal(t, first.CreatedTS, again.CreatedTS)
}

func TestEnsureConversationConcurrentCreate(t *testing.T) {
	openTestStore(t)

	const n = 8
	results := make([]*models.Conversation, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := EnsureConversation("crew1_2026-08-31", "crew_date", []string{"alice", "bob", "carol"})
			require.NoError(t, err)
			results[i] = c
		}(i)
	}
	wg.Wait()
	for _, c := range results {
		require.Equal(t, results[0].CreatedTS, c.CreatedTS, "all racers must see one meta document")
	}
}

func TestAppendMessageAssignsOrder(t *testing.T) {
	openTestStore(t)
	seedConversation(t, "alice_bob", "alice", "bob")

	for i := 0; i < 5; i++ {
		m, err := AppendMessage("alice_bob", &models.Message{Sender: "alice", Text: "hi"})
		require.NoError(t, err)
		require.Equal(t, uint64(i+1), m.Seq)
		require.NotEmpty(t, m.ID)
	}

	c, err := GetConversation("alice_bob")
	require.NoError(t, err)
	require.Equal(t, uint64(5), c.LastSeq)

	n, err := CountMessages("alice_bob")
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func TestAppendMessageRejectsOutsiders(t *testing.T) {
	openTestStore(t)
	seedConversation(t, "alice_bob", "alice", "bob")

	_, err := AppendMessage("alice_bob", &models.Message{Sender: "mallory", Text: "hi"})
	require.ErrorIs(t, err, ErrNotParticipant)

	_, err = AppendMessage("alice_bob", &models.Message{Sender: "alice"})
	require.Error(t, err, "empty message must be rejected")
}

func TestListMessagesBeforePagination(t *testing.T) {
	openTestStore(t)
	seedConversation(t, "alice_bob", "alice", "bob")

	for i := 0; i < 25; i++ {
		_, err := AppendMessage("alice_bob", &models.Message{Sender: "alice", Text: "m"})
		require.NoError(t, err)
	}

	// first page: newest 10
	page, err := ListMessagesBefore("alice_bob", "", 10)
	require.NoError(t, err)
	require.Len(t, page.Messages, 10)
	require.True(t, page.HasMore)
	require.Equal(t, uint64(25), page.Messages[0].Seq, "newest first")
	require.Equal(t, uint64(16), page.Messages[9].Seq)

	// second page continues strictly before the cursor
	page2, err := ListMessagesBefore("alice_bob", page.NextCursor, 10)
	require.NoError(t, err)
	require.Len(t, page2.Messages, 10)
	require.True(t, page2.HasMore)
	require.Equal(t, uint64(15), page2.Messages[0].Seq)

	// final page exhausts history
	page3, err := ListMessagesBefore("alice_bob", page2.NextCursor, 10)
	require.NoError(t, err)
	require.Len(t, page3.Messages, 5)
	require.False(t, page3.HasMore)
	require.Empty(t, page3.NextCursor)
	require.Equal(t, uint64(1), page3.Messages[4].Seq)
}

func TestListMessagesBeforeRejectsForeignCursor(t *testing.T) {
	openTestStore(t)
	seedConversation(t, "alice_bob", "alice", "bob")
	seedConversation(t, "alice_carol", "alice", "carol")

	_, err := AppendMessage("alice_carol", &models.Message{Sender: "alice", Text: "m"})
	require.NoError(t, err)
	page, err := ListMessagesBefore("alice_carol", "", 1)
	require.NoError(t, err)
	require.False(t, page.HasMore)

	_, err = AppendMessage("alice_bob", &models.Message{Sender: "alice", Text: "m"})
	require.NoError(t, err)
	p1, err := ListMessagesBefore("alice_bob", "", 1)
	require.NoError(t, err)

	// a cursor minted for one conversation must not scan another
	_, err = ListMessagesBefore("alice_carol", p1.NextCursor, 1)
	require.Error(t, err)
}

func TestCastVoteMovesAndToggles(t *testing.T) {
	openTestStore(t)
	seedConversation(t, "crew1_2026-08-31", "alice", "bob", "carol")

	m, err := AppendMessage("crew1_2026-08-31", &models.Message{
		Sender: "alice",
		Poll:   &models.Poll{Question: "where?", Options: []string{"beach", "bar"}},
	})
	require.NoError(t, err)

	// vote, move, toggle off
	v, err := CastVote("crew1_2026-08-31", "bob", m.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 1, v.Poll.TotalVotes)

	v, err = CastVote("crew1_2026-08-31", "bob", m.ID, 1)
	require.NoError(t, err)
	require.Equal(t, 1, v.Poll.TotalVotes)
	require.Equal(t, 1, v.Poll.VotedOption("bob"))

	v, err = CastVote("crew1_2026-08-31", "bob", m.ID, 1)
	require.NoError(t, err)
	require.Equal(t, 0, v.Poll.TotalVotes)

	_, err = CastVote("crew1_2026-08-31", "mallory", m.ID, 0)
	require.ErrorIs(t, err, ErrNotParticipant)
}

func TestCastVoteConcurrentIsolation(t *testing.T) {
	openTestStore(t)
	seedConversation(t, "crew1_2026-08-31", "alice", "bob", "carol", "dave")

	m, err := AppendMessage("crew1_2026-08-31", &models.Message{
		Sender: "alice",
		Poll:   &models.Poll{Question: "where?", Options: []string{"beach", "bar"}},
	})
	require.NoError(t, err)

	voters := []string{"alice", "bob", "carol", "dave"}
	var wg sync.WaitGroup
	for i, u := range voters {
		wg.Add(1)
		go func(u string, opt int) {
			defer wg.Done()
			_, err := CastVote("crew1_2026-08-31", u, m.ID, opt)
			require.NoError(t, err)
		}(u, i%2)
	}
	wg.Wait()

	got, err := GetMessage("crew1_2026-08-31", m.ID)
	require.NoError(t, err)
	require.Equal(t, 4, got.Poll.TotalVotes, "no vote may be lost to a racing writer")
	require.Equal(t, uint64(4), got.Poll.Revision)
}

func TestTypingLifecycleAndSweep(t *testing.T) {
	openTestStore(t)
	seedConversation(t, "alice_bob", "alice", "bob")

	require.NoError(t, SetTyping("alice_bob", "alice", true))
	typing, err := ListTyping("alice_bob")
	require.NoError(t, err)
	require.Len(t, typing, 1)
	require.True(t, typing[0].Typing)

	// nothing stale yet
	stale, err := StaleTyping(time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Empty(t, stale)

	// a future cutoff treats the indicator as stuck
	cleared, err := ClearStaleTyping(time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, cleared)

	st, err := GetTyping("alice_bob", "alice")
	require.NoError(t, err)
	require.False(t, st.Typing)

	// cleared indicators are not cleared again
	cleared, err = ClearStaleTyping(time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Zero(t, cleared)
}

func TestReadWatermarkAndUnread(t *testing.T) {
	openTestStore(t)
	seedConversation(t, "alice_bob", "alice", "bob")

	var third *models.Message
	for i := 0; i < 5; i++ {
		m, err := AppendMessage("alice_bob", &models.Message{Sender: "alice", Text: "m"})
		require.NoError(t, err)
		if i == 2 {
			third = m
		}
	}

	// never read: everything from the peer is unread
	n, err := UnreadCount("alice_bob", "bob")
	require.NoError(t, err)
	require.Equal(t, 5, n)

	// own messages never count
	n, err = UnreadCount("alice_bob", "alice")
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, SetRead("alice_bob", "bob", third.TS))
	n, err = UnreadCount("alice_bob", "bob")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	rs, err := GetRead("alice_bob", "bob")
	require.NoError(t, err)
	require.Equal(t, third.TS, rs.LastReadTS)

	// unknown watermark reads as zero-valued, not an error
	rs, err = GetRead("alice_bob", "alice")
	require.NoError(t, err)
	require.Zero(t, rs.LastReadTS)
}

func TestProfilesBatch(t *testing.T) {
	openTestStore(t)

	for _, id := range []string{"alice", "bob"} {
		require.NoError(t, SaveProfile(&models.Profile{ID: id, DisplayName: id}))
	}

	got, err := GetProfiles([]string{"alice", "bob", "ghost"})
	require.NoError(t, err)
	require.Len(t, got, 2, "unknown ids are absent, not errors")
	require.Equal(t, "alice", got["alice"].DisplayName)

	ids := make([]string, ProfileBatchLimit+1)
	for i := range ids {
		ids[i] = "user" + string(rune('a'+i))
	}
	_, err = GetProfiles(ids)
	require.Error(t, err, "oversized batches must be rejected, not truncated")
}

func TestListUserConversationsOrder(t *testing.T) {
	openTestStore(t)
	seedConversation(t, "alice_bob", "alice", "bob")
	seedConversation(t, "alice_carol", "alice", "carol")

	// touching the older conversation moves it to the front
	_, err := AppendMessage("alice_bob", &models.Message{Sender: "alice", Text: "m"})
	require.NoError(t, err)

	convs, err := ListUserConversations("alice")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	require.Equal(t, "alice_bob", convs[0].ID)

	convs, err = ListUserConversations("carol")
	require.NoError(t, err)
	require.Len(t, convs, 1)
}
