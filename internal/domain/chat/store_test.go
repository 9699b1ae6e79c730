package chat

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func msg(id string, at time.Duration) Message {
	return Message{
		ID:        MessageID(id),
		Sender:    Participant{ID: "u-b", Name: "Bruna"},
		Text:      "msg " + id,
		CreatedAt: base.Add(at),
	}
}

func proposalMsg(id string, status ProposalStatus) Message {
	return Message{
		ID:        MessageID(id),
		Sender:    Participant{ID: "u-t", Name: "Tiago"},
		CreatedAt: base,
		Proposal: &Proposal{
			ID:     ProposalID(id),
			Price:  decimal.RequireFromString("350.00"),
			Status: status,
		},
	}
}

func TestAppendMessageDeduplicates(t *testing.T) {
	s := NewState()
	sequence := []string{"m1", "m2", "m1", "m3", "m2", "m2", "m4", "m1"}
	for i, id := range sequence {
		s = s.Apply(AppendMessage("c1", msg(id, time.Duration(i)*time.Second)))
	}

	got := s.Messages("c1")
	seen := map[MessageID]int{}
	for _, m := range got {
		seen[m.ID]++
	}
	for id, n := range seen {
		assert.Equalf(t, 1, n, "message %s cached %d times", id, n)
	}
	require.Len(t, got, 4)
	assert.Equal(t, MessageID("m1"), got[0].ID)
	assert.Equal(t, MessageID("m4"), got[3].ID)
}

func TestReducersDoNotMutateReceiver(t *testing.T) {
	before := NewState().Apply(
		UpsertConversations([]Conversation{{ID: "c1", UnreadCount: 3}}),
		AppendMessage("c1", msg("m1", 0)),
	)

	after := before.Apply(
		AppendMessage("c1", msg("m2", time.Second)),
		ZeroUnread("c1"),
	)

	assert.Len(t, before.Messages("c1"), 1)
	c, _ := before.Conversation("c1")
	assert.Equal(t, 3, c.UnreadCount)

	assert.Len(t, after.Messages("c1"), 2)
	c, _ = after.Conversation("c1")
	assert.Equal(t, 0, c.UnreadCount)
}

func TestZeroUnreadOnlyTouchesTarget(t *testing.T) {
	s := NewState().Apply(UpsertConversations([]Conversation{
		{ID: "c1", UnreadCount: 2},
		{ID: "c2", UnreadCount: 5},
		{ID: "c3", UnreadCount: 0},
	}))

	s = s.Apply(ZeroUnread("c2"))

	for id, want := range map[ConversationID]int{"c1": 2, "c2": 0, "c3": 0} {
		c, ok := s.Conversation(id)
		require.True(t, ok)
		assert.Equal(t, want, c.UnreadCount, string(id))
	}
}

func TestConversationsSortedByLastActivity(t *testing.T) {
	older := msg("m1", time.Minute)
	s := NewState().Apply(UpsertConversations([]Conversation{
		{ID: "c1", CreatedAt: base, LastMessage: &older},
		{ID: "C42", CreatedAt: base},
		{ID: "c3", CreatedAt: base.Add(30 * time.Second)},
	}))

	ids := func() []ConversationID {
		var out []ConversationID
		for _, c := range s.Conversations() {
			out = append(out, c.ID)
		}
		return out
	}
	assert.Equal(t, []ConversationID{"c1", "c3", "C42"}, ids())

	s = s.Apply(RecordLastMessage("C42", msg("m9", time.Hour)))
	assert.Equal(t, []ConversationID{"C42", "c1", "c3"}, ids())
}

func TestRecordLastMessageIgnoresOlderMessages(t *testing.T) {
	s := NewState().Apply(
		RecordLastMessage("c1", msg("new", time.Hour)),
		RecordLastMessage("c1", msg("old", time.Minute)),
	)
	c, ok := s.Conversation("c1")
	require.True(t, ok)
	assert.Equal(t, MessageID("new"), c.LastMessage.ID)
}

func TestUpsertKeepsZeroUnreadForActive(t *testing.T) {
	s := NewState().Apply(
		UpsertConversations([]Conversation{{ID: "c1", UnreadCount: 4}, {ID: "c2", UnreadCount: 1}}),
		Activate("c1"),
		ZeroUnread("c1"),
		UpsertConversations([]Conversation{{ID: "c1", UnreadCount: 4}, {ID: "c2", UnreadCount: 2}}),
	)
	c1, _ := s.Conversation("c1")
	c2, _ := s.Conversation("c2")
	assert.Equal(t, 0, c1.UnreadCount)
	assert.Equal(t, 2, c2.UnreadCount)
}

func TestReplaceProposalStatus(t *testing.T) {
	s := NewState().Apply(
		AppendMessage("c1", proposalMsg("p1", ProposalPending)),
		RecordLastMessage("c1", proposalMsg("p1", ProposalPending)),
	)

	s = s.Apply(ReplaceProposalStatus("p1", ProposalAccepted))
	m, ok := s.FindProposal("p1")
	require.True(t, ok)
	assert.Equal(t, ProposalAccepted, m.Proposal.Status)
	c, _ := s.Conversation("c1")
	assert.Equal(t, ProposalAccepted, c.LastMessage.Proposal.Status)

	s = s.Apply(ReplaceProposalStatus("p1", ProposalRejected))
	m, _ = s.FindProposal("p1")
	assert.Equal(t, ProposalAccepted, m.Proposal.Status, "accepted proposals cannot be rejected")
}

func TestSetPaymentStatusMarksProposalPaid(t *testing.T) {
	s := NewState().Apply(AppendMessage("c1", proposalMsg("p1", ProposalAccepted)))
	before := s

	s = s.Apply(SetPaymentStatus("p1", PaymentPaid))

	m, _ := s.FindProposal("p1")
	assert.Equal(t, PaymentPaid, m.PaymentStatus)
	assert.Equal(t, ProposalPaid, m.Proposal.Status)

	m, _ = before.FindProposal("p1")
	assert.Equal(t, ProposalAccepted, m.Proposal.Status)
	assert.Empty(t, m.PaymentStatus)
}

func TestReplaceMessagesDropsDuplicates(t *testing.T) {
	s := NewState().Apply(ReplaceMessages("c1", []Message{msg("a", 0), msg("b", 1), msg("a", 2)}))
	assert.Len(t, s.Messages("c1"), 2)
}
