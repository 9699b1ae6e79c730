package chat

import "sort"

// State is an immutable snapshot of the cached conversations and messages.
// Reducers never modify the State they receive; they return a new one.
type State struct {
	conversations map[ConversationID]Conversation
	messages      map[ConversationID][]Message
	active        ConversationID
}

// Reducer is a pure transition over State.
type Reducer func(State) State

func NewState() State {
	return State{
		conversations: map[ConversationID]Conversation{},
		messages:      map[ConversationID][]Message{},
	}
}

func (s State) Active() ConversationID {
	return s.active
}

func (s State) Conversation(id ConversationID) (Conversation, bool) {
	c, ok := s.conversations[id]
	return c, ok
}

// Conversations returns the list ordered by most recent activity first.
func (s State) Conversations() []Conversation {
	out := make([]Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := out[i].LastActivity(), out[j].LastActivity()
		if ai.Equal(aj) {
			return out[i].ID < out[j].ID
		}
		return ai.After(aj)
	})
	return out
}

// Messages returns a copy of the cached history of a conversation.
func (s State) Messages(id ConversationID) []Message {
	return append([]Message(nil), s.messages[id]...)
}

func (s State) HasMessage(id ConversationID, msgID MessageID) bool {
	for _, m := range s.messages[id] {
		if m.ID == msgID {
			return true
		}
	}
	return false
}

// FindProposal returns the message that embeds the given proposal.
func (s State) FindProposal(id ProposalID) (Message, bool) {
	for _, list := range s.messages {
		for _, m := range list {
			if m.Proposal != nil && m.Proposal.ID == id {
				return m, true
			}
		}
	}
	return Message{}, false
}

func (s State) withConversations() State {
	next := make(map[ConversationID]Conversation, len(s.conversations))
	for k, v := range s.conversations {
		next[k] = v
	}
	s.conversations = next
	return s
}

func (s State) withMessages() State {
	next := make(map[ConversationID][]Message, len(s.messages))
	for k, v := range s.messages {
		next[k] = v
	}
	s.messages = next
	return s
}

// Apply runs reducers in order.
func (s State) Apply(reducers ...Reducer) State {
	for _, r := range reducers {
		s = r(s)
	}
	return s
}

// Activate marks the conversation currently open in the UI.
func Activate(id ConversationID) Reducer {
	return func(s State) State {
		s.active = id
		return s
	}
}

// AppendMessage adds msg to the conversation unless a message with the same id
// is already cached.
func AppendMessage(id ConversationID, msg Message) Reducer {
	return func(s State) State {
		if msg.ID == "" || s.HasMessage(id, msg.ID) {
			return s
		}
		s = s.withMessages()
		list := make([]Message, 0, len(s.messages[id])+1)
		list = append(list, s.messages[id]...)
		list = append(list, msg.clone())
		s.messages[id] = list
		return s
	}
}

// ReplaceMessages swaps the cached history, dropping repeated ids.
func ReplaceMessages(id ConversationID, msgs []Message) Reducer {
	return func(s State) State {
		seen := make(map[MessageID]struct{}, len(msgs))
		list := make([]Message, 0, len(msgs))
		for _, m := range msgs {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			list = append(list, m.clone())
		}
		s = s.withMessages()
		s.messages[id] = list
		return s
	}
}

// ZeroUnread resets the unread counter of one conversation.
func ZeroUnread(id ConversationID) Reducer {
	return SetUnread(id, 0)
}

func SetUnread(id ConversationID, n int) Reducer {
	return func(s State) State {
		c, ok := s.conversations[id]
		if !ok || c.UnreadCount == n {
			return s
		}
		if n < 0 {
			n = 0
		}
		s = s.withConversations()
		c.UnreadCount = n
		s.conversations[id] = c
		return s
	}
}

// UpsertConversations merges a server listing into the cache. The active
// conversation keeps a locally zeroed unread count.
func UpsertConversations(list []Conversation) Reducer {
	return func(s State) State {
		s = s.withConversations()
		for _, c := range list {
			if prev, ok := s.conversations[c.ID]; ok && c.ID == s.active && prev.UnreadCount == 0 {
				c.UnreadCount = 0
			}
			s.conversations[c.ID] = c
		}
		return s
	}
}

// RecordLastMessage updates the conversation summary so the list reorders.
// Unknown conversations get a stub entry until the next listing fills it in.
func RecordLastMessage(id ConversationID, msg Message) Reducer {
	return func(s State) State {
		c, ok := s.conversations[id]
		if !ok {
			c = Conversation{ID: id, CreatedAt: msg.CreatedAt}
		}
		if c.LastMessage != nil && msg.CreatedAt.Before(c.LastMessage.CreatedAt) {
			return s
		}
		m := msg.clone()
		c.LastMessage = &m
		s = s.withConversations()
		s.conversations[id] = c
		return s
	}
}

// ReplaceProposalStatus moves every copy of the proposal to status when the
// transition is legal.
func ReplaceProposalStatus(id ProposalID, status ProposalStatus) Reducer {
	return func(s State) State {
		return s.mapProposal(id, func(m Message) (Message, bool) {
			next, err := m.Proposal.Transition(status)
			if err != nil {
				return m, false
			}
			m.Proposal = &next
			return m, true
		})
	}
}

// SetPaymentStatus mirrors the server's paymentStatus. A paid payment also
// moves an accepted proposal to paid.
func SetPaymentStatus(id ProposalID, status string) Reducer {
	return func(s State) State {
		return s.mapProposal(id, func(m Message) (Message, bool) {
			if m.PaymentStatus == status {
				return m, false
			}
			m.PaymentStatus = status
			if status == PaymentPaid {
				if next, err := m.Proposal.Transition(ProposalPaid); err == nil {
					m.Proposal = &next
				}
			}
			return m, true
		})
	}
}

func (s State) mapProposal(id ProposalID, fn func(Message) (Message, bool)) State {
	changed := false
	msgs := make(map[ConversationID][]Message, len(s.messages))
	for cid, list := range s.messages {
		var out []Message
		for i, m := range list {
			if m.Proposal == nil || m.Proposal.ID != id {
				continue
			}
			next, ok := fn(m.clone())
			if !ok {
				continue
			}
			if out == nil {
				out = append([]Message(nil), list...)
			}
			out[i] = next
		}
		if out != nil {
			msgs[cid] = out
			changed = true
		}
	}
	convs := map[ConversationID]Conversation{}
	for cid, c := range s.conversations {
		if c.LastMessage == nil || c.LastMessage.Proposal == nil || c.LastMessage.Proposal.ID != id {
			continue
		}
		if next, ok := fn(c.LastMessage.clone()); ok {
			c.LastMessage = &next
			convs[cid] = c
			changed = true
		}
	}
	if !changed {
		return s
	}
	if len(msgs) > 0 {
		s = s.withMessages()
		for cid, list := range msgs {
			s.messages[cid] = list
		}
	}
	if len(convs) > 0 {
		s = s.withConversations()
		for cid, c := range convs {
			s.conversations[cid] = c
		}
	}
	return s
}
