package ledger

// Change is the complete write set of one successful operation. Records are
// full replacement copies, never field patches.
type Change struct {
	// Coordinator is set when this operation designated the coordinator.
	Coordinator Identity
	Agent       *Agent
	Case        *Case
	// Message is appended at Message.Index, which equals the case's count
	// before the append.
	Message *Message
	// NextCaseID is non-zero when the case counter advanced.
	NextCaseID uint64
}

// MessageCount returns the case's count after the change, when the change
// appends a message.
func (ch Change) MessageCount() (uint64, bool) {
	if ch.Message == nil {
		return 0, false
	}
	return ch.Message.Index + 1, true
}

func (s *state) apply(ch Change) {
	if ch.Coordinator != "" {
		s.coordinator = ch.Coordinator
	}
	if ch.Agent != nil {
		s.agents[ch.Agent.Identity] = *ch.Agent
	}
	if ch.Case != nil {
		s.cases[ch.Case.ID] = *ch.Case
	}
	if ch.Message != nil {
		s.messages[ch.Message.CaseID] = append(s.messages[ch.Message.CaseID], *ch.Message)
	}
	if ch.NextCaseID != 0 {
		s.nextCaseID = ch.NextCaseID
	}
}

// EventKind names what a committed change did.
type EventKind string

const (
	EventAgentRegistered    EventKind = "agent_registered"
	EventAgentStatusChanged EventKind = "agent_status_changed"
	EventCaseOpened         EventKind = "case_opened"
	EventCaseAssigned       EventKind = "case_assigned"
	EventCaseClosed         EventKind = "case_closed"
	EventMessageAppended    EventKind = "message_appended"
)

// Event describes one committed change for subscribers. It carries records
// that are already public through the query surface, nothing more.
type Event struct {
	Kind    EventKind
	CaseID  uint64
	Agent   *Agent
	Case    *Case
	Message *Message
}
