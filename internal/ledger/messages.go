package ledger

import "context"

// SendCitizenMessage appends an unattributed citizen message to an open case
// and returns its index. Any caller may send; the caller is not recorded.
func (l *Ledger) SendCitizenMessage(ctx context.Context, caller Identity, caseID uint64, content string) (uint64, error) {
	defer l.publishPending()
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.openCase(caseID); err != nil {
		return 0, l.fail(OpCitizenMessage, err)
	}
	return l.appendMessage(ctx, OpCitizenMessage, caseID, RoleCitizen, Unattributed(), content)
}

// SendPoliceMessage appends a police message to an open case and returns its
// index. The caller must be the coordinator or an active agent.
//
// A caller with an agent record is attributed to itself, even a coordinator
// whose record is inactive. A coordinator without an agent record speaks for
// the case's assigned agent, or unattributed when none is assigned.
func (l *Ledger) SendPoliceMessage(ctx context.Context, caller Identity, caseID uint64, content string) (uint64, error) {
	defer l.publishPending()
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.requireActiveAgentOrCoordinator(caller); err != nil {
		return 0, l.fail(OpPoliceMessage, err)
	}
	rec, err := l.openCase(caseID)
	if err != nil {
		return 0, l.fail(OpPoliceMessage, err)
	}

	from := Unattributed()
	_, registered := l.state.agents[caller]
	switch {
	case registered:
		from = AttributedTo(caller)
	case rec.IsAssigned():
		// TODO: attribute to the coordinator once Attribution can name a
		// non-agent sender.
		from = AttributedTo(rec.AssignedAgent)
	}
	return l.appendMessage(ctx, OpPoliceMessage, caseID, RolePolice, from, content)
}

func (l *Ledger) appendMessage(ctx context.Context, op string, caseID uint64, role Role, from Attribution, content string) (uint64, error) {
	msg := Message{
		CaseID:    caseID,
		Index:     uint64(len(l.state.messages[caseID])),
		FromRole:  role,
		From:      from,
		Content:   content,
		Timestamp: l.blocks.BlockNumber(),
	}
	ch := Change{Message: &msg}
	if err := l.commit(ctx, op, ch, Event{Kind: EventMessageAppended, CaseID: caseID, Message: &msg}); err != nil {
		return 0, err
	}
	if l.recorder != nil {
		l.recorder.ObserveMessage(role)
	}
	return msg.Index, nil
}

// MessageCount returns the number of messages in a case's log; zero for an
// unknown case.
func (l *Ledger) MessageCount(caseID uint64) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint64(len(l.state.messages[caseID]))
}

// Message returns entry index of the case's log.
func (l *Ledger) Message(caseID, index uint64) (Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	log := l.state.messages[caseID]
	if index >= uint64(len(log)) {
		return Message{}, false
	}
	return log[index], true
}

// Messages returns up to limit entries starting at index from, in index
// order. A limit of zero returns everything from from onwards.
func (l *Ledger) Messages(caseID, from, limit uint64) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	log := l.state.messages[caseID]
	n := uint64(len(log))
	if from >= n {
		return []Message{}
	}
	end := n
	if limit > 0 && limit < n-from {
		end = from + limit
	}
	out := make([]Message, end-from)
	copy(out, log[from:end])
	return out
}
