package ledger

import "context"

// RegisterAgent creates or replaces agent's record with the given region.
// Registration always (re)activates the agent, even one the coordinator
// deactivated earlier. Coordinator only.
func (l *Ledger) RegisterAgent(ctx context.Context, caller, agent Identity, region string) error {
	defer l.publishPending()
	l.mu.Lock()
	defer l.mu.Unlock()

	var ch Change
	if err := l.requireCoordinator(caller, &ch); err != nil {
		return l.fail(OpRegisterAgent, err)
	}

	rec := Agent{Identity: agent, Region: region, Active: true}
	ch.Agent = &rec
	return l.commit(ctx, OpRegisterAgent, ch, Event{Kind: EventAgentRegistered, Agent: &rec})
}

// SetAgentActive flips an existing agent's eligibility. The region is kept.
// Coordinator only.
func (l *Ledger) SetAgentActive(ctx context.Context, caller, agent Identity, active bool) error {
	defer l.publishPending()
	l.mu.Lock()
	defer l.mu.Unlock()

	var ch Change
	if err := l.requireCoordinator(caller, &ch); err != nil {
		return l.fail(OpSetAgentActive, err)
	}

	rec, ok := l.state.agents[agent]
	if !ok {
		return l.fail(OpSetAgentActive, ErrNotAnAgent)
	}
	updated := Agent{Identity: rec.Identity, Region: rec.Region, Active: active}
	ch.Agent = &updated
	return l.commit(ctx, OpSetAgentActive, ch, Event{Kind: EventAgentStatusChanged, Agent: &updated})
}

// IsCoordinator reports whether id is the designated coordinator. It never
// designates one.
func (l *Ledger) IsCoordinator(id Identity) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isCoordinator(id)
}

func (l *Ledger) isCoordinator(id Identity) bool {
	return l.state.coordinator != "" && l.state.coordinator == id
}

// requireCoordinator admits the coordinator. While no coordinator exists the
// caller is designated one through ch, so the designation is committed or
// discarded together with the rest of the operation.
func (l *Ledger) requireCoordinator(caller Identity, ch *Change) error {
	if caller == "" {
		return ErrUnauthorized
	}
	if l.state.coordinator == "" {
		ch.Coordinator = caller
		return nil
	}
	if l.state.coordinator != caller {
		return ErrUnauthorized
	}
	return nil
}

// requireActiveAgentOrCoordinator admits the coordinator and any active agent.
func (l *Ledger) requireActiveAgentOrCoordinator(id Identity) error {
	if l.isCoordinator(id) {
		return nil
	}
	return l.requireActiveAgent(id)
}

func (l *Ledger) requireActiveAgent(id Identity) error {
	rec, ok := l.state.agents[id]
	if !ok {
		return ErrNotAnAgent
	}
	if !rec.Active {
		return ErrAgentInactive
	}
	return nil
}
