package ledger

import (
	"context"

	"safecase/backend/internal/commitment"
)

// OpenCase records a new case and returns its id. Any caller may open a case;
// the caller's identity is not stored, only the commitment of secret.
func (l *Ledger) OpenCase(ctx context.Context, caller Identity, region, subject, details string, secret commitment.Secret) (uint64, error) {
	defer l.publishPending()
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.state.nextCaseID
	rec := Case{
		ID:                 id,
		Region:             region,
		Subject:            subject,
		Details:            details,
		ReporterCommitment: commitment.Commit(secret),
		Status:             StatusOpen,
	}
	ch := Change{Case: &rec, NextCaseID: id + 1}

	if err := l.commit(ctx, OpOpenCase, ch, Event{Kind: EventCaseOpened, CaseID: id, Case: &rec}); err != nil {
		return 0, err
	}
	return id, nil
}

// AssignCase points an open case at agent. The agent must be active and
// registered in exactly the case's region. Reassignment is allowed; the last
// call wins. Coordinator only.
func (l *Ledger) AssignCase(ctx context.Context, caller Identity, caseID uint64, agent Identity) error {
	defer l.publishPending()
	l.mu.Lock()
	defer l.mu.Unlock()

	var ch Change
	if err := l.requireCoordinator(caller, &ch); err != nil {
		return l.fail(OpAssignCase, err)
	}

	rec, err := l.openCase(caseID)
	if err != nil {
		return l.fail(OpAssignCase, err)
	}
	if err := l.requireActiveAgent(agent); err != nil {
		return l.fail(OpAssignCase, err)
	}
	if l.state.agents[agent].Region != rec.Region {
		return l.fail(OpAssignCase, ErrRegionMismatch)
	}

	updated := rec
	updated.AssignedAgent = agent
	ch.Case = &updated
	return l.commit(ctx, OpAssignCase, ch, Event{Kind: EventCaseAssigned, CaseID: caseID, Case: &updated})
}

// CloseCase moves an open case to Closed, which is terminal. Only the
// coordinator or the currently assigned agent may close; an unassigned case
// can only be closed by the coordinator. Closing twice fails.
func (l *Ledger) CloseCase(ctx context.Context, caller Identity, caseID uint64) error {
	defer l.publishPending()
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, err := l.openCase(caseID)
	if err != nil {
		return l.fail(OpCloseCase, err)
	}
	if !l.isCoordinator(caller) && (!rec.IsAssigned() || rec.AssignedAgent != caller) {
		return l.fail(OpCloseCase, ErrUnauthorized)
	}

	updated := rec
	updated.Status = StatusClosed
	ch := Change{Case: &updated}
	return l.commit(ctx, OpCloseCase, ch, Event{Kind: EventCaseClosed, CaseID: caseID, Case: &updated})
}

// openCase returns the case if it exists and is still open.
func (l *Ledger) openCase(caseID uint64) (Case, error) {
	rec, ok := l.state.cases[caseID]
	if !ok {
		return Case{}, ErrCaseNotFound
	}
	if rec.Status == StatusClosed {
		return Case{}, ErrCaseClosed
	}
	return rec, nil
}
