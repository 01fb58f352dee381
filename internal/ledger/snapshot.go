package ledger

import (
	"errors"
	"fmt"
	"sort"
)

var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Snapshot is the full ledger state in the persisted layout: four tables
// plus the coordinator and next-case-id scalars.
type Snapshot struct {
	Coordinator   Identity
	NextCaseID    uint64
	Agents        []Agent
	Cases         []Case
	MessageCounts map[uint64]uint64
	Messages      []Message
}

// Snapshot copies the current state. Slices are ordered by key.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{
		Coordinator:   l.state.coordinator,
		NextCaseID:    l.state.nextCaseID,
		Agents:        make([]Agent, 0, len(l.state.agents)),
		Cases:         make([]Case, 0, len(l.state.cases)),
		MessageCounts: make(map[uint64]uint64, len(l.state.messages)),
	}
	for _, a := range l.state.agents {
		snap.Agents = append(snap.Agents, a)
	}
	sort.Slice(snap.Agents, func(i, j int) bool { return snap.Agents[i].Identity < snap.Agents[j].Identity })

	for _, c := range l.state.cases {
		snap.Cases = append(snap.Cases, c)
	}
	sort.Slice(snap.Cases, func(i, j int) bool { return snap.Cases[i].ID < snap.Cases[j].ID })

	for _, c := range snap.Cases {
		log := l.state.messages[c.ID]
		if len(log) == 0 {
			continue
		}
		snap.MessageCounts[c.ID] = uint64(len(log))
		snap.Messages = append(snap.Messages, log...)
	}
	return snap
}

// Restore replaces the whole state with snap after checking its invariants:
// every case id is below NextCaseID, every message belongs to a known case,
// and each case's message indices are exactly [0, count).
func (l *Ledger) Restore(snap Snapshot) error {
	next := newState()
	if snap.NextCaseID != 0 {
		next.nextCaseID = snap.NextCaseID
	}
	next.coordinator = snap.Coordinator

	for _, a := range snap.Agents {
		next.agents[a.Identity] = a
	}
	for _, c := range snap.Cases {
		if c.ID == 0 || c.ID >= next.nextCaseID {
			return fmt.Errorf("%w: case %d outside [1, %d)", ErrInvalidSnapshot, c.ID, next.nextCaseID)
		}
		next.cases[c.ID] = c
	}

	msgs := append([]Message(nil), snap.Messages...)
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CaseID != msgs[j].CaseID {
			return msgs[i].CaseID < msgs[j].CaseID
		}
		return msgs[i].Index < msgs[j].Index
	})
	var maxTimestamp uint64
	for _, m := range msgs {
		if _, ok := next.cases[m.CaseID]; !ok {
			return fmt.Errorf("%w: message for unknown case %d", ErrInvalidSnapshot, m.CaseID)
		}
		if want := uint64(len(next.messages[m.CaseID])); m.Index != want {
			return fmt.Errorf("%w: case %d has index %d where %d was expected", ErrInvalidSnapshot, m.CaseID, m.Index, want)
		}
		next.messages[m.CaseID] = append(next.messages[m.CaseID], m)
		if m.Timestamp > maxTimestamp {
			maxTimestamp = m.Timestamp
		}
	}

	for id, count := range snap.MessageCounts {
		if got := uint64(len(next.messages[id])); got != count {
			return fmt.Errorf("%w: case %d counts %d messages but stores %d", ErrInvalidSnapshot, id, count, got)
		}
	}
	for id, log := range next.messages {
		if snap.MessageCounts[id] != uint64(len(log)) {
			return fmt.Errorf("%w: case %d stores %d messages without a matching count", ErrInvalidSnapshot, id, len(log))
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = next
	if clock, ok := l.blocks.(*UnixBlockClock); ok {
		clock.Floor(maxTimestamp)
	}
	return nil
}
