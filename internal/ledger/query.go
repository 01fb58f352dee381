package ledger

// NextCaseID returns the id the next OpenCase will allocate.
func (l *Ledger) NextCaseID() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.nextCaseID
}

// Coordinator returns the designated coordinator, if any.
func (l *Ledger) Coordinator() (Identity, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.coordinator, l.state.coordinator != ""
}

func (l *Ledger) Agent(id Identity) (Agent, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.state.agents[id]
	return rec, ok
}

func (l *Ledger) Case(id uint64) (Case, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.state.cases[id]
	return rec, ok
}
