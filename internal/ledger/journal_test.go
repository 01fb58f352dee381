package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"safecase/backend/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockJournal struct {
	mock.Mock
}

func (m *MockJournal) Append(ctx context.Context, ch ledger.Change) error {
	args := m.Called(ctx, ch)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) PublishEvent(ev ledger.Event) error {
	args := m.Called(ev)
	return args.Error(0)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) ObserveOperation(op string, err error) {
	m.Called(op, ledger.ErrorKind(err))
}

func (m *MockRecorder) ObserveMessage(role ledger.Role) {
	m.Called(role)
}

func TestJournal_ReceivesFullChange(t *testing.T) {
	ctx := context.Background()
	journal := new(MockJournal)
	journal.On("Append", ctx, mock.AnythingOfType("ledger.Change")).Return(nil)
	l, _ := newTestLedger(t, ledger.WithJournal(journal))

	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"))
	id, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)
	_, err = l.SendCitizenMessage(ctx, citizen, id, "hi")
	require.NoError(t, err)

	require.Len(t, journal.Calls, 3)

	register := journal.Calls[0].Arguments.Get(1).(ledger.Change)
	assert.Equal(t, coordinator, register.Coordinator)
	require.NotNil(t, register.Agent)
	assert.Equal(t, ledger.Agent{Identity: agentX, Region: "CENTRAL", Active: true}, *register.Agent)

	open := journal.Calls[1].Arguments.Get(1).(ledger.Change)
	assert.Empty(t, open.Coordinator)
	require.NotNil(t, open.Case)
	assert.Equal(t, uint64(1), open.Case.ID)
	assert.Equal(t, uint64(2), open.NextCaseID)

	appended := journal.Calls[2].Arguments.Get(1).(ledger.Change)
	require.NotNil(t, appended.Message)
	count, ok := appended.MessageCount()
	assert.True(t, ok)
	assert.Equal(t, uint64(1), count)
}

func TestJournal_FailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	journal := new(MockJournal)
	journal.On("Append", ctx, mock.AnythingOfType("ledger.Change")).Return(errors.New("db down")).Once()
	journal.On("Append", ctx, mock.AnythingOfType("ledger.Change")).Return(nil)
	l, _ := newTestLedger(t, ledger.WithJournal(journal))

	_, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	assert.ErrorIs(t, err, ledger.ErrPersist)
	assert.Equal(t, uint64(1), l.NextCaseID())
	_, ok := l.Case(1)
	assert.False(t, ok)

	id, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id, "a failed open does not burn an id")
}

func TestJournal_FailedBootstrapIsDiscarded(t *testing.T) {
	ctx := context.Background()
	journal := new(MockJournal)
	journal.On("Append", ctx, mock.AnythingOfType("ledger.Change")).Return(errors.New("db down"))
	l, _ := newTestLedger(t, ledger.WithJournal(journal))

	assert.ErrorIs(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"), ledger.ErrPersist)
	_, ok := l.Coordinator()
	assert.False(t, ok)
	_, ok = l.Agent(agentX)
	assert.False(t, ok)
}

func TestJournal_NotCalledOnRejection(t *testing.T) {
	ctx := context.Background()
	journal := new(MockJournal)
	l, _ := newTestLedger(t, ledger.WithJournal(journal))

	_, err := l.SendCitizenMessage(ctx, citizen, 1, "x")
	assert.ErrorIs(t, err, ledger.ErrCaseNotFound)
	journal.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestNotifier_EventsInCommitOrder(t *testing.T) {
	ctx := context.Background()
	notifier := new(MockNotifier)
	notifier.On("PublishEvent", mock.AnythingOfType("ledger.Event")).Return(nil)
	l, _ := newTestLedger(t, ledger.WithNotifier(notifier))

	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"))
	id, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)
	require.NoError(t, l.AssignCase(ctx, coordinator, id, agentX))
	_, err = l.SendCitizenMessage(ctx, citizen, id, "hi")
	require.NoError(t, err)
	require.NoError(t, l.CloseCase(ctx, agentX, id))

	var kinds []ledger.EventKind
	for _, call := range notifier.Calls {
		kinds = append(kinds, call.Arguments.Get(0).(ledger.Event).Kind)
	}
	assert.Equal(t, []ledger.EventKind{
		ledger.EventAgentRegistered,
		ledger.EventCaseOpened,
		ledger.EventCaseAssigned,
		ledger.EventMessageAppended,
		ledger.EventCaseClosed,
	}, kinds)
}

func TestNotifier_FailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	notifier := new(MockNotifier)
	notifier.On("PublishEvent", mock.AnythingOfType("ledger.Event")).Return(errors.New("redis down"))
	l, _ := newTestLedger(t, ledger.WithNotifier(notifier))

	id, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)
	_, ok := l.Case(id)
	assert.True(t, ok)
}

// gatedNotifier holds its first PublishEvent call until release is closed.
type gatedNotifier struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once

	mu      sync.Mutex
	caseIDs []uint64
}

func newGatedNotifier() *gatedNotifier {
	return &gatedNotifier{started: make(chan struct{}), release: make(chan struct{})}
}

func (n *gatedNotifier) PublishEvent(ev ledger.Event) error {
	n.once.Do(func() {
		close(n.started)
		<-n.release
	})
	n.mu.Lock()
	defer n.mu.Unlock()
	n.caseIDs = append(n.caseIDs, ev.CaseID)
	return nil
}

func (n *gatedNotifier) published() []uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]uint64(nil), n.caseIDs...)
}

func TestNotifier_SlowPublishDoesNotHoldLedger(t *testing.T) {
	ctx := context.Background()
	notifier := newGatedNotifier()
	l, _ := newTestLedger(t, ledger.WithNotifier(notifier))

	first := make(chan error, 1)
	go func() {
		_, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
		first <- err
	}()
	<-notifier.started

	second := make(chan uint64, 1)
	go func() {
		id, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(2))
		assert.NoError(t, err)
		second <- id
	}()

	select {
	case id := <-second:
		assert.Equal(t, uint64(2), id)
		_, ok := l.Case(id)
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("OpenCase blocked behind a pending publish")
	}
	assert.Empty(t, notifier.published())

	close(notifier.release)
	require.NoError(t, <-first)
	assert.Equal(t, []uint64{1, 2}, notifier.published())
}

func TestRecorder_ObservesOutcomes(t *testing.T) {
	ctx := context.Background()
	recorder := new(MockRecorder)
	recorder.On("ObserveOperation", mock.Anything, mock.Anything).Return()
	recorder.On("ObserveMessage", mock.Anything).Return()
	l, _ := newTestLedger(t, ledger.WithRecorder(recorder))

	id, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)
	_, err = l.SendCitizenMessage(ctx, citizen, id, "hi")
	require.NoError(t, err)
	_ = l.CloseCase(ctx, citizen, id)

	recorder.AssertCalled(t, "ObserveOperation", ledger.OpOpenCase, "ok")
	recorder.AssertCalled(t, "ObserveOperation", ledger.OpCitizenMessage, "ok")
	recorder.AssertCalled(t, "ObserveOperation", ledger.OpCloseCase, "unauthorized")
	recorder.AssertCalled(t, "ObserveMessage", ledger.RoleCitizen)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "ok", ledger.ErrorKind(nil))
	assert.Equal(t, "case_closed", ledger.ErrorKind(ledger.ErrCaseClosed))
	assert.Equal(t, "persist_failed", ledger.ErrorKind(errors.Join(ledger.ErrPersist, errors.New("x"))))
	assert.Equal(t, "internal", ledger.ErrorKind(errors.New("other")))
}
