package ledger_test

import (
	"context"
	"testing"

	"safecase/backend/internal/commitment"
	"safecase/backend/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	coordinator = ledger.Identity("coordinator")
	agentX      = ledger.Identity("agent_x")
	agentY      = ledger.Identity("agent_y")
	citizen     = ledger.Identity("citizen")
	stranger    = ledger.Identity("stranger")
)

// fixedBlocks returns a fixed block number, advanced by tests when needed.
type fixedBlocks struct{ n uint64 }

func (b *fixedBlocks) BlockNumber() uint64 { return b.n }

func newTestLedger(t *testing.T, opts ...ledger.Option) (*ledger.Ledger, *fixedBlocks) {
	t.Helper()
	blocks := &fixedBlocks{n: 100}
	opts = append([]ledger.Option{ledger.WithBlockSource(blocks)}, opts...)
	return ledger.New(zap.NewNop(), opts...), blocks
}

func secret(b byte) commitment.Secret {
	var s commitment.Secret
	for i := range s {
		s[i] = b
	}
	return s
}

// Scenario A: coordinator registers X in CENTRAL, a citizen opens case 1.
func TestScenarioA_RegisterAndOpen(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"))

	id, err := l.OpenCase(ctx, citizen, "CENTRAL", "theft", "bike stolen", secret(0x5))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	c, ok := l.Case(1)
	require.True(t, ok)
	assert.Equal(t, commitment.Commit(secret(0x5)), c.ReporterCommitment)
	assert.NotEqual(t, string(citizen), c.ReporterCommitment.String())
	assert.Equal(t, ledger.StatusOpen, c.Status)
	assert.False(t, c.IsAssigned())
	assert.Equal(t, "CENTRAL", c.Region)
	assert.Equal(t, "theft", c.Subject)
	assert.Equal(t, "bike stolen", c.Details)
}

// Scenario B: assignment, then a citizen and an agent message.
func TestScenarioB_AssignAndConverse(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"))
	id, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)

	require.NoError(t, l.AssignCase(ctx, coordinator, id, agentX))

	idx, err := l.SendCitizenMessage(ctx, citizen, id, "hello")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), idx)

	idx, err = l.SendPoliceMessage(ctx, agentX, id, "on it")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), idx)

	first, ok := l.Message(id, 0)
	require.True(t, ok)
	assert.Equal(t, ledger.RoleCitizen, first.FromRole)
	_, attributed := first.From.Agent()
	assert.False(t, attributed)

	second, ok := l.Message(id, 1)
	require.True(t, ok)
	assert.Equal(t, ledger.RolePolice, second.FromRole)
	from, attributed := second.From.Agent()
	assert.True(t, attributed)
	assert.Equal(t, agentX, from)
	assert.Equal(t, uint64(2), l.MessageCount(id))
}

// Scenario C: an unregistered identity cannot send police messages.
func TestScenarioC_UnregisteredPoliceMessage(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"))
	id, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)

	_, err = l.SendPoliceMessage(ctx, stranger, id, "hi")
	assert.ErrorIs(t, err, ledger.ErrNotAnAgent)
	assert.Equal(t, uint64(0), l.MessageCount(id))
}

// Scenario D: messages to a closed case fail and the count stays put.
func TestScenarioD_CloseThenMessage(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"))
	id, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)
	_, err = l.SendCitizenMessage(ctx, citizen, id, "one")
	require.NoError(t, err)

	require.NoError(t, l.CloseCase(ctx, coordinator, id))

	_, err = l.SendCitizenMessage(ctx, citizen, id, "two")
	assert.ErrorIs(t, err, ledger.ErrCaseClosed)
	assert.Equal(t, uint64(1), l.MessageCount(id))

	c, _ := l.Case(id)
	assert.Equal(t, ledger.StatusClosed, c.Status)
}

// Scenario E: a non-coordinator cannot assign.
func TestScenarioE_CitizenCannotAssign(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"))
	id, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)

	err = l.AssignCase(ctx, citizen, id, agentX)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	c, _ := l.Case(id)
	assert.False(t, c.IsAssigned())
}

func TestOpenCase_CounterAdvancesByOne(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	for i := 0; i < 5; i++ {
		before := l.NextCaseID()
		id, err := l.OpenCase(ctx, citizen, "NORTH", "s", "d", secret(byte(i)))
		require.NoError(t, err)
		assert.Equal(t, before, id)
		assert.Equal(t, before+1, l.NextCaseID())
	}
}

func TestOpenCase_DoesNotDesignateCoordinator(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.OpenCase(context.Background(), citizen, "NORTH", "s", "d", secret(1))
	require.NoError(t, err)

	_, ok := l.Coordinator()
	assert.False(t, ok)
}

func TestCoordinatorBootstrap_FirstGatedCallerWins(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	assert.False(t, l.IsCoordinator(coordinator))
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"))
	assert.True(t, l.IsCoordinator(coordinator))

	err := l.RegisterAgent(ctx, stranger, agentY, "CENTRAL")
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	got, ok := l.Coordinator()
	require.True(t, ok)
	assert.Equal(t, coordinator, got)
	_, ok = l.Agent(agentY)
	assert.False(t, ok)
}

func TestCoordinatorBootstrap_DiscardedWhenOperationFails(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	err := l.SetAgentActive(ctx, stranger, agentX, false)
	assert.ErrorIs(t, err, ledger.ErrNotAnAgent)

	_, ok := l.Coordinator()
	assert.False(t, ok, "a failed gated call must not designate a coordinator")

	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"))
	assert.True(t, l.IsCoordinator(coordinator))
}

func TestCoordinatorBootstrap_EmptyCallerRejected(t *testing.T) {
	l, _ := newTestLedger(t)
	err := l.RegisterAgent(context.Background(), "", agentX, "CENTRAL")
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
	_, ok := l.Coordinator()
	assert.False(t, ok)
}

func TestSetAgentActive(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"))

	require.NoError(t, l.SetAgentActive(ctx, coordinator, agentX, false))
	a, ok := l.Agent(agentX)
	require.True(t, ok)
	assert.False(t, a.Active)
	assert.Equal(t, "CENTRAL", a.Region, "deactivation keeps the record")

	assert.ErrorIs(t, l.SetAgentActive(ctx, coordinator, agentY, true), ledger.ErrNotAnAgent)
	assert.ErrorIs(t, l.SetAgentActive(ctx, agentX, agentX, true), ledger.ErrUnauthorized)
}

func TestRegisterAgent_AlwaysReactivates(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"))
	require.NoError(t, l.SetAgentActive(ctx, coordinator, agentX, false))

	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "SOUTH"))

	a, _ := l.Agent(agentX)
	assert.True(t, a.Active)
	assert.Equal(t, "SOUTH", a.Region)
}

func TestAssignCase_Failures(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"))
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentY, "SOUTH"))
	id, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)

	tests := []struct {
		name   string
		caller ledger.Identity
		caseID uint64
		agent  ledger.Identity
		want   error
	}{
		{name: "not coordinator", caller: agentX, caseID: id, agent: agentX, want: ledger.ErrUnauthorized},
		{name: "unknown case", caller: coordinator, caseID: 42, agent: agentX, want: ledger.ErrCaseNotFound},
		{name: "unknown agent", caller: coordinator, caseID: id, agent: stranger, want: ledger.ErrNotAnAgent},
		{name: "region mismatch", caller: coordinator, caseID: id, agent: agentY, want: ledger.ErrRegionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.AssignCase(ctx, tt.caller, tt.caseID, tt.agent)
			assert.ErrorIs(t, err, tt.want)
			c, _ := l.Case(id)
			assert.False(t, c.IsAssigned())
		})
	}
}

func TestAssignCase_InactiveAgent(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"))
	require.NoError(t, l.SetAgentActive(ctx, coordinator, agentX, false))
	id, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)

	assert.ErrorIs(t, l.AssignCase(ctx, coordinator, id, agentX), ledger.ErrAgentInactive)
}

func TestAssignCase_RegionMatchIsExact(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "central"))
	id, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)

	assert.ErrorIs(t, l.AssignCase(ctx, coordinator, id, agentX), ledger.ErrRegionMismatch)
}

func TestAssignCase_ReassignLastWins(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"))
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentY, "CENTRAL"))
	id, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)

	require.NoError(t, l.AssignCase(ctx, coordinator, id, agentX))
	require.NoError(t, l.AssignCase(ctx, coordinator, id, agentY))

	c, _ := l.Case(id)
	assert.Equal(t, agentY, c.AssignedAgent)
	assert.Equal(t, ledger.StatusOpen, c.Status)
}

func TestAssignCase_ClosedCase(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"))
	id, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)
	require.NoError(t, l.CloseCase(ctx, coordinator, id))

	assert.ErrorIs(t, l.AssignCase(ctx, coordinator, id, agentX), ledger.ErrCaseClosed)
}

func TestCloseCase_Authorization(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"))
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentY, "CENTRAL"))

	unassigned, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)
	assert.ErrorIs(t, l.CloseCase(ctx, agentX, unassigned), ledger.ErrUnauthorized, "only the coordinator closes unassigned cases")
	assert.ErrorIs(t, l.CloseCase(ctx, citizen, unassigned), ledger.ErrUnauthorized)

	assigned, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(2))
	require.NoError(t, err)
	require.NoError(t, l.AssignCase(ctx, coordinator, assigned, agentX))
	assert.ErrorIs(t, l.CloseCase(ctx, agentY, assigned), ledger.ErrUnauthorized)
	assert.NoError(t, l.CloseCase(ctx, agentX, assigned))

	assert.ErrorIs(t, l.CloseCase(ctx, coordinator, 99), ledger.ErrCaseNotFound)
}

func TestCloseCase_TwiceFails(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"))
	id, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)

	require.NoError(t, l.CloseCase(ctx, coordinator, id))
	assert.ErrorIs(t, l.CloseCase(ctx, coordinator, id), ledger.ErrCaseClosed)
}

func TestSendPoliceMessage_Attribution(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"))
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentY, "CENTRAL"))

	unassigned, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)
	idx, err := l.SendPoliceMessage(ctx, coordinator, unassigned, "from the desk")
	require.NoError(t, err)
	msg, _ := l.Message(unassigned, idx)
	_, attributed := msg.From.Agent()
	assert.False(t, attributed, "coordinator on an unassigned case is unattributed")

	assigned, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(2))
	require.NoError(t, err)
	require.NoError(t, l.AssignCase(ctx, coordinator, assigned, agentX))

	idx, err = l.SendPoliceMessage(ctx, coordinator, assigned, "desk speaking")
	require.NoError(t, err)
	msg, _ = l.Message(assigned, idx)
	from, _ := msg.From.Agent()
	assert.Equal(t, agentX, from, "coordinator speaks for the assigned agent")

	// Any active agent may post; the message names the sender, not the assignee.
	idx, err = l.SendPoliceMessage(ctx, agentY, assigned, "backup here")
	require.NoError(t, err)
	msg, _ = l.Message(assigned, idx)
	from, _ = msg.From.Agent()
	assert.Equal(t, agentY, from)

	// A coordinator holding an inactive agent record still speaks for itself.
	require.NoError(t, l.RegisterAgent(ctx, coordinator, coordinator, "CENTRAL"))
	require.NoError(t, l.SetAgentActive(ctx, coordinator, coordinator, false))
	idx, err = l.SendPoliceMessage(ctx, coordinator, assigned, "desk, in person")
	require.NoError(t, err)
	msg, _ = l.Message(assigned, idx)
	from, attributed = msg.From.Agent()
	require.True(t, attributed)
	assert.Equal(t, coordinator, from)
}

func TestSendPoliceMessage_InactiveAgent(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"))
	require.NoError(t, l.SetAgentActive(ctx, coordinator, agentX, false))
	id, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)

	_, err = l.SendPoliceMessage(ctx, agentX, id, "x")
	assert.ErrorIs(t, err, ledger.ErrAgentInactive)
}

func TestSendPoliceMessage_CaseChecks(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"))

	_, err := l.SendPoliceMessage(ctx, agentX, 7, "x")
	assert.ErrorIs(t, err, ledger.ErrCaseNotFound)

	id, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)
	require.NoError(t, l.CloseCase(ctx, coordinator, id))
	_, err = l.SendPoliceMessage(ctx, agentX, id, "x")
	assert.ErrorIs(t, err, ledger.ErrCaseClosed)
}

func TestSendCitizenMessage_UnknownCase(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.SendCitizenMessage(context.Background(), citizen, 3, "x")
	assert.ErrorIs(t, err, ledger.ErrCaseNotFound)
}

func TestMessages_TimestampFromBlockSource(t *testing.T) {
	ctx := context.Background()
	l, blocks := newTestLedger(t)
	id, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)

	blocks.n = 500
	_, err = l.SendCitizenMessage(ctx, citizen, id, "a")
	require.NoError(t, err)
	blocks.n = 501
	_, err = l.SendCitizenMessage(ctx, citizen, id, "b")
	require.NoError(t, err)

	a, _ := l.Message(id, 0)
	b, _ := l.Message(id, 1)
	assert.Equal(t, uint64(500), a.Timestamp)
	assert.Equal(t, uint64(501), b.Timestamp)
}

func TestMessageIndicesAreContiguous(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	require.NoError(t, l.RegisterAgent(ctx, coordinator, agentX, "CENTRAL"))
	a, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)
	b, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(2))
	require.NoError(t, err)

	// Interleave appends across two cases, mixing in rejected calls.
	for i := 0; i < 10; i++ {
		_, err := l.SendCitizenMessage(ctx, citizen, a, "a")
		require.NoError(t, err)
		if i%2 == 0 {
			_, err = l.SendPoliceMessage(ctx, agentX, b, "b")
			require.NoError(t, err)
		}
		_, err = l.SendPoliceMessage(ctx, stranger, a, "rejected")
		require.Error(t, err)
	}

	for _, id := range []uint64{a, b} {
		count := l.MessageCount(id)
		for i := uint64(0); i < count; i++ {
			m, ok := l.Message(id, i)
			require.True(t, ok)
			assert.Equal(t, i, m.Index)
			assert.Equal(t, id, m.CaseID)
		}
		_, ok := l.Message(id, count)
		assert.False(t, ok)
	}
	assert.Equal(t, uint64(10), l.MessageCount(a))
	assert.Equal(t, uint64(5), l.MessageCount(b))
}

func TestQueries_NotFound(t *testing.T) {
	l, _ := newTestLedger(t)

	assert.Equal(t, uint64(1), l.NextCaseID())
	assert.Equal(t, uint64(0), l.MessageCount(12))
	_, ok := l.Message(12, 0)
	assert.False(t, ok)
	_, ok = l.Case(12)
	assert.False(t, ok)
	_, ok = l.Agent(stranger)
	assert.False(t, ok)
	assert.Empty(t, l.Messages(12, 0, 0))
}

func TestMessages_Paging(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	id, err := l.OpenCase(ctx, citizen, "CENTRAL", "s", "d", secret(1))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := l.SendCitizenMessage(ctx, citizen, id, "m")
		require.NoError(t, err)
	}

	assert.Len(t, l.Messages(id, 0, 0), 5)
	page := l.Messages(id, 1, 2)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(1), page[0].Index)
	assert.Equal(t, uint64(2), page[1].Index)
	assert.Len(t, l.Messages(id, 4, 10), 1)
	assert.Empty(t, l.Messages(id, 5, 1))
}
