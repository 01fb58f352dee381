package ledger

import "safecase/backend/internal/commitment"

// Identity is the authenticated principal the host attaches to every call.
// The ledger trusts it and never verifies it itself.
type Identity string

// Agent is a region-scoped actor registered by the coordinator.
type Agent struct {
	Identity Identity `json:"identity"`
	Region   string   `json:"region"`
	Active   bool     `json:"active"`
}

// Status is the lifecycle state of a case. Closed is terminal.
type Status uint8

const (
	StatusOpen Status = iota
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Case is a reported incident. It never records who opened it; the reporter
// is represented only by ReporterCommitment.
type Case struct {
	ID                 uint64                `json:"id"`
	Region             string                `json:"region"`
	Subject            string                `json:"subject"`
	Details            string                `json:"details"`
	ReporterCommitment commitment.Commitment `json:"reporter_commitment"`
	// AssignedAgent is empty while the case is unassigned.
	AssignedAgent Identity `json:"assigned_agent,omitempty"`
	Status        Status   `json:"status"`
}

// IsAssigned reports whether an agent is assigned to the case.
func (c Case) IsAssigned() bool { return c.AssignedAgent != "" }

// Role is the side of the conversation a message came from.
type Role uint8

const (
	RoleCitizen Role = iota
	RolePolice
)

func (r Role) String() string {
	switch r {
	case RoleCitizen:
		return "citizen"
	case RolePolice:
		return "police"
	default:
		return "unknown"
	}
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Attribution names the agent a police message speaks for, if any.
// Build one with AttributedTo or Unattributed.
type Attribution struct {
	agent Identity
}

// AttributedTo attributes a message to agent.
func AttributedTo(agent Identity) Attribution { return Attribution{agent: agent} }

// Unattributed is the attribution of every citizen message and of coordinator
// messages on unassigned cases.
func Unattributed() Attribution { return Attribution{} }

// Agent returns the attributed identity and whether there is one.
func (a Attribution) Agent() (Identity, bool) { return a.agent, a.agent != "" }

func (a Attribution) MarshalText() ([]byte, error) { return []byte(a.agent), nil }

func (a *Attribution) UnmarshalText(text []byte) error {
	a.agent = Identity(text)
	return nil
}

// Message is one immutable entry of a case's log.
type Message struct {
	CaseID    uint64      `json:"case_id"`
	Index     uint64      `json:"index"`
	FromRole  Role        `json:"from_role"`
	From      Attribution `json:"from_agent"`
	Content   string      `json:"content"`
	Timestamp uint64      `json:"timestamp"`
}
