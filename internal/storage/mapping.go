package storage

import (
	"fmt"

	"safecase/backend/internal/commitment"
	"safecase/backend/internal/ledger"
	"safecase/backend/internal/models"
)

func agentToRow(a ledger.Agent) models.Agent {
	return models.Agent{
		Identity: string(a.Identity),
		Region:   a.Region,
		Active:   a.Active,
	}
}

func rowToAgent(row models.Agent) ledger.Agent {
	return ledger.Agent{
		Identity: ledger.Identity(row.Identity),
		Region:   row.Region,
		Active:   row.Active,
	}
}

func caseToRow(c ledger.Case) models.Case {
	row := models.Case{
		ID:                 c.ID,
		Region:             c.Region,
		Subject:            c.Subject,
		Details:            c.Details,
		ReporterCommitment: c.ReporterCommitment.String(),
		Status:             c.Status.String(),
	}
	if c.IsAssigned() {
		agent := string(c.AssignedAgent)
		row.AssignedAgent = &agent
	}
	return row
}

func rowToCase(row models.Case) (ledger.Case, error) {
	commit, err := commitment.ParseCommitment(row.ReporterCommitment)
	if err != nil {
		return ledger.Case{}, fmt.Errorf("case %d: %w", row.ID, err)
	}
	status, err := parseStatus(row.Status)
	if err != nil {
		return ledger.Case{}, fmt.Errorf("case %d: %w", row.ID, err)
	}

	c := ledger.Case{
		ID:                 row.ID,
		Region:             row.Region,
		Subject:            row.Subject,
		Details:            row.Details,
		ReporterCommitment: commit,
		Status:             status,
	}
	if row.AssignedAgent != nil {
		c.AssignedAgent = ledger.Identity(*row.AssignedAgent)
	}
	return c, nil
}

func messageToRow(m ledger.Message) models.Message {
	row := models.Message{
		CaseID:    m.CaseID,
		Index:     m.Index,
		FromRole:  m.FromRole.String(),
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if agent, ok := m.From.Agent(); ok {
		from := string(agent)
		row.FromAgent = &from
	}
	return row
}

func rowToMessage(row models.Message) (ledger.Message, error) {
	role, err := parseRole(row.FromRole)
	if err != nil {
		return ledger.Message{}, fmt.Errorf("message %d/%d: %w", row.CaseID, row.Index, err)
	}

	m := ledger.Message{
		CaseID:    row.CaseID,
		Index:     row.Index,
		FromRole:  role,
		From:      ledger.Unattributed(),
		Content:   row.Content,
		Timestamp: row.Timestamp,
	}
	if row.FromAgent != nil {
		m.From = ledger.AttributedTo(ledger.Identity(*row.FromAgent))
	}
	return m, nil
}

func parseStatus(s string) (ledger.Status, error) {
	switch s {
	case ledger.StatusOpen.String():
		return ledger.StatusOpen, nil
	case ledger.StatusClosed.String():
		return ledger.StatusClosed, nil
	default:
		return 0, fmt.Errorf("unknown case status %q", s)
	}
}

func parseRole(s string) (ledger.Role, error) {
	switch s {
	case ledger.RoleCitizen.String():
		return ledger.RoleCitizen, nil
	case ledger.RolePolice.String():
		return ledger.RolePolice, nil
	default:
		return 0, fmt.Errorf("unknown message role %q", s)
	}
}
