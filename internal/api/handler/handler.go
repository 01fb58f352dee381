// Package handler is the HTTP surface of the case ledger.
package handler

import (
	"context"

	"safecase/backend/internal/casehub"
	"safecase/backend/internal/commitment"
	"safecase/backend/internal/ledger"
	"safecase/backend/internal/models"
	"safecase/backend/internal/storage"

	"go.uber.org/zap"
)

// Ledger is the case ledger as the HTTP layer drives it.
type Ledger interface {
	RegisterAgent(ctx context.Context, caller, agent ledger.Identity, region string) error
	SetAgentActive(ctx context.Context, caller, agent ledger.Identity, active bool) error
	OpenCase(ctx context.Context, caller ledger.Identity, region, subject, details string, secret commitment.Secret) (uint64, error)
	AssignCase(ctx context.Context, caller ledger.Identity, caseID uint64, agent ledger.Identity) error
	CloseCase(ctx context.Context, caller ledger.Identity, caseID uint64) error
	SendCitizenMessage(ctx context.Context, caller ledger.Identity, caseID uint64, content string) (uint64, error)
	SendPoliceMessage(ctx context.Context, caller ledger.Identity, caseID uint64, content string) (uint64, error)

	IsCoordinator(id ledger.Identity) bool
	Coordinator() (ledger.Identity, bool)
	Agent(id ledger.Identity) (ledger.Agent, bool)
	NextCaseID() uint64
	Case(id uint64) (ledger.Case, bool)
	MessageCount(caseID uint64) uint64
	Message(caseID, index uint64) (ledger.Message, bool)
	Messages(caseID, from, limit uint64) []ledger.Message
}

// CaseIndex lists persisted cases.
type CaseIndex interface {
	ListCases(ctx context.Context, filter storage.CaseFilter) ([]models.Case, error)
}

type Handler struct {
	Ledger Ledger
	Index  CaseIndex
	Hub    *casehub.Manager
	Tokens *TokenService

	logger *zap.Logger
}

// NewHandler wires the HTTP handlers. index and hub may be nil; the routes
// that need them then answer 503.
func NewHandler(l Ledger, index CaseIndex, hub *casehub.Manager, tokens *TokenService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Ledger: l,
		Index:  index,
		Hub:    hub,
		Tokens: tokens,
		logger: logger,
	}
}
