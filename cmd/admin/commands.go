package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"safecase/backend/internal/api/handler"
	"safecase/backend/internal/commitment"
	"safecase/backend/internal/config"
	"safecase/backend/internal/ledger"
	"safecase/backend/internal/models"
	"safecase/backend/internal/storage"

	"github.com/spf13/cobra"
)

// store is the read side of storage.Service used by the CLI.
type store interface {
	ListCases(ctx context.Context, filter storage.CaseFilter) ([]models.Case, error)
	GetCaseByID(ctx context.Context, id uint64) (*models.Case, error)
	GetAgentByID(ctx context.Context, identity string) (*models.Agent, error)
	GetCaseMessages(ctx context.Context, caseID uint64) ([]models.Message, error)
}

type app struct {
	out        io.Writer
	loadConfig func() (*config.Config, error)
	openStore  func(cfg *config.Config) (store, error)
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "admin",
		Short:         "Operator tools for the safecase ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(a.out)

	commitCmd := &cobra.Command{
		Use:   "commit [secret]",
		Short: "Print the commitment of a reporter secret",
		Long: `Computes the Keccak-256 commitment of a 32-byte hex secret.
Without an argument a fresh secret is generated and printed with its commitment.`,
		Args: cobra.MaximumNArgs(1),
		RunE: a.runCommit,
	}

	tokenCmd := &cobra.Command{
		Use:   "token <identity>",
		Short: "Mint a caller token for an identity",
		Long:  `Signs a token with JWT_SECRET. Useful for bootstrapping the coordinator.`,
		Args:  cobra.ExactArgs(1),
		RunE:  a.runToken,
	}
	tokenCmd.Flags().Duration("ttl", 0, "Token lifetime (defaults to JWT_TTL)")

	caseCmd := &cobra.Command{
		Use:   "case <id>",
		Short: "Show one persisted case",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runCase,
	}

	casesCmd := &cobra.Command{
		Use:   "cases",
		Short: "List persisted cases",
		Args:  cobra.NoArgs,
		RunE:  a.runCases,
	}
	casesCmd.Flags().String("region", "", "Only cases in this region")
	casesCmd.Flags().String("agent", "", "Only cases assigned to this agent")
	casesCmd.Flags().String("status", "", "Only cases with this status (open or closed)")

	agentCmd := &cobra.Command{
		Use:   "agent <identity>",
		Short: "Show one registered agent",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runAgent,
	}

	historyCmd := &cobra.Command{
		Use:   "history <case-id>",
		Short: "Print a case's message log",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runHistory,
	}

	rootCmd.AddCommand(commitCmd, tokenCmd, caseCmd, casesCmd, agentCmd, historyCmd)
	return rootCmd
}

func (a *app) runCommit(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		secret, err := commitment.NewSecret()
		if err != nil {
			return err
		}
		return a.printJSON(map[string]string{
			"secret":     secret.String(),
			"commitment": commitment.Commit(secret).String(),
		})
	}

	secret, err := commitment.ParseSecret(args[0])
	if err != nil {
		return fmt.Errorf("invalid secret: %w", err)
	}
	fmt.Fprintln(a.out, commitment.Commit(secret).String())
	return nil
}

func (a *app) runToken(cmd *cobra.Command, args []string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.JWTSecret) < config.MinSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", config.MinSecretLength)
	}

	ttl, _ := cmd.Flags().GetDuration("ttl")
	if ttl <= 0 {
		ttl = cfg.JWTTTL
	}

	token, err := handler.NewTokenService(cfg.JWTSecret, ttl).Issue(ledger.Identity(args[0]))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, token)
	return nil
}

func (a *app) runCase(cmd *cobra.Command, args []string) error {
	id, err := parseCaseID(args[0])
	if err != nil {
		return err
	}
	s, err := a.store()
	if err != nil {
		return err
	}

	c, err := s.GetCaseByID(cmd.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("case %d not found", id)
	}
	if err != nil {
		return err
	}
	return a.printJSON(c)
}

func (a *app) runCases(cmd *cobra.Command, args []string) error {
	var filter storage.CaseFilter
	filter.Region, _ = cmd.Flags().GetString("region")
	filter.Agent, _ = cmd.Flags().GetString("agent")
	filter.Status, _ = cmd.Flags().GetString("status")

	switch filter.Status {
	case "", ledger.StatusOpen.String(), ledger.StatusClosed.String():
	default:
		return fmt.Errorf("invalid status %q", filter.Status)
	}

	s, err := a.store()
	if err != nil {
		return err
	}
	cases, err := s.ListCases(cmd.Context(), filter)
	if err != nil {
		return err
	}
	if cases == nil {
		cases = []models.Case{}
	}
	return a.printJSON(cases)
}

func (a *app) runAgent(cmd *cobra.Command, args []string) error {
	s, err := a.store()
	if err != nil {
		return err
	}

	agent, err := s.GetAgentByID(cmd.Context(), args[0])
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("agent %q not found", args[0])
	}
	if err != nil {
		return err
	}
	return a.printJSON(agent)
}

func (a *app) runHistory(cmd *cobra.Command, args []string) error {
	id, err := parseCaseID(args[0])
	if err != nil {
		return err
	}
	s, err := a.store()
	if err != nil {
		return err
	}

	messages, err := s.GetCaseMessages(cmd.Context(), id)
	if err != nil {
		return err
	}
	for _, m := range messages {
		from := m.FromRole
		if m.FromAgent != nil {
			from += " " + *m.FromAgent
		}
		fmt.Fprintf(a.out, "#%d [%s] t=%d %s\n", m.Index, from, m.Timestamp, m.Content)
	}
	return nil
}

func (a *app) store() (store, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	return a.openStore(cfg)
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseCaseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid case id %q", s)
	}
	return id, nil
}
