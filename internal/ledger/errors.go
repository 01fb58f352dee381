package ledger

import "errors"

// Every failed operation returns one of these (possibly wrapped) and leaves
// the ledger exactly as it was.
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotAnAgent     = errors.New("not an agent")
	ErrAgentInactive  = errors.New("agent inactive")
	ErrCaseNotFound   = errors.New("case not found")
	ErrCaseClosed     = errors.New("case closed")
	ErrRegionMismatch = errors.New("region mismatch")

	// ErrPersist wraps a journal failure. The change was not applied.
	ErrPersist = errors.New("persist failed")
)

// ErrorKind maps err to a short stable label for metrics and API responses.
// A nil error maps to "ok".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotAnAgent):
		return "not_an_agent"
	case errors.Is(err, ErrAgentInactive):
		return "agent_inactive"
	case errors.Is(err, ErrCaseNotFound):
		return "case_not_found"
	case errors.Is(err, ErrCaseClosed):
		return "case_closed"
	case errors.Is(err, ErrRegionMismatch):
		return "region_mismatch"
	case errors.Is(err, ErrPersist):
		return "persist_failed"
	default:
		return "internal"
	}
}
