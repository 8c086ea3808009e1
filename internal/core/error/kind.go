package errx

// Kind classifies a failure so callers can decide on a recovery strategy
// without inspecting error messages.
type Kind string

const (
	// KindGeneral covers unclassified failures.
	KindGeneral Kind = "general"
	// KindTimeout marks a remote call that exceeded its wait budget.
	KindTimeout Kind = "timeout"
	// KindRateLimit marks remote token/request throttling.
	KindRateLimit Kind = "rate_limit"
	// KindUnavailable marks a call refused by the circuit breaker.
	KindUnavailable Kind = "unavailable"
	// KindToolError marks a local tool-function failure serviced during a run.
	KindToolError Kind = "tool_error"
	// KindTerminal marks a run failure that must not be retried within the
	// same request (failed/cancelled/expired runs, 5xx responses).
	KindTerminal Kind = "terminal"
)

// Retriable reports whether a failure of this kind may be retried within the
// same request.
func (k Kind) Retriable() bool {
	switch k {
	case KindTimeout, KindRateLimit, KindGeneral:
		return true
	default:
		return false
	}
}
