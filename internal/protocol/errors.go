package protocol

const (
	// Boundary validation (rejected before any search work).
	ErrBadGoal   = "E_BAD_GOAL"
	ErrBadState  = "E_BAD_STATE"
	ErrBadBundle = "E_BAD_BUNDLE"
	ErrBadPlan   = "E_BAD_PLAN"

	// Search outcomes.
	ErrDeadEnd          = "E_DEAD_END"
	ErrSearchExhausted  = "E_SEARCH_EXHAUSTED"
	ErrExpansionBudget  = "E_EXPANSION_BUDGET"
	ErrEnqueueBudget    = "E_ENQUEUE_BUDGET"
	ErrReplanBudget     = "E_REPLAN_BUDGET"
	ErrPhaseNoConverge  = "E_PHASE_NO_CONVERGE"
	ErrPhaseBudget      = "E_PHASE_BUDGET"
	ErrInteractionStale = "E_INTERACTION_STALE"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadGoal:          {},
	ErrBadState:         {},
	ErrBadBundle:        {},
	ErrBadPlan:          {},
	ErrDeadEnd:          {},
	ErrSearchExhausted:  {},
	ErrExpansionBudget:  {},
	ErrEnqueueBudget:    {},
	ErrReplanBudget:     {},
	ErrPhaseNoConverge:  {},
	ErrPhaseBudget:      {},
	ErrInteractionStale: {},
	ErrInternal:         {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// Error is a boundary error carrying a stable code.
type Error struct {
	Code string
	Msg  string
}

func (e *Error) Error() string { return e.Code + ": " + e.Msg }

func Errorf(code, msg string) *Error { return &Error{Code: code, Msg: msg} }
