package routing

import "fmt"

// RootAgent is the sentinel for "no specialized agent".
const RootAgent = "root"

const (
	DefaultConfidenceThreshold = 0.5
	DefaultConfidenceScale     = 10.0
)

// Decision is the outcome of one Route call.
type Decision struct {
	AgentName      string   `json:"agent_name"`
	Confidence     float64  `json:"confidence"`
	Reasoning      string   `json:"reasoning"`
	FallbackAgents []string `json:"fallback_agents"`
}

// IsRoot reports whether the decision selects the root agent.
func (d Decision) IsRoot() bool { return d.AgentName == RootAgent }

// Error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotRegistered = "NOT_REGISTERED"
	ErrCodeKeywordFile   = "KEYWORD_FILE_ERROR"
)

// Error is a routing failure callers can switch on by Code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error with the same code, so errors.Is works against the
// package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// ErrAgentNotRegistered is returned for operations on unknown agents.
var ErrAgentNotRegistered = &Error{Code: ErrCodeNotRegistered, Message: "agent not registered"}

func notRegistered(name string) error {
	return &Error{Code: ErrCodeNotRegistered, Message: fmt.Sprintf("agent %q not registered", name)}
}

func validationError(format string, args ...interface{}) error {
	return &Error{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}
