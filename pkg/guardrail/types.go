package guardrail

// ViolationType names the rule that blocked a message.
type ViolationType string

const (
	ViolationFinancialAdvice         ViolationType = "financial_advice"
	ViolationNegativeEmployeeComment ViolationType = "negative_employee_comment"
	ViolationOutOfScope              ViolationType = "out_of_scope"
	ViolationNone                    ViolationType = "none"
)

var interventionMessages = map[ViolationType]string{
	ViolationFinancialAdvice: "I'm not able to provide financial advice. " +
		"Please consult with a qualified financial advisor for investment or financial planning guidance.",
	ViolationNegativeEmployeeComment: "I'm here to provide helpful information about our organization. " +
		"I cannot engage in negative discussions about employees.",
	ViolationOutOfScope: "I'm sorry, I can only answer questions relevant to our organization. " +
		"I can help with HR queries, analytics, and document-related questions.",
	ViolationNone: "",
}

// InterventionMessage returns the canned user-facing text for v.
func InterventionMessage(v ViolationType) string {
	if msg, ok := interventionMessages[v]; ok {
		return msg
	}
	return "I can't assist with that request."
}

// Result is the outcome of a Check.
type Result struct {
	IsSafe              bool          `json:"is_safe"`
	ViolationType       ViolationType `json:"violation_type"`
	Reason              string        `json:"reason,omitempty"`
	InterventionMessage string        `json:"intervention_message,omitempty"`
}

func safe() Result {
	return Result{IsSafe: true, ViolationType: ViolationNone}
}

func blocked(v ViolationType, reason string) Result {
	return Result{
		IsSafe:              false,
		ViolationType:       v,
		Reason:              reason,
		InterventionMessage: InterventionMessage(v),
	}
}

// Rules toggles the individual checks.
type Rules struct {
	Financial        bool
	NegativeEmployee bool
	OutOfScope       bool
}

// AllRules enables every check.
func AllRules() Rules {
	return Rules{Financial: true, NegativeEmployee: true, OutOfScope: true}
}
