package orchestrator

import (
	"fmt"
)

const (
	// GuardrailAgent is reported as AgentUsed for blocked messages.
	GuardrailAgent = "guardrail"
	// GuardrailBlockedSessionID is echoed when a blocked request had no session.
	GuardrailBlockedSessionID = "guardrail_blocked"

	DefaultMaxContextTokens = 4000
	DefaultHistoryLimit     = 20

	fastPathReasoning = "greeting fast path"
)

const DefaultSystemPrompt = `You are a helpful AI assistant for an enterprise platform.
You can help with general questions and coordinate with specialized agents for:
- HR queries (employee information, organizational structure, skills)
- Analytics queries (calculations, data analysis, reporting)
- Document queries (policies, procedures, guidelines)

Be professional, concise, and helpful in your responses.`

// ApologyMessage is returned when no answer could be produced.
const ApologyMessage = "I apologize, but I'm having trouble generating a response right now. Please try again in a moment."

const disclaimerFormat = "\n\n(Note: The specialized %s agent is currently unavailable. " +
	"I've provided a general response, but it may not be as accurate as the specialized agent would provide.)"

func disclaimer(agentName string) string {
	return fmt.Sprintf(disclaimerFormat, agentName)
}

// Request is one inbound chat message.
type Request struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// Response is the structured reply to a Request.
type Response struct {
	Text       string                 `json:"response"`
	SessionID  string                 `json:"session_id"`
	AgentUsed  string                 `json:"agent_used"`
	Confidence float64                `json:"confidence"`
	Metadata   map[string]interface{} `json:"metadata"`
}
