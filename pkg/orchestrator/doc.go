// Package orchestrator ties the platform together. Process runs one user
// message through the guardrail, the session manager, the router and the
// agents, falling back to local generation when no specialized agent can
// answer. It never returns an error: every failure ends in a well-formed
// Response.
package orchestrator
