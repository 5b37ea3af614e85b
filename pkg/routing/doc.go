// Package routing picks the specialized agent for a query.
//
// The Router scores every registered agent by keyword overlap with the
// query, boosts the agent the recent conversation leans toward, and keeps
// follow-up questions with the agent that answered last. Decisions below the
// confidence threshold go to the root agent, with the scored candidates kept
// as fallbacks.
package routing
