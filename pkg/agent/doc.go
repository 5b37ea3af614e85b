// Package agent defines the Agent contract the orchestrator dispatches to and
// its two implementations: RemoteClient, which speaks the JSON query protocol
// over HTTP with retries, and LocalAgent, which runs an in-process handler.
//
// Failures never cross the package boundary as errors. Query always returns a
// Response; callers inspect Response.Success and move on to the next agent in
// the fallback chain.
package agent
