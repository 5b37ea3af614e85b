package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AuditCategory groups audit events by the subsystem that emitted them.
type AuditCategory string

const (
	AuditGuardrail AuditCategory = "guardrail"
	AuditSession   AuditCategory = "session"
	AuditConfig    AuditCategory = "config"
)

// Audit outcomes.
const (
	OutcomeBlocked = "blocked"
	OutcomeApplied = "applied"
)

// AuditEvent is one line of the audit trail. Message text never goes in here.
type AuditEvent struct {
	Category AuditCategory
	Actor    string
	Action   string
	Outcome  string
	Details  map[string]interface{}
}

// AuditLogger writes one JSON line per event and is safe for concurrent use.
type AuditLogger struct {
	mu     sync.Mutex
	out    zerolog.Logger
	closer io.Closer
}

var auditLog atomic.Pointer[AuditLogger]

func newAuditLogger(w io.Writer, c io.Closer) *AuditLogger {
	return &AuditLogger{
		out:    zerolog.New(w).With().Timestamp().Logger(),
		closer: c,
	}
}

// GetAuditLogger returns the process audit logger. Events are discarded until
// InitAuditLogger or SetAuditOutput installs a destination.
func GetAuditLogger() *AuditLogger {
	if a := auditLog.Load(); a != nil {
		return a
	}
	auditLog.CompareAndSwap(nil, newAuditLogger(io.Discard, nil))
	return auditLog.Load()
}

// InitAuditLogger appends audit events to the file at path.
func InitAuditLogger(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	swapAuditLogger(newAuditLogger(f, f))
	return nil
}

// SetAuditOutput sends audit events to w. A nil writer discards them.
func SetAuditOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	swapAuditLogger(newAuditLogger(w, nil))
}

func swapAuditLogger(a *AuditLogger) {
	if prev := auditLog.Swap(a); prev != nil {
		_ = prev.Close()
	}
}

// Record writes ev and mirrors it onto the active span, if any.
func (a *AuditLogger) Record(ctx context.Context, ev AuditEvent) {
	var traceID string
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		traceID = sc.TraceID().String()
		trace.SpanFromContext(ctx).AddEvent("audit."+string(ev.Category), trace.WithAttributes(
			attribute.String("audit.action", ev.Action),
			attribute.String("audit.outcome", ev.Outcome),
		))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	e := a.out.Log().
		Str("category", string(ev.Category)).
		Str("action", ev.Action).
		Str("outcome", ev.Outcome)
	if ev.Actor != "" {
		e = e.Str("actor", ev.Actor)
	}
	if traceID != "" {
		e = e.Str("trace_id", traceID)
	}
	if len(ev.Details) > 0 {
		e = e.Interface("details", ev.Details)
	}
	e.Send()
}

// Close releases the audit file, if one is open. Later events are dropped.
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.out = zerolog.Nop()
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

// RecordGuardrailAudit records a blocked message by violation and reason only.
func RecordGuardrailAudit(ctx context.Context, actor, violation, reason string) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Category: AuditGuardrail,
		Actor:    actor,
		Action:   "block",
		Outcome:  OutcomeBlocked,
		Details: map[string]interface{}{
			"violation": violation,
			"reason":    reason,
		},
	})
}

func RecordSessionAudit(ctx context.Context, action, sessionID string, details map[string]interface{}) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Category: AuditSession,
		Actor:    sessionID,
		Action:   action,
		Outcome:  OutcomeApplied,
		Details:  details,
	})
}

func RecordConfigAudit(ctx context.Context, action, actor string, details map[string]interface{}) {
	GetAuditLogger().Record(ctx, AuditEvent{
		Category: AuditConfig,
		Actor:    actor,
		Action:   action,
		Outcome:  OutcomeApplied,
		Details:  details,
	})
}
