package observability

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordGuardrailAudit(t *testing.T) {
	var buf bytes.Buffer
	SetAuditOutput(&buf)
	t.Cleanup(func() { SetAuditOutput(nil) })

	RecordGuardrailAudit(context.Background(), "sess-1", "financial_advice", "financial term")

	out := buf.String()
	assert.Contains(t, out, `"category":"guardrail"`)
	assert.Contains(t, out, `"outcome":"blocked"`)
	assert.Contains(t, out, `"violation":"financial_advice"`)
	assert.Contains(t, out, `"actor":"sess-1"`)
	assert.NotContains(t, out, "trace_id")
}

func TestRecordSessionAudit_OmitsEmptyFields(t *testing.T) {
	var buf bytes.Buffer
	SetAuditOutput(&buf)
	t.Cleanup(func() { SetAuditOutput(nil) })

	RecordSessionAudit(context.Background(), "delete", "", nil)

	out := buf.String()
	assert.Contains(t, out, `"category":"session"`)
	assert.Contains(t, out, `"action":"delete"`)
	assert.NotContains(t, out, "actor")
	assert.NotContains(t, out, "details")
}

func TestInitAuditLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "audit.log")
	require.NoError(t, InitAuditLogger(path))
	t.Cleanup(func() { SetAuditOutput(nil) })

	RecordConfigAudit(context.Background(), "server_started", "cli", map[string]interface{}{"port": 8080})
	require.NoError(t, GetAuditLogger().Close())

	// dropped after close
	RecordConfigAudit(context.Background(), "ignored", "cli", nil)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"action":"server_started"`)
	assert.NotContains(t, string(data), "ignored")
	assert.Equal(t, 1, bytes.Count(data, []byte("\n")))
}
