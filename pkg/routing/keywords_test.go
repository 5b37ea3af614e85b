package routing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultKeywords(t *testing.T) {
	for _, name := range []string{"hr", "HR", "h_r", "Analytics", "document"} {
		kw, ok := DefaultKeywords(name)
		assert.True(t, ok, name)
		assert.NotEmpty(t, kw, name)
	}

	_, ok := DefaultKeywords("legal")
	assert.False(t, ok)

	kw, _ := DefaultKeywords("hr")
	kw[0] = "mutated"
	again, _ := DefaultKeywords("hr")
	assert.NotEqual(t, "mutated", again[0])
}

func TestNormalizeKeywords(t *testing.T) {
	got := normalizeKeywords([]string{" Payroll ", "payroll", "", "Org Chart"})
	assert.Equal(t, []string{"org chart", "payroll"}, got)
}

func TestLoadKeywordFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hr: [staff, org chart]\nanalytics:\n  - revenue\n"), 0o644))

	kf, err := LoadKeywordFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"staff", "org chart"}, kf["hr"])
	assert.Equal(t, []string{"revenue"}, kf["analytics"])

	_, err = LoadKeywordFile(filepath.Join(t.TempDir(), "missing.yaml"))
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrCodeKeywordFile, rerr.Code)
}

func TestParseKeywordFile_Invalid(t *testing.T) {
	_, err := ParseKeywordFile([]byte("hr: [unterminated"))
	assert.Error(t, err)

	kf, err := ParseKeywordFile([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, kf)
}
