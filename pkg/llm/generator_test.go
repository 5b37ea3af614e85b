package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider returns errs in order, then reply.
type scriptedProvider struct {
	name  string
	reply string
	errs  []error

	mu    sync.Mutex
	calls int
	last  Request
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Complete(_ context.Context, req Request) (*Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.last = req
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return nil, err
	}
	return &Completion{Content: p.reply}, nil
}

func (p *scriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newTestGenerator(t *testing.T, maxRetries int, profiles ...Profile) *FailoverGenerator {
	t.Helper()
	nop := zerolog.Nop()
	g, err := NewFailoverGenerator(GeneratorConfig{
		Profiles:     profiles,
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		Logger:       &nop,
	})
	require.NoError(t, err)
	return g
}

var userHello = []Message{{Role: RoleUser, Content: "hello"}}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, Validate(nil), ErrNoMessages)
	assert.Error(t, Validate([]Message{{Role: "tool", Content: "x"}}))
	assert.Error(t, Validate([]Message{{Role: RoleUser, Content: "  "}}))
	assert.NoError(t, Validate([]Message{{Role: RoleSystem, Content: "s"}, {Role: RoleUser, Content: "u"}}))
}

func TestGenerate_Success(t *testing.T) {
	p := &scriptedProvider{name: "anthropic", reply: "hi there"}
	g := newTestGenerator(t, 3, Profile{Provider: p})

	out, err := g.Generate(context.Background(), userHello, "be brief")
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
	assert.Equal(t, "be brief", p.last.SystemPrompt)
	assert.Equal(t, DefaultTemperature, p.last.Temperature)
	assert.Equal(t, DefaultMaxTokens, p.last.MaxTokens)
}

func TestGenerate_RetriesTransientErrors(t *testing.T) {
	p := &scriptedProvider{
		name:  "openai",
		reply: "ok",
		errs: []error{
			&StatusError{StatusCode: 503},
			&StatusError{StatusCode: 429},
		},
	}
	g := newTestGenerator(t, 3, Profile{Provider: p})

	out, err := g.Generate(context.Background(), userHello, "")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, p.Calls())
}

func TestGenerate_RetryBudget(t *testing.T) {
	transient := &StatusError{StatusCode: 500}
	p := &scriptedProvider{name: "openai", errs: []error{transient, transient, transient, transient, transient}}
	g := newTestGenerator(t, 2, Profile{Provider: p})

	_, err := g.Generate(context.Background(), userHello, "")
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.Equal(t, 3, p.Calls())
}

func TestGenerate_FailsOverInPriorityOrder(t *testing.T) {
	primary := &scriptedProvider{name: "anthropic", errs: []error{&StatusError{StatusCode: 401}}}
	secondary := &scriptedProvider{name: "openai", reply: "from secondary"}
	g := newTestGenerator(t, 3,
		Profile{ID: "second", Provider: secondary, Priority: 2},
		Profile{ID: "first", Provider: primary, Priority: 1},
	)

	out, err := g.Generate(context.Background(), userHello, "")
	require.NoError(t, err)
	assert.Equal(t, "from secondary", out)
	// non-retryable: one attempt, then failover
	assert.Equal(t, 1, primary.Calls())

	// primary is cooling down and is skipped
	out, err = g.Generate(context.Background(), userHello, "")
	require.NoError(t, err)
	assert.Equal(t, "from secondary", out)
	assert.Equal(t, 1, primary.Calls())
}

func TestGenerate_CooldownExpires(t *testing.T) {
	primary := &scriptedProvider{name: "anthropic", reply: "primary", errs: []error{errors.New("bad request")}}
	secondary := &scriptedProvider{name: "openai", reply: "secondary"}
	g := newTestGenerator(t, 0,
		Profile{ID: "first", Provider: primary, Priority: 1},
		Profile{ID: "second", Provider: secondary, Priority: 2},
	)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	out, err := g.Generate(context.Background(), userHello, "")
	require.NoError(t, err)
	assert.Equal(t, "secondary", out)

	now = now.Add(2 * time.Minute)
	out, err = g.Generate(context.Background(), userHello, "")
	require.NoError(t, err)
	assert.Equal(t, "primary", out)
}

func TestGenerate_AllFail(t *testing.T) {
	g := newTestGenerator(t, 0,
		Profile{Provider: &scriptedProvider{name: "a", errs: []error{errors.New("boom")}}},
		Profile{Provider: &scriptedProvider{name: "b", errs: []error{errors.New("bang")}}},
	)
	_, err := g.Generate(context.Background(), userHello, "")
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.Contains(t, err.Error(), "bang")
}

func TestGenerate_InvalidMessages(t *testing.T) {
	p := &scriptedProvider{name: "a", reply: "x"}
	g := newTestGenerator(t, 0, Profile{Provider: p})
	_, err := g.Generate(context.Background(), nil, "")
	assert.ErrorIs(t, err, ErrNoMessages)
	assert.Equal(t, 0, p.Calls())
}

func TestGenerate_ContextCancelledDuringBackoff(t *testing.T) {
	p := &scriptedProvider{name: "a", errs: []error{&StatusError{StatusCode: 503}, &StatusError{StatusCode: 503}}}
	nop := zerolog.Nop()
	g, err := NewFailoverGenerator(GeneratorConfig{
		Profiles:     []Profile{{Provider: p}},
		MaxRetries:   3,
		InitialDelay: time.Hour,
		Logger:       &nop,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = g.Generate(ctx, userHello, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, p.Calls())
}

func TestNewFailoverGenerator_NoProfiles(t *testing.T) {
	_, err := NewFailoverGenerator(GeneratorConfig{})
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(context.Canceled))
	assert.True(t, IsRetryableError(context.DeadlineExceeded))
	assert.True(t, IsRetryableError(&StatusError{StatusCode: 429}))
	assert.True(t, IsRetryableError(&StatusError{StatusCode: 502}))
	assert.False(t, IsRetryableError(&StatusError{StatusCode: 400}))
	assert.True(t, IsRetryableError(errors.New("dial tcp: connection refused")))
	assert.False(t, IsRetryableError(errors.New("invalid api key")))

	assert.True(t, IsRateLimited(&StatusError{StatusCode: 429}))
	assert.False(t, IsRateLimited(&StatusError{StatusCode: 500}))
}

func TestStaticGenerator(t *testing.T) {
	out, err := StaticGenerator{Reply: "fixed"}.Generate(context.Background(), userHello, "")
	require.NoError(t, err)
	assert.Equal(t, "fixed", out)

	_, err = StaticGenerator{Err: errors.New("down")}.Generate(context.Background(), userHello, "")
	assert.Error(t, err)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(ProviderConfig{Provider: "anthropic", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	p, err = NewProvider(ProviderConfig{Provider: "openai", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	_, err = NewProvider(ProviderConfig{Provider: "gemini"})
	assert.Error(t, err)
}
