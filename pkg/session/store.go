package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pramodthe/enterprise-ai-platform/internal/observability"
)

var (
	// ErrSessionNotFound is returned by Store.Load and Manager.Get for unknown ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidSessionID is returned for ids that are empty or unsafe as keys.
	ErrInvalidSessionID = errors.New("invalid session id")
)

// Store persists session records. Implementations must be safe for
// concurrent use and must not retain the *Session passed to Save.
type Store interface {
	Save(ctx context.Context, s *Session) error
	// Load returns ErrSessionNotFound when id is absent.
	Load(ctx context.Context, id string) (*Session, error)
	// Delete removes id. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error
	// List returns ids matching f in no particular order.
	List(ctx context.Context, f Filter) ([]string, error)
	Close() error
}

// ValidateID rejects ids that cannot be used safely as file names or keys.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidSessionID)
	case strings.Contains(id, ".."):
		return fmt.Errorf("%w: contains '..'", ErrInvalidSessionID)
	case strings.ContainsAny(id, "/\\"):
		return fmt.Errorf("%w: contains path separators", ErrInvalidSessionID)
	case strings.ContainsAny(id, "\x00*?[]"):
		return fmt.Errorf("%w: contains reserved characters", ErrInvalidSessionID)
	}
	return nil
}

// instrumentedStore records per-operation metrics for an underlying Store.
type instrumentedStore struct {
	backend string
	inner   Store
}

// Instrument wraps s so every operation is counted and timed under backend.
func Instrument(backend string, s Store) Store {
	observability.EnsureRegistered()
	return &instrumentedStore{backend: backend, inner: s}
}

func (i *instrumentedStore) Save(ctx context.Context, s *Session) error {
	start := time.Now()
	err := i.inner.Save(ctx, s)
	observability.RecordSessionStoreOp(i.backend, "save", time.Since(start), err)
	return err
}

func (i *instrumentedStore) Load(ctx context.Context, id string) (*Session, error) {
	start := time.Now()
	s, err := i.inner.Load(ctx, id)
	opErr := err
	if errors.Is(err, ErrSessionNotFound) {
		opErr = nil
	}
	observability.RecordSessionStoreOp(i.backend, "load", time.Since(start), opErr)
	return s, err
}

func (i *instrumentedStore) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := i.inner.Delete(ctx, id)
	observability.RecordSessionStoreOp(i.backend, "delete", time.Since(start), err)
	return err
}

func (i *instrumentedStore) List(ctx context.Context, f Filter) ([]string, error) {
	start := time.Now()
	ids, err := i.inner.List(ctx, f)
	observability.RecordSessionStoreOp(i.backend, "list", time.Since(start), err)
	return ids, err
}

func (i *instrumentedStore) Close() error {
	return i.inner.Close()
}
