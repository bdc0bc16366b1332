package breaker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
)

// Settings tune the circuit around the remote document store.
type Settings struct {
	Name             string
	MaxRequests      uint32
	Timeout          time.Duration
	FailureThreshold uint32
}

// DocumentStore trips after consecutive backend failures and fails fast while open.
// Domain errors such as "not found" are answers, not failures.
type DocumentStore struct {
	base repository.DocumentStore
	cb   *gobreaker.CircuitBreaker
}

// NewDocumentStore wraps base with a circuit breaker.
func NewDocumentStore(base repository.DocumentStore, settings Settings, logger *zap.Logger) *DocumentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.Name == "" {
		settings.Name = "document-store"
	}
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 1
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 5 * time.Second
	}
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 3
	}
	threshold := settings.FailureThreshold

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			var dErr *domain.Error
			return err == nil || errors.As(err, &dErr) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &DocumentStore{base: base, cb: cb}
}

func (s *DocumentStore) Load(ctx context.Context, collection, id string) (json.RawMessage, error) {
	result, err := s.cb.Execute(func() (interface{}, error) {
		return s.base.Load(ctx, collection, id)
	})
	if err != nil {
		return nil, translate(err)
	}
	return result.(json.RawMessage), nil
}

func (s *DocumentStore) Save(ctx context.Context, collection, id string, patch json.RawMessage, merge bool) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.base.Save(ctx, collection, id, patch, merge)
	})
	return translate(err)
}

func (s *DocumentStore) List(ctx context.Context, collection string) ([]repository.Document, error) {
	result, err := s.cb.Execute(func() (interface{}, error) {
		return s.base.List(ctx, collection)
	})
	if err != nil {
		return nil, translate(err)
	}
	return result.([]repository.Document), nil
}

// State reports the breaker state for health probes.
func (s *DocumentStore) State() gobreaker.State {
	return s.cb.State()
}

func translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.WrapError(domain.ErrCodeUnavailable, "document store unavailable", err)
	}
	return err
}

var _ repository.DocumentStore = (*DocumentStore)(nil)
