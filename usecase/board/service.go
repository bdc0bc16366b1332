package board

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
	"github.com/fastygo/taskboard/usecase"
)

const defaultSeedLimit = 9

// Options tune controller construction. Zero values use the wall clock and random ids.
type Options struct {
	SeedLimit         int
	Now               func() time.Time
	NewTaskID         func() string
	NewNotificationID func() string
}

// Service hands out one lazily loaded controller per user.
type Service struct {
	store  repository.DocumentStore
	local  usecase.LocalStorage
	opts   Options
	logger *zap.Logger

	mu          sync.Mutex
	controllers map[string]*Controller
	loads       singleflight.Group
}

func NewService(store repository.DocumentStore, local usecase.LocalStorage, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SeedLimit <= 0 {
		opts.SeedLimit = defaultSeedLimit
	}
	return &Service{
		store:       store,
		local:       local,
		opts:        opts,
		logger:      logger,
		controllers: make(map[string]*Controller),
	}
}

// Controller returns the controller for actor, loading its board on first use.
// Loads run outside the service lock; concurrent first calls for one user share a load.
func (s *Service) Controller(ctx context.Context, actor Actor) (*Controller, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return nil, domain.ErrUnauthorized
	}

	if ctrl, ok := s.cached(actor.ID); ok {
		ctrl.rename(actor.Name)
		return ctrl, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	v, _, _ := s.loads.Do(actor.ID, func() (interface{}, error) {
		if ctrl, ok := s.cached(actor.ID); ok {
			return ctrl, nil
		}
		ctrl := newController(actor, s.store, s.local, s.opts, s.logger)
		ctrl.SetDirectory(s.loadDirectory(loadCtx))
		s.load(loadCtx, ctrl)

		s.mu.Lock()
		s.controllers[actor.ID] = ctrl
		s.mu.Unlock()
		return ctrl, nil
	})
	ctrl := v.(*Controller)
	ctrl.rename(actor.Name)
	return ctrl, nil
}

func (s *Service) cached(userID string) (*Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctrl, ok := s.controllers[userID]
	return ctrl, ok
}

// RefreshDirectory reloads the users collection into ctrl.
func (s *Service) RefreshDirectory(ctx context.Context, ctrl *Controller) {
	ctrl.SetDirectory(s.loadDirectory(ctx))
}

// Forget drops a cached controller, e.g. on sign-out.
func (s *Service) Forget(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.controllers, userID)
}

// load restores the board: the store first, the local snapshot when the store
// fails, and a seeded board when none exists yet.
func (s *Service) load(ctx context.Context, ctrl *Controller) {
	logger := ctrl.logger
	userID := ctrl.actor.ID

	raw, err := s.store.Load(ctx, repository.CollectionBoards, userID)
	switch {
	case err == nil:
		var state domain.BoardState
		decodeErr := json.Unmarshal(raw, &state)
		if decodeErr == nil {
			ctrl.board = state.Board()
			return
		}
		logger.Warn("stored board is unreadable", zap.Error(decodeErr))
	case domain.IsDomainError(err, domain.ErrCodeNotFound):
		ctrl.board = s.seed(ctx, logger)
		ctrl.persist(ctx)
		return
	default:
		logger.Warn("failed to load board", zap.Error(err))
	}

	if board, ok := s.loadSnapshot(userID, logger); ok {
		ctrl.board = board
		return
	}
	ctrl.board = s.seed(ctx, logger)
	ctrl.persist(ctx)
}

func (s *Service) loadSnapshot(userID string, logger *zap.Logger) (domain.Board, bool) {
	if s.local == nil {
		return domain.Board{}, false
	}
	key := usecase.BoardSnapshotKey(userID)
	raw, ok, err := s.local.Get(key)
	if err != nil {
		logger.Warn("failed to read local board snapshot", zap.Error(err))
		return domain.Board{}, false
	}
	if !ok {
		return domain.Board{}, false
	}
	var state domain.BoardState
	if err := json.Unmarshal(raw, &state); err != nil {
		logger.Warn("discarding corrupted local board snapshot", zap.Error(err))
		if rmErr := s.local.Remove(key); rmErr != nil {
			logger.Warn("failed to remove local board snapshot", zap.Error(rmErr))
		}
		return domain.Board{}, false
	}
	return state.Board(), true
}

// seed builds a first board from the tasks collection, lane chosen by status.
func (s *Service) seed(ctx context.Context, logger *zap.Logger) domain.Board {
	board := domain.NewBoard()
	docs, err := s.store.List(ctx, repository.CollectionTasks)
	if err != nil {
		logger.Warn("failed to list seed tasks", zap.Error(err))
		return board
	}
	count := 0
	for _, doc := range docs {
		if count >= s.opts.SeedLimit {
			break
		}
		var td domain.TaskDocument
		if err := json.Unmarshal(doc.Data, &td); err != nil {
			logger.Debug("skipping unreadable seed task", zap.String("task_id", doc.ID), zap.Error(err))
			continue
		}
		if td.ID == "" {
			td.ID = doc.ID
		}
		col := domain.ColumnForStatus(td.Status)
		next := board.Insert(col, len(board.Column(col)), td.Card())
		if next.Len() == board.Len() {
			continue
		}
		board = next
		count++
	}
	return board
}

func (s *Service) loadDirectory(ctx context.Context) []domain.DirectoryEntry {
	docs, err := s.store.List(ctx, repository.CollectionUsers)
	if err != nil {
		s.logger.Warn("failed to list users", zap.Error(err))
		return nil
	}
	entries := make([]domain.DirectoryEntry, 0, len(docs))
	for _, doc := range docs {
		var user domain.User
		if err := json.Unmarshal(doc.Data, &user); err != nil {
			continue
		}
		user.ID = doc.ID
		name := strings.TrimSpace(user.DisplayName)
		if name == "" {
			name = strings.TrimSpace(user.Username)
		}
		if name == "" {
			name = user.Email
		}
		entries = append(entries, domain.DirectoryEntry{ID: user.ID, Name: name})
	}
	return entries
}
