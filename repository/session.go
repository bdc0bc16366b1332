package repository

import (
	"context"

	"github.com/fastygo/taskboard/domain"
)

// SessionRepository stores sessions and indexes them by user so a password
// change can revoke a user's other devices.
type SessionRepository interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	Delete(ctx context.Context, id string) error
	// DeleteByUser revokes every session of userID except keep and reports how many went.
	DeleteByUser(ctx context.Context, userID, keep string) (int, error)
}
