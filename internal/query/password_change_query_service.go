package query

import (
	"context"

	"github.com/umsys/user-management/shared/cqrs"
	"github.com/umsys/user-management/shared/models"
)

type PendingPasswordChangeLister interface {
	ListPending(ctx context.Context) ([]models.PendingPasswordChangeView, error)
}

type PasswordChangeQueryService struct {
	requests PendingPasswordChangeLister
}

func NewPasswordChangeQueryService(requests PendingPasswordChangeLister) *PasswordChangeQueryService {
	return &PasswordChangeQueryService{requests: requests}
}

// ListPending returns pending requests, oldest first, joined with the
// requesting user's name and email.
func (s *PasswordChangeQueryService) ListPending(ctx context.Context, _ cqrs.ListPendingPasswordChangesQuery) ([]models.PendingPasswordChangeView, error) {
	return s.requests.ListPending(ctx)
}
