package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"staffappraisal/internal/domain/apperr"
)

type Service struct {
	store StoreAPI
}

func New(store StoreAPI) *Service {
	return &Service{store: store}
}

// Create stores an in-app notification. Delivery problems are logged and
// returned; callers treat notifications as best effort.
func (s *Service) Create(ctx context.Context, userID, ntype, title, body string) error {
	if err := s.store.CreateNotification(ctx, userID, ntype, title, body); err != nil {
		slog.Warn("notification insert failed", "type", ntype, "err", err)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, int, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}
	items, err := s.store.ListNotifications(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, apperr.Unavailable("list notifications", err)
	}
	total, err := s.store.CountNotifications(ctx, userID, unreadOnly)
	if err != nil {
		return nil, 0, apperr.Unavailable("count notifications", err)
	}
	return items, total, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	ok, err := s.store.MarkRead(ctx, userID, notificationID)
	if err != nil {
		return apperr.Unavailable("mark notification read", err)
	}
	if !ok {
		return fmt.Errorf("notification %s: %w", notificationID, apperr.ErrNotFound)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
