package companies

import (
	"context"
	"log/slog"
)

// Service exposes company operations to the screen and the JSON API.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService builds a Service around repo.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// List returns every company in id order.
func (s *Service) List(ctx context.Context) ([]Company, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("list companies failed", slog.Any("error", err))
		return nil, err
	}
	return items, nil
}

// Delete removes the company with id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidID
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.Error("delete company failed", slog.Any("error", err), slog.Int64("id", id))
		return err
	}
	s.logger.Info("company deleted", slog.Int64("id", id))
	return nil
}
