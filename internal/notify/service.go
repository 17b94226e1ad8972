package notify

import (
	"context"
	"fmt"
	"time"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, n Notification) (Notification, error)
	List(ctx context.Context, targetModule string, unreadOnly bool, limit int) ([]Notification, error)
	Get(ctx context.Context, id int64) (Notification, error)
	MarkRead(ctx context.Context, id int64) (Notification, error)
	UnreadCount(ctx context.Context, targetModule string) (int64, error)
}

// CachePort abstracts the unread-counter cache.
type CachePort interface {
	UnreadCount(ctx context.Context, module string) (int64, bool)
	SetUnreadCount(ctx context.Context, module string, count int64)
	IncrUnread(ctx context.Context, module string)
	DecrUnread(ctx context.Context, module string)
}

// Service emits and serves notifications.
type Service struct {
	repo  RepositoryPort
	cache CachePort
	now   func() time.Time
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, cache CachePort) *Service {
	return &Service{repo: repo, cache: cache, now: func() time.Time { return time.Now().UTC() }}
}

// EmitInput describes a notice to append.
type EmitInput struct {
	Type         string
	Title        string
	Message      string
	TargetModule string
}

// Emit appends a notification for a module's dashboard.
func (s *Service) Emit(ctx context.Context, input EmitInput) (Notification, error) {
	if input.Type == "" || input.Title == "" {
		return Notification{}, fmt.Errorf("%w: type and title required", ErrValidation)
	}
	if !KnownModule(input.TargetModule) {
		return Notification{}, fmt.Errorf("%w: unknown target module %q", ErrValidation, input.TargetModule)
	}
	n, err := s.repo.Insert(ctx, Notification{
		Type:         input.Type,
		Title:        input.Title,
		Message:      input.Message,
		TargetModule: input.TargetModule,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return Notification{}, err
	}
	if s.cache != nil {
		s.cache.IncrUnread(ctx, n.TargetModule)
	}
	return n, nil
}

// List returns notifications for a module.
func (s *Service) List(ctx context.Context, targetModule string, unreadOnly bool, limit int) ([]Notification, error) {
	return s.repo.List(ctx, targetModule, unreadOnly, limit)
}

// MarkRead flips one notification to read and adjusts the module counter.
func (s *Service) MarkRead(ctx context.Context, id int64) (Notification, error) {
	n, err := s.repo.MarkRead(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if s.cache != nil {
		s.cache.DecrUnread(ctx, n.TargetModule)
	}
	return n, nil
}

// UnreadCount serves the badge counter, preferring the cache and reseeding
// it from the database on a miss.
func (s *Service) UnreadCount(ctx context.Context, module string) (int64, error) {
	if !KnownModule(module) {
		return 0, fmt.Errorf("%w: unknown target module %q", ErrValidation, module)
	}
	if s.cache != nil {
		if count, ok := s.cache.UnreadCount(ctx, module); ok {
			return count, nil
		}
	}
	count, err := s.repo.UnreadCount(ctx, module)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		s.cache.SetUnreadCount(ctx, module, count)
	}
	return count, nil
}
