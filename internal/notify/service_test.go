package notify

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	notifications map[int64]*Notification
	nextID        int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{notifications: make(map[int64]*Notification)}
}

func (r *memoryRepo) Insert(ctx context.Context, n Notification) (Notification, error) {
	r.nextID++
	n.ID = r.nextID
	cp := n
	r.notifications[n.ID] = &cp
	return n, nil
}

func (r *memoryRepo) List(ctx context.Context, targetModule string, unreadOnly bool, limit int) ([]Notification, error) {
	var out []Notification
	for _, n := range r.notifications {
		if targetModule != "" && n.TargetModule != targetModule {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, *n)
	}
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Notification, error) {
	n, ok := r.notifications[id]
	if !ok {
		return Notification{}, ErrNotFound
	}
	return *n, nil
}

func (r *memoryRepo) MarkRead(ctx context.Context, id int64) (Notification, error) {
	n, ok := r.notifications[id]
	if !ok {
		return Notification{}, ErrNotFound
	}
	n.Read = true
	return *n, nil
}

func (r *memoryRepo) UnreadCount(ctx context.Context, targetModule string) (int64, error) {
	var count int64
	for _, n := range r.notifications {
		if n.TargetModule == targetModule && !n.Read {
			count++
		}
	}
	return count, nil
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestEmitAndList(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	n, err := svc.Emit(ctx, EmitInput{Type: "ORDER_READY", Title: "Pedido surtido", Message: "BEN-2026-0001", TargetModule: ModuleProduccion})
	require.NoError(t, err)
	require.NotZero(t, n.ID)
	require.False(t, n.Read)

	list, err := svc.List(ctx, ModuleProduccion, true, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestEmitValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	ctx := context.Background()

	_, err := svc.Emit(ctx, EmitInput{Title: "sin tipo", TargetModule: ModuleAlmacen})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Emit(ctx, EmitInput{Type: "X", Title: "t", TargetModule: "VENTAS"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestUnreadCountSeedsAndTracksCache(t *testing.T) {
	repo := newMemoryRepo()
	cache := newTestCache(t)
	svc := NewService(repo, cache)
	ctx := context.Background()

	_, err := svc.Emit(ctx, EmitInput{Type: "ORDER_READY", Title: "a", TargetModule: ModuleProduccion})
	require.NoError(t, err)
	_, err = svc.Emit(ctx, EmitInput{Type: "ORDER_READY", Title: "b", TargetModule: ModuleProduccion})
	require.NoError(t, err)

	// First read misses the cache and seeds it from the repository.
	count, err := svc.UnreadCount(ctx, ModuleProduccion)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	// Subsequent emits and reads adjust the seeded counter.
	n, err := svc.Emit(ctx, EmitInput{Type: "SCRAP_RECORDED", Title: "c", TargetModule: ModuleProduccion})
	require.NoError(t, err)
	count, err = svc.UnreadCount(ctx, ModuleProduccion)
	require.NoError(t, err)
	require.EqualValues(t, 3, count)

	_, err = svc.MarkRead(ctx, n.ID)
	require.NoError(t, err)
	count, err = svc.UnreadCount(ctx, ModuleProduccion)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestMarkReadNotFound(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	_, err := svc.MarkRead(context.Background(), 42)
	require.ErrorIs(t, err, ErrNotFound)
}
