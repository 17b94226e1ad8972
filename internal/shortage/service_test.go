package shortage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	requests []Request
}

func (r *memoryRepo) Insert(ctx context.Context, req Request) error {
	r.requests = append(r.requests, req)
	return nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Request, error) {
	var out []Request
	for _, req := range r.requests {
		if filter.ProductID != 0 && req.ProductID != filter.ProductID {
			continue
		}
		if filter.Urgent != nil && req.Urgent != *filter.Urgent {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

func TestRaise(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil, nil)

	req, err := svc.Raise(context.Background(), RaiseInput{ProductID: 7, Quantity: 3, Reason: "faltante pedido BEN-2026-0001", Urgent: true})
	require.NoError(t, err)
	require.NotEmpty(t, req.ID)
	require.True(t, req.Urgent)
	require.False(t, req.CreatedAt.IsZero())
	require.Len(t, repo.requests, 1)
}

func TestRaiseValidation(t *testing.T) {
	svc := NewService(&memoryRepo{}, nil, nil)

	_, err := svc.Raise(context.Background(), RaiseInput{ProductID: 0, Quantity: 3})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Raise(context.Background(), RaiseInput{ProductID: 7, Quantity: 0})
	require.ErrorIs(t, err, ErrValidation)
}

func TestListFiltersUrgent(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Raise(ctx, RaiseInput{ProductID: 1, Quantity: 2, Urgent: true})
	require.NoError(t, err)
	_, err = svc.Raise(ctx, RaiseInput{ProductID: 1, Quantity: 4, Urgent: false})
	require.NoError(t, err)

	urgent := true
	out, err := svc.List(ctx, ListFilter{Urgent: &urgent})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.EqualValues(t, 2, out[0].Quantity)
}
