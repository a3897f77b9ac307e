package lifecycle_test

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/biblioteca-utp/portal-service/internal/errs"
	"github.com/biblioteca-utp/portal-service/internal/events"
	"github.com/biblioteca-utp/portal-service/internal/model"
	repo_mocks "github.com/biblioteca-utp/portal-service/internal/repository/mocks"
	"github.com/biblioteca-utp/portal-service/internal/service/lifecycle"
)

func newService(t *testing.T) (*lifecycle.Service, *repo_mocks.MockRepository) {
	t.Helper()
	c := gomock.NewController(t)
	t.Cleanup(c.Finish)
	repo := repo_mocks.NewMockRepository(c)
	return lifecycle.NewService(repo, events.Nop{}, zap.NewExample()), repo
}

func TestService_Reconcile(t *testing.T) {
	t.Parallel()
	svc, repo := newService(t)
	ctx := context.Background()

	// Stale pickup expires, one loan goes overdue, its owner is blocked,
	// and a previously blocked user with no remaining delinquent orders is
	// released in the same sweep.
	repo.EXPECT().ExpireStalePickups(ctx, gomock.Any()).Return(int64(2), nil)
	repo.EXPECT().MarkOverdueLoans(ctx, gomock.Any()).Return(int64(1), nil)
	repo.EXPECT().UsersWithDelinquentOrders(ctx).Return([]int64{7}, nil)
	repo.EXPECT().SetUsersStatus(ctx, []int64{7}, model.UserMoroso).Return(nil)
	repo.EXPECT().DelinquentUsers(ctx).Return([]model.User{{ID: 7}, {ID: 9}}, nil)
	repo.EXPECT().CountDelinquentOrders(gomock.Any(), int64(7)).Return(1, nil)
	repo.EXPECT().CountDelinquentOrders(gomock.Any(), int64(9)).Return(0, nil)
	repo.EXPECT().SetUsersStatus(gomock.Any(), []int64{9}, model.UserActivo).Return(nil)

	report := svc.Reconcile(ctx)
	require.Equal(t, lifecycle.Report{
		ExpiredPickups: 2,
		OverdueLoans:   1,
		BlockedUsers:   1,
		UnblockedUsers: 1,
	}, report)
}

func TestService_Reconcile_Idempotent(t *testing.T) {
	t.Parallel()
	svc, repo := newService(t)
	ctx := context.Background()

	// With no intervening state change the second sweep finds nothing to
	// transition.
	repo.EXPECT().ExpireStalePickups(ctx, gomock.Any()).Return(int64(0), nil).Times(2)
	repo.EXPECT().MarkOverdueLoans(ctx, gomock.Any()).Return(int64(0), nil).Times(2)
	repo.EXPECT().UsersWithDelinquentOrders(ctx).Return(nil, nil).Times(2)
	repo.EXPECT().DelinquentUsers(ctx).Return(nil, nil).Times(2)

	first := svc.Reconcile(ctx)
	second := svc.Reconcile(ctx)
	require.Equal(t, lifecycle.Report{}, first)
	require.Equal(t, lifecycle.Report{}, second)
}

func TestService_Reconcile_StepFailureDoesNotHaltSweep(t *testing.T) {
	t.Parallel()
	svc, repo := newService(t)
	ctx := context.Background()

	repo.EXPECT().ExpireStalePickups(ctx, gomock.Any()).Return(int64(0), errors.New("db hiccup"))
	repo.EXPECT().MarkOverdueLoans(ctx, gomock.Any()).Return(int64(3), nil)
	repo.EXPECT().UsersWithDelinquentOrders(ctx).Return([]int64{1}, nil)
	repo.EXPECT().SetUsersStatus(ctx, []int64{1}, model.UserMoroso).Return(nil)
	repo.EXPECT().DelinquentUsers(ctx).Return(nil, errors.New("db hiccup"))

	report := svc.Reconcile(ctx)
	require.Equal(t, int64(0), report.ExpiredPickups)
	require.Equal(t, int64(3), report.OverdueLoans)
	require.Equal(t, 1, report.BlockedUsers)
	require.Equal(t, 0, report.UnblockedUsers)
}

func TestService_SetOrderStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("to Prestado stamps delivery time once", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)
		repo.EXPECT().GetOrder(ctx, int64(5)).Return(model.Order{ID: 5, Status: model.StatusPendiente}, nil)
		repo.EXPECT().
			UpdateOrderStatus(ctx, int64(5), model.StatusPrestado, gomock.Not(gomock.Nil()), gomock.Nil()).
			Return(model.Order{ID: 5, Status: model.StatusPrestado}, nil)

		order, err := svc.SetOrderStatus(ctx, 5, model.StatusPrestado)
		require.NoError(t, err)
		require.Equal(t, model.StatusPrestado, order.Status)
	})

	t.Run("to Completado stamps return time once", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)
		repo.EXPECT().GetOrder(ctx, int64(5)).Return(model.Order{ID: 5, Status: model.StatusPrestado}, nil)
		repo.EXPECT().
			UpdateOrderStatus(ctx, int64(5), model.StatusCompletado, gomock.Nil(), gomock.Not(gomock.Nil())).
			Return(model.Order{ID: 5, Status: model.StatusCompletado}, nil)

		order, err := svc.SetOrderStatus(ctx, 5, model.StatusCompletado)
		require.NoError(t, err)
		require.Equal(t, model.StatusCompletado, order.Status)
	})

	t.Run("already stamped timestamps are preserved", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)
		delivered := model.Order{ID: 5, Status: model.StatusMoroso}
		now := delivered.ReservedAt
		delivered.DeliveredAt = &now
		repo.EXPECT().GetOrder(ctx, int64(5)).Return(delivered, nil)
		repo.EXPECT().
			UpdateOrderStatus(ctx, int64(5), model.StatusPrestado, gomock.Nil(), gomock.Nil()).
			Return(model.Order{ID: 5, Status: model.StatusPrestado}, nil)

		_, err := svc.SetOrderStatus(ctx, 5, model.StatusPrestado)
		require.NoError(t, err)
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t)
		_, err := svc.SetOrderStatus(ctx, 5, model.OrderStatus("Perdido"))
		require.Error(t, err)
	})

	t.Run("missing order", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)
		repo.EXPECT().GetOrder(ctx, int64(99)).Return(model.Order{}, errs.ErrNotFound)
		_, err := svc.SetOrderStatus(ctx, 99, model.StatusCancelado)
		require.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestService_UnblockUser(t *testing.T) {
	t.Parallel()
	svc, repo := newService(t)
	ctx := context.Background()
	repo.EXPECT().SetUsersStatus(ctx, []int64{3}, model.UserActivo).Return(nil)
	require.NoError(t, svc.UnblockUser(ctx, 3))
}
