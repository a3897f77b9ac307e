package reservation_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/biblioteca-utp/portal-service/internal/errs"
	"github.com/biblioteca-utp/portal-service/internal/events"
	"github.com/biblioteca-utp/portal-service/internal/model"
	repo_mocks "github.com/biblioteca-utp/portal-service/internal/repository/mocks"
	"github.com/biblioteca-utp/portal-service/internal/service/reservation"
)

const (
	testUserID = int64(42)
	testBookID = int64(7)
)

func TestService_Reserve(t *testing.T) {
	t.Parallel()
	type mockBehavior func(r *repo_mocks.MockRepository)

	tests := []struct {
		name         string
		mockBehavior mockBehavior
		wantErr      error
		errContains  string
	}{
		{
			// A delinquent user is rejected before stock or orders are read:
			// no other repo calls are expected, gomock enforces it.
			name: "delinquent user rejected first",
			mockBehavior: func(r *repo_mocks.MockRepository) {
				r.EXPECT().
					GetUserStatus(context.Background(), testUserID).
					Return(model.UserMoroso, nil)
			},
			wantErr: errs.ErrDelinquentUser,
		},
		{
			name: "no copies available",
			mockBehavior: func(r *repo_mocks.MockRepository) {
				r.EXPECT().
					GetUserStatus(context.Background(), testUserID).
					Return(model.UserActivo, nil)
				r.EXPECT().
					GetStock(context.Background(), testBookID).
					Return(0, nil)
			},
			wantErr: errs.ErrNoCopies,
		},
		{
			name: "book has no physical stock row",
			mockBehavior: func(r *repo_mocks.MockRepository) {
				r.EXPECT().
					GetUserStatus(context.Background(), testUserID).
					Return(model.UserActivo, nil)
				r.EXPECT().
					GetStock(context.Background(), testBookID).
					Return(0, errs.ErrNotFound)
			},
			wantErr: errs.ErrNoCopies,
		},
		{
			name: "duplicate active order names its status",
			mockBehavior: func(r *repo_mocks.MockRepository) {
				r.EXPECT().
					GetUserStatus(context.Background(), testUserID).
					Return(model.UserActivo, nil)
				r.EXPECT().
					GetStock(context.Background(), testBookID).
					Return(3, nil)
				r.EXPECT().
					ActiveOrder(context.Background(), testUserID, testBookID).
					Return(model.Order{ID: 11, Status: model.StatusPendiente}, nil)
			},
			wantErr:     errs.ErrDuplicateOrder,
			errContains: `"Pendiente de buscar"`,
		},
		{
			name: "unique index backstop maps to duplicate",
			mockBehavior: func(r *repo_mocks.MockRepository) {
				r.EXPECT().
					GetUserStatus(context.Background(), testUserID).
					Return(model.UserActivo, nil)
				r.EXPECT().
					GetStock(context.Background(), testBookID).
					Return(1, nil)
				r.EXPECT().
					ActiveOrder(context.Background(), testUserID, testBookID).
					Return(model.Order{}, errs.ErrNotFound)
				r.EXPECT().
					CreateOrder(context.Background(), model.CreateOrderRequest{BookID: testBookID, UserID: testUserID}).
					Return(model.Order{}, errs.ErrDuplicateOrder)
			},
			wantErr: errs.ErrDuplicateOrder,
		},
		{
			name: "repo failure on status check",
			mockBehavior: func(r *repo_mocks.MockRepository) {
				r.EXPECT().
					GetUserStatus(context.Background(), testUserID).
					Return(model.UserStatus(""), errors.New("db down"))
			},
			errContains: "db down",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			repo := repo_mocks.NewMockRepository(c)
			tt.mockBehavior(repo)

			svc := reservation.NewService(repo, events.Nop{}, zap.NewExample())
			_, err := svc.Reserve(context.Background(), testBookID, testUserID)
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
			if tt.errContains != "" {
				require.Contains(t, err.Error(), tt.errContains)
			}
		})
	}
}

func TestService_Reserve_Success(t *testing.T) {
	t.Parallel()
	c := gomock.NewController(t)
	defer c.Finish()
	repo := repo_mocks.NewMockRepository(c)

	reservedAt := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	created := model.Order{
		ID:         1,
		OrderUid:   "e7c9dc1d-90c9-4899-9b43-2b3d4e5f6a7b",
		BookID:     testBookID,
		UserID:     testUserID,
		Status:     model.StatusPendiente,
		ReservedAt: reservedAt,
	}

	repo.EXPECT().GetUserStatus(context.Background(), testUserID).Return(model.UserActivo, nil)
	repo.EXPECT().GetStock(context.Background(), testBookID).Return(1, nil)
	repo.EXPECT().ActiveOrder(context.Background(), testUserID, testBookID).Return(model.Order{}, errs.ErrNotFound)
	repo.EXPECT().
		CreateOrder(context.Background(), model.CreateOrderRequest{BookID: testBookID, UserID: testUserID}).
		Return(created, nil)

	svc := reservation.NewService(repo, events.Nop{}, zap.NewExample())
	order, err := svc.Reserve(context.Background(), testBookID, testUserID)
	require.NoError(t, err)
	require.Equal(t, model.StatusPendiente, order.Status)
	require.Equal(t, reservedAt, order.ReservedAt)
	require.Nil(t, order.DeliveredAt)
	require.Nil(t, order.ReturnedAt)
}
