package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/biblioteca-utp/portal-service/internal/events"
	"github.com/biblioteca-utp/portal-service/internal/model"
	"github.com/biblioteca-utp/portal-service/internal/repository"
)

// Report summarizes one reconciliation sweep.
type Report struct {
	ExpiredPickups int64 `json:"expiredPickups"`
	OverdueLoans   int64 `json:"overdueLoans"`
	BlockedUsers   int   `json:"blockedUsers"`
	UnblockedUsers int   `json:"unblockedUsers"`
}

type Service struct {
	log      *zap.Logger
	repo     repository.Repository
	producer events.Producer
}

func NewService(repo repository.Repository, producer events.Producer, log *zap.Logger) *Service {
	return &Service{
		log:      log.Named("lifecycle"),
		repo:     repo,
		producer: producer,
	}
}

const unblockConcurrency = 4

// Reconcile runs the sweep: expire stale pickups, mark overdue loans, block
// users holding delinquent orders, unblock users holding none. Steps are
// ordered (blocking must see freshly marked loans) and best-effort: a failed
// step is logged and later steps still run.
func (s *Service) Reconcile(ctx context.Context) Report {
	now := time.Now().UTC()
	var report Report

	if n, err := s.repo.ExpireStalePickups(ctx, now); err != nil {
		s.log.Error("expire stale pickups", zap.Error(err))
	} else {
		report.ExpiredPickups = n
	}

	if n, err := s.repo.MarkOverdueLoans(ctx, now); err != nil {
		s.log.Error("mark overdue loans", zap.Error(err))
	} else {
		report.OverdueLoans = n
	}

	if ids, err := s.repo.UsersWithDelinquentOrders(ctx); err != nil {
		s.log.Error("list users with delinquent orders", zap.Error(err))
	} else if len(ids) > 0 {
		if err := s.repo.SetUsersStatus(ctx, ids, model.UserMoroso); err != nil {
			s.log.Error("block users", zap.Error(err))
		} else {
			report.BlockedUsers = len(ids)
			for _, id := range ids {
				if err := s.producer.Publish(ctx, events.Event{
					Type:   events.TypeUserBlocked,
					UserID: id,
					Status: string(model.UserMoroso),
				}); err != nil {
					s.log.Warn("publish user.blocked", zap.Error(err))
				}
			}
		}
	}

	report.UnblockedUsers = s.unblockCleared(ctx)

	s.log.Info("reconcile done",
		zap.Int64("expired_pickups", report.ExpiredPickups),
		zap.Int64("overdue_loans", report.OverdueLoans),
		zap.Int("blocked_users", report.BlockedUsers),
		zap.Int("unblocked_users", report.UnblockedUsers))
	return report
}

// unblockCleared resets every currently blocked user with zero delinquent
// orders back to Activo.
func (s *Service) unblockCleared(ctx context.Context) int {
	blocked, err := s.repo.DelinquentUsers(ctx)
	if err != nil {
		s.log.Error("list delinquent users", zap.Error(err))
		return 0
	}

	var (
		mu        sync.Mutex
		unblocked int
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(unblockConcurrency)
	for _, user := range blocked {
		user := user
		g.Go(func() error {
			count, err := s.repo.CountDelinquentOrders(ctx, user.ID)
			if err != nil {
				s.log.Error("count delinquent orders", zap.Int64("user_id", user.ID), zap.Error(err))
				return nil
			}
			if count > 0 {
				return nil
			}
			if err := s.repo.SetUsersStatus(ctx, []int64{user.ID}, model.UserActivo); err != nil {
				s.log.Error("unblock user", zap.Int64("user_id", user.ID), zap.Error(err))
				return nil
			}
			mu.Lock()
			unblocked++
			mu.Unlock()
			if err := s.producer.Publish(ctx, events.Event{
				Type:   events.TypeUserUnblocked,
				UserID: user.ID,
				Status: string(model.UserActivo),
			}); err != nil {
				s.log.Warn("publish user.unblocked", zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return unblocked
}

// SetOrderStatus is the admin override. Entering Prestado stamps the delivery
// time if unset; entering Completado stamps the return time if unset. No
// transition-legality matrix is enforced.
func (s *Service) SetOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) (model.Order, error) {
	if !status.Valid() {
		return model.Order{}, errors.Errorf("unknown order status %q", status)
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}

	now := time.Now().UTC()
	var deliveredAt, returnedAt *time.Time
	if status == model.StatusPrestado && order.DeliveredAt == nil {
		deliveredAt = &now
	}
	if status == model.StatusCompletado && order.ReturnedAt == nil {
		returnedAt = &now
	}

	updated, err := s.repo.UpdateOrderStatus(ctx, orderID, status, deliveredAt, returnedAt)
	if err != nil {
		return model.Order{}, err
	}

	if err := s.producer.Publish(ctx, events.Event{
		Type:    events.TypeOrderStatusChanged,
		OrderID: updated.ID,
		BookID:  updated.BookID,
		UserID:  updated.UserID,
		Status:  string(updated.Status),
	}); err != nil {
		s.log.Warn("publish order.status_changed", zap.Error(err))
	}
	return updated, nil
}

func (s *Service) AdminOrders(ctx context.Context) ([]model.AdminOrder, error) {
	return s.repo.ListAdminOrders(ctx)
}

func (s *Service) DelinquentUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.DelinquentUsers(ctx)
}

// UnblockUser is the manual admin unblock, independent of the sweep.
func (s *Service) UnblockUser(ctx context.Context, userID int64) error {
	if err := s.repo.SetUsersStatus(ctx, []int64{userID}, model.UserActivo); err != nil {
		return err
	}
	if err := s.producer.Publish(ctx, events.Event{
		Type:   events.TypeUserUnblocked,
		UserID: userID,
		Status: string(model.UserActivo),
	}); err != nil {
		s.log.Warn("publish user.unblocked", zap.Error(err))
	}
	return nil
}
