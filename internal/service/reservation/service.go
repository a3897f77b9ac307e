package reservation

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/biblioteca-utp/portal-service/internal/errs"
	"github.com/biblioteca-utp/portal-service/internal/events"
	"github.com/biblioteca-utp/portal-service/internal/model"
	"github.com/biblioteca-utp/portal-service/internal/repository"
)

type Service struct {
	log      *zap.Logger
	repo     repository.Repository
	producer events.Producer
}

func NewService(repo repository.Repository, producer events.Producer, log *zap.Logger) *Service {
	return &Service{
		log:      log.Named("reservation"),
		repo:     repo,
		producer: producer,
	}
}

// Reserve runs the ordered precondition chain and inserts the order. The
// first failing check wins and nothing is written before the insert; pickup
// and return deadlines are stamped by the store trigger, which also
// decrements stock in the same transaction.
func (s *Service) Reserve(ctx context.Context, bookID, userID int64) (model.Order, error) {
	status, err := s.repo.GetUserStatus(ctx, userID)
	if err != nil {
		return model.Order{}, errors.Wrap(err, "check user status")
	}
	if status == model.UserMoroso {
		return model.Order{}, errs.ErrDelinquentUser
	}

	stock, err := s.repo.GetStock(ctx, bookID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Order{}, errs.ErrNoCopies
		}
		return model.Order{}, errors.Wrap(err, "check stock")
	}
	if stock <= 0 {
		return model.Order{}, errs.ErrNoCopies
	}

	existing, err := s.repo.ActiveOrder(ctx, userID, bookID)
	if err == nil {
		return model.Order{}, errors.Wrapf(errs.ErrDuplicateOrder, "order %d in status %q", existing.ID, existing.Status)
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return model.Order{}, errors.Wrap(err, "check active orders")
	}

	order, err := s.repo.CreateOrder(ctx, model.CreateOrderRequest{BookID: bookID, UserID: userID})
	if err != nil {
		return model.Order{}, err
	}

	if err := s.producer.Publish(ctx, events.Event{
		Type:    events.TypeReservationCreated,
		OrderID: order.ID,
		BookID:  order.BookID,
		UserID:  order.UserID,
		Status:  string(order.Status),
	}); err != nil {
		s.log.Warn("publish reservation.created", zap.Error(err))
	}
	return order, nil
}

func (s *Service) OrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.OrdersByUser(ctx, userID)
}
