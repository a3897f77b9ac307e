package repository

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/biblioteca-utp/portal-service/internal/errs"
	"github.com/biblioteca-utp/portal-service/internal/model"
)

func (r *repository) CreateOrder(ctx context.Context, req model.CreateOrderRequest) (model.Order, error) {
	q, args, err := qb.Insert(ordersTableName).
		Columns("order_uid", "book_id", "user_id", "status", "reserved_at").
		Values(uuid.New(), req.BookID, req.UserID, model.StatusPendiente, time.Now().UTC()).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Order{}, err
	}
	var order model.Order
	if err := r.db.GetContext(ctx, &order, q, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return model.Order{}, errs.ErrDuplicateOrder
		}
		r.log.Error("CreateOrder", zap.String("q", q), zap.Any("args", args), zap.Error(err))
		return model.Order{}, err
	}
	return order, nil
}

func (r *repository) ActiveOrder(ctx context.Context, userID, bookID int64) (model.Order, error) {
	q, args, err := qb.Select("*").
		From(ordersTableName).
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Eq{"book_id": bookID}).
		Where(sq.Eq{"status": model.ActiveStatuses}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Order{}, err
	}
	var order model.Order
	if err := r.db.GetContext(ctx, &order, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Order{}, errs.ErrNotFound
		}
		return model.Order{}, err
	}
	return order, nil
}

func (r *repository) OrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	q, args, err := qb.Select("*").
		From(ordersTableName).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("reserved_at desc").
		ToSql()
	if err != nil {
		return nil, err
	}
	var items []model.Order
	if err := r.db.SelectContext(ctx, &items, q, args...); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ActiveBookIDs(ctx context.Context, userID int64) ([]int64, error) {
	q, args, err := qb.Select("book_id").
		From(ordersTableName).
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Eq{"status": model.ActiveStatuses}).
		ToSql()
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, q, args...); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) GetOrder(ctx context.Context, id int64) (model.Order, error) {
	q, args, err := qb.Select("*").
		From(ordersTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Order{}, err
	}
	var order model.Order
	if err := r.db.GetContext(ctx, &order, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Order{}, errs.ErrNotFound
		}
		return model.Order{}, err
	}
	return order, nil
}

func (r *repository) UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus, deliveredAt, returnedAt *time.Time) (model.Order, error) {
	upd := qb.Update(ordersTableName).
		Set("status", status).
		Where(sq.Eq{"id": id}).
		Suffix("returning *")
	if deliveredAt != nil {
		upd = upd.Set("delivered_at", *deliveredAt)
	}
	if returnedAt != nil {
		upd = upd.Set("returned_at", *returnedAt)
	}
	q, args, err := upd.ToSql()
	if err != nil {
		return model.Order{}, err
	}
	var order model.Order
	if err := r.db.GetContext(ctx, &order, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Order{}, errs.ErrNotFound
		}
		r.log.Error("UpdateOrderStatus", zap.String("q", q), zap.Any("args", args), zap.Error(err))
		return model.Order{}, err
	}
	return order, nil
}

func (r *repository) ListAdminOrders(ctx context.Context) ([]model.AdminOrder, error) {
	q := `
	select o.*, b.title as book_title, u.name as user_name, u.email as user_email
	from orders o
	join books b on b.id = o.book_id
	join users u on u.id = o.user_id
	order by o.reserved_at desc
`
	var items []model.AdminOrder
	if err := r.db.SelectContext(ctx, &items, q); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ExpireStalePickups(ctx context.Context, now time.Time) (int64, error) {
	q := `
	update orders set status = 'Cancelado'
	where status = 'Pendiente de buscar' and pickup_due_at < $1
`
	res, err := r.db.ExecContext(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *repository) MarkOverdueLoans(ctx context.Context, now time.Time) (int64, error) {
	q := `
	update orders set status = 'Moroso'
	where status = 'Prestado' and return_due_at < $1
`
	res, err := r.db.ExecContext(ctx, q, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *repository) UsersWithDelinquentOrders(ctx context.Context) ([]int64, error) {
	q := `
	select distinct user_id from orders
	where status = 'Moroso'
`
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, q); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) CountDelinquentOrders(ctx context.Context, userID int64) (int, error) {
	q := `
	select count(*) from orders
	where user_id = $1 and status = 'Moroso'
`
	var count int
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
