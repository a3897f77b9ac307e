package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/biblioteca-utp/portal-service/internal/errs"
	"github.com/biblioteca-utp/portal-service/internal/model"
)

func (r *repository) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	q, args, err := qb.Insert(usersTableName).
		Columns("name", "email", "password_hash", "school", "role", "status").
		Values(user.Name, user.Email, user.PasswordHash, user.School, user.Role, user.Status).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	var created model.User
	if err := r.db.GetContext(ctx, &created, q, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return model.User{}, errs.ErrEmailTaken
		}
		return model.User{}, err
	}
	return created, nil
}

func (r *repository) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	q, args, err := qb.Select("*").
		From(usersTableName).
		Where(sq.Eq{"email": email}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	var user model.User
	if err := r.db.GetContext(ctx, &user, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, errs.ErrNotFound
		}
		return model.User{}, err
	}
	return user, nil
}

func (r *repository) GetUserStatus(ctx context.Context, id int64) (model.UserStatus, error) {
	q := `
	select status from users where id = $1
`
	var status model.UserStatus
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", errs.ErrNotFound
		}
		return "", err
	}
	return status, nil
}

func (r *repository) SetUsersStatus(ctx context.Context, ids []int64, status model.UserStatus) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := qb.Update(usersTableName).
		Set("status", status).
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	return err
}

func (r *repository) DelinquentUsers(ctx context.Context) ([]model.User, error) {
	q, args, err := qb.Select("*").
		From(usersTableName).
		Where(sq.Eq{"status": model.UserMoroso}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var users []model.User
	if err := r.db.SelectContext(ctx, &users, q, args...); err != nil {
		return nil, err
	}
	return users, nil
}
