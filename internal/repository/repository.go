package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/biblioteca-utp/portal-service/internal/model"
)

//go:generate go run github.com/golang/mock/mockgen -source=repository.go -destination=mocks/mock.go

type Books interface {
	ListBooks(ctx context.Context) ([]model.BookRow, error)
	GetStock(ctx context.Context, bookID int64) (int, error)
	CreateBook(ctx context.Context, in model.BookInput) (int64, error)
	UpdateBook(ctx context.Context, id int64, in model.BookInput) error
	DeleteBook(ctx context.Context, id int64) error
}

type Orders interface {
	CreateOrder(ctx context.Context, req model.CreateOrderRequest) (model.Order, error)
	ActiveOrder(ctx context.Context, userID, bookID int64) (model.Order, error)
	OrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	ActiveBookIDs(ctx context.Context, userID int64) ([]int64, error)
	GetOrder(ctx context.Context, id int64) (model.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus, deliveredAt, returnedAt *time.Time) (model.Order, error)
	ListAdminOrders(ctx context.Context) ([]model.AdminOrder, error)
	ExpireStalePickups(ctx context.Context, now time.Time) (int64, error)
	MarkOverdueLoans(ctx context.Context, now time.Time) (int64, error)
	UsersWithDelinquentOrders(ctx context.Context) ([]int64, error)
	CountDelinquentOrders(ctx context.Context, userID int64) (int, error)
}

type Users interface {
	CreateUser(ctx context.Context, user model.User) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserStatus(ctx context.Context, id int64) (model.UserStatus, error)
	SetUsersStatus(ctx context.Context, ids []int64, status model.UserStatus) error
	DelinquentUsers(ctx context.Context) ([]model.User, error)
}

type Repository interface {
	Books
	Orders
	Users
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	booksTableName         = `books`
	physicalBooksTableName = `physical_books`
	ordersTableName        = `orders`
	usersTableName         = `users`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
