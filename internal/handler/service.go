package handler

import (
	"context"

	"github.com/biblioteca-utp/portal-service/internal/model"
	authsvc "github.com/biblioteca-utp/portal-service/internal/service/auth"
	"github.com/biblioteca-utp/portal-service/internal/service/catalog"
	"github.com/biblioteca-utp/portal-service/internal/service/lifecycle"
	"github.com/biblioteca-utp/portal-service/internal/service/reservation"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type CatalogService interface {
	FetchBooks(ctx context.Context) ([]model.PreparedBook, error)
	CreateBook(ctx context.Context, req catalog.SaveBookRequest) (int64, error)
	UpdateBook(ctx context.Context, id int64, req catalog.SaveBookRequest) error
	DeleteBook(ctx context.Context, id int64) error
}

type ReservationService interface {
	Reserve(ctx context.Context, bookID, userID int64) (model.Order, error)
	OrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
}

type LifecycleService interface {
	Reconcile(ctx context.Context) lifecycle.Report
	SetOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) (model.Order, error)
	AdminOrders(ctx context.Context) ([]model.AdminOrder, error)
	DelinquentUsers(ctx context.Context) ([]model.User, error)
	UnblockUser(ctx context.Context, userID int64) error
}

type AuthService interface {
	Register(ctx context.Context, req authsvc.RegisterRequest) (model.User, error)
	Login(ctx context.Context, req authsvc.LoginRequest) (string, model.User, error)
}

var (
	_ CatalogService     = (*catalog.Service)(nil)
	_ ReservationService = (*reservation.Service)(nil)
	_ LifecycleService   = (*lifecycle.Service)(nil)
	_ AuthService        = (*authsvc.Service)(nil)
)
