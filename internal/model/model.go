package model

import (
	"time"
)

type OrderStatus string

const (
	StatusPendiente  OrderStatus = "Pendiente de buscar"
	StatusPrestado   OrderStatus = "Prestado"
	StatusCompletado OrderStatus = "Completado"
	StatusCancelado  OrderStatus = "Cancelado"
	StatusMoroso     OrderStatus = "Moroso"
)

// ActiveStatuses are the order states that count against the one-active-order
// per (user, book) invariant.
var ActiveStatuses = []OrderStatus{StatusPendiente, StatusPrestado, StatusMoroso}

func (s OrderStatus) IsActive() bool {
	for _, st := range ActiveStatuses {
		if s == st {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompletado || s == StatusCancelado
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPendiente, StatusPrestado, StatusCompletado, StatusCancelado, StatusMoroso:
		return true
	}
	return false
}

type UserStatus string

const (
	UserActivo UserStatus = "Activo"
	UserMoroso UserStatus = "Moroso"
)

type User struct {
	ID           int64      `json:"id" db:"id"`
	Name         string     `json:"name" db:"name"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	School       *string    `json:"school" db:"school"`
	Role         string     `json:"role" db:"role"`
	Status       UserStatus `json:"status" db:"status"`
}

type Order struct {
	ID          int64       `json:"id" db:"id"`
	OrderUid    string      `json:"orderUid" db:"order_uid"`
	BookID      int64       `json:"bookId" db:"book_id"`
	UserID      int64       `json:"userId" db:"user_id"`
	Status      OrderStatus `json:"status" db:"status"`
	ReservedAt  time.Time   `json:"reservedAt" db:"reserved_at"`
	DeliveredAt *time.Time  `json:"deliveredAt" db:"delivered_at"`
	ReturnedAt  *time.Time  `json:"returnedAt" db:"returned_at"`
	PickupDueAt *time.Time  `json:"pickupDueAt" db:"pickup_due_at"`
	ReturnDueAt *time.Time  `json:"returnDueAt" db:"return_due_at"`
}

// AdminOrder is an order joined with its book and owner for the back office.
type AdminOrder struct {
	Order
	BookTitle string `json:"bookTitle" db:"book_title"`
	UserName  string `json:"userName" db:"user_name"`
	UserEmail string `json:"userEmail" db:"user_email"`
}

// BookRow is the raw joined catalog row as read from the store.
type BookRow struct {
	ID          int64      `db:"id"`
	Title       string     `db:"title"`
	Synopsis    *string    `db:"synopsis"`
	PublishedAt *time.Time `db:"published_at"`
	CoverURL    *string    `db:"cover_url"`
	BookType    string     `db:"book_type"`
	Speciality  *string    `db:"speciality"`
	Authors     *string    `db:"authors"`
	Quantity    *int       `db:"quantity"`
	FilePath    *string    `db:"file_path"`
}

// PreparedBook is the normalized catalog record served to clients: authors
// flattened, file URL resolved against the public storage base, available
// count populated only for physical-capable types.
type PreparedBook struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Slug           string     `json:"slug"`
	Author         string     `json:"author"`
	Authors        string     `json:"authors"`
	Synopsis       string     `json:"synopsis"`
	CoverURL       string     `json:"coverUrl"`
	PublishedAt    *time.Time `json:"publishedAt"`
	Type           BookType   `json:"type"`
	Speciality     string     `json:"speciality"`
	FileURL        string     `json:"fileUrl,omitempty"`
	AvailableCount *int       `json:"availableCount,omitempty"`
}

// BookInput is the admin write shape for a catalog entry. Quantity applies
// only to physical-capable types, FilePath only to file-backed ones; the
// catalog service clears the field when the type does not carry it.
type BookInput struct {
	Title       string
	Synopsis    *string
	PublishedAt *time.Time
	CoverURL    *string
	Type        BookType
	Speciality  *string
	Authors     []string
	Quantity    *int
	FilePath    *string
}

type CreateOrderRequest struct {
	BookID int64 `json:"bookId" validate:"required"`
	UserID int64 `json:"-"`
}
