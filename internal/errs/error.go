package errs

import (
	"errors"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	ErrDelinquentUser = errors.New("blocked for delinquency: return the outstanding book before reserving again")
	ErrNoCopies       = errors.New("no copies available")
	ErrDuplicateOrder = errors.New("active order already exists")

	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
