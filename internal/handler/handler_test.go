package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/biblioteca-utp/portal-service/internal/errs"
	"github.com/biblioteca-utp/portal-service/internal/handler"
	service_mocks "github.com/biblioteca-utp/portal-service/internal/handler/mocks"
	"github.com/biblioteca-utp/portal-service/internal/model"
	"github.com/biblioteca-utp/portal-service/internal/service/session"
	"github.com/biblioteca-utp/portal-service/pkg/auth"
	"github.com/biblioteca-utp/portal-service/pkg/validate"
)

type ordersStub struct {
	ids []int64
}

func (s ordersStub) ActiveBookIDs(context.Context, int64) ([]int64, error) { return s.ids, nil }

func withProfile(p auth.Profile) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := auth.SetAuthContext(c.Request().Context(), p)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func studentProfile() auth.Profile {
	return auth.Profile{UserID: 42, Name: "Test Student", Role: auth.RoleStudent}
}

func TestHandler_GetBooks(t *testing.T) {
	t.Parallel()
	type mockBehavior func(r *service_mocks.MockCatalogService)
	type response struct {
		expectedCode int
		bodyContains string
	}

	count := 2
	tests := []struct {
		name         string
		mockBehavior mockBehavior
		response     response
	}{
		{
			name: "ok",
			mockBehavior: func(r *service_mocks.MockCatalogService) {
				r.EXPECT().
					FetchBooks(context.Background()).
					Return([]model.PreparedBook{
						{
							ID:             1,
							Title:          "Cálculo de Varias Variables",
							Slug:           "cálculo-de-varias-variables",
							Author:         "James Stewart",
							Authors:        "James Stewart",
							Type:           model.TypeFisico,
							Speciality:     "Ingeniería en Sistemas",
							AvailableCount: &count,
						},
					}, nil)
			},
			response: response{
				expectedCode: http.StatusOK,
				bodyContains: `"availableCount":2`,
			},
		},
		{
			name: "catalog unavailable is 503, not an empty list",
			mockBehavior: func(r *service_mocks.MockCatalogService) {
				r.EXPECT().
					FetchBooks(context.Background()).
					Return(nil, errors.Wrap(errs.ErrCatalogUnavailable, "list books"))
			},
			response: response{
				expectedCode: http.StatusServiceUnavailable,
				bodyContains: "catalog unavailable",
			},
		},
		{
			name: "internal error",
			mockBehavior: func(r *service_mocks.MockCatalogService) {
				r.EXPECT().
					FetchBooks(context.Background()).
					Return(nil, errors.New("boom"))
			},
			response: response{
				expectedCode: http.StatusInternalServerError,
				bodyContains: "boom",
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			catalogSvc := service_mocks.NewMockCatalogService(c)
			tt.mockBehavior(catalogSvc)

			h := handler.New(catalogSvc, nil, nil, nil,
				session.NewManager(ordersStub{}), auth.Config{}, zap.NewExample().Named("test"))

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.GET("/books", h.GetBooks)

			r := httptest.NewRequest(http.MethodGet, "/books", http.NoBody)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			require.Contains(t, w.Body.String(), tt.response.bodyContains)
		})
	}
}

func TestHandler_CreateReservation(t *testing.T) {
	t.Parallel()
	type mockBehavior func(r *service_mocks.MockReservationService)
	type response struct {
		expectedCode int
		bodyContains string
	}

	tests := []struct {
		name         string
		body         string
		mockBehavior mockBehavior
		warmCache    bool
		activeIDs    []int64
		response     response
	}{
		{
			name: "ok",
			body: `{"bookId":7}`,
			mockBehavior: func(r *service_mocks.MockReservationService) {
				r.EXPECT().
					Reserve(gomock.Any(), int64(7), int64(42)).
					Return(model.Order{ID: 1, BookID: 7, UserID: 42, Status: model.StatusPendiente}, nil)
			},
			response: response{
				expectedCode: http.StatusCreated,
				bodyContains: `"status":"Pendiente de buscar"`,
			},
		},
		{
			name: "delinquent user",
			body: `{"bookId":7}`,
			mockBehavior: func(r *service_mocks.MockReservationService) {
				r.EXPECT().
					Reserve(gomock.Any(), int64(7), int64(42)).
					Return(model.Order{}, errs.ErrDelinquentUser)
			},
			response: response{
				expectedCode: http.StatusForbidden,
				bodyContains: "blocked for delinquency",
			},
		},
		{
			name: "no copies",
			body: `{"bookId":7}`,
			mockBehavior: func(r *service_mocks.MockReservationService) {
				r.EXPECT().
					Reserve(gomock.Any(), int64(7), int64(42)).
					Return(model.Order{}, errs.ErrNoCopies)
			},
			response: response{
				expectedCode: http.StatusConflict,
				bodyContains: "no copies available",
			},
		},
		{
			name: "duplicate active order",
			body: `{"bookId":7}`,
			mockBehavior: func(r *service_mocks.MockReservationService) {
				r.EXPECT().
					Reserve(gomock.Any(), int64(7), int64(42)).
					Return(model.Order{}, errors.Wrapf(errs.ErrDuplicateOrder, "order 11 in status %q", model.StatusPendiente))
			},
			response: response{
				expectedCode: http.StatusConflict,
				bodyContains: "active order already exists",
			},
		},
		{
			// The cache entry is confirmed by the store on re-check, so the
			// rejection happens before the workflow: no Reserve expectation
			// is registered.
			name:         "cache short-circuit",
			body:         `{"bookId":7}`,
			mockBehavior: func(r *service_mocks.MockReservationService) {},
			warmCache:    true,
			activeIDs:    []int64{7},
			response: response{
				expectedCode: http.StatusConflict,
				bodyContains: "active order already exists",
			},
		},
		{
			// The cached entry is stale: the order was closed server-side
			// since it was recorded. The re-check clears it and the
			// reservation goes through to the workflow.
			name: "stale cache entry falls through to the workflow",
			body: `{"bookId":7}`,
			mockBehavior: func(r *service_mocks.MockReservationService) {
				r.EXPECT().
					Reserve(gomock.Any(), int64(7), int64(42)).
					Return(model.Order{ID: 2, BookID: 7, UserID: 42, Status: model.StatusPendiente}, nil)
			},
			warmCache: true,
			response: response{
				expectedCode: http.StatusCreated,
				bodyContains: `"status":"Pendiente de buscar"`,
			},
		},
		{
			name:         "missing bookId",
			body:         `{}`,
			mockBehavior: func(r *service_mocks.MockReservationService) {},
			response: response{
				expectedCode: http.StatusBadRequest,
			},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := gomock.NewController(t)
			defer c.Finish()
			reservationSvc := service_mocks.NewMockReservationService(c)
			tt.mockBehavior(reservationSvc)

			sessions := session.NewManager(ordersStub{ids: tt.activeIDs})
			if tt.warmCache {
				sessions.Get(42).MarkReserved(7)
			}

			h := handler.New(nil, reservationSvc, nil, nil,
				sessions, auth.Config{}, zap.NewExample().Named("test"))

			e := echo.New()
			e.Validator = validate.NewCustomValidator()
			e.POST("/reservations", h.CreateReservation, withProfile(studentProfile()))

			r := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(tt.body))
			r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w := httptest.NewRecorder()
			e.ServeHTTP(w, r)

			require.Equal(t, tt.response.expectedCode, w.Code)
			if tt.response.bodyContains != "" {
				require.Contains(t, w.Body.String(), tt.response.bodyContains)
			}
		})
	}
}
