package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/biblioteca-utp/portal-service/internal/errs"
	"github.com/biblioteca-utp/portal-service/internal/handler"
	service_mocks "github.com/biblioteca-utp/portal-service/internal/handler/mocks"
	"github.com/biblioteca-utp/portal-service/internal/service/catalog"
	"github.com/biblioteca-utp/portal-service/internal/service/session"
	"github.com/biblioteca-utp/portal-service/pkg/auth"
	"github.com/biblioteca-utp/portal-service/pkg/validate"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func newBookAdminRouter(t *testing.T) (*echo.Echo, *service_mocks.MockCatalogService) {
	t.Helper()
	c := gomock.NewController(t)
	t.Cleanup(c.Finish)
	catalogSvc := service_mocks.NewMockCatalogService(c)

	h := handler.New(catalogSvc, nil, nil, nil,
		session.NewManager(ordersStub{}), auth.Config{}, zap.NewExample().Named("test"))

	e := echo.New()
	e.Validator = validate.NewCustomValidator()
	adminMW := withProfile(auth.Profile{UserID: 1, Name: "Admin", Role: auth.RoleAdmin})
	e.POST("/admin/books", h.CreateBook, adminMW)
	e.PUT("/admin/books/:id", h.UpdateBook, adminMW)
	e.DELETE("/admin/books/:id", h.DeleteBook, adminMW)
	return e, catalogSvc
}

func TestHandler_CreateBook(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		e, catalogSvc := newBookAdminRouter(t)
		catalogSvc.EXPECT().
			CreateBook(gomock.Any(), catalog.SaveBookRequest{
				Title:    "Sistemas Distribuidos",
				Type:     "Tesis",
				FilePath: strPtr("tesis/sistemas-distribuidos.pdf"),
			}).
			Return(int64(10), nil)

		body := `{"title":"Sistemas Distribuidos","type":"Tesis","filePath":"tesis/sistemas-distribuidos.pdf"}`
		r := httptest.NewRequest(http.MethodPost, "/admin/books", strings.NewReader(body))
		r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		require.Equal(t, http.StatusCreated, w.Code)
		require.Contains(t, w.Body.String(), `"id":10`)
	})

	t.Run("missing title", func(t *testing.T) {
		t.Parallel()
		e, _ := newBookAdminRouter(t)
		r := httptest.NewRequest(http.MethodPost, "/admin/books", strings.NewReader(`{"type":"Tesis"}`))
		r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandler_UpdateBook(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		e, catalogSvc := newBookAdminRouter(t)
		catalogSvc.EXPECT().
			UpdateBook(gomock.Any(), int64(3), catalog.SaveBookRequest{
				Title:    "Cálculo de Varias Variables",
				Type:     "Físico",
				Quantity: intPtr(6),
			}).
			Return(nil)

		body := `{"title":"Cálculo de Varias Variables","type":"Físico","quantity":6}`
		r := httptest.NewRequest(http.MethodPut, "/admin/books/3", strings.NewReader(body))
		r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing book", func(t *testing.T) {
		t.Parallel()
		e, catalogSvc := newBookAdminRouter(t)
		catalogSvc.EXPECT().
			UpdateBook(gomock.Any(), int64(99), gomock.Any()).
			Return(errs.ErrNotFound)

		body := `{"title":"X","type":"Virtual"}`
		r := httptest.NewRequest(http.MethodPut, "/admin/books/99", strings.NewReader(body))
		r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandler_DeleteBook(t *testing.T) {
	t.Parallel()

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		e, catalogSvc := newBookAdminRouter(t)
		catalogSvc.EXPECT().DeleteBook(gomock.Any(), int64(5)).Return(nil)

		r := httptest.NewRequest(http.MethodDelete, "/admin/books/5", http.NoBody)
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		t.Parallel()
		e, _ := newBookAdminRouter(t)
		r := httptest.NewRequest(http.MethodDelete, "/admin/books/abc", http.NoBody)
		w := httptest.NewRecorder()
		e.ServeHTTP(w, r)

		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}
