package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/biblioteca-utp/portal-service/internal/errs"
	"github.com/biblioteca-utp/portal-service/internal/model"
	"github.com/biblioteca-utp/portal-service/internal/service/catalog"
)

func (h *Handler) CreateBook(c echo.Context) error {
	var req catalog.SaveBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	id, err := h.catalogSvc.CreateBook(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}

func (h *Handler) UpdateBook(c echo.Context) error {
	bookID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid book id")
	}
	var req catalog.SaveBookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	if err := h.catalogSvc.UpdateBook(c.Request().Context(), bookID, req); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) DeleteBook(c echo.Context) error {
	bookID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid book id")
	}
	if err := h.catalogSvc.DeleteBook(c.Request().Context(), bookID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusOK)
}

// AdminOrders lists every order joined with book and user. The sweep runs
// first, as the original back office reconciled on report-page load.
func (h *Handler) AdminOrders(c echo.Context) error {
	ctx := c.Request().Context()
	report := h.lifecycleSvc.Reconcile(ctx)

	orders, err := h.lifecycleSvc.AdminOrders(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reconcile": report,
		"orders":    orders,
	})
}

func (h *Handler) Reconcile(c echo.Context) error {
	report := h.lifecycleSvc.Reconcile(c.Request().Context())
	return c.JSON(http.StatusOK, report)
}

type setOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) SetOrderStatus(c echo.Context) error {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	var req setOrderStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	status := model.OrderStatus(req.Status)
	if !status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown order status")
	}

	order, err := h.lifecycleSvc.SetOrderStatus(c.Request().Context(), orderID, status)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, order)
}

func (h *Handler) DelinquentUsers(c echo.Context) error {
	users, err := h.lifecycleSvc.DelinquentUsers(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, users)
}

func (h *Handler) UnblockUser(c echo.Context) error {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	if err := h.lifecycleSvc.UnblockUser(c.Request().Context(), userID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusOK)
}
