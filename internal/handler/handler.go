package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/biblioteca-utp/portal-service/internal/errs"
	"github.com/biblioteca-utp/portal-service/internal/model"
	authsvc "github.com/biblioteca-utp/portal-service/internal/service/auth"
	"github.com/biblioteca-utp/portal-service/internal/service/session"
	"github.com/biblioteca-utp/portal-service/pkg/auth"
	"github.com/biblioteca-utp/portal-service/pkg/validate"
)

type Handler struct {
	catalogSvc     CatalogService
	reservationSvc ReservationService
	lifecycleSvc   LifecycleService
	authSvc        AuthService
	sessions       *session.Manager
	authCfg        auth.Config
	log            *zap.Logger
}

func New(
	catalogSvc CatalogService,
	reservationSvc ReservationService,
	lifecycleSvc LifecycleService,
	authSvc AuthService,
	sessions *session.Manager,
	authCfg auth.Config,
	log *zap.Logger,
) *Handler {
	return &Handler{
		catalogSvc:     catalogSvc,
		reservationSvc: reservationSvc,
		lifecycleSvc:   lifecycleSvc,
		authSvc:        authSvc,
		sessions:       sessions,
		authCfg:        authCfg,
		log:            log,
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", newRateLimiterMW(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(requestLoggerConfig(h.log.Named("echo"))),
		middleware.RequestID(),
		newRateLimiterMW(apiRPS),
	)

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.GET("/books", h.GetBooks)

	user := api.Group("", jwtAuthentication(h.authCfg))
	user.POST("/reservations", h.CreateReservation)
	user.GET("/reservations", h.GetReservations)
	user.GET("/reservations/active", h.GetActiveReservations)

	admin := api.Group("/admin", jwtAuthentication(h.authCfg), adminOnly)
	admin.POST("/books", h.CreateBook)
	admin.PUT("/books/:id", h.UpdateBook)
	admin.DELETE("/books/:id", h.DeleteBook)
	admin.GET("/orders", h.AdminOrders)
	admin.PATCH("/orders/:id/status", h.SetOrderStatus)
	admin.POST("/reconcile", h.Reconcile)
	admin.GET("/users/delinquent", h.DelinquentUsers)
	admin.POST("/users/:id/unblock", h.UnblockUser)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) Register(c echo.Context) error {
	var req authsvc.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	user, err := h.authSvc.Register(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, errs.ErrEmailTaken) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *Handler) Login(c echo.Context) error {
	var req authsvc.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	token, user, err := h.authSvc.Login(ctx, req)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// Warm the eligibility cache so the first catalog view gates correctly.
	if err := h.sessions.Get(user.ID).Refresh(ctx); err != nil {
		h.log.Warn("refresh eligibility cache", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user":  user,
	})
}

func (h *Handler) GetBooks(c echo.Context) error {
	books, err := h.catalogSvc.FetchBooks(c.Request().Context())
	if err != nil {
		if errors.Is(err, errs.ErrCatalogUnavailable) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, books)
}

func (h *Handler) CreateReservation(c echo.Context) error {
	profile, err := auth.FromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	var req model.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	// UX short-circuit: a known active order rejects before the workflow
	// runs. A hit may be stale (the sweep or an admin may have closed the
	// order since it was recorded), so reconfirm against the store before
	// rejecting. On a refresh failure the workflow check decides.
	cache := h.sessions.Get(profile.UserID)
	if cache.HasActiveOrder(req.BookID) {
		if err := cache.Refresh(c.Request().Context()); err != nil {
			h.log.Warn("refresh eligibility cache", zap.Int64("user_id", profile.UserID), zap.Error(err))
		} else if cache.HasActiveOrder(req.BookID) {
			return echo.NewHTTPError(http.StatusConflict, errs.ErrDuplicateOrder.Error())
		}
	}

	order, err := h.reservationSvc.Reserve(c.Request().Context(), req.BookID, profile.UserID)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrDelinquentUser):
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		case errors.Is(err, errs.ErrNoCopies), errors.Is(err, errs.ErrDuplicateOrder):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, errs.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	cache.MarkReserved(order.BookID)

	return c.JSON(http.StatusCreated, order)
}

func (h *Handler) GetReservations(c echo.Context) error {
	profile, err := auth.FromContext(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	orders, err := h.reservationSvc.OrdersByUser(c.Request().Context(), profile.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *Handler) GetActiveReservations(c echo.Context) error {
	ctx := c.Request().Context()
	profile, err := auth.FromContext(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	cache := h.sessions.Get(profile.UserID)
	if err := cache.Refresh(ctx); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{"bookIds": cache.BookIDs()})
}
