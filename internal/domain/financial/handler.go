package financial

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinic/therapy/internal/platform/apiclient"
	"github.com/clinic/therapy/internal/platform/auth"
)

type Handler struct {
	svc *Service
	now func() time.Time
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/financial", auth.RequireRole(auth.RoleFinancial))
	g.GET("/closing", h.GetClosing)
	g.GET("/closing/export", h.ExportClosing)
}

func (h *Handler) day(c echo.Context) (time.Time, error) {
	day, err := ParseDay(c.QueryParam("date"), h.now())
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, "data inválida, use AAAA-MM-DD")
	}
	return day, nil
}

func (h *Handler) GetClosing(c echo.Context) error {
	day, err := h.day(c)
	if err != nil {
		return err
	}
	closing, err := h.svc.Closing(c.Request().Context(), day)
	if err != nil {
		return backendError(err)
	}
	return c.JSON(http.StatusOK, closing)
}

func (h *Handler) ExportClosing(c echo.Context) error {
	day, err := h.day(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	closing, err := h.svc.ExportClosing(c.Request().Context(), day, &buf)
	if err != nil {
		return backendError(err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+FileName(closing)+`"`)
	return c.Blob(http.StatusOK, XLSXContentType, buf.Bytes())
}

func backendError(err error) error {
	if errors.Is(err, apiclient.ErrUnauthorized) {
		return echo.NewHTTPError(http.StatusUnauthorized, "sessão expirada, faça login novamente")
	}
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		msg := "erro ao carregar lançamentos"
		if apiErr.Message != "" {
			msg += ": " + apiErr.Message
		}
		return echo.NewHTTPError(http.StatusBadGateway, msg)
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "erro inesperado").SetInternal(err)
}
