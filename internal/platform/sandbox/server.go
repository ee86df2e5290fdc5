package sandbox

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/therapy/internal/domain/financial"
	"github.com/clinic/therapy/internal/domain/therapy"
	"github.com/clinic/therapy/internal/platform/middleware"
)

// ---------------------------------------------------------------------------
// Server: echo HTTP handlers
// ---------------------------------------------------------------------------

// Server exposes a Store over the clinic backend's REST surface.
type Server struct {
	store  *Store
	token  string
	logger zerolog.Logger
	mu     sync.Mutex
}

type Option func(*Server)

// WithToken makes every backend route require "Authorization: Bearer <token>".
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func NewServer(store *Store, opts ...Option) *Server {
	s := &Server{store: store, logger: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewEcho returns a ready-to-serve echo instance for the sandbox backend.
func NewEcho(store *Store, opts ...Option) *echo.Echo {
	srv := NewServer(store, opts...)
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recovery(srv.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(srv.logger))
	srv.RegisterRoutes(e)
	return e
}

// RegisterRoutes registers the backend routes and the sandbox admin routes.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	api := e.Group("", s.requireToken)
	api.POST("/packages", s.handleCreatePackage)
	api.GET("/packages", s.handleListPackages)
	api.PATCH("/packages/:id", s.handleUpdatePackage)
	api.DELETE("/packages/:id", s.handleDeletePackage)
	api.PUT("/packages/:id/sessions/:sessionId", s.handleEditSession)
	api.PATCH("/packages/:id/use-session", s.handleUseSession)
	api.POST("/packages/:id/payments", s.handleRegisterPayment)
	api.GET("/packages/:id/sessions", s.handleListSessions)
	api.GET("/packages/:id/payments", s.handleListPayments)
	api.GET("/financial-records", s.handleListRecords)
	api.POST("/financial-records", s.handleCreateRecord)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	admin := e.Group("/sandbox")
	admin.POST("/seed", s.handleSeed)
	admin.POST("/reset", s.handleReset)
}

func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.token == "" {
			return next(c)
		}
		if c.Request().Header.Get("Authorization") != "Bearer "+s.token {
			return echo.NewHTTPError(http.StatusUnauthorized, "token inválido ou expirado")
		}
		return next(c)
	}
}

func storeError(err error) error {
	var re *RequestError
	switch {
	case errors.As(err, &re):
		return echo.NewHTTPError(http.StatusBadRequest, re.Message)
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "não encontrado")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func bindError() error {
	return echo.NewHTTPError(http.StatusBadRequest, "corpo da requisição inválido")
}

func (s *Server) handleCreatePackage(c echo.Context) error {
	var req therapy.CreatePackageRequest
	if err := c.Bind(&req); err != nil {
		return bindError()
	}
	p, err := s.store.CreatePackage(req)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) handleListPackages(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	f := therapy.ListFilters{
		Status: therapy.PackageStatus(c.QueryParam("status")),
		Type:   therapy.SessionType(c.QueryParam("type")),
		Page:   page,
		Limit:  limit,
	}
	list, err := s.store.ListPackages(c.QueryParam("patientId"), f)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleUpdatePackage(c echo.Context) error {
	var patch therapy.PackageUpdate
	if err := c.Bind(&patch); err != nil {
		return bindError()
	}
	p, err := s.store.UpdatePackage(c.Param("id"), patch)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeletePackage(c echo.Context) error {
	if err := s.store.DeletePackage(c.Param("id")); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleEditSession(c echo.Context) error {
	var payload therapy.SessionUsePayload
	if err := c.Bind(&payload); err != nil {
		return bindError()
	}
	sess, err := s.store.EditSession(c.Param("id"), c.Param("sessionId"), payload)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) handleUseSession(c echo.Context) error {
	var payload therapy.SessionUsePayload
	if err := c.Bind(&payload); err != nil {
		return bindError()
	}
	p, err := s.store.UseSession(c.Param("id"), payload)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleRegisterPayment(c echo.Context) error {
	var in therapy.PaymentInput
	if err := c.Bind(&in); err != nil {
		return bindError()
	}
	pay, err := s.store.RegisterPayment(c.Param("id"), in)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusCreated, pay)
}

func (s *Server) handleListSessions(c echo.Context) error {
	sessions, err := s.store.Sessions(c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleListPayments(c echo.Context) error {
	payments, err := s.store.Payments(c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, payments)
}

func (s *Server) handleListRecords(c echo.Context) error {
	day, err := financial.ParseDay(c.QueryParam("date"), s.store.now())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "data inválida")
	}
	records := s.store.RecordsByDate(day)
	if status := c.QueryParam("status"); status != "" {
		filtered := records[:0]
		for _, r := range records {
			if strings.EqualFold(string(r.Status), status) {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Server) handleCreateRecord(c echo.Context) error {
	var r financial.FinancialRecord
	if err := c.Bind(&r); err != nil {
		return bindError()
	}
	if !r.Amount.IsPositive() {
		return echo.NewHTTPError(http.StatusBadRequest, "amount deve ser maior que zero")
	}
	if r.Date.IsZero() {
		r.Date = s.store.now()
	}
	if r.Status == "" {
		r.Status = therapy.PaymentPaid
	}
	s.store.AddRecord(&r)
	return c.JSON(http.StatusCreated, r)
}

func (s *Server) handleSeed(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := DefaultSeedConfig()
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&cfg); err != nil {
			return bindError()
		}
	}
	result, err := NewSeeder(cfg).Generate(s.store)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	s.logger.Info().Int("packages", result.Packages).Int("records", result.Records).Dur("duration", result.Duration).Msg("sandbox seeded")
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleReset(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Reset()
	return c.JSON(http.StatusOK, map[string]string{"status": "reset", "at": s.store.now().Format(time.RFC3339)})
}
