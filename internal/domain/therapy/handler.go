package therapy

import (
	"errors"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/clinic/therapy/internal/platform/apiclient"
	"github.com/clinic/therapy/internal/platform/auth"
	"github.com/clinic/therapy/pkg/pagination"
)

// PackageView is a package as shown on a card: the backend record plus its
// derived balance and progress.
type PackageView struct {
	*TherapyPackage
	Summary  BalanceSummary  `json:"summary"`
	Progress decimal.Decimal `json:"progress"`
}

func NewPackageView(p *TherapyPackage) PackageView {
	return PackageView{TherapyPackage: p, Summary: ComputeBalance(p), Progress: Progress(p)}
}

// ListResponse is a page of package views with the patient totals.
type ListResponse struct {
	pagination.Response
	Summary PackagesSummary `json:"patientSummary"`
}

// MutationResponse carries the mutation result and the list re-fetched after it.
type MutationResponse struct {
	Result       interface{}   `json:"result,omitempty"`
	Packages     *ListResponse `json:"packages"`
	RefreshError string        `json:"refreshError,omitempty"`
}

// DetailResponse is the package detail opened from a card.
type DetailResponse struct {
	Package  PackageView `json:"package"`
	Sessions []*Session  `json:"sessions"`
	Payments []*Payment  `json:"payments"`
}

// Handler exposes the package view over HTTP. Each request works on its own
// Synchronizer so concurrent operators never share view state; inflight holds
// the packages with a mutation under way so a duplicate submission gets 409.
type Handler struct {
	repo     PackageRepository
	logger   zerolog.Logger
	inflight sync.Map
}

func NewHandler(repo PackageRepository, logger zerolog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	base := "/patients/:patientId/packages"

	read := api.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleDoctor, auth.RoleFinancial))
	read.GET(base, h.ListPackages)
	read.GET(base+"/:id", h.GetPackage)
	read.GET(base+"/:id/sessions", h.ListSessions)
	read.GET(base+"/:id/payments", h.ListPayments)

	sessions := api.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleDoctor))
	sessions.POST(base+"/:id/sessions/use", h.UseSession)
	sessions.PUT(base+"/:id/sessions/:sessionId", h.EditSession)

	payments := api.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleFinancial))
	payments.POST(base+"/:id/payments", h.RegisterPayment)

	write := api.Group("", auth.RequireRole(auth.RoleReceptionist))
	write.POST(base, h.CreatePackage)
	write.PATCH(base+"/:id", h.UpdatePackage)
	write.DELETE(base+"/:id", h.DeletePackage)
}

// claim marks packageID as being mutated until release is called.
func (h *Handler) claim(packageID string) (release func(), err error) {
	if _, busy := h.inflight.LoadOrStore(packageID, struct{}{}); busy {
		return nil, ErrBusy
	}
	return func() { h.inflight.Delete(packageID) }, nil
}

func (h *Handler) newSync(c echo.Context) *Synchronizer {
	logger := h.logger
	if rid, ok := c.Get("request_id").(string); ok {
		logger = logger.With().Str("request_id", rid).Logger()
	}
	return NewSynchronizer(h.repo, logger)
}

func filtersFromContext(c echo.Context) (ListFilters, pagination.Params, error) {
	p := pagination.FromContext(c)
	f := ListFilters{
		Status: PackageStatus(c.QueryParam("status")),
		Type:   SessionType(c.QueryParam("type")),
		Page:   p.Page,
		Limit:  p.Limit,
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, p, invalid("status", "status de pacote inválido")
	}
	if f.Type != "" && !f.Type.Valid() {
		return f, p, invalid("type", "tipo de sessão inválido")
	}
	return f, p, nil
}

// load fetches the operator's view before it is read or mutated.
func (h *Handler) load(c echo.Context) (*Synchronizer, pagination.Params, error) {
	f, p, err := filtersFromContext(c)
	if err != nil {
		return nil, p, err
	}
	s := h.newSync(c)
	if _, err := s.FetchPackages(c.Request().Context(), c.Param("patientId"), f); err != nil {
		return nil, p, err
	}
	return s, p, nil
}

func listResponse(snap Snapshot, p pagination.Params) *ListResponse {
	views := make([]PackageView, len(snap.Packages))
	for i, pkg := range snap.Packages {
		views[i] = NewPackageView(pkg)
	}
	return &ListResponse{
		Response: *pagination.NewResponse(views, snap.Total, p),
		Summary:  Summarize(snap.Packages),
	}
}

func (h *Handler) mutationResponse(c echo.Context, s *Synchronizer, p pagination.Params, status int, result interface{}) error {
	snap := s.Snapshot()
	resp := MutationResponse{Result: result, Packages: listResponse(snap, p)}
	if snap.Err != nil {
		resp.RefreshError = UserMessage(snap.Err)
	}
	return c.JSON(status, resp)
}

func (h *Handler) ListPackages(c echo.Context) error {
	s, p, err := h.load(c)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, listResponse(s.Snapshot(), p))
}

func (h *Handler) GetPackage(c echo.Context) error {
	s, _, err := h.load(c)
	if err != nil {
		return h.httpError(c, err)
	}
	pkg := s.Package(c.Param("id"))
	if pkg == nil {
		return echo.NewHTTPError(http.StatusNotFound, "pacote não encontrado")
	}

	ctx := c.Request().Context()
	sessions := pkg.Sessions
	if sessions == nil {
		if sessions, err = s.ListSessions(ctx, pkg.ID); err != nil {
			return h.httpError(c, err)
		}
	}
	payments := pkg.Payments
	if payments == nil {
		if payments, err = s.ListPayments(ctx, pkg.ID); err != nil {
			return h.httpError(c, err)
		}
	}
	return c.JSON(http.StatusOK, DetailResponse{Package: NewPackageView(pkg), Sessions: sessions, Payments: payments})
}

func (h *Handler) ListSessions(c echo.Context) error {
	sessions, err := h.newSync(c).ListSessions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, sessions)
}

func (h *Handler) ListPayments(c echo.Context) error {
	payments, err := h.newSync(c).ListPayments(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, payments)
}

func (h *Handler) CreatePackage(c echo.Context) error {
	var in CreatePackageInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "corpo da requisição inválido")
	}
	in.PatientID = c.Param("patientId")

	f, p, err := filtersFromContext(c)
	if err != nil {
		return h.httpError(c, err)
	}
	s := h.newSync(c)
	s.SetView(in.PatientID, f)

	created, err := s.CreatePackage(c.Request().Context(), in)
	if err != nil {
		return h.httpError(c, err)
	}
	return h.mutationResponse(c, s, p, http.StatusCreated, created)
}

func (h *Handler) UseSession(c echo.Context) error {
	return h.saveSession(c, ModeUse)
}

func (h *Handler) EditSession(c echo.Context) error {
	return h.saveSession(c, ModeEdit)
}

func (h *Handler) saveSession(c echo.Context, mode Mode) error {
	var in SessionInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "corpo da requisição inválido")
	}
	if mode == ModeEdit {
		in.SessionID = c.Param("sessionId")
	}

	release, err := h.claim(c.Param("id"))
	if err != nil {
		return h.httpError(c, err)
	}
	defer release()

	s, p, err := h.load(c)
	if err != nil {
		return h.httpError(c, err)
	}
	pkg, err := s.UseOrEditSession(c.Request().Context(), c.Param("id"), in, mode)
	if err != nil {
		return h.httpError(c, err)
	}
	var result interface{}
	if pkg != nil {
		result = NewPackageView(pkg)
	}
	return h.mutationResponse(c, s, p, http.StatusOK, result)
}

func (h *Handler) RegisterPayment(c echo.Context) error {
	var in PaymentInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "corpo da requisição inválido")
	}
	release, err := h.claim(c.Param("id"))
	if err != nil {
		return h.httpError(c, err)
	}
	defer release()

	s, p, err := h.load(c)
	if err != nil {
		return h.httpError(c, err)
	}
	pay, err := s.RegisterPayment(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return h.httpError(c, err)
	}
	return h.mutationResponse(c, s, p, http.StatusCreated, pay)
}

func (h *Handler) UpdatePackage(c echo.Context) error {
	var patch PackageUpdate
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "corpo da requisição inválido")
	}
	release, err := h.claim(c.Param("id"))
	if err != nil {
		return h.httpError(c, err)
	}
	defer release()

	s, p, err := h.load(c)
	if err != nil {
		return h.httpError(c, err)
	}
	updated, err := s.UpdatePackage(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return h.httpError(c, err)
	}
	return h.mutationResponse(c, s, p, http.StatusOK, updated)
}

// DeletePackage requires ?confirm=true, the HTTP form of the operator's
// confirmation dialog.
func (h *Handler) DeletePackage(c echo.Context) error {
	release, err := h.claim(c.Param("id"))
	if err != nil {
		return h.httpError(c, err)
	}
	defer release()

	s, p, err := h.load(c)
	if err != nil {
		return h.httpError(c, err)
	}
	confirm := func(string) bool { return c.QueryParam("confirm") == "true" }
	if err := s.DeletePackage(c.Request().Context(), c.Param("id"), confirm); err != nil {
		return h.httpError(c, err)
	}
	return h.mutationResponse(c, s, p, http.StatusOK, nil)
}

// httpError maps package errors onto status codes. Unknown errors are logged
// and reported with a generic message.
func (h *Handler) httpError(c echo.Context, err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]string{
			"message": ve.Message,
			"field":   ve.Field,
		})
	}
	if errors.Is(err, apiclient.ErrUnauthorized) {
		return echo.NewHTTPError(http.StatusUnauthorized, UserMessage(err))
	}
	switch {
	case errors.Is(err, ErrBusy), errors.Is(err, ErrSuperseded):
		return echo.NewHTTPError(http.StatusConflict, UserMessage(err))
	case errors.Is(err, ErrDeleteNotConfirmed):
		return echo.NewHTTPError(http.StatusBadRequest, UserMessage(err))
	}

	var se *SubmissionError
	var fe *FetchError
	if errors.As(err, &se) || errors.As(err, &fe) {
		return echo.NewHTTPError(http.StatusBadGateway, UserMessage(err))
	}
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "recurso não encontrado")
		}
		msg := apiErr.Message
		if msg == "" {
			msg = msgUnexpected
		}
		return echo.NewHTTPError(http.StatusBadGateway, msg)
	}

	h.logger.Error().Err(err).
		Interface("request_id", c.Get("request_id")).
		Str("path", c.Path()).
		Msg("unexpected package error")
	return echo.NewHTTPError(http.StatusInternalServerError, msgUnexpected)
}
