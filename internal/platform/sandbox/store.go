package sandbox

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinic/therapy/internal/domain/financial"
	"github.com/clinic/therapy/internal/domain/therapy"
	"github.com/clinic/therapy/pkg/pagination"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrBadRequest = errors.New("bad request")
)

// RequestError is a rejected request; Message is returned to the caller.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return "bad request: " + e.Message }

func (e *RequestError) Is(target error) bool { return target == ErrBadRequest }

func badRequest(format string, args ...interface{}) error {
	return &RequestError{Message: fmt.Sprintf(format, args...)}
}

// ---------------------------------------------------------------------------
// Store
// ---------------------------------------------------------------------------

// Store is the in-memory state of the emulated clinic backend. It applies the
// same bookkeeping the real backend does: counters are always recomputed from
// sessions and payments, and package status is derived.
type Store struct {
	mu             sync.RWMutex
	packages       map[string]*therapy.TherapyPackage
	sessionPayment map[string]string
	records        []*financial.FinancialRecord
	newID          func() string
	now            func() time.Time
}

func NewStore() *Store {
	return &Store{
		packages:       make(map[string]*therapy.TherapyPackage),
		sessionPayment: make(map[string]string),
		newID:          func() string { return uuid.New().String() },
		now:            time.Now,
	}
}

// Reset drops all data.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packages = make(map[string]*therapy.TherapyPackage)
	s.sessionPayment = make(map[string]string)
	s.records = nil
}

func clonePackage(p *therapy.TherapyPackage) *therapy.TherapyPackage {
	cp := *p
	cp.Sessions = make([]*therapy.Session, len(p.Sessions))
	for i, sess := range p.Sessions {
		sc := *sess
		cp.Sessions[i] = &sc
	}
	cp.Payments = make([]*therapy.Payment, len(p.Payments))
	for i, pay := range p.Payments {
		pc := *pay
		pc.CoveredSessions = append([]string(nil), pay.CoveredSessions...)
		cp.Payments[i] = &pc
	}
	return &cp
}

// settle recomputes counters and status after any change.
func (s *Store) settle(p *therapy.TherapyPackage) {
	done := 0
	for _, sess := range p.Sessions {
		if sess.Status == therapy.SessionCompleted {
			done++
		}
	}
	p.SessionsDone = done

	paid := decimal.Zero
	for _, pay := range p.Payments {
		if pay.Status != therapy.PaymentCanceled {
			paid = paid.Add(pay.Amount)
		}
	}
	p.TotalPaid = paid

	switch {
	case p.SessionsDone >= p.TotalSessions:
		p.Status = therapy.PackageCompleted
	case p.TotalPaid.LessThan(p.TotalValue):
		p.Status = therapy.PackagePending
	default:
		p.Status = therapy.PackageActive
	}
	p.UpdatedAt = s.now()
}

// ---------------------------------------------------------------------------
// Packages
// ---------------------------------------------------------------------------

// CreatePackage schedules TotalSessions pending sessions spread evenly over
// each week from the first session, and records the initial payment.
func (s *Store) CreatePackage(req therapy.CreatePackageRequest) (*therapy.TherapyPackage, error) {
	if req.PatientID == "" {
		return nil, badRequest("patientId é obrigatório")
	}
	if req.TotalSessions <= 0 {
		req.TotalSessions = therapy.TotalSessionsFor(req.DurationMonths, req.SessionsPerWeek)
	}
	if req.TotalSessions <= 0 {
		return nil, badRequest("totalSessions deve ser maior que zero")
	}
	if !req.SessionValue.IsPositive() {
		return nil, badRequest("sessionValue deve ser maior que zero")
	}
	perWeek := req.SessionsPerWeek
	if perWeek <= 0 {
		perWeek = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p := &therapy.TherapyPackage{
		ID:            s.newID(),
		PatientID:     req.PatientID,
		DoctorID:      req.DoctorID,
		SessionType:   req.SessionType,
		TotalSessions: req.TotalSessions,
		SessionValue:  req.SessionValue,
		TotalValue:    req.SessionValue.Mul(decimal.NewFromInt(int64(req.TotalSessions))),
		Notes:         req.Notes,
		CreatedAt:     now,
	}

	first := req.FirstSessionAt
	if first.IsZero() {
		first = now
	}
	step := 7 * 24 * time.Hour / time.Duration(perWeek)
	for i := 0; i < req.TotalSessions; i++ {
		p.Sessions = append(p.Sessions, &therapy.Session{
			ID:          s.newID(),
			PackageID:   p.ID,
			Date:        first.Add(time.Duration(i) * step),
			DoctorID:    req.DoctorID,
			SessionType: req.SessionType,
			Status:      therapy.SessionPending,
		})
	}

	if req.AmountPaid.IsPositive() {
		p.Payments = append(p.Payments, &therapy.Payment{
			ID:              s.newID(),
			PackageID:       p.ID,
			Amount:          req.AmountPaid,
			Date:            now,
			Method:          req.PaymentMethod,
			CoveredSessions: []string{},
			Notes:           "pagamento na contratação",
			Status:          therapy.PaymentPaid,
		})
	}

	s.settle(p)
	s.packages[p.ID] = p
	return clonePackage(p), nil
}

// ListPackages returns one page of a patient's packages, newest first.
func (s *Store) ListPackages(patientID string, f therapy.ListFilters) (*therapy.PackageList, error) {
	if patientID == "" {
		return nil, badRequest("patientId é obrigatório")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*therapy.TherapyPackage
	for _, p := range s.packages {
		if p.PatientID != patientID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Type != "" && p.SessionType != f.Type {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	params := pagination.Normalize(f.Page, f.Limit)
	start, end := params.Window(len(matched))
	out := make([]*therapy.TherapyPackage, 0, end-start)
	for _, p := range matched[start:end] {
		out = append(out, clonePackage(p))
	}
	return &therapy.PackageList{Data: out, Total: len(matched), Page: params.Page, Limit: params.Limit}, nil
}

func (s *Store) lookup(id string) (*therapy.TherapyPackage, error) {
	p, ok := s.packages[id]
	if !ok {
		return nil, fmt.Errorf("package %s: %w", id, ErrNotFound)
	}
	return p, nil
}

func (s *Store) GetPackage(id string) (*therapy.TherapyPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return clonePackage(p), nil
}

// UpdatePackage applies a metadata patch. Growing the package schedules the
// extra sessions after the last one; the total value follows the new count
// and session value.
func (s *Store) UpdatePackage(id string, patch therapy.PackageUpdate) (*therapy.TherapyPackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	if patch.SessionType != nil {
		if !patch.SessionType.Valid() {
			return nil, badRequest("sessionType inválido")
		}
		p.SessionType = *patch.SessionType
	}
	if patch.SessionValue != nil {
		if !patch.SessionValue.IsPositive() {
			return nil, badRequest("sessionValue deve ser maior que zero")
		}
		p.SessionValue = *patch.SessionValue
	}
	if patch.TotalSessions != nil {
		if *patch.TotalSessions < 1 {
			return nil, badRequest("totalSessions deve ser maior que zero")
		}
		last := p.CreatedAt
		if n := len(p.Sessions); n > 0 {
			last = p.Sessions[n-1].Date
		}
		for i := len(p.Sessions); i < *patch.TotalSessions; i++ {
			last = last.Add(7 * 24 * time.Hour)
			p.Sessions = append(p.Sessions, &therapy.Session{
				ID:          s.newID(),
				PackageID:   p.ID,
				Date:        last,
				DoctorID:    p.DoctorID,
				SessionType: p.SessionType,
				Status:      therapy.SessionPending,
			})
		}
		p.TotalSessions = *patch.TotalSessions
	}
	if patch.Notes != nil {
		p.Notes = *patch.Notes
	}
	p.TotalValue = p.SessionValue.Mul(decimal.NewFromInt(int64(p.TotalSessions)))
	s.settle(p)
	return clonePackage(p), nil
}

func (s *Store) DeletePackage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.lookup(id)
	if err != nil {
		return err
	}
	for _, sess := range p.Sessions {
		delete(s.sessionPayment, sess.ID)
	}
	delete(s.packages, id)
	return nil
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

func (s *Store) applySession(p *therapy.TherapyPackage, sess *therapy.Session, payload therapy.SessionUsePayload) error {
	status := payload.Status
	if status == "" {
		status = therapy.SessionCompleted
	}
	if !status.Valid() {
		return badRequest("status de sessão inválido: %q", payload.Status)
	}
	if !payload.Date.IsZero() {
		sess.Date = payload.Date
	}
	if payload.DoctorID != "" {
		sess.DoctorID = payload.DoctorID
	}
	sess.Status = status
	sess.Notes = payload.Notes
	sess.ConfirmedAbsence = nil
	if status == therapy.SessionCanceled && payload.ConfirmedAbsence != nil {
		v := *payload.ConfirmedAbsence
		sess.ConfirmedAbsence = &v
	}

	var existing *therapy.Payment
	if payID, ok := s.sessionPayment[sess.ID]; ok {
		for _, pay := range p.Payments {
			if pay.ID == payID {
				existing = pay
			}
		}
	}

	switch {
	case payload.Payment != nil && existing != nil:
		existing.Amount = payload.Payment.Amount
		existing.Method = payload.Payment.Method
		existing.Status = therapy.PaymentPaid
	case payload.Payment != nil:
		pay := &therapy.Payment{
			ID:              s.newID(),
			PackageID:       p.ID,
			Amount:          payload.Payment.Amount,
			Date:            s.now(),
			Method:          payload.Payment.Method,
			CoveredSessions: []string{sess.ID},
			Status:          therapy.PaymentPaid,
		}
		p.Payments = append(p.Payments, pay)
		s.sessionPayment[sess.ID] = pay.ID
	case existing != nil:
		existing.Status = therapy.PaymentCanceled
	}

	if payload.Payment != nil {
		sess.IsPaid = true
		sess.PaymentAmount = payload.Payment.Amount
		sess.PaymentMethod = payload.Payment.Method
	} else if existing != nil {
		sess.IsPaid = false
		sess.PaymentAmount = decimal.Zero
		sess.PaymentMethod = ""
	}
	return nil
}

// UseSession fills the earliest open session of the package. When every
// contracted session is already used a new one is appended, which is how a
// package goes into overage.
func (s *Store) UseSession(packageID string, payload therapy.SessionUsePayload) (*therapy.TherapyPackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.lookup(packageID)
	if err != nil {
		return nil, err
	}

	var target *therapy.Session
	for _, sess := range p.Sessions {
		if sess.Status != therapy.SessionPending && sess.Status != therapy.SessionScheduled {
			continue
		}
		if target == nil || sess.Date.Before(target.Date) {
			target = sess
		}
	}
	if target == nil {
		target = &therapy.Session{
			ID:          s.newID(),
			PackageID:   p.ID,
			Date:        s.now(),
			DoctorID:    p.DoctorID,
			SessionType: p.SessionType,
			Status:      therapy.SessionPending,
		}
		p.Sessions = append(p.Sessions, target)
	}

	if err := s.applySession(p, target, payload); err != nil {
		return nil, err
	}
	s.settle(p)
	return clonePackage(p), nil
}

func (s *Store) EditSession(packageID, sessionID string, payload therapy.SessionUsePayload) (*therapy.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.lookup(packageID)
	if err != nil {
		return nil, err
	}
	sess := p.FindSession(sessionID)
	if sess == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if payload.Status == "" {
		payload.Status = sess.Status
	}
	if err := s.applySession(p, sess, payload); err != nil {
		return nil, err
	}
	s.settle(p)
	cp := *sess
	return &cp, nil
}

func (s *Store) Sessions(packageID string) ([]*therapy.Session, error) {
	p, err := s.GetPackage(packageID)
	if err != nil {
		return nil, err
	}
	return p.Sessions, nil
}

// ---------------------------------------------------------------------------
// Payments
// ---------------------------------------------------------------------------

// RegisterPayment appends a package payment. Covered sessions are marked paid.
// The amount is not capped, so a package can end up with credit.
func (s *Store) RegisterPayment(packageID string, in therapy.PaymentInput) (*therapy.Payment, error) {
	if !in.Amount.IsPositive() {
		return nil, badRequest("amount deve ser maior que zero")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.lookup(packageID)
	if err != nil {
		return nil, err
	}

	date := in.Date
	if date.IsZero() {
		date = s.now()
	}
	covered := append([]string{}, in.CoveredSessions...)
	pay := &therapy.Payment{
		ID:              s.newID(),
		PackageID:       p.ID,
		Amount:          in.Amount,
		Date:            date,
		Method:          in.Method,
		CoveredSessions: covered,
		Notes:           in.Notes,
		Status:          therapy.PaymentPaid,
	}
	p.Payments = append(p.Payments, pay)
	for _, id := range covered {
		if sess := p.FindSession(id); sess != nil {
			sess.IsPaid = true
		}
	}
	s.settle(p)
	cp := *pay
	return &cp, nil
}

func (s *Store) Payments(packageID string) ([]*therapy.Payment, error) {
	p, err := s.GetPackage(packageID)
	if err != nil {
		return nil, err
	}
	return p.Payments, nil
}

// ---------------------------------------------------------------------------
// Financial records
// ---------------------------------------------------------------------------

func (s *Store) AddRecord(r *financial.FinancialRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = s.newID()
	}
	s.records = append(s.records, r)
}

// RecordsByDate returns the standalone records dated on day, in day's location.
func (s *Store) RecordsByDate(day time.Time) []*financial.FinancialRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := day.Format(financial.DateLayout)
	out := []*financial.FinancialRecord{}
	for _, r := range s.records {
		if r.Date.In(day.Location()).Format(financial.DateLayout) == key {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}
