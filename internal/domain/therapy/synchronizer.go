package therapy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Confirmer asks the operator to confirm a destructive action on a package.
type Confirmer func(packageID string) bool

// Snapshot is the state of one package view at a point in time.
type Snapshot struct {
	PatientID string
	Filters   ListFilters
	Packages  []*TherapyPackage
	Total     int
	Loading   bool
	Busy      bool
	Err       error
}

// Synchronizer keeps one view's package list in step with the backend. After
// every successful mutation it re-fetches the whole list exactly once instead
// of patching local state. Only one mutation may be in flight at a time, and a
// fetch started later always wins over one started earlier.
type Synchronizer struct {
	repo   PackageRepository
	logger zerolog.Logger

	mu          sync.Mutex
	patientID   string
	filters     ListFilters
	packages    []*TherapyPackage
	total       int
	lastErr     error
	loading     bool
	busy        bool
	gen         uint64
	cancelFetch context.CancelFunc
}

func NewSynchronizer(repo PackageRepository, logger zerolog.Logger) *Synchronizer {
	return &Synchronizer{
		repo:     repo,
		logger:   logger.With().Str("component", "package_sync").Logger(),
		packages: []*TherapyPackage{},
	}
}

// FetchPackages replaces the local list with the backend's packages for
// patientID. A fetch still running is canceled; if its result arrives anyway it
// is discarded with ErrSuperseded. On failure the list is cleared and the error
// is kept for Snapshot.
func (s *Synchronizer) FetchPackages(ctx context.Context, patientID string, f ListFilters) ([]*TherapyPackage, error) {
	if patientID == "" {
		return nil, invalid("patientId", "paciente é obrigatório")
	}

	s.mu.Lock()
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.gen++
	gen := s.gen
	fctx, cancel := context.WithCancel(ctx)
	s.cancelFetch = cancel
	s.patientID = patientID
	s.filters = f
	s.loading = true
	s.mu.Unlock()

	s.logger.Debug().Str("patient_id", patientID).Uint64("generation", gen).Msg("fetching packages")
	list, err := s.repo.List(fctx, patientID, f)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		cancel()
		return nil, ErrSuperseded
	}
	cancel()
	s.cancelFetch = nil
	s.loading = false

	if err != nil {
		fe := &FetchError{PatientID: patientID, Err: err}
		s.packages = []*TherapyPackage{}
		s.total = 0
		s.lastErr = fe
		s.logger.Error().Err(err).Str("patient_id", patientID).Msg("package fetch failed")
		return nil, fe
	}

	s.packages = list.Data
	s.total = list.Total
	s.lastErr = nil
	return clonePackages(s.packages), nil
}

// SetView points the synchronizer at a patient's list without fetching it.
func (s *Synchronizer) SetView(patientID string, f ListFilters) {
	s.mu.Lock()
	s.patientID, s.filters = patientID, f
	s.mu.Unlock()
}

// Refresh re-fetches the current view. It is a no-op until a patient is set.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	patientID, f := s.patientID, s.filters
	s.mu.Unlock()
	if patientID == "" {
		return nil
	}
	_, err := s.FetchPackages(ctx, patientID, f)
	return err
}

// refreshAfter runs the single re-fetch that follows a successful mutation.
// Its failure is recorded in the snapshot but does not fail the mutation.
func (s *Synchronizer) refreshAfter(ctx context.Context, op string) {
	if err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		s.logger.Warn().Err(err).Str("op", op).Msg("refresh after mutation failed")
	}
}

func (s *Synchronizer) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	return nil
}

func (s *Synchronizer) end() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// CreatePackage validates and submits a new package. Errors are returned to
// the caller untouched so the form can decide how to show them.
func (s *Synchronizer) CreatePackage(ctx context.Context, in CreatePackageInput) (*TherapyPackage, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	created, err := s.repo.Create(ctx, in.Request())
	if err != nil {
		return nil, &SubmissionError{Op: "create package", Message: "falha ao criar pacote", Err: err}
	}
	s.logger.Info().Str("package_id", created.ID).Str("patient_id", in.PatientID).Msg("package created")

	s.mu.Lock()
	if s.patientID == "" {
		s.patientID = in.PatientID
	}
	s.mu.Unlock()
	s.refreshAfter(ctx, "create package")
	return created, nil
}

// UseOrEditSession records a session use or edits a recorded session of a
// package in the current list. The backend is not called when validation fails.
// It returns the package as re-fetched after the change.
func (s *Synchronizer) UseOrEditSession(ctx context.Context, packageID string, in SessionInput, mode Mode) (*TherapyPackage, error) {
	pkg := s.Package(packageID)
	if pkg == nil {
		return nil, invalid("packageId", "pacote não encontrado")
	}
	payload, err := PrepareSession(in, pkg, mode)
	if err != nil {
		return nil, err
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	var saved *TherapyPackage
	if mode == ModeEdit {
		if _, err := s.repo.EditSession(ctx, packageID, in.SessionID, payload); err != nil {
			return nil, &SubmissionError{Op: "edit session", Message: "falha ao atualizar sessão", Err: err}
		}
	} else {
		if saved, err = s.repo.UseSession(ctx, packageID, payload); err != nil {
			return nil, &SubmissionError{Op: "use session", Message: "falha ao registrar uso da sessão", Err: err}
		}
	}
	s.logger.Info().Str("package_id", packageID).Str("mode", string(mode)).Str("status", string(payload.Status)).Msg("session saved")

	s.refreshAfter(ctx, string(mode)+" session")
	if fresh := s.Package(packageID); fresh != nil {
		return fresh, nil
	}
	if saved != nil {
		Reconcile(saved)
	}
	return saved, nil
}

// DeletePackage deletes a package once confirm approves it.
func (s *Synchronizer) DeletePackage(ctx context.Context, packageID string, confirm Confirmer) error {
	if packageID == "" {
		return invalid("packageId", "pacote é obrigatório")
	}
	if confirm == nil || !confirm(packageID) {
		return ErrDeleteNotConfirmed
	}
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	if err := s.repo.Delete(ctx, packageID); err != nil {
		return &SubmissionError{Op: "delete package", Message: "falha ao excluir pacote", Err: err}
	}

	s.mu.Lock()
	kept := make([]*TherapyPackage, 0, len(s.packages))
	for _, p := range s.packages {
		if p.ID != packageID {
			kept = append(kept, p)
		}
	}
	if len(kept) < len(s.packages) && s.total > 0 {
		s.total--
	}
	s.packages = kept
	s.mu.Unlock()
	s.logger.Info().Str("package_id", packageID).Msg("package deleted")

	s.refreshAfter(ctx, "delete package")
	return nil
}

// RegisterPayment records a standalone package payment. Unlike session
// payments it may exceed the balance and leave the package in credit.
func (s *Synchronizer) RegisterPayment(ctx context.Context, packageID string, in PaymentInput) (*Payment, error) {
	if packageID == "" {
		return nil, invalid("packageId", "pacote é obrigatório")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	pay, err := s.repo.RegisterPayment(ctx, packageID, in)
	if err != nil {
		return nil, &SubmissionError{Op: "register payment", Message: "falha ao registrar pagamento", Err: err}
	}
	s.logger.Info().Str("package_id", packageID).Str("amount", in.Amount.StringFixed(2)).Msg("payment registered")

	s.refreshAfter(ctx, "register payment")
	return pay, nil
}

// UpdatePackage changes package metadata.
func (s *Synchronizer) UpdatePackage(ctx context.Context, packageID string, patch PackageUpdate) (*TherapyPackage, error) {
	if packageID == "" {
		return nil, invalid("packageId", "pacote é obrigatório")
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.end()

	updated, err := s.repo.Update(ctx, packageID, patch)
	if err != nil {
		return nil, &SubmissionError{Op: "update package", Message: "falha ao atualizar pacote", Err: err}
	}

	s.refreshAfter(ctx, "update package")
	return updated, nil
}

func (s *Synchronizer) ListSessions(ctx context.Context, packageID string) ([]*Session, error) {
	sessions, err := s.repo.ListSessions(ctx, packageID)
	if err != nil {
		return nil, fmt.Errorf("list sessions of package %s: %w", packageID, err)
	}
	return sessions, nil
}

func (s *Synchronizer) ListPayments(ctx context.Context, packageID string) ([]*Payment, error) {
	payments, err := s.repo.ListPayments(ctx, packageID)
	if err != nil {
		return nil, fmt.Errorf("list payments of package %s: %w", packageID, err)
	}
	return payments, nil
}

// Package returns a copy of the package with the given id from the current list.
func (s *Synchronizer) Package(id string) *TherapyPackage {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.packages {
		if p.ID == id {
			cp := *p
			return &cp
		}
	}
	return nil
}

func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		PatientID: s.patientID,
		Filters:   s.filters,
		Packages:  clonePackages(s.packages),
		Total:     s.total,
		Loading:   s.loading,
		Busy:      s.busy,
		Err:       s.lastErr,
	}
}

func clonePackages(in []*TherapyPackage) []*TherapyPackage {
	out := make([]*TherapyPackage, len(in))
	for i, p := range in {
		cp := *p
		out[i] = &cp
	}
	return out
}
