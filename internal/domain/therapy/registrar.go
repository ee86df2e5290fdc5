package therapy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clinic/therapy/pkg/money"
)

// Mode selects between registering a session use and editing a recorded session.
type Mode string

const (
	ModeUse  Mode = "use"
	ModeEdit Mode = "edit"
)

func (m Mode) Valid() bool {
	return m == ModeUse || m == ModeEdit
}

// SessionInput is what the operator filled in the session modal.
type SessionInput struct {
	SessionID        string          `json:"sessionId,omitempty"`
	Date             time.Time       `json:"date"`
	DoctorID         string          `json:"doctorId"`
	Status           SessionStatus   `json:"status"`
	Notes            string          `json:"notes,omitempty"`
	ConfirmedAbsence *bool           `json:"confirmedAbsence,omitempty"`
	PaymentAmount    decimal.Decimal `json:"paymentAmount"`
	PaymentMethod    PaymentMethod   `json:"paymentMethod,omitempty"`
}

// SessionPayment is the normalized payment attached to a session submission.
type SessionPayment struct {
	Amount decimal.Decimal `json:"amount"`
	Method PaymentMethod   `json:"method"`
}

// SessionUsePayload is the body sent to the use-session and edit-session calls.
type SessionUsePayload struct {
	PackageID        string          `json:"packageId"`
	SessionID        string          `json:"sessionId,omitempty"`
	SessionType      SessionType     `json:"sessionType"`
	DoctorID         string          `json:"doctorId"`
	Date             time.Time       `json:"date"`
	Status           SessionStatus   `json:"status"`
	Notes            string          `json:"notes,omitempty"`
	ConfirmedAbsence *bool           `json:"confirmedAbsence"`
	Payment          *SessionPayment `json:"payment,omitempty"`
}

// ValidatePayment rejects a session payment that is not positive or that
// exceeds what the package still owes. Overpayment is only possible through
// package-level payment registration.
func ValidatePayment(amount, balance decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid("paymentAmount", "o valor do pagamento deve ser maior que zero")
	}
	if amount.GreaterThan(balance) {
		return invalid("paymentAmount", fmt.Sprintf(
			"o valor do pagamento (%s) excede o saldo devedor do pacote (%s)",
			money.Format(amount), money.Format(balance)))
	}
	return nil
}

// BuildSessionPayload merges the operator's input with what the session
// inherits from its package. confirmedAbsence only survives on canceled
// sessions; an empty status means the session's initial state, pending.
func BuildSessionPayload(in SessionInput, pkg *TherapyPackage) (SessionUsePayload, error) {
	if pkg == nil || pkg.ID == "" {
		return SessionUsePayload{}, invalid("packageId", "pacote é obrigatório")
	}

	status := in.Status
	if status == "" {
		status = SessionPending
	}
	if !status.Valid() {
		return SessionUsePayload{}, invalid("status", fmt.Sprintf("status de sessão inválido: %q", in.Status))
	}
	if in.DoctorID == "" {
		return SessionUsePayload{}, invalid("doctorId", "profissional é obrigatório")
	}
	if in.Date.IsZero() {
		return SessionUsePayload{}, invalid("date", "data da sessão é obrigatória")
	}

	payload := SessionUsePayload{
		PackageID:   pkg.ID,
		SessionID:   in.SessionID,
		SessionType: pkg.SessionType,
		DoctorID:    in.DoctorID,
		Date:        in.Date,
		Status:      status,
		Notes:       in.Notes,
	}
	if status == SessionCanceled && in.ConfirmedAbsence != nil {
		v := *in.ConfirmedAbsence
		payload.ConfirmedAbsence = &v
	}

	if !in.PaymentAmount.IsZero() {
		if !in.PaymentMethod.Valid() {
			return SessionUsePayload{}, invalid("paymentMethod", fmt.Sprintf("forma de pagamento inválida: %q", in.PaymentMethod))
		}
		payload.Payment = &SessionPayment{Amount: in.PaymentAmount, Method: in.PaymentMethod}
	}
	return payload, nil
}

// PrepareSession validates a use or edit request against the package as last
// fetched and returns the payload to submit.
//
// Registering a use with no status means the session happened, so it defaults
// to completed. When editing, the payment already recorded on that session is
// given back to the available balance so an unchanged payment can be re-saved.
func PrepareSession(in SessionInput, pkg *TherapyPackage, mode Mode) (SessionUsePayload, error) {
	if !mode.Valid() {
		return SessionUsePayload{}, invalid("mode", fmt.Sprintf("modo inválido: %q", mode))
	}
	if mode == ModeEdit && in.SessionID == "" {
		return SessionUsePayload{}, invalid("sessionId", "sessão é obrigatória para edição")
	}
	if mode == ModeUse && in.Status == "" {
		in.Status = SessionCompleted
	}

	payload, err := BuildSessionPayload(in, pkg)
	if err != nil {
		return SessionUsePayload{}, err
	}

	if payload.Payment != nil {
		available := ComputeBalance(pkg).Balance
		if mode == ModeEdit {
			if s := pkg.FindSession(in.SessionID); s != nil && s.IsPaid {
				available = available.Add(s.PaymentAmount)
			}
		}
		if err := ValidatePayment(payload.Payment.Amount, available); err != nil {
			return SessionUsePayload{}, err
		}
	}
	return payload, nil
}
