package therapy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clinic/therapy/pkg/money"
)

const (
	MinDurationMonths  = 1
	MaxDurationMonths  = 12
	MinSessionsPerWeek = 1
	MaxSessionsPerWeek = 5
	weeksPerMonth      = 4
)

// PaymentType records how a package was contracted. Either way the package
// must be paid in full when it is created.
type PaymentType string

const (
	PaymentTypeFull    PaymentType = "integral"
	PaymentTypeAdvance PaymentType = "antecipado"
)

func (t PaymentType) Valid() bool {
	return t == PaymentTypeFull || t == PaymentTypeAdvance
}

// TotalSessionsFor is the number of sessions contracted for a duration and
// weekly frequency.
func TotalSessionsFor(durationMonths, sessionsPerWeek int) int {
	return durationMonths * weeksPerMonth * sessionsPerWeek
}

// CreatePackageInput is the new-package form.
type CreatePackageInput struct {
	PatientID       string          `json:"patientId"`
	DoctorID        string          `json:"doctorId"`
	SessionType     SessionType     `json:"sessionType"`
	FirstSessionAt  time.Time       `json:"firstSessionAt"`
	SessionValue    decimal.Decimal `json:"sessionValue"`
	PaymentType     PaymentType     `json:"paymentType"`
	AmountPaid      decimal.Decimal `json:"amountPaid"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	DurationMonths  int             `json:"durationMonths"`
	SessionsPerWeek int             `json:"sessionsPerWeek"`
	Notes           string          `json:"notes,omitempty"`
}

func (in CreatePackageInput) TotalSessions() int {
	return TotalSessionsFor(in.DurationMonths, in.SessionsPerWeek)
}

func (in CreatePackageInput) TotalValue() decimal.Decimal {
	return in.SessionValue.Mul(decimal.NewFromInt(int64(in.TotalSessions())))
}

// Validate enforces the form rules, including payment in full at contracting time.
func (in CreatePackageInput) Validate() error {
	if in.PatientID == "" {
		return invalid("patientId", "paciente é obrigatório")
	}
	if in.DoctorID == "" {
		return invalid("doctorId", "profissional é obrigatório")
	}
	if !in.SessionType.Valid() {
		return invalid("sessionType", fmt.Sprintf("tipo de sessão inválido: %q", in.SessionType))
	}
	if in.FirstSessionAt.IsZero() {
		return invalid("firstSessionAt", "data e hora da primeira sessão são obrigatórias")
	}
	if !in.SessionValue.IsPositive() {
		return invalid("sessionValue", "o valor da sessão deve ser maior que zero")
	}
	if !in.PaymentType.Valid() {
		return invalid("paymentType", fmt.Sprintf("tipo de pagamento inválido: %q", in.PaymentType))
	}
	if !in.PaymentMethod.Valid() {
		return invalid("paymentMethod", fmt.Sprintf("forma de pagamento inválida: %q", in.PaymentMethod))
	}
	if in.DurationMonths < MinDurationMonths || in.DurationMonths > MaxDurationMonths {
		return invalid("durationMonths", fmt.Sprintf("a duração deve estar entre %d e %d meses", MinDurationMonths, MaxDurationMonths))
	}
	if in.SessionsPerWeek < MinSessionsPerWeek || in.SessionsPerWeek > MaxSessionsPerWeek {
		return invalid("sessionsPerWeek", fmt.Sprintf("a frequência deve estar entre %d e %d sessões por semana", MinSessionsPerWeek, MaxSessionsPerWeek))
	}
	if total := in.TotalValue(); in.AmountPaid.LessThan(total) {
		return invalid("amountPaid", fmt.Sprintf(
			"o pacote deve ser pago integralmente na contratação: pago %s de %s",
			money.Format(in.AmountPaid), money.Format(total)))
	}
	return nil
}

// CreatePackageRequest is the body of POST /packages.
type CreatePackageRequest struct {
	PatientID       string          `json:"patientId"`
	DoctorID        string          `json:"doctorId"`
	SessionType     SessionType     `json:"sessionType"`
	FirstSessionAt  time.Time       `json:"firstSessionAt"`
	SessionValue    decimal.Decimal `json:"sessionValue"`
	TotalSessions   int             `json:"totalSessions"`
	TotalValue      decimal.Decimal `json:"totalValue"`
	PaymentType     PaymentType     `json:"paymentType"`
	AmountPaid      decimal.Decimal `json:"amountPaid"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	DurationMonths  int             `json:"durationMonths"`
	SessionsPerWeek int             `json:"sessionsPerWeek"`
	Notes           string          `json:"notes,omitempty"`
}

func (in CreatePackageInput) Request() CreatePackageRequest {
	return CreatePackageRequest{
		PatientID:       in.PatientID,
		DoctorID:        in.DoctorID,
		SessionType:     in.SessionType,
		FirstSessionAt:  in.FirstSessionAt,
		SessionValue:    in.SessionValue,
		TotalSessions:   in.TotalSessions(),
		TotalValue:      in.TotalValue(),
		PaymentType:     in.PaymentType,
		AmountPaid:      in.AmountPaid,
		PaymentMethod:   in.PaymentMethod,
		DurationMonths:  in.DurationMonths,
		SessionsPerWeek: in.SessionsPerWeek,
		Notes:           in.Notes,
	}
}

// PackageUpdate is the body of PATCH /packages/:id. Nil fields are unchanged.
type PackageUpdate struct {
	TotalSessions *int             `json:"totalSessions,omitempty"`
	SessionType   *SessionType     `json:"sessionType,omitempty"`
	SessionValue  *decimal.Decimal `json:"sessionValue,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
}

func (u PackageUpdate) Validate() error {
	if u.TotalSessions == nil && u.SessionType == nil && u.SessionValue == nil && u.Notes == nil {
		return invalid("", "nenhuma alteração informada")
	}
	if u.TotalSessions != nil && *u.TotalSessions < 1 {
		return invalid("totalSessions", "o pacote deve ter ao menos uma sessão")
	}
	if u.SessionType != nil && !u.SessionType.Valid() {
		return invalid("sessionType", fmt.Sprintf("tipo de sessão inválido: %q", *u.SessionType))
	}
	if u.SessionValue != nil && !u.SessionValue.IsPositive() {
		return invalid("sessionValue", "o valor da sessão deve ser maior que zero")
	}
	return nil
}

// PaymentInput registers a standalone payment against a package. Unlike a
// session payment it may exceed the balance; the excess becomes credit.
type PaymentInput struct {
	Amount          decimal.Decimal `json:"amount"`
	Date            time.Time       `json:"date"`
	Method          PaymentMethod   `json:"method"`
	CoveredSessions []string        `json:"coveredSessions"`
	Notes           string          `json:"notes,omitempty"`
}

func (in PaymentInput) Validate() error {
	if !in.Amount.IsPositive() {
		return invalid("amount", "o valor do pagamento deve ser maior que zero")
	}
	if !in.Method.Valid() {
		return invalid("method", fmt.Sprintf("forma de pagamento inválida: %q", in.Method))
	}
	return nil
}
