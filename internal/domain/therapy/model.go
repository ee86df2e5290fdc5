package therapy

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionType is the therapy discipline a package is contracted for.
type SessionType string

const (
	SessionSpeechTherapy       SessionType = "fonoaudiologia"
	SessionOccupationalTherapy SessionType = "terapia_ocupacional"
	SessionPsychology          SessionType = "psicologia"
	SessionPhysiotherapy       SessionType = "fisioterapia"
)

var sessionTypeLabels = map[SessionType]string{
	SessionSpeechTherapy:       "Fonoaudiologia",
	SessionOccupationalTherapy: "Terapia Ocupacional",
	SessionPsychology:          "Psicologia",
	SessionPhysiotherapy:       "Fisioterapia",
}

func (t SessionType) Valid() bool {
	_, ok := sessionTypeLabels[t]
	return ok
}

func (t SessionType) Label() string {
	if l, ok := sessionTypeLabels[t]; ok {
		return l
	}
	return string(t)
}

type PackageStatus string

const (
	PackageActive    PackageStatus = "active"
	PackagePending   PackageStatus = "pending"
	PackageCompleted PackageStatus = "completed"
)

func (s PackageStatus) Valid() bool {
	switch s {
	case PackageActive, PackagePending, PackageCompleted:
		return true
	}
	return false
}

// SessionStatus is the lifecycle state of one session. The edit flow allows
// any state to move to any other; the backend decides legality.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionScheduled SessionStatus = "scheduled"
	SessionCompleted SessionStatus = "completed"
	SessionCanceled  SessionStatus = "canceled"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionPending, SessionScheduled, SessionCompleted, SessionCanceled:
		return true
	}
	return false
}

// Terminal reports whether the status ends the session from the client's view.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCanceled
}

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "dinheiro"
	PaymentPix  PaymentMethod = "pix"
	PaymentCard PaymentMethod = "cartão"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentPix, PaymentCard:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentCanceled PaymentStatus = "canceled"
)

// TherapyPackage is a contracted bundle of sessions. Sessions and Payments are
// embedded when the backend sends them.
type TherapyPackage struct {
	ID            string          `json:"id"`
	PatientID     string          `json:"patientId"`
	DoctorID      string          `json:"doctorId"`
	SessionType   SessionType     `json:"sessionType"`
	TotalSessions int             `json:"totalSessions"`
	SessionValue  decimal.Decimal `json:"sessionValue"`
	TotalValue    decimal.Decimal `json:"totalValue"`
	TotalPaid     decimal.Decimal `json:"totalPaid"`
	SessionsDone  int             `json:"sessionsDone"`
	Status        PackageStatus   `json:"status"`
	Sessions      []*Session      `json:"sessions,omitempty"`
	Payments      []*Payment      `json:"payments,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Session belongs to exactly one package.
type Session struct {
	ID               string          `json:"id"`
	PackageID        string          `json:"packageId"`
	Date             time.Time       `json:"date"`
	DoctorID         string          `json:"doctorId"`
	SessionType      SessionType     `json:"sessionType"`
	Status           SessionStatus   `json:"status"`
	IsPaid           bool            `json:"isPaid"`
	PaymentAmount    decimal.Decimal `json:"paymentAmount"`
	PaymentMethod    PaymentMethod   `json:"paymentMethod,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	ConfirmedAbsence *bool           `json:"confirmedAbsence,omitempty"`
}

// Payment is one entry of a package's append-only payment log.
type Payment struct {
	ID              string          `json:"id"`
	PackageID       string          `json:"packageId"`
	Amount          decimal.Decimal `json:"amount"`
	Date            time.Time       `json:"date"`
	Method          PaymentMethod   `json:"method"`
	CoveredSessions []string        `json:"coveredSessions"`
	Notes           string          `json:"notes,omitempty"`
	Status          PaymentStatus   `json:"status"`
}

// Reconcile recomputes SessionsDone and TotalPaid from the embedded session and
// payment lists. Counters the backend sent are kept when a list is absent.
func Reconcile(p *TherapyPackage) {
	if len(p.Sessions) > 0 {
		done := 0
		for _, s := range p.Sessions {
			if s.Status == SessionCompleted {
				done++
			}
		}
		p.SessionsDone = done
	}
	if len(p.Payments) > 0 {
		paid := decimal.Zero
		for _, pay := range p.Payments {
			if pay.Status == PaymentCanceled {
				continue
			}
			paid = paid.Add(pay.Amount)
		}
		p.TotalPaid = paid
	}
}

// FindSession returns the embedded session with the given id, or nil.
func (p *TherapyPackage) FindSession(id string) *Session {
	for _, s := range p.Sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}
