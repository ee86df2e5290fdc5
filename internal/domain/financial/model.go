package financial

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/clinic/therapy/internal/domain/therapy"
)

// FinancialRecord is a payment not tied to a package, such as a single
// evaluation or an individual session.
type FinancialRecord struct {
	ID          string                `json:"id"`
	PatientID   string                `json:"patientId"`
	PatientName string                `json:"patientName,omitempty"`
	DoctorID    string                `json:"doctorId"`
	DoctorName  string                `json:"doctorName,omitempty"`
	ServiceType string                `json:"serviceType"`
	Specialty   therapy.SessionType   `json:"specialty,omitempty"`
	Amount      decimal.Decimal       `json:"amount"`
	Date        time.Time             `json:"date"`
	Method      therapy.PaymentMethod `json:"method"`
	Status      therapy.PaymentStatus `json:"status"`
	Notes       string                `json:"notes,omitempty"`
}

// DateLayout is the wire format of a closing day.
const DateLayout = "2006-01-02"
