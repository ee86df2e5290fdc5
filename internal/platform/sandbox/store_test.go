package sandbox

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clinic/therapy/internal/domain/financial"
	"github.com/clinic/therapy/internal/domain/therapy"
	"github.com/clinic/therapy/pkg/pagination"
)

var testNow = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestStore() *Store {
	s := NewStore()
	n := 0
	s.newID = func() string { n++; return fmt.Sprintf("id-%d", n) }
	s.now = func() time.Time { return testNow }
	return s
}

func createRequest() therapy.CreatePackageRequest {
	return therapy.CreatePackageRequest{
		PatientID:       "pat-1",
		DoctorID:        "doc-1",
		SessionType:     therapy.SessionPhysiotherapy,
		FirstSessionAt:  testNow,
		SessionValue:    dec("100"),
		TotalSessions:   8,
		PaymentType:     therapy.PaymentTypeFull,
		AmountPaid:      dec("800"),
		PaymentMethod:   therapy.PaymentPix,
		DurationMonths:  1,
		SessionsPerWeek: 2,
	}
}

func TestStore_CreatePackage(t *testing.T) {
	s := newTestStore()
	p, err := s.CreatePackage(createRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(p.Sessions) != 8 {
		t.Fatalf("expected 8 sessions, got %d", len(p.Sessions))
	}
	if gap := p.Sessions[1].Date.Sub(p.Sessions[0].Date); gap != 84*time.Hour {
		t.Errorf("expected sessions 3.5 days apart, got %v", gap)
	}
	for _, sess := range p.Sessions {
		if sess.Status != therapy.SessionPending {
			t.Fatalf("expected pending sessions, got %s", sess.Status)
		}
	}
	if len(p.Payments) != 1 || !p.TotalPaid.Equal(dec("800")) || !p.TotalValue.Equal(dec("800")) {
		t.Errorf("unexpected money state paid=%s value=%s", p.TotalPaid, p.TotalValue)
	}
	if p.Status != therapy.PackageActive {
		t.Errorf("expected active, got %s", p.Status)
	}
}

func TestStore_CreatePackage_Invalid(t *testing.T) {
	s := newTestStore()
	req := createRequest()
	req.PatientID = ""
	if _, err := s.CreatePackage(req); !errors.Is(err, ErrBadRequest) {
		t.Errorf("expected ErrBadRequest, got %v", err)
	}

	req = createRequest()
	req.SessionValue = dec("0")
	if _, err := s.CreatePackage(req); !errors.Is(err, ErrBadRequest) {
		t.Errorf("expected ErrBadRequest, got %v", err)
	}
}

func TestStore_UseSessionFillsEarliestThenOverflows(t *testing.T) {
	s := newTestStore()
	req := createRequest()
	req.TotalSessions = 2
	req.AmountPaid = dec("200")
	p, _ := s.CreatePackage(req)

	use := therapy.SessionUsePayload{DoctorID: "doc-2", Date: testNow}
	for i := 0; i < 3; i++ {
		var err error
		if p, err = s.UseSession(p.ID, use); err != nil {
			t.Fatalf("use %d: %v", i, err)
		}
	}

	if len(p.Sessions) != 3 {
		t.Fatalf("expected an extra session, got %d", len(p.Sessions))
	}
	if p.SessionsDone != 3 {
		t.Errorf("expected 3 done, got %d", p.SessionsDone)
	}
	if p.Status != therapy.PackageCompleted {
		t.Errorf("expected completed, got %s", p.Status)
	}
	summary := therapy.ComputeBalance(p)
	if !summary.HasOverage || summary.Remaining != -1 {
		t.Errorf("expected overage of one, got %+v", summary)
	}
}

func TestStore_UseSessionWithPayment(t *testing.T) {
	s := newTestStore()
	req := createRequest()
	req.AmountPaid = dec("300")
	p, _ := s.CreatePackage(req)

	payload := therapy.SessionUsePayload{
		Status:  therapy.SessionCompleted,
		Payment: &therapy.SessionPayment{Amount: dec("100"), Method: therapy.PaymentCash},
	}
	p, err := s.UseSession(p.ID, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.TotalPaid.Equal(dec("400")) || len(p.Payments) != 2 {
		t.Errorf("expected session payment recorded, got paid=%s payments=%d", p.TotalPaid, len(p.Payments))
	}
	first := p.Sessions[0]
	if !first.IsPaid || !first.PaymentAmount.Equal(dec("100")) {
		t.Errorf("expected first session paid, got %+v", first)
	}
	if p.Status != therapy.PackagePending {
		t.Errorf("expected pending while balance is open, got %s", p.Status)
	}
}

func TestStore_EditSession(t *testing.T) {
	s := newTestStore()
	p, _ := s.CreatePackage(createRequest())
	p, _ = s.UseSession(p.ID, therapy.SessionUsePayload{
		Payment: &therapy.SessionPayment{Amount: dec("50"), Method: therapy.PaymentPix},
	})
	sessionID := p.Sessions[0].ID

	confirmed := true
	sess, err := s.EditSession(p.ID, sessionID, therapy.SessionUsePayload{
		Status:           therapy.SessionCanceled,
		ConfirmedAbsence: &confirmed,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Status != therapy.SessionCanceled || sess.ConfirmedAbsence == nil || !*sess.ConfirmedAbsence {
		t.Errorf("unexpected session %+v", sess)
	}
	if sess.IsPaid {
		t.Error("expected the session payment to be removed")
	}

	p, _ = s.GetPackage(p.ID)
	if p.SessionsDone != 0 {
		t.Errorf("expected no completed sessions, got %d", p.SessionsDone)
	}
	if !p.TotalPaid.Equal(dec("800")) {
		t.Errorf("canceled payment must not count, got %s", p.TotalPaid)
	}

	// Back to completed keeps confirmedAbsence unset.
	sess, _ = s.EditSession(p.ID, sessionID, therapy.SessionUsePayload{Status: therapy.SessionCompleted, ConfirmedAbsence: &confirmed})
	if sess.ConfirmedAbsence != nil {
		t.Error("confirmedAbsence must be unset on completed sessions")
	}

	if _, err := s.EditSession(p.ID, "nope", therapy.SessionUsePayload{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_RegisterPaymentCreatesCredit(t *testing.T) {
	s := newTestStore()
	p, _ := s.CreatePackage(createRequest())

	pay, err := s.RegisterPayment(p.ID, therapy.PaymentInput{
		Amount:          dec("150"),
		Method:          therapy.PaymentCard,
		CoveredSessions: []string{p.Sessions[0].ID},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pay.Status != therapy.PaymentPaid {
		t.Errorf("expected paid, got %s", pay.Status)
	}

	p, _ = s.GetPackage(p.ID)
	if !therapy.ComputeBalance(p).Balance.Equal(dec("-150")) {
		t.Errorf("expected credit of 150, got %s", therapy.ComputeBalance(p).Balance)
	}
	if !p.Sessions[0].IsPaid {
		t.Error("expected covered session to be paid")
	}
}

func TestStore_ListPackages(t *testing.T) {
	s := newTestStore()
	for i := 0; i < 3; i++ {
		s.CreatePackage(createRequest())
	}
	other := createRequest()
	other.PatientID = "pat-2"
	s.CreatePackage(other)

	list, err := s.ListPackages("pat-1", therapy.ListFilters{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.Total != 3 || len(list.Data) != 2 {
		t.Errorf("expected page of 2 out of 3, got %d/%d", len(list.Data), list.Total)
	}

	list, _ = s.ListPackages("pat-1", therapy.ListFilters{Status: therapy.PackageCompleted})
	if list.Total != 0 {
		t.Errorf("expected no completed packages, got %d", list.Total)
	}

	if _, err := s.ListPackages("", therapy.ListFilters{}); !errors.Is(err, ErrBadRequest) {
		t.Errorf("expected ErrBadRequest, got %v", err)
	}
}

func TestStore_ListPackagesHugePage(t *testing.T) {
	s := newTestStore()
	for i := 0; i < 3; i++ {
		s.CreatePackage(createRequest())
	}

	for _, page := range []int{922337203685477581, 1<<62 + 1} {
		list, err := s.ListPackages("pat-1", therapy.ListFilters{Page: page, Limit: 20})
		if err != nil {
			t.Fatalf("page %d: unexpected error: %v", page, err)
		}
		if len(list.Data) != 0 {
			t.Errorf("page %d: expected an empty page, got %d packages", page, len(list.Data))
		}
		if list.Total != 3 || list.Page != pagination.MaxPage {
			t.Errorf("page %d: got total=%d page=%d", page, list.Total, list.Page)
		}
	}
}

func TestStore_UpdateAndDelete(t *testing.T) {
	s := newTestStore()
	p, _ := s.CreatePackage(createRequest())

	ten := 10
	value := dec("90")
	p, err := s.UpdatePackage(p.ID, therapy.PackageUpdate{TotalSessions: &ten, SessionValue: &value})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Sessions) != 10 || !p.TotalValue.Equal(dec("900")) {
		t.Errorf("unexpected package after update: sessions=%d value=%s", len(p.Sessions), p.TotalValue)
	}
	if p.Status != therapy.PackagePending {
		t.Errorf("expected pending with 100 owed, got %s", p.Status)
	}

	if err := s.DeletePackage(p.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.GetPackage(p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeletePackage(p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestStore_RecordsByDate(t *testing.T) {
	s := newTestStore()
	s.AddRecord(&financial.FinancialRecord{Amount: dec("10"), Date: testNow})
	s.AddRecord(&financial.FinancialRecord{Amount: dec("20"), Date: testNow.AddDate(0, 0, -1)})

	records := s.RecordsByDate(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))
	if len(records) != 1 || !records[0].Amount.Equal(dec("10")) {
		t.Errorf("unexpected records %+v", records)
	}
	if records[0].ID == "" {
		t.Error("expected an id to be assigned")
	}
}
