package financial

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/therapy/internal/platform/apiclient"
)

type mockRepo struct {
	records []*FinancialRecord
	err     error
	asked   time.Time
}

func (m *mockRepo) ListByDate(_ context.Context, day time.Time) ([]*FinancialRecord, error) {
	m.asked = day
	if m.err != nil {
		return nil, m.err
	}
	return m.records, nil
}

func newTestHandler(repo *mockRepo) (*Handler, *echo.Echo) {
	h := NewHandler(NewService(repo, zerolog.Nop()))
	h.now = func() time.Time { return time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC) }
	return h, echo.New()
}

func TestHandler_GetClosing(t *testing.T) {
	repo := &mockRepo{records: sampleRecords()}
	h, e := newTestHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/?date=2024-03-04", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.GetClosing(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body DailyClosing
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Date != "2024-03-04" || body.Count != 3 || !body.Total.Equal(dec("350")) {
		t.Errorf("unexpected closing %+v", body)
	}
}

func TestHandler_GetClosing_DefaultsToToday(t *testing.T) {
	repo := &mockRepo{}
	h, e := newTestHandler(repo)
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	if err := h.GetClosing(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.asked.Format(DateLayout) != "2024-03-04" {
		t.Errorf("expected today, got %v", repo.asked)
	}
}

func TestHandler_GetClosing_InvalidDate(t *testing.T) {
	h, e := newTestHandler(&mockRepo{})
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?date=ontem", nil), httptest.NewRecorder())

	httpErr, ok := h.GetClosing(c).(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", httpErr)
	}
}

func TestHandler_GetClosing_BackendErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"unauthorized", &apiclient.Error{StatusCode: http.StatusUnauthorized}, http.StatusUnauthorized},
		{"backend failure", &apiclient.Error{StatusCode: http.StatusInternalServerError}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, e := newTestHandler(&mockRepo{err: tt.err})
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

			httpErr, ok := h.GetClosing(c).(*echo.HTTPError)
			if !ok || httpErr.Code != tt.code {
				t.Fatalf("expected %d, got %v", tt.code, httpErr)
			}
		})
	}
}

func TestHandler_ExportClosing(t *testing.T) {
	h, e := newTestHandler(&mockRepo{records: sampleRecords()})
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?date=2024-03-04", nil), rec)

	if err := h.ExportClosing(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != XLSXContentType {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); cd != `attachment; filename="fechamento_2024-03-04.xlsx"` {
		t.Errorf("unexpected content disposition %q", cd)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected workbook bytes")
	}
}

func TestRepoHTTP_ListByDate(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Write([]byte(`[{"id":"r-1","amount":120.5,"method":"pix","status":"paid"}]`))
	}))
	defer srv.Close()

	records, err := NewRepoHTTP(apiclient.New(srv.URL)).ListByDate(context.Background(), closingDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/financial-records" || gotQuery != "date=2024-03-04" {
		t.Errorf("unexpected request %s?%s", gotPath, gotQuery)
	}
	if len(records) != 1 || !records[0].Amount.Equal(dec("120.5")) {
		t.Errorf("unexpected records %+v", records)
	}
}
