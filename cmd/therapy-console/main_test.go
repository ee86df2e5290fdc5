package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/clinic/therapy/internal/domain/financial"
	"github.com/clinic/therapy/internal/domain/therapy"
)

func pkg(id string, done, total int, value, paid int64) *therapy.TherapyPackage {
	return &therapy.TherapyPackage{
		ID:            id,
		SessionType:   therapy.SessionPsychology,
		Status:        therapy.PackageActive,
		TotalSessions: total,
		SessionsDone:  done,
		TotalValue:    decimal.NewFromInt(value),
		TotalPaid:     decimal.NewFromInt(paid),
	}
}

func TestWritePackages(t *testing.T) {
	var buf bytes.Buffer
	err := writePackages(&buf, []*therapy.TherapyPackage{
		pkg("pkg-open", 2, 8, 800, 400),
		pkg("pkg-credit", 1, 4, 400, 500),
		pkg("pkg-extra", 5, 4, 400, 400),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d:\n%s", len(lines), out)
	}
	for _, want := range []string{"2/8", "R$ 400,00", "crédito R$ 100,00", "(+1 extra)", "25%"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	s := therapy.Summarize([]*therapy.TherapyPackage{pkg("a", 2, 8, 800, 400), pkg("b", 1, 4, 400, 500)})
	if err := writeSummary(&buf, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"2 (ativos 2", "R$ 400,00", "R$ 100,00", "3 realizadas, 9 restantes"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestWriteClosing(t *testing.T) {
	var buf bytes.Buffer
	c := &financial.DailyClosing{
		Date:     "2024-03-04",
		Count:    3,
		Canceled: 1,
		Total:    decimal.NewFromInt(250),
		Pending:  decimal.Zero,
		ByMethod: []financial.MethodTotal{{Method: therapy.PaymentPix, Count: 2, Total: decimal.NewFromInt(250)}},
	}
	if err := writeClosing(&buf, c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"2024-03-04", "3 (1 cancelados)", "R$ 250,00", "pix"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}
