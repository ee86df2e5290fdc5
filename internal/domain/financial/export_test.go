package financial

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestWriteXLSX(t *testing.T) {
	c := BuildClosing(closingDay, sampleRecords())

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(recordsSheet)
	if err != nil {
		t.Fatalf("read records: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("expected header plus 5 records, got %d rows", len(rows))
	}
	if rows[0][0] != "Horário" || rows[1][0] != "09:00" || rows[1][1] != "pat-1" {
		t.Errorf("unexpected first rows %v / %v", rows[0], rows[1])
	}
	if rows[1][4] != "Psicologia" {
		t.Errorf("expected specialty label, got %q", rows[1][4])
	}

	raw, err := f.GetCellValue(recordsSheet, "G2", excelize.Options{RawCellValue: true})
	if err != nil || raw != "100" {
		t.Errorf("expected numeric amount 100, got %q (%v)", raw, err)
	}

	total, err := f.GetCellValue(summarySheet, "B2", excelize.Options{RawCellValue: true})
	if err != nil || total != "350" {
		t.Errorf("expected total 350, got %q (%v)", total, err)
	}
}

func TestSaveXLSX(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	c := BuildClosing(closingDay, sampleRecords())

	path, err := SaveXLSX(dir, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "fechamento_2024-03-04.xlsx" {
		t.Errorf("unexpected file name %s", path)
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Errorf("expected a non-empty file, got %v, %v", info, err)
	}
}
