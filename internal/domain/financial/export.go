package financial

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/clinic/therapy/internal/domain/therapy"
)

const (
	recordsSheet = "Fechamento"
	summarySheet = "Resumo"
	moneyFormat  = `"R$" #,##0.00`

	// XLSXContentType is the MIME type of an exported closing.
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var statusLabels = map[therapy.PaymentStatus]string{
	therapy.PaymentPaid:     "Pago",
	therapy.PaymentPending:  "Pendente",
	therapy.PaymentCanceled: "Cancelado",
}

// FileName is the download name of the closing of c.Date.
func FileName(c *DailyClosing) string {
	return fmt.Sprintf("fechamento_%s.xlsx", c.Date)
}

// WriteXLSX renders the closing as a workbook with the records on one sheet
// and the totals per payment method and service on another.
func WriteXLSX(w io.Writer, c *DailyClosing) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", recordsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	moneyFmt := moneyFormat
	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})
	if err != nil {
		return fmt.Errorf("money style: %w", err)
	}

	if err := writeRecords(f, c, header, money); err != nil {
		return err
	}
	if err := writeSummary(f, c, header, money); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func writeRecords(f *excelize.File, c *DailyClosing, header, money int) error {
	headers := []interface{}{"Horário", "Paciente", "Profissional", "Serviço", "Especialidade", "Forma de pagamento", "Valor", "Status", "Observações"}
	if err := writeRow(f, recordsSheet, 1, headers...); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellStyle(recordsSheet, "A1", "I1", header); err != nil {
		return err
	}

	for i, r := range c.Records {
		row := i + 2
		patient := r.PatientName
		if patient == "" {
			patient = r.PatientID
		}
		doctor := r.DoctorName
		if doctor == "" {
			doctor = r.DoctorID
		}
		specialty := ""
		if r.Specialty != "" {
			specialty = r.Specialty.Label()
		}
		status, ok := statusLabels[r.Status]
		if !ok {
			status = string(r.Status)
		}
		err := writeRow(f, recordsSheet, row,
			r.Date.Format("15:04"), patient, doctor, r.ServiceType, specialty,
			string(r.Method), r.Amount.InexactFloat64(), status, r.Notes)
		if err != nil {
			return fmt.Errorf("write record %s: %w", r.ID, err)
		}
		cell := fmt.Sprintf("G%d", row)
		if err := f.SetCellStyle(recordsSheet, cell, cell, money); err != nil {
			return err
		}
	}
	return f.SetColWidth(recordsSheet, "A", "I", 18)
}

func writeSummary(f *excelize.File, c *DailyClosing, header, money int) error {
	row := 1
	put := func(values ...interface{}) error {
		err := writeRow(f, summarySheet, row, values...)
		row++
		return err
	}
	styleMoney := func(col string) error {
		cell := fmt.Sprintf("%s%d", col, row-1)
		return f.SetCellStyle(summarySheet, cell, cell, money)
	}

	if err := put("Fechamento do dia", c.Date); err != nil {
		return err
	}
	if err := put("Total recebido", c.Total.InexactFloat64()); err != nil {
		return err
	}
	if err := styleMoney("B"); err != nil {
		return err
	}
	if err := put("Total pendente", c.Pending.InexactFloat64()); err != nil {
		return err
	}
	if err := styleMoney("B"); err != nil {
		return err
	}
	if err := put("Lançamentos", c.Count, "Cancelados", c.Canceled); err != nil {
		return err
	}
	row++

	if err := put("Forma de pagamento", "Quantidade", "Total"); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, fmt.Sprintf("A%d", row-1), fmt.Sprintf("C%d", row-1), header); err != nil {
		return err
	}
	for _, m := range c.ByMethod {
		if err := put(string(m.Method), m.Count, m.Total.InexactFloat64()); err != nil {
			return err
		}
		if err := styleMoney("C"); err != nil {
			return err
		}
	}
	row++

	if err := put("Serviço", "Quantidade", "Total"); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, fmt.Sprintf("A%d", row-1), fmt.Sprintf("C%d", row-1), header); err != nil {
		return err
	}
	for _, s := range c.ByService {
		if err := put(s.ServiceType, s.Count, s.Total.InexactFloat64()); err != nil {
			return err
		}
		if err := styleMoney("C"); err != nil {
			return err
		}
	}
	return f.SetColWidth(summarySheet, "A", "C", 22)
}

// SaveXLSX writes the closing into dir and returns the file path.
func SaveXLSX(dir string, c *DailyClosing) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, FileName(c))
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteXLSX(out, c); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
