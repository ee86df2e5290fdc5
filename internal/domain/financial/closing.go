package financial

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clinic/therapy/internal/domain/therapy"
)

// MethodTotal is the amount received through one payment method.
type MethodTotal struct {
	Method therapy.PaymentMethod `json:"method"`
	Count  int                   `json:"count"`
	Total  decimal.Decimal       `json:"total"`
}

// ServiceTotal is the amount received for one service type.
type ServiceTotal struct {
	ServiceType string          `json:"serviceType"`
	Count       int             `json:"count"`
	Total       decimal.Decimal `json:"total"`
}

// DailyClosing is the cash closing of one day.
type DailyClosing struct {
	Date      string             `json:"date"`
	Records   []*FinancialRecord `json:"records"`
	Count     int                `json:"count"`
	Total     decimal.Decimal    `json:"total"`
	Pending   decimal.Decimal    `json:"pending"`
	Canceled  int                `json:"canceled"`
	ByMethod  []MethodTotal      `json:"byMethod"`
	ByService []ServiceTotal     `json:"byService"`
}

var methodOrder = []therapy.PaymentMethod{therapy.PaymentCash, therapy.PaymentPix, therapy.PaymentCard}

// BuildClosing aggregates the records of day. Canceled records are listed but
// never counted in totals; pending ones are totaled apart from received money.
func BuildClosing(day time.Time, records []*FinancialRecord) *DailyClosing {
	c := &DailyClosing{
		Date:    day.Format(DateLayout),
		Records: make([]*FinancialRecord, 0, len(records)),
		Total:   decimal.Zero,
		Pending: decimal.Zero,
	}

	byMethod := make(map[therapy.PaymentMethod]*MethodTotal)
	byService := make(map[string]*ServiceTotal)
	for _, r := range records {
		c.Records = append(c.Records, r)
		switch r.Status {
		case therapy.PaymentCanceled:
			c.Canceled++
			continue
		case therapy.PaymentPending:
			c.Pending = c.Pending.Add(r.Amount)
			continue
		}

		c.Count++
		c.Total = c.Total.Add(r.Amount)

		mt, ok := byMethod[r.Method]
		if !ok {
			mt = &MethodTotal{Method: r.Method, Total: decimal.Zero}
			byMethod[r.Method] = mt
		}
		mt.Count++
		mt.Total = mt.Total.Add(r.Amount)

		st, ok := byService[r.ServiceType]
		if !ok {
			st = &ServiceTotal{ServiceType: r.ServiceType, Total: decimal.Zero}
			byService[r.ServiceType] = st
		}
		st.Count++
		st.Total = st.Total.Add(r.Amount)
	}

	c.ByMethod = make([]MethodTotal, 0, len(byMethod))
	for _, m := range methodOrder {
		if mt, ok := byMethod[m]; ok {
			c.ByMethod = append(c.ByMethod, *mt)
			delete(byMethod, m)
		}
	}
	// Methods outside the known set go last, by name.
	rest := make([]MethodTotal, 0, len(byMethod))
	for _, mt := range byMethod {
		rest = append(rest, *mt)
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Method < rest[j].Method })
	c.ByMethod = append(c.ByMethod, rest...)

	c.ByService = make([]ServiceTotal, 0, len(byService))
	for _, st := range byService {
		c.ByService = append(c.ByService, *st)
	}
	sort.Slice(c.ByService, func(i, j int) bool { return c.ByService[i].ServiceType < c.ByService[j].ServiceType })

	sort.SliceStable(c.Records, func(i, j int) bool { return c.Records[i].Date.Before(c.Records[j].Date) })
	return c
}
