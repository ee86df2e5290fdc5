package therapy

import "github.com/shopspring/decimal"

// BalanceSummary is the display state derived from a package's counters.
type BalanceSummary struct {
	// Balance is the amount still owed; negative means the patient has credit.
	Balance decimal.Decimal `json:"balance"`
	// Remaining is the number of contracted sessions left; negative means
	// sessions were performed beyond the contract.
	Remaining  int  `json:"remaining"`
	HasCredit  bool `json:"hasCredit"`
	HasOverage bool `json:"hasOverage"`
}

// ComputeBalance derives balance and remaining sessions. It is total over any
// input and must be re-run whenever the package changes.
func ComputeBalance(p *TherapyPackage) BalanceSummary {
	balance := p.TotalValue.Sub(p.TotalPaid)
	remaining := p.TotalSessions - p.SessionsDone
	return BalanceSummary{
		Balance:    balance,
		Remaining:  remaining,
		HasCredit:  balance.IsNegative(),
		HasOverage: remaining < 0,
	}
}

var hundred = decimal.NewFromInt(100)

// Progress is the share of contracted sessions already done, in percent with
// two decimals. A package with no contracted sessions is at 0%.
func Progress(p *TherapyPackage) decimal.Decimal {
	if p.TotalSessions <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(p.SessionsDone)).
		Mul(hundred).
		DivRound(decimal.NewFromInt(int64(p.TotalSessions)), 2)
}

// PackagesSummary aggregates all packages of one patient.
type PackagesSummary struct {
	Packages          int             `json:"packages"`
	Active            int             `json:"active"`
	Pending           int             `json:"pending"`
	Completed         int             `json:"completed"`
	ContractedValue   decimal.Decimal `json:"contractedValue"`
	PaidValue         decimal.Decimal `json:"paidValue"`
	Outstanding       decimal.Decimal `json:"outstanding"`
	Credit            decimal.Decimal `json:"credit"`
	SessionsDone      int             `json:"sessionsDone"`
	SessionsRemaining int             `json:"sessionsRemaining"`
	ExtraSessions     int             `json:"extraSessions"`
}

// Summarize folds ComputeBalance over a patient's packages. Outstanding only
// counts positive balances and Credit only negative ones, so one package's
// credit never hides another package's debt.
func Summarize(pkgs []*TherapyPackage) PackagesSummary {
	sum := PackagesSummary{
		ContractedValue: decimal.Zero,
		PaidValue:       decimal.Zero,
		Outstanding:     decimal.Zero,
		Credit:          decimal.Zero,
	}
	for _, p := range pkgs {
		sum.Packages++
		switch p.Status {
		case PackageActive:
			sum.Active++
		case PackagePending:
			sum.Pending++
		case PackageCompleted:
			sum.Completed++
		}
		sum.ContractedValue = sum.ContractedValue.Add(p.TotalValue)
		sum.PaidValue = sum.PaidValue.Add(p.TotalPaid)
		sum.SessionsDone += p.SessionsDone

		b := ComputeBalance(p)
		if b.HasCredit {
			sum.Credit = sum.Credit.Add(b.Balance.Neg())
		} else {
			sum.Outstanding = sum.Outstanding.Add(b.Balance)
		}
		if b.HasOverage {
			sum.ExtraSessions += -b.Remaining
		} else {
			sum.SessionsRemaining += b.Remaining
		}
	}
	return sum
}
